package admin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Orders manages course purchases. Orders created here are manual payments
// recorded by staff.
type Orders struct {
	pipeline.Defaults[models.Order]
}

func (Orders) Scope() string { return "orders" }

func (Orders) Fillable() []string {
	return []string{"user_id", "course_id", "period", "status"}
}

func (Orders) BeforeCount(d *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	if strings.TrimSpace(d.Properties.String("query")) != "" {
		b = b.Joins("JOIN courses ON courses.id = orders.course_id").
			Joins("JOIN users ON users.id = orders.user_id")
		b = likeAny(d, b, "courses.title", "users.fullname", "users.email")
	}

	if dates := d.Properties.Strings("date"); len(dates) > 0 {
		from, err := time.Parse(time.DateOnly, dates[0])
		if err != nil {
			_ = b.AddError(pipeline.Reject("Invalid date %s", dates[0]))
			return b
		}
		b = b.Where("orders.created_at >= ?", from)
		if len(dates) > 1 {
			to, err := time.Parse(time.DateOnly, dates[1])
			if err != nil {
				_ = b.AddError(pipeline.Reject("Invalid date %s", dates[1]))
				return b
			}
			b = b.Where("orders.created_at < ?", to.AddDate(0, 0, 1))
		}
	}
	if courseID, ok := d.Properties.Uint("course_id"); ok {
		b = b.Where("orders.course_id = ?", courseID)
	}
	if service := strings.TrimSpace(d.Properties.String("service")); service != "" {
		b = b.Where("orders.service = ?", service)
	}
	d.Keep(b)

	if status, ok := d.Properties.Int("status"); ok && status != 0 {
		b = b.Where("orders.status = ?", status)
	}
	return b
}

func (Orders) AfterCount(_ *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	return b.
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "email", "fullname") }).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title", "cover_id") }).
		Order("orders.id DESC")
}

// PrepareList adds total_cost: the revenue of paid orders matching every
// filter but status. Manual orders only count when service=internal.
func (Orders) PrepareList(d *pipeline.Descriptor, l *pipeline.List) error {
	c := d.Conditions()
	if c == nil {
		return nil
	}
	c = c.Where("orders.status = ?", models.OrderStatusPaid)
	if d.Properties.String("service") != models.ServiceInternal {
		c = c.Where("orders.manual = ?", false)
	}

	var total int64
	if err := c.Select("COALESCE(SUM(orders.cost), 0)").Row().Scan(&total); err != nil {
		return fmt.Errorf("sum order cost: %w", err)
	}
	l.Set("total_cost", total)
	return nil
}

func (Orders) BeforeSave(d *pipeline.Descriptor, o *models.Order) error {
	db := d.DB()

	var course models.Course
	if err := takeByID(db, &course, o.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pipeline.Reject("Course not found")
		}
		return err
	}
	var user models.User
	if err := takeByID(db, &user, o.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pipeline.Reject("User not found")
		}
		return err
	}

	if o.Period < 1 {
		return pipeline.Reject("Select a payment period")
	}
	cost, ok := course.Price.Data().Cost(o.Period)
	if !ok {
		return pipeline.Reject("Invalid payment period")
	}
	if o.Status != models.OrderStatusNew && o.Status != models.OrderStatusPaid && d.Properties.Has("status") {
		return pipeline.Reject("Invalid order status")
	}

	if d.Op != pipeline.OpCreate {
		return nil
	}

	unpaid, err := exists(db, &models.Order{}, "course_id = ? AND user_id = ? AND status = ?",
		course.ID, user.ID, models.OrderStatusNew)
	if err != nil {
		return err
	}
	if unpaid {
		return pipeline.Reject("This user already has an unpaid order for the course, edit it instead")
	}
	paid, err := exists(db, &models.Order{}, "course_id = ? AND user_id = ? AND status = ? AND paid_till > ?",
		course.ID, user.ID, models.OrderStatusPaid, d.Now)
	if err != nil {
		return err
	}
	if paid {
		return pipeline.Reject("This user has already paid for the course")
	}

	o.Manual = true
	o.Service = models.ServiceInternal
	o.Cost = cost
	if !d.Properties.Has("status") {
		o.Status = models.OrderStatusPaid
	}
	paidAt := d.Now
	o.PaidAt = &paidAt
	paidTill := d.Now.AddDate(0, o.Period, 0)
	if raw := strings.TrimSpace(d.Properties.String("paid_till")); raw != "" {
		if paidTill, err = parseTime(raw); err != nil {
			return pipeline.Reject("Invalid paid_till %s", raw)
		}
	}
	o.PaidTill = &paidTill
	return nil
}

func (Orders) BeforeDelete(_ *pipeline.Descriptor, o *models.Order) error {
	if o.Status != models.OrderStatusNew {
		return pipeline.Reject("Paid orders cannot be deleted")
	}
	return nil
}

func takeByID(db *gorm.DB, dest any, id uint) error {
	if id == 0 {
		return gorm.ErrRecordNotFound
	}
	return db.Take(dest, id).Error
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
