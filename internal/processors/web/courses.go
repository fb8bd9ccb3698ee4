package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Courses lists the active catalogue. Rows are personalized for signed-in
// viewers: purchase state, applicable discount and progress.
type Courses struct {
	pipeline.Defaults[models.Course]
}

// CourseRow is the public shape of a course.
type CourseRow struct {
	ID           uint          `json:"id"`
	Title        string        `json:"title"`
	Tagline      string        `json:"tagline"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Price        models.Prices `json:"price"`
	Age          string        `json:"age"`
	ViewsCount   int           `json:"views_count"`
	ReviewsCount int           `json:"reviews_count"`
	LikesSum     int           `json:"likes_sum"`
	LessonsCount int           `json:"lessons_count"`
	VideosCount  int           `json:"videos_count"`
	Cover        *string       `json:"cover"`
	Bought       bool          `json:"bought"`
	Discount     int           `json:"discount"`
	DiscountType string        `json:"discount_type"`
	Progress     Progress      `json:"progress"`
	FreeLesson   *LessonRef    `json:"free_lesson"`
	PaidTill     *time.Time    `json:"paid_till,omitempty"`
}

// Progress is the last position of a viewer in a course.
type Progress struct {
	Section int `json:"section"`
	Rank    int `json:"rank"`
}

// LessonRef points at a lesson.
type LessonRef struct {
	ID uint `json:"id"`
}

func (Courses) BeforeCount(d *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	b = b.Where("courses.active = ?", true)

	var exclude []uint
	for _, raw := range d.Properties.Strings("exclude") {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			exclude = append(exclude, uint(id))
		}
	}
	if len(exclude) > 0 {
		b = b.Where("courses.id NOT IN ?", exclude)
	}

	if category := strings.TrimSpace(d.Properties.String("category")); category != "" {
		b = b.Where("courses.category = ?", category)
	}
	return b
}

func (Courses) PrepareRow(d *pipeline.Descriptor, c *models.Course) (any, error) {
	db := d.DB()
	row := CourseRow{
		ID:           c.ID,
		Title:        c.Title,
		Tagline:      c.Tagline,
		Description:  c.Description,
		Category:     c.Category,
		Price:        c.Price.Data(),
		Age:          c.Age,
		ViewsCount:   c.ViewsCount,
		ReviewsCount: c.ReviewsCount,
		LikesSum:     c.LikesSum,
		LessonsCount: c.LessonsCount,
		VideosCount:  c.VideosCount,
		Progress:     Progress{Section: 1},
	}
	if row.Price == nil {
		row.Price = models.Prices{}
	}
	if c.CoverID != nil {
		cover := fmt.Sprintf("/image/%d", *c.CoverID)
		row.Cover = &cover
	}

	var free []LessonRef
	if err := db.Model(&models.Lesson{}).Select("id").
		Where("course_id = ? AND active = ? AND free = ?", c.ID, true, true).
		Order("RANDOM()").Limit(1).
		Find(&free).Error; err != nil {
		return nil, fmt.Errorf("free lesson of course %d: %w", c.ID, err)
	}
	if len(free) > 0 {
		row.FreeLesson = &free[0]
	}

	viewer := d.ViewerID()
	if viewer == 0 {
		return row, nil
	}

	var paid []models.Order
	if err := db.Where("user_id = ? AND course_id = ? AND status = ? AND paid_till > ?",
		viewer, c.ID, models.OrderStatusPaid, d.Now).
		Order("paid_till DESC").Limit(1).
		Find(&paid).Error; err != nil {
		return nil, fmt.Errorf("orders of course %d: %w", c.ID, err)
	}
	if len(paid) > 0 {
		row.Bought = true
		till := paid[0].PaidTill.UTC()
		row.PaidTill = &till
	} else {
		discount, err := bestDiscount(db, c.ID, viewer, d.Now)
		if err != nil {
			return nil, err
		}
		if discount != nil {
			row.Discount = discount.Discount
			row.DiscountType = discount.Type
		}
	}

	var progress []models.UserProgress
	if err := db.Where("user_id = ? AND course_id = ?", viewer, c.ID).Limit(1).Find(&progress).Error; err != nil {
		return nil, fmt.Errorf("progress of course %d: %w", c.ID, err)
	}
	if len(progress) > 0 {
		row.Progress = Progress{Section: progress[0].Section, Rank: progress[0].Rank}
	}
	return row, nil
}

// bestDiscount returns the most specific active discount for the course and
// viewer: personal ones before public ones, course ones before global ones.
func bestDiscount(db *gorm.DB, courseID, userID uint, now time.Time) (*models.Discount, error) {
	var found []models.Discount
	err := db.Where("active = ?", true).
		Where("course_id = ? OR course_id IS NULL", courseID).
		Where("user_id = ? OR user_id IS NULL", userID).
		Where("valid_till IS NULL OR valid_till > ?", now).
		Order("user_id IS NULL").Order("course_id IS NULL").Order("id DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("discount of course %d: %w", courseID, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
