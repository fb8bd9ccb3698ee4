package admin

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Courses manages the course catalogue.
type Courses struct {
	pipeline.Defaults[models.Course]
}

func (Courses) Scope() string { return "courses" }

func (Courses) Fillable() []string {
	return []string{"title", "tagline", "description", "category", "price", "age", "cover_id", "active"}
}

func (Courses) BeforeCount(d *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	b = likeAny(d, b, "courses.title", "courses.tagline")
	if category := strings.TrimSpace(d.Properties.String("category")); category != "" {
		b = b.Where("courses.category = ?", category)
	}
	if active, ok := d.Properties.Bool("active"); ok {
		b = b.Where("courses.active = ?", active)
	}
	return b
}

func (Courses) AfterCount(_ *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	return b.Order("courses.id DESC")
}

func (Courses) BeforeSave(_ *pipeline.Descriptor, c *models.Course) error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return pipeline.Reject("Course title is required")
	}
	prices := c.Price.Data()
	if len(prices) == 0 {
		return pipeline.Reject("Set at least one price")
	}
	for period, cost := range prices {
		months, err := strconv.Atoi(period)
		if err != nil || months < 1 {
			return pipeline.Reject("Invalid price period %s", period)
		}
		if cost < 1 {
			return pipeline.Reject("Price for %d months must be positive", months)
		}
	}
	return nil
}

func (Courses) BeforeDelete(d *pipeline.Descriptor, c *models.Course) error {
	ordered, err := exists(d.DB(), &models.Order{}, "course_id = ?", c.ID)
	if err != nil {
		return err
	}
	if ordered {
		return pipeline.Reject("Courses with orders cannot be deleted")
	}
	return nil
}
