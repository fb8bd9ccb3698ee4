package web

import (
	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Orders lists the viewer's own orders. Anonymous viewers see none.
type Orders struct {
	pipeline.Defaults[models.Order]
}

func (Orders) BeforeCount(d *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	if d.Viewer == nil {
		return b.Where("1 = 0")
	}
	b = b.Where("orders.user_id = ?", d.Viewer.ID)
	if status, ok := d.Properties.Int("status"); ok && status != 0 {
		b = b.Where("orders.status = ?", status)
	}
	return b
}

func (Orders) AfterCount(_ *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	return b.
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title", "category", "cover_id") }).
		Order("orders.id DESC")
}
