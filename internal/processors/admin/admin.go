// Package admin holds the record handlers of the admin panel. Every handler
// names the role scope a viewer needs to use it.
package admin

import (
	"strings"

	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Register binds the admin handlers to r.
func Register(r *pipeline.Registry) {
	pipeline.Register[models.Order](r, "orders", Orders{})
	pipeline.Register[models.Course](r, "courses", Courses{})
	pipeline.Register[models.User](r, "users", Users{})
	pipeline.Register[models.UserRole](r, "roles", Roles{})
}

// likeAny filters b to rows where any of columns contains the query property,
// case-insensitively.
func likeAny(d *pipeline.Descriptor, b *gorm.DB, columns ...string) *gorm.DB {
	q := strings.TrimSpace(d.Properties.String("query"))
	if q == "" {
		return b
	}
	like := "%" + strings.ToLower(q) + "%"
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = like
	}
	return b.Where(strings.Join(parts, " OR "), args...)
}

func exists(db *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
