// Package web holds the read-only record handlers of the public site.
package web

import (
	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Register binds the public handlers to r.
func Register(r *pipeline.Registry) {
	pipeline.Register[models.Course](r, "courses", Courses{})
	pipeline.Register[models.Order](r, "orders", Orders{})
}
