// Package models declares the gorm models of the course platform.
package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&UserRole{},
		&User{},
		&UserToken{},
		&Course{},
		&Lesson{},
		&Order{},
		&UserProgress{},
		&Discount{},
	}
}
