package models

import "time"

// Discount types.
const (
	DiscountPercent = "percent"
	DiscountAmount  = "amount"
)

// Discount lowers the price of a course. A nil CourseID applies to every course
// and a nil UserID applies to everyone.
type Discount struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  *uint      `gorm:"index" json:"course_id"`
	UserID    *uint      `gorm:"index" json:"user_id"`
	Discount  int        `gorm:"not null" json:"discount"`
	Type      string     `gorm:"type:varchar(20);not null;default:'percent'" json:"type"`
	Active    bool       `gorm:"not null" json:"active"`
	ValidTill *time.Time `json:"valid_till"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
