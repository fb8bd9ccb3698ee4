package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order statuses.
const (
	OrderStatusNew  = 1
	OrderStatusPaid = 2
)

// ServiceInternal marks orders created by hand in the admin panel.
const ServiceInternal = "internal"

// Order is a purchase of a course subscription for a number of months.
type Order struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Ref       uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"ref"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	CourseID  uint       `gorm:"index;not null" json:"course_id"`
	Period    int        `gorm:"not null;default:1" json:"period"`
	Cost      int        `gorm:"not null;default:0" json:"cost"`
	Status    int        `gorm:"index;not null;default:1" json:"status"`
	Service   string     `gorm:"type:varchar(50);not null;default:''" json:"service"`
	Manual    bool       `gorm:"not null;default:false" json:"manual"`
	PaidAt    *time.Time `json:"paid_at"`
	PaidTill  *time.Time `json:"paid_till"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User   *User   `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Course *Course `gorm:"foreignKey:CourseID;references:ID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// BeforeCreate assigns the public reference.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.Ref == uuid.Nil {
		o.Ref = uuid.New()
	}
	return nil
}
