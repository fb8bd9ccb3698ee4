package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Prices maps a subscription period in months, as a decimal string, to its cost.
type Prices map[string]int

// Cost returns the price of period and whether the period is offered.
func (p Prices) Cost(period int) (int, bool) {
	cost, ok := p[strconv.Itoa(period)]
	return cost, ok
}

// Course is a paid course made of lessons.
type Course struct {
	ID           uint                       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string                     `gorm:"type:varchar(255);not null" json:"title"`
	Tagline      string                     `gorm:"type:varchar(255);not null;default:''" json:"tagline"`
	Description  string                     `gorm:"type:text" json:"description"`
	Category     string                     `gorm:"type:varchar(100);index;not null;default:''" json:"category"`
	Price        datatypes.JSONType[Prices] `json:"price"`
	Age          string                     `gorm:"type:varchar(50);not null;default:''" json:"age"`
	ViewsCount   int                        `gorm:"not null;default:0" json:"views_count"`
	ReviewsCount int                        `gorm:"not null;default:0" json:"reviews_count"`
	LikesSum     int                        `gorm:"not null;default:0" json:"likes_sum"`
	LessonsCount int                        `gorm:"not null;default:0" json:"lessons_count"`
	VideosCount  int                        `gorm:"not null;default:0" json:"videos_count"`
	CoverID      *uint                      `json:"cover_id"`
	Active       bool                       `gorm:"index;not null" json:"active"`
	CreatedAt    time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`

	Lessons []Lesson `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Lesson belongs to a course; free lessons are previewable without purchase.
type Lesson struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Rank      int       `gorm:"not null;default:0" json:"rank"`
	Active    bool      `gorm:"not null" json:"active"`
	Free      bool      `gorm:"not null;default:false" json:"free"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
