package models

// UserProgress tracks how far a user got through a course.
type UserProgress struct {
	ID       uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint `gorm:"uniqueIndex:idx_user_progress;not null" json:"user_id"`
	CourseID uint `gorm:"uniqueIndex:idx_user_progress;not null" json:"course_id"`
	Section  int  `gorm:"not null;default:1" json:"section"`
	Rank     int  `gorm:"not null;default:0" json:"rank"`
}
