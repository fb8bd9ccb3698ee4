package models

import "time"

// User is a platform account. Sessions reference it by id.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Fullname  string    `gorm:"type:varchar(255);not null;default:''" json:"fullname"`
	Password  string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	RoleID    uint      `gorm:"index;not null" json:"role_id"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Role *UserRole `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:RESTRICT" json:"role,omitempty"`
}

// HasScope reports whether the user's role grants scope.
func (u *User) HasScope(scope string) bool {
	if u == nil || u.Role == nil {
		return false
	}
	return u.Role.Allows(scope)
}
