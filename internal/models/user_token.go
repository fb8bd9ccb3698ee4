package models

import "time"

// UserToken backs one issued credential. Rows are deactivated, never deleted.
type UserToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index:idx_user_tokens_owner;not null" json:"user_id"`
	Token     string    `gorm:"type:varchar(512);index;not null" json:"-"`
	ValidTill time.Time `gorm:"not null" json:"valid_till"`
	IP        string    `gorm:"type:varchar(64);not null;default:''" json:"ip"`
	Active    bool      `gorm:"index:idx_user_tokens_owner;not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}
