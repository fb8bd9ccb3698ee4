package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScopeAll grants every admin scope.
const ScopeAll = "*"

// UserRole groups admin scopes that can be assigned to users.
type UserRole struct {
	ID        uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string                      `gorm:"type:varchar(191);uniqueIndex;not null" json:"title"`
	Scope     datatypes.JSONSlice[string] `json:"scope"`
	CreatedAt time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Allows reports whether the role grants scope.
func (r *UserRole) Allows(scope string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Scope {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}
