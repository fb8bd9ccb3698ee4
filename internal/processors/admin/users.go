package admin

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"krafti/internal/models"
	"krafti/internal/pipeline"
	"krafti/internal/users"
)

// Users manages accounts. The password property is hashed, never stored as
// given.
type Users struct {
	pipeline.Defaults[models.User]
}

func (Users) Scope() string { return "users" }

func (Users) Fillable() []string {
	return []string{"email", "fullname", "role_id", "active"}
}

func (Users) BeforeCount(d *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	b = likeAny(d, b, "users.email", "users.fullname")
	if roleID, ok := d.Properties.Uint("role_id"); ok {
		b = b.Where("users.role_id = ?", roleID)
	}
	if active, ok := d.Properties.Bool("active"); ok {
		b = b.Where("users.active = ?", active)
	}
	return b
}

func (Users) AfterCount(_ *pipeline.Descriptor, b *gorm.DB) *gorm.DB {
	return b.Preload("Role").Order("users.id DESC")
}

func (Users) BeforeSave(d *pipeline.Descriptor, u *models.User) error {
	db := d.DB()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return pipeline.Reject("A valid email is required")
	}
	taken, err := exists(db, &models.User{}, "LOWER(email) = ? AND id <> ?", u.Email, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return pipeline.Reject("Email %s is already in use", u.Email)
	}

	var role models.UserRole
	if err := takeByID(db, &role, u.RoleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pipeline.Reject("Role not found")
		}
		return err
	}

	password := d.Properties.String("password")
	switch {
	case password != "":
		if len(password) < 6 {
			return pipeline.Reject("Password must be at least 6 characters")
		}
		hash, err := users.HashPassword(password)
		if err != nil {
			return err
		}
		u.Password = hash
	case d.Op == pipeline.OpCreate:
		return pipeline.Reject("Password is required")
	}

	if d.Op == pipeline.OpCreate && !d.Properties.Has("active") {
		u.Active = true
	}
	return nil
}

func (Users) BeforeDelete(d *pipeline.Descriptor, u *models.User) error {
	if u.ID == d.ViewerID() {
		return pipeline.Reject("You cannot delete yourself")
	}
	return nil
}
