package admin

import (
	"strings"

	"krafti/internal/models"
	"krafti/internal/pipeline"
)

// Roles manages user roles and the admin scopes they grant.
type Roles struct {
	pipeline.Defaults[models.UserRole]
}

func (Roles) Scope() string { return "users" }

func (Roles) Fillable() []string { return []string{"title", "scope"} }

func (Roles) BeforeSave(d *pipeline.Descriptor, r *models.UserRole) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return pipeline.Reject("Role title is required")
	}
	taken, err := exists(d.DB(), &models.UserRole{}, "title = ? AND id <> ?", r.Title, r.ID)
	if err != nil {
		return err
	}
	if taken {
		return pipeline.Reject("Role %s already exists", r.Title)
	}
	if r.Scope == nil {
		r.Scope = []string{}
	}
	return nil
}

func (Roles) BeforeDelete(d *pipeline.Descriptor, r *models.UserRole) error {
	assigned, err := exists(d.DB(), &models.User{}, "role_id = ?", r.ID)
	if err != nil {
		return err
	}
	if assigned {
		return pipeline.Reject("Role %s is assigned to users", r.Title)
	}
	return nil
}
