package db

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krafti/internal/models"
	"krafti/internal/users"
)

// DefaultRoles are created on every seed run.
var DefaultRoles = []models.UserRole{
	{Title: "Administrator", Scope: datatypes.JSONSlice[string]{models.ScopeAll}},
	{Title: "Manager", Scope: datatypes.JSONSlice[string]{"orders", "courses"}},
	{Title: "User", Scope: datatypes.JSONSlice[string]{}},
}

// Seed inserts baseline lookup data such as default roles.
func Seed(ctx context.Context, database *gorm.DB) error {
	for _, role := range DefaultRoles {
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
			Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedFile describes fixture data loaded by kraftictl seed --file.
type SeedFile struct {
	Users []struct {
		Email    string `yaml:"email"`
		Fullname string `yaml:"fullname"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"users"`
	Courses []struct {
		Title       string       `yaml:"title"`
		Tagline     string       `yaml:"tagline"`
		Description string       `yaml:"description"`
		Category    string       `yaml:"category"`
		Price       map[int]int  `yaml:"price"`
		Lessons     []seedLesson `yaml:"lessons"`
	} `yaml:"courses"`
}

type seedLesson struct {
	Title string `yaml:"title"`
	Free  bool   `yaml:"free"`
}

// SeedFrom decodes a YAML SeedFile from r and inserts its users and courses.
// Users whose email already exists are skipped.
func SeedFrom(ctx context.Context, database *gorm.DB, r io.Reader) error {
	var file SeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range file.Users {
			var role models.UserRole
			if err := tx.Where("title = ?", u.Role).First(&role).Error; err != nil {
				return fmt.Errorf("user %s: role %q: %w", u.Email, u.Role, err)
			}
			hash, err := users.HashPassword(u.Password)
			if err != nil {
				return err
			}
			user := models.User{Email: u.Email, Fullname: u.Fullname, Password: hash, RoleID: role.ID, Active: true}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
				Create(&user).Error; err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
		}

		for _, c := range file.Courses {
			prices := models.Prices{}
			for period, cost := range c.Price {
				prices[strconv.Itoa(period)] = cost
			}
			course := models.Course{
				Title:        c.Title,
				Tagline:      c.Tagline,
				Description:  c.Description,
				Category:     c.Category,
				Price:        datatypes.NewJSONType(prices),
				LessonsCount: len(c.Lessons),
				Active:       true,
			}
			for i, l := range c.Lessons {
				course.Lessons = append(course.Lessons, models.Lesson{Title: l.Title, Free: l.Free, Rank: i, Active: true})
			}
			if err := tx.Create(&course).Error; err != nil {
				return fmt.Errorf("course %s: %w", c.Title, err)
			}
		}
		return nil
	})
}
