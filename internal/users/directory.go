// Package users loads principals and checks passwords.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"krafti/internal/models"
)

// ErrInvalidCredentials is returned when the email is unknown, the account is
// inactive or the password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Directory resolves user accounts from the store.
type Directory struct {
	db *gorm.DB
}

// NewDirectory returns a Directory backed by db.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Active returns the active user with id and its role, or nil when the
// account does not exist or has been disabled.
func (d *Directory) Active(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Preload("Role").
		Where("id = ? AND active = ?", id, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

// Authenticate checks an email and password pair.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := d.db.WithContext(ctx).Preload("Role").
		Where("LOWER(email) = ?", email).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", email, err)
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
