package db

import (
	"context"
	"strings"
	"testing"

	"krafti/internal/dbtest"
	"krafti/internal/models"
)

const fixtures = `
users:
  - email: mentor@example.com
    fullname: Mia Mentor
    password: secret123
    role: Manager
courses:
  - title: Algebra
    category: math
    price:
      1: 100
      3: 250
    lessons:
      - title: Intro
        free: true
      - title: Equations
`

func TestSeedIsRepeatable(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, database); err != nil {
			t.Fatalf("Seed run %d: %v", i, err)
		}
	}
	var count int64
	if err := database.Model(&models.UserRole{}).Count(&count).Error; err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if count != int64(len(DefaultRoles)) {
		t.Fatalf("roles = %d, want %d", count, len(DefaultRoles))
	}
}

func TestSeedFrom(t *testing.T) {
	database := dbtest.Open(t)
	ctx := context.Background()
	if err := Seed(ctx, database); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := SeedFrom(ctx, database, strings.NewReader(fixtures)); err != nil {
		t.Fatalf("SeedFrom: %v", err)
	}

	var user models.User
	if err := database.Preload("Role").Where("email = ?", "mentor@example.com").Take(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.Active || user.Password == "secret123" || !user.HasScope("orders") || user.HasScope("users") {
		t.Fatalf("user = %+v", user)
	}

	var course models.Course
	if err := database.Preload("Lessons").Where("title = ?", "Algebra").Take(&course).Error; err != nil {
		t.Fatalf("load course: %v", err)
	}
	if course.LessonsCount != 2 || len(course.Lessons) != 2 || course.Price.Data()["3"] != 250 {
		t.Fatalf("course = %+v", course)
	}

	bad := strings.NewReader("users:\n  - email: x@example.com\n    role: Nobody\n")
	if err := SeedFrom(ctx, database, bad); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
