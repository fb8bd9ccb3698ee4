package web

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"krafti/internal/dbtest"
	"krafti/internal/models"
	"krafti/internal/pipeline"
)

var now = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type catalogue struct {
	registry *pipeline.Registry
	viewer   *models.User
	other    *models.User
	algebra  *models.Course
	calculus *models.Course
	poetry   *models.Course
}

func newCatalogue(t *testing.T) *catalogue {
	t.Helper()
	database := dbtest.Open(t)

	role := &models.UserRole{Title: "User"}
	dbtest.MustCreate(t, database, role)
	c := &catalogue{
		viewer:   &models.User{Email: "sam@example.com", RoleID: role.ID, Active: true},
		other:    &models.User{Email: "kim@example.com", RoleID: role.ID, Active: true},
		algebra:  &models.Course{Title: "Algebra", Category: "math", Active: true, CoverID: ptr[uint](7)},
		calculus: &models.Course{Title: "Calculus", Category: "math", Active: true},
		poetry:   &models.Course{Title: "Poetry", Category: "arts", Active: true},
	}
	hidden := &models.Course{Title: "Draft", Category: "math"}
	c.algebra.Price = datatypes.NewJSONType(models.Prices{"1": 100})
	dbtest.MustCreate(t, database, c.viewer, c.other, c.algebra, c.calculus, c.poetry, hidden)
	dbtest.MustCreate(t, database,
		&models.Lesson{CourseID: c.algebra.ID, Title: "Intro", Active: true, Free: true},
		&models.Lesson{CourseID: c.algebra.ID, Title: "Paid", Active: true},
		&models.Order{UserID: c.viewer.ID, CourseID: c.algebra.ID, Period: 1, Cost: 100,
			Status: models.OrderStatusPaid, PaidTill: ptr(now.AddDate(0, 1, 0))},
		&models.Order{UserID: c.viewer.ID, CourseID: c.poetry.ID, Period: 1, Cost: 50,
			Status: models.OrderStatusPaid, PaidTill: ptr(now.AddDate(0, -1, 0))},
		&models.Order{UserID: c.other.ID, CourseID: c.calculus.ID, Period: 1, Cost: 70, Status: models.OrderStatusNew},
		&models.UserProgress{UserID: c.viewer.ID, CourseID: c.algebra.ID, Section: 3, Rank: 2},
		&models.Discount{Discount: 5, Type: models.DiscountPercent, Active: true},
		&models.Discount{CourseID: &c.calculus.ID, Discount: 10, Type: models.DiscountPercent, Active: true},
		&models.Discount{CourseID: &c.calculus.ID, UserID: &c.viewer.ID, Discount: 300, Type: models.DiscountAmount, Active: true},
		&models.Discount{CourseID: &c.poetry.ID, UserID: &c.viewer.ID, Discount: 50, Type: models.DiscountPercent, Active: true,
			ValidTill: ptr(now.AddDate(0, 0, -1))},
		&models.Discount{CourseID: &c.algebra.ID, Discount: 20, Type: models.DiscountPercent, Active: true},
	)

	c.registry = pipeline.NewRegistry(database, pipeline.Config{
		DefaultLimit: 20,
		MaxLimit:     100,
		Clock:        func() time.Time { return now },
	})
	Register(c.registry)
	return c
}

func rows(t *testing.T, l *pipeline.List) map[string]CourseRow {
	t.Helper()
	out := make(map[string]CourseRow, len(l.Items))
	for _, item := range l.Items {
		row := item.(CourseRow)
		out[row.Title] = row
	}
	return out
}

func TestCoursesAnonymous(t *testing.T) {
	c := newCatalogue(t)
	l, err := c.registry.List(context.Background(), "courses", pipeline.Request{
		Properties: pipeline.Properties{"category": "math"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if l.Total != 2 {
		t.Fatalf("Total = %d, want 2", l.Total)
	}

	got := rows(t, l)
	algebra := got["Algebra"]
	if algebra.Bought || algebra.PaidTill != nil || algebra.Discount != 0 || algebra.Progress != (Progress{Section: 1}) {
		t.Fatalf("anonymous row personalized: %+v", algebra)
	}
	if algebra.Cover == nil || *algebra.Cover != "/image/7" {
		t.Fatalf("Cover = %v", algebra.Cover)
	}
	if algebra.FreeLesson == nil {
		t.Fatalf("FreeLesson = nil")
	}
	if got["Calculus"].FreeLesson != nil {
		t.Fatalf("Calculus has no free lesson")
	}

	raw, err := json.Marshal(algebra)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "paid_till") || !strings.Contains(string(raw), `"bought":false`) {
		t.Fatalf("json = %s", raw)
	}
}

func TestCoursesViewer(t *testing.T) {
	c := newCatalogue(t)
	l, err := c.registry.List(context.Background(), "courses", pipeline.Request{Viewer: c.viewer})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := rows(t, l)
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3 active courses", len(got))
	}

	algebra := got["Algebra"]
	if !algebra.Bought || algebra.PaidTill == nil || !algebra.PaidTill.Equal(now.AddDate(0, 1, 0)) {
		t.Fatalf("Algebra = %+v, want bought with paid_till", algebra)
	}
	if algebra.Discount != 0 {
		t.Fatalf("bought course carries a discount")
	}
	if algebra.Progress != (Progress{Section: 3, Rank: 2}) {
		t.Fatalf("Progress = %+v", algebra.Progress)
	}

	calculus := got["Calculus"]
	if calculus.Bought || calculus.Discount != 300 || calculus.DiscountType != models.DiscountAmount {
		t.Fatalf("Calculus = %+v, want personal discount", calculus)
	}

	poetry := got["Poetry"]
	if poetry.Bought || poetry.PaidTill != nil {
		t.Fatalf("expired purchase counted as bought: %+v", poetry)
	}
	if poetry.Discount != 5 || poetry.DiscountType != models.DiscountPercent {
		t.Fatalf("Poetry discount = %d %s, want global 5 percent", poetry.Discount, poetry.DiscountType)
	}
}

func TestCoursesExclude(t *testing.T) {
	c := newCatalogue(t)
	l, err := c.registry.List(context.Background(), "courses", pipeline.Request{
		Properties: pipeline.Properties{"exclude": fmt.Sprintf("x, %d", c.algebra.ID)},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, ok := rows(t, l)["Algebra"]; ok || l.Total != 2 {
		t.Fatalf("exclude ignored: total %d", l.Total)
	}
}

func TestCoursesGet(t *testing.T) {
	c := newCatalogue(t)
	out, err := c.registry.Get(context.Background(), "courses", pipeline.Request{ID: c.poetry.ID})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.(CourseRow).Title != "Poetry" {
		t.Fatalf("Get() = %+v", out)
	}
}

func TestOrders(t *testing.T) {
	c := newCatalogue(t)
	ctx := context.Background()

	l, err := c.registry.List(ctx, "orders", pipeline.Request{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if l.Total != 0 || len(l.Items) != 0 {
		t.Fatalf("anonymous orders = %d", l.Total)
	}

	l, err = c.registry.List(ctx, "orders", pipeline.Request{Viewer: c.viewer})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if l.Total != 2 {
		t.Fatalf("Total = %d, want 2", l.Total)
	}
	for _, item := range l.Items {
		o := item.(*models.Order)
		if o.UserID != c.viewer.ID || o.Course == nil {
			t.Fatalf("order = %+v", o)
		}
	}
}
