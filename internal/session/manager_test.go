package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"krafti/internal/credential"
	"krafti/internal/dbtest"
	"krafti/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, maxActive int, owners ...uint) (*Manager, *gorm.DB) {
	t.Helper()
	database := dbtest.Open(t)
	role := &models.UserRole{Title: "User"}
	dbtest.MustCreate(t, database, role)
	for _, id := range owners {
		dbtest.MustCreate(t, database, &models.User{
			ID:     id,
			Email:  fmt.Sprintf("user%d@example.com", id),
			RoleID: role.ID,
			Active: true,
		})
	}

	codec, err := credential.NewCodec("secret", "HS256", []string{"HS256", "HS384", "HS512"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return NewManager(database, codec, Options{TTL: time.Hour, MaxActive: maxActive}), database
}

func activeTokens(t *testing.T, database *gorm.DB, owner uint) []models.UserToken {
	t.Helper()
	var rows []models.UserToken
	if err := database.Where("user_id = ? AND active = ?", owner, true).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("load tokens: %v", err)
	}
	return rows
}

func TestIssueSameSecondIsIdempotent(t *testing.T) {
	m, database := newManager(t, 5, 7)
	ctx := context.Background()

	first, err := m.Issue(ctx, 7, "10.0.0.1", t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := m.Issue(ctx, 7, "10.0.0.2", t0.Add(400*time.Millisecond))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first != second {
		t.Fatalf("same-second Issue returned a different token")
	}
	if rows := activeTokens(t, database, 7); len(rows) != 1 {
		t.Fatalf("active tokens = %d, want 1", len(rows))
	}

	third, err := m.Issue(ctx, 7, "10.0.0.1", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if third == first {
		t.Fatalf("next-second Issue reused the token")
	}
}

func TestIssueEvictsOldest(t *testing.T) {
	m, database := newManager(t, 3, 42)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 4; i++ {
		tok, err := m.Issue(ctx, 42, "127.0.0.1", t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Issue #%d: %v", i, err)
		}
		tokens = append(tokens, tok)
	}

	rows := activeTokens(t, database, 42)
	if len(rows) != 3 {
		t.Fatalf("active tokens = %d, want 3", len(rows))
	}
	for _, r := range rows {
		if r.Token == tokens[0] {
			t.Fatalf("oldest token is still active")
		}
	}

	owner, ok, err := m.Resolve(ctx, tokens[0], t0.Add(5*time.Second))
	if err != nil || ok || owner != 0 {
		t.Fatalf("Resolve(evicted) = %d, %v, %v", owner, ok, err)
	}
	owner, ok, err = m.Resolve(ctx, tokens[3], t0.Add(5*time.Second))
	if err != nil || !ok || owner != 42 {
		t.Fatalf("Resolve(latest) = %d, %v, %v", owner, ok, err)
	}
}

func TestIssueSweepsExpired(t *testing.T) {
	m, database := newManager(t, 5, 9)
	ctx := context.Background()

	if _, err := m.Issue(ctx, 9, "", t0); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Issue(ctx, 9, "", t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rows := activeTokens(t, database, 9); len(rows) != 1 {
		t.Fatalf("active tokens = %d, want 1", len(rows))
	}
}

func TestIssueConcurrentRespectsCap(t *testing.T) {
	const maxActive = 3
	m, database := newManager(t, maxActive, 11)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.Issue(ctx, 11, "", t0.Add(time.Duration(i)*time.Second)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Issue: %v", err)
	}

	if rows := activeTokens(t, database, 11); len(rows) > maxActive {
		t.Fatalf("active tokens = %d, want at most %d", len(rows), maxActive)
	}
}

func TestResolve(t *testing.T) {
	m, database := newManager(t, 5, 3)
	ctx := context.Background()

	token, err := m.Issue(ctx, 3, "", t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		now    time.Time
		want   uint
		wantOK bool
	}{
		{name: "valid", token: token, now: t0.Add(time.Minute), want: 3, wantOK: true},
		{name: "invalid string", token: "invalid string", now: t0},
		{name: "unknown credential", token: token + "x", now: t0},
		{name: "exactly at valid_till", token: token, now: t0.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := m.Resolve(ctx, tt.token, tt.now)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Resolve() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if rows := activeTokens(t, database, 3); len(rows) != 0 {
		t.Fatalf("expired session still active")
	}
	if _, ok, _ := m.Resolve(ctx, token, t0.Add(time.Minute)); ok {
		t.Fatalf("deactivated session resolved")
	}
}

func TestRevoke(t *testing.T) {
	m, _ := newManager(t, 5, 5)
	ctx := context.Background()

	token, err := m.Issue(ctx, 5, "", t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := m.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, ok, _ := m.Resolve(ctx, token, t0.Add(time.Minute)); ok {
		t.Fatalf("revoked session resolved")
	}
	if err := m.Revoke(ctx, token); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}
