package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"krafti/internal/models"
)

// Op names the operation a descriptor was built for.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Properties are the request parameters of one operation. Values come from
// query strings (string or []string) or JSON bodies (float64, bool, string,
// []any, map[string]any).
type Properties map[string]any

// Has reports whether key is present with a non-nil value.
func (p Properties) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the value of key as a string, or "" when it is absent or
// not a scalar.
func (p Properties) String(key string) string {
	if v, ok := p[key].([]string); ok {
		if len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return scalarString(p[key])
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Int returns the value of key as an int.
func (p Properties) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v >= math.MaxInt {
			return 0, false
		}
		return int(v), true
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.String(key)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Uint returns the value of key as a positive id.
func (p Properties) Uint(key string) (uint, bool) {
	n, ok := p.Int(key)
	if !ok || n <= 0 {
		return 0, false
	}
	return uint(n), true
}

// Bool returns the value of key as a bool. "1", "true" and non-zero numbers
// are true.
func (p Properties) Bool(key string) (bool, bool) {
	switch v := p[key].(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	}
	s := strings.TrimSpace(p.String(key))
	if s == "" {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// Strings returns the value of key as a list. A scalar string is split on
// commas; blank elements are dropped.
func (p Properties) Strings(key string) []string {
	var raw []string
	switch v := p[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, scalarString(item))
		}
	case string:
		raw = strings.Split(v, ",")
	default:
		if s := p.String(key); s != "" {
			raw = []string{s}
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Descriptor carries the state of one pipeline operation through the hooks.
type Descriptor struct {
	Entity     string
	Op         Op
	Properties Properties

	// Viewer is the authenticated principal, or nil for anonymous requests.
	Viewer *models.User

	// Now is the request time, truncated to the second.
	Now time.Time

	// ID addresses the record of get, update and delete operations.
	ID uint

	Page  int
	Limit int

	ctx  context.Context
	db   *gorm.DB
	kept *gorm.DB
}

// Context returns the request context.
func (d *Descriptor) Context() context.Context { return d.ctx }

// DB returns the database handle of the operation. During create, update and
// delete it is the enclosing transaction, and hooks must use it for every
// lookup.
func (d *Descriptor) DB() *gorm.DB { return d.db }

// ViewerID returns the viewer's id or 0 for anonymous requests.
func (d *Descriptor) ViewerID() uint {
	if d.Viewer == nil {
		return 0
	}
	return d.Viewer.ID
}

// Keep stores a snapshot of b for aggregates computed in PrepareList.
// Conditions added to b afterwards do not reach the snapshot.
func (d *Descriptor) Keep(b *gorm.DB) {
	d.kept = snapshot(b)
}

// Conditions returns the builder stored by Keep. When BeforeCount did not
// call Keep, it holds the builder as BeforeCount returned it. Every call may
// be chained independently.
func (d *Descriptor) Conditions() *gorm.DB {
	if d.kept == nil {
		return nil
	}
	return d.kept
}

// snapshot returns an independent copy of b whose chained calls never modify
// b or each other.
func snapshot(b *gorm.DB) *gorm.DB {
	ctx := b.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return b.Session(&gorm.Session{Context: ctx})
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %s id=%d page=%d limit=%d", d.Op, d.Entity, d.ID, d.Page, d.Limit)
}
