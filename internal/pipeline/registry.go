// Package pipeline implements the generic record engine behind every list,
// detail, create, update and delete endpoint.
//
// Each entity registers a Handler whose hooks customize a shared flow:
//
//	list:   BeforeCount -> count -> sort -> AfterCount -> page -> PrepareRow -> PrepareList
//	get:    BeforeCount -> AfterCount -> fetch by id -> PrepareRow
//	create: fill -> BeforeSave -> insert            (one transaction)
//	update: load -> fill -> BeforeSave -> save      (one transaction)
//	delete: load -> BeforeDelete -> delete          (one transaction)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krafti/internal/metrics"
	"krafti/internal/models"
)

// Config tunes a Registry.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	Metrics      *metrics.Metrics

	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// Request addresses one operation on an entity.
type Request struct {
	Properties Properties
	Viewer     *models.User
	ID         uint
}

// Registry dispatches operations to the handler registered for an entity.
type Registry struct {
	db      *gorm.DB
	cfg     Config
	entries map[string]entry
}

// NewRegistry returns an empty Registry operating on db.
func NewRegistry(db *gorm.DB, cfg Config) *Registry {
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Registry{db: db, cfg: cfg, entries: make(map[string]entry)}
}

// Register binds h to name. It panics when name is already registered.
func Register[T any](r *Registry, name string, h Handler[T]) {
	if _, dup := r.entries[name]; dup {
		panic(fmt.Sprintf("pipeline: entity %q registered twice", name))
	}
	var scope string
	if s, ok := h.(Scoped); ok {
		scope = s.Scope()
	}
	r.entries[name] = &typed[T]{h: h, scope: scope}
}

// Entities returns the registered entity names in order.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scope returns the admin scope required by entity and whether the entity is
// registered.
func (r *Registry) Scope(entity string) (string, bool) {
	e, ok := r.entries[entity]
	if !ok {
		return "", false
	}
	return e.requiredScope(), true
}

// List returns one page of records and the total number of matches.
func (r *Registry) List(ctx context.Context, entity string, req Request) (*List, error) {
	var out *List
	err := r.run(ctx, entity, OpList, req, func(e entry, d *Descriptor) error {
		l, err := e.list(d)
		out = l
		return err
	})
	return out, err
}

// Get returns a single prepared record.
func (r *Registry) Get(ctx context.Context, entity string, req Request) (any, error) {
	var out any
	err := r.run(ctx, entity, OpGet, req, func(e entry, d *Descriptor) error {
		v, err := e.get(d)
		out = v
		return err
	})
	return out, err
}

// Create inserts a record built from the request properties and returns it.
func (r *Registry) Create(ctx context.Context, entity string, req Request) (any, error) {
	var out any
	err := r.run(ctx, entity, OpCreate, req, func(e entry, d *Descriptor) error {
		v, err := e.save(d)
		out = v
		return err
	})
	return out, err
}

// Update applies the request properties to an existing record and returns it.
func (r *Registry) Update(ctx context.Context, entity string, req Request) (any, error) {
	var out any
	err := r.run(ctx, entity, OpUpdate, req, func(e entry, d *Descriptor) error {
		v, err := e.save(d)
		out = v
		return err
	})
	return out, err
}

// Delete removes a record.
func (r *Registry) Delete(ctx context.Context, entity string, req Request) error {
	return r.run(ctx, entity, OpDelete, req, func(e entry, d *Descriptor) error {
		return e.remove(d)
	})
}

func (r *Registry) run(ctx context.Context, entity string, op Op, req Request, fn func(entry, *Descriptor) error) error {
	e, ok := r.entries[entity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	props := req.Properties
	if props == nil {
		props = Properties{}
	}
	d := &Descriptor{
		Entity:     entity,
		Op:         op,
		Properties: props,
		Viewer:     req.Viewer,
		Now:        r.cfg.Clock().UTC().Truncate(time.Second),
		ID:         req.ID,
		ctx:        ctx,
		db:         r.db.WithContext(ctx),
	}
	d.Page, d.Limit = r.window(props)

	var err error
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		err = d.db.Transaction(func(tx *gorm.DB) error {
			d.db = tx
			return fn(e, d)
		})
	default:
		err = fn(e, d)
	}

	r.cfg.Metrics.Operation(entity, string(op), result(err))
	if err != nil {
		if _, rejected := IsValidation(err); rejected {
			zerolog.Ctx(ctx).Debug().Err(err).Str("entity", entity).Str("op", string(op)).Msg("operation rejected")
		}
	}
	return err
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	if _, ok := IsValidation(err); ok {
		return "rejected"
	}
	return "error"
}

func (r *Registry) window(props Properties) (page, limit int) {
	page, ok := props.Int("page")
	if !ok {
		// Numbers too large for int still address a page past the end.
		if f, err := strconv.ParseFloat(props.String("page"), 64); err == nil && f >= math.MaxInt {
			page, ok = math.MaxInt, true
		}
	}
	if !ok || page < 1 {
		page = 1
	}
	limit, ok = props.Int("limit")
	if !ok || limit < 1 {
		limit = r.cfg.DefaultLimit
	}
	if limit > r.cfg.MaxLimit {
		limit = r.cfg.MaxLimit
	}
	// Keeps (page-1)*limit representable; such a page is empty anyway.
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	return page, limit
}

type entry interface {
	requiredScope() string
	list(d *Descriptor) (*List, error)
	get(d *Descriptor) (any, error)
	save(d *Descriptor) (any, error)
	remove(d *Descriptor) error
}

type typed[T any] struct {
	h     Handler[T]
	scope string
}

func (t *typed[T]) requiredScope() string { return t.scope }

func (t *typed[T]) filtered(d *Descriptor) (*gorm.DB, error) {
	b := t.h.BeforeCount(d, d.db.Model(new(T)))
	if b.Error != nil {
		return nil, b.Error
	}
	if d.kept == nil {
		d.Keep(b)
	}
	return b, nil
}

func (t *typed[T]) list(d *Descriptor) (*List, error) {
	b, err := t.filtered(d)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := snapshot(b).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", d.Entity, err)
	}

	b, err = applySort[T](d, b)
	if err != nil {
		return nil, err
	}
	b = t.h.AfterCount(d, b)
	if b.Error != nil {
		return nil, b.Error
	}
	if _, ordered := b.Statement.Clauses["ORDER BY"]; !ordered {
		b = b.Order(clause.OrderByColumn{Column: clause.PrimaryColumn})
	}

	var rows []T
	if err := snapshot(b).
		Offset((d.Page - 1) * d.Limit).
		Limit(d.Limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Entity, err)
	}

	out := &List{Items: make([]any, 0, len(rows)), Total: total}
	for i := range rows {
		item, err := t.h.PrepareRow(d, &rows[i])
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	if err := t.h.PrepareList(d, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *typed[T]) get(d *Descriptor) (any, error) {
	b, err := t.filtered(d)
	if err != nil {
		return nil, err
	}
	b = t.h.AfterCount(d, b)
	if b.Error != nil {
		return nil, b.Error
	}

	var rec T
	err = snapshot(b).Where(clause.Eq{Column: clause.PrimaryColumn, Value: d.ID}).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", d.Entity, d.ID, err)
	}
	return t.h.PrepareRow(d, &rec)
}

func (t *typed[T]) load(d *Descriptor) (*T, error) {
	var rec T
	err := d.db.Take(&rec, d.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", d.Entity, d.ID, err)
	}
	return &rec, nil
}

func (t *typed[T]) save(d *Descriptor) (any, error) {
	rec := new(T)
	if d.Op == OpUpdate {
		loaded, err := t.load(d)
		if err != nil {
			return nil, err
		}
		rec = loaded
	}

	if err := fill(d.ctx, d.db, rec, d.Properties, t.h.Fillable()); err != nil {
		return nil, err
	}
	if err := t.h.BeforeSave(d, rec); err != nil {
		return nil, err
	}

	q := d.db.Omit(clause.Associations)
	if d.Op == OpCreate {
		if err := q.Create(rec).Error; err != nil {
			return nil, fmt.Errorf("create %s: %w", d.Entity, err)
		}
	} else if err := q.Save(rec).Error; err != nil {
		return nil, fmt.Errorf("update %s %d: %w", d.Entity, d.ID, err)
	}
	return rec, nil
}

func (t *typed[T]) remove(d *Descriptor) error {
	rec, err := t.load(d)
	if err != nil {
		return err
	}
	if err := t.h.BeforeDelete(d, rec); err != nil {
		return err
	}
	if err := d.db.Delete(rec).Error; err != nil {
		return fmt.Errorf("delete %s %d: %w", d.Entity, d.ID, err)
	}
	return nil
}
