package pipeline

import "gorm.io/gorm"

// Handler customizes the pipeline for one record type. Every hook runs
// synchronously inside the operation that invoked it. Embed Defaults to
// implement only the hooks an entity needs.
type Handler[T any] interface {
	// BeforeCount adds filters applied to both the total count and the rows.
	// A rejection is reported with b.AddError.
	BeforeCount(d *Descriptor, b *gorm.DB) *gorm.DB
	// AfterCount adds ordering and preloads that only affect the rows.
	AfterCount(d *Descriptor, b *gorm.DB) *gorm.DB
	// PrepareRow shapes one record for output.
	PrepareRow(d *Descriptor, rec *T) (any, error)
	// PrepareList may add extra top-level values to a list result.
	PrepareList(d *Descriptor, l *List) error
	// BeforeSave validates and completes a record before it is persisted.
	BeforeSave(d *Descriptor, rec *T) error
	// BeforeDelete may refuse a deletion.
	BeforeDelete(d *Descriptor, rec *T) error
	// Fillable lists the properties copied onto records on create and update.
	Fillable() []string
}

// Scoped is implemented by handlers that require an admin scope.
type Scoped interface {
	Scope() string
}

// Defaults implements every Handler hook as a no-op.
type Defaults[T any] struct{}

func (Defaults[T]) BeforeCount(_ *Descriptor, b *gorm.DB) *gorm.DB { return b }
func (Defaults[T]) AfterCount(_ *Descriptor, b *gorm.DB) *gorm.DB { return b }
func (Defaults[T]) PrepareRow(_ *Descriptor, rec *T) (any, error) { return rec, nil }
func (Defaults[T]) PrepareList(*Descriptor, *List) error { return nil }
func (Defaults[T]) BeforeSave(*Descriptor, *T) error { return nil }
func (Defaults[T]) BeforeDelete(*Descriptor, *T) error { return nil }
func (Defaults[T]) Fillable() []string { return nil }
