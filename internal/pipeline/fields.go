package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

var schemas sync.Map

func parseSchema(db *gorm.DB, model any) (*schema.Schema, error) {
	s, err := schema.Parse(model, &schemas, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("parse schema of %T: %w", model, err)
	}
	return s, nil
}

// fill copies the allow-listed properties onto rec, converting each value to
// the column type. Properties outside the allow-list are ignored.
func fill[T any](ctx context.Context, db *gorm.DB, rec *T, props Properties, fillable []string) error {
	if len(fillable) == 0 || len(props) == 0 {
		return nil
	}
	s, err := parseSchema(db, rec)
	if err != nil {
		return err
	}

	target := reflect.ValueOf(rec).Elem()
	for _, name := range fillable {
		value, ok := props[name]
		if !ok {
			continue
		}
		field := s.LookUpField(name)
		if field == nil || field.DBName == "" {
			return fmt.Errorf("fillable property %q is not a column of %s", name, s.Name)
		}
		if err := field.Set(ctx, target, columnValue(field, value)); err != nil {
			return Reject("Invalid value for %s", name)
		}
	}
	return nil
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// columnValue adapts a request value to what field.Set understands. JSON
// objects and arrays are re-encoded for columns that scan JSON, and a
// single-element query list collapses to its element.
func columnValue(field *schema.Field, value any) any {
	scans := reflect.PointerTo(field.FieldType).Implements(scannerType)
	switch v := value.(type) {
	case []string:
		if !scans && len(v) == 1 {
			return v[0]
		}
	case map[string]any, []any:
	default:
		return value
	}
	if scans {
		if raw, err := json.Marshal(value); err == nil {
			return raw
		}
	}
	return value
}

// applySort orders b by the sort and dir properties. The sort field must be a
// column of T.
func applySort[T any](d *Descriptor, b *gorm.DB) (*gorm.DB, error) {
	name := strings.TrimSpace(d.Properties.String("sort"))
	if name == "" {
		return b, nil
	}
	s, err := parseSchema(d.db, new(T))
	if err != nil {
		return nil, err
	}
	field := s.LookUpField(name)
	if field == nil || field.DBName == "" || !field.Readable || hidden(field) {
		return nil, Reject("Unknown sort field %s", name)
	}

	var desc bool
	switch strings.ToLower(strings.TrimSpace(d.Properties.String("dir"))) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return nil, Reject("Sort direction must be asc or desc")
	}

	return b.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: field.DBName},
		Desc:   desc,
	}), nil
}

// hidden reports whether field is kept out of JSON output, like password
// hashes. Such columns cannot be sorted on.
func hidden(field *schema.Field) bool {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	return name == "-"
}
