package pipeline

import "encoding/json"

// List is the result of a list operation. Extra values set by PrepareList are
// serialized next to items and total.
type List struct {
	Items []any
	Total int64
	Extra map[string]any
}

// Set adds an extra top-level value to the serialized list.
func (l *List) Set(key string, value any) {
	if l.Extra == nil {
		l.Extra = make(map[string]any)
	}
	l.Extra[key] = value
}

// MarshalJSON renders {"items": [...], "total": n, ...extra}.
func (l List) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Extra)+2)
	for k, v := range l.Extra {
		out[k] = v
	}
	items := l.Items
	if items == nil {
		items = []any{}
	}
	out["items"] = items
	out["total"] = l.Total
	return json.Marshal(out)
}
