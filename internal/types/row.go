// Package types defines the row/tufo value-type layer shared by every
// cortex backend and the MetaCortex: the (id, prop, value, time) row,
// its folded tufo view, and the storable-value predicate.
package types

import (
	"fmt"
	"strings"
)

// Row is the atomic unit of storage: (id, prop, value, time).
//
// Id is a 32-char lowercase hex string (see idgen.Guid). Prop is
// lowercased on construction. Time is milliseconds since epoch and is
// never reassigned by the store.
type Row struct {
	ID    string
	Prop  string
	Valu  any
	Time  int64
}

// NewRow builds a row, case-folding Prop the way the cortex contract
// requires on insert.
func NewRow(id, prop string, valu any, tm int64) Row {
	return Row{ID: id, Prop: strings.ToLower(prop), Valu: valu, Time: tm}
}

// FormTufoForm is the reserved attribute every tufo carries naming its kind.
const FormTufoForm = "tufo:form"

// Tufo is the folded view (id, {prop: value, ...}) of every row sharing an id.
type Tufo struct {
	ID    string
	Attrs map[string]any
}

// NewTufo builds a tufo value from a form name and attribute kwargs,
// mirroring the original source's bare `tufo(typ, **kwargs)` constructor.
func NewTufo(form, ident string, attrs map[string]any) Tufo {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out[FormTufoForm] = form
	return Tufo{ID: ident, Attrs: out}
}

// Form returns the tufo's tufo:form attribute, or "" if absent.
func (t Tufo) Form() string {
	if v, ok := t.Attrs[FormTufoForm]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Get returns a tufo attribute and whether it was present.
func (t Tufo) Get(prop string) (any, bool) {
	v, ok := t.Attrs[prop]
	return v, ok
}

// Set mutates the tufo's in-memory attribute view. Callers that need the
// type-policy-aware ratcheting update described in spec.md §4.4 should use
// cortex.SetTufoProp instead of calling this directly.
func (t Tufo) Set(prop string, valu any) {
	t.Attrs[prop] = valu
}

// FoldRows groups rows sharing an id into tufos, in first-seen id order.
// When the same (id, prop) appears in more than one row, the later row in
// the input order wins — the join-collision policy spec.md leaves
// implementation-defined but requires to be stable.
func FoldRows(rows []Row) []Tufo {
	order := make([]string, 0, len(rows))
	byID := make(map[string]map[string]any, len(rows))

	for _, r := range rows {
		attrs, ok := byID[r.ID]
		if !ok {
			attrs = make(map[string]any)
			byID[r.ID] = attrs
			order = append(order, r.ID)
		}
		attrs[r.Prop] = r.Valu
	}

	out := make([]Tufo, 0, len(order))
	for _, id := range order {
		out = append(out, Tufo{ID: id, Attrs: byID[id]})
	}
	return out
}

// UnfoldTufo flattens a tufo back to its constituent rows, using tm for
// every row's timestamp (tufos carry no per-attribute time once folded).
// FoldRows(UnfoldTufo(t, now)) reconstructs an equivalent tufo, which is
// the fold-idempotence property required by spec.md §8.
func UnfoldTufo(t Tufo, tm int64) []Row {
	rows := make([]Row, 0, len(t.Attrs))
	for prop, valu := range t.Attrs {
		rows = append(rows, NewRow(t.ID, prop, valu, tm))
	}
	return rows
}

// CanStor reports whether a value may be stored: integer, bool, float,
// string, or binary ([]byte) scalars only — no nil, functions, channels,
// or other opaque objects (the "canstor" predicate from spec.md §3).
func CanStor(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case bool:
		return true
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32, float64:
		return true
	case string:
		return true
	case []byte:
		return true
	default:
		return false
	}
}

// String renders a row for debugging/logging.
func (r Row) String() string {
	return fmt.Sprintf("(%s, %s, %v, %d)", r.ID, r.Prop, r.Valu, r.Time)
}
