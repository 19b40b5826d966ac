package cortex

import (
	"context"
	"fmt"
	"reflect"

	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

// ApplyRatchet decides whether a property update is accepted under the
// given policy ("plain", "min", "max" — spec.md §4.4's Design Note
// variant-per-flag dispatch). Equal values are always rejected as
// no-ops for ratcheting policies; an absent current value always
// accepts.
func ApplyRatchet(policy string, hasCurrent bool, current, newValu any) (bool, error) {
	if policy == "plain" || !hasCurrent {
		return true, nil
	}
	cmp, err := compareValues(newValu, current)
	if err != nil {
		return false, err
	}
	switch policy {
	case "min":
		return cmp < 0, nil
	case "max":
		return cmp > 0, nil
	default:
		return true, nil
	}
}

// CompareValues orders two storable scalars, returning -1, 0, or 1. It is
// exported for backends implementing the "ge"/"le"/"range" By strategies
// (spec.md §4.1), which need the same ordering SetTufoProp's ratchet uses.
func CompareValues(a, b any) (int, error) {
	return compareValues(a, b)
}

// compareValues orders two storable scalars, returning -1, 0, or 1.
// Only the comparable scalar kinds CanStor accepts are supported.
func compareValues(a, b any) (int, error) {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() != bv.Kind() {
		// allow mixed numeric kinds by promoting both sides to float64
		if isNumericKind(av.Kind()) && isNumericKind(bv.Kind()) {
			af, bf := toFloat64(av), toFloat64(bv)
			return compareFloats(af, bf), nil
		}
		return 0, fmt.Errorf("cortex: cannot compare %T with %T", a, b)
	}

	switch av.Kind() {
	case reflect.String:
		return compareStrings(av.String(), bv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return compareFloats(toFloat64(av), toFloat64(bv)), nil
	default:
		return 0, fmt.Errorf("cortex: type %T is not orderable", a)
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SetTufoProp applies the type-driven property policy (spec.md §4.4) to
// an in-place property update. On a ratchet rejection it returns nil
// without mutating t or the backend — the rejection is silent, not an
// error. On acceptance it persists the new row via c.AddRows and mutates
// t's in-memory attribute view to match.
func SetTufoProp(ctx context.Context, c Cortex, t *types.Tufo, prop string, valu any) error {
	if !types.CanStor(valu) {
		return &errs.BadStorValu{Prop: prop, Value: valu}
	}

	policy := "plain"
	if typ, ok := c.Types().TypeOfProp(prop); ok {
		policy = typ.Policy()
	}

	current, hasCurrent := t.Get(prop)
	accept, err := ApplyRatchet(policy, hasCurrent, current, valu)
	if err != nil {
		return err
	}
	if !accept {
		return nil
	}

	row := types.NewRow(t.ID, prop, valu, idgen.Now())
	if err := c.AddRows(ctx, []types.Row{row}, false); err != nil {
		return err
	}
	t.Set(prop, valu)
	return nil
}

// FormTufoByFrob gets or creates a tufo of the given form keyed by ident.
// On create, props are applied as rows alongside the reserved tufo:form
// attribute (spec.md §4.1).
func FormTufoByFrob(ctx context.Context, c Cortex, form, ident string, props map[string]any) (types.Tufo, error) {
	existing, err := c.GetRowsByID(ctx, ident)
	if err != nil {
		return types.Tufo{}, err
	}
	if len(existing) > 0 {
		tufos := types.FoldRows(existing)
		return tufos[0], nil
	}

	now := idgen.Now()
	rows := make([]types.Row, 0, len(props)+1)
	rows = append(rows, types.NewRow(ident, types.FormTufoForm, form, now))
	for prop, valu := range props {
		if !types.CanStor(valu) {
			return types.Tufo{}, &errs.BadStorValu{Prop: prop, Value: valu}
		}
		rows = append(rows, types.NewRow(ident, prop, valu, now))
	}

	if err := c.AddRows(ctx, rows, false); err != nil {
		return types.Tufo{}, err
	}

	return types.FoldRows(rows)[0], nil
}
