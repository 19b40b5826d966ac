// Package cortex defines the backend storage/index contract (spec.md
// §4.1): the Cortex interface every concrete backend (ram, sqlite,
// postgres, telepath) implements, plus the backend-agnostic helpers
// (async job table, scoped transactions, type-driven property policy)
// that every implementation shares instead of inheriting from a base
// class.
package cortex

import (
	"context"

	"github.com/cortexfed/cortex/internal/types"
)

// By names a secondary-index lookup strategy (spec.md glossary).
type By string

const (
	ByRange By = "range"
	ByGe    By = "ge"
	ByLe    By = "le"
	ByHas   By = "has"
)

// Async API names, used both as CallAsyncApi's `name` argument and as
// the dispatch keys MetaCortex's query fan-out selects between
// (spec.md §4.3's dispatch rule).
const (
	APIGetRowsByID    = "getRowsById"
	APIGetRowsByProp  = "getRowsByProp"
	APIGetRowsBy      = "getRowsBy"
	APIGetJoinByID    = "getJoinById"
	APIGetJoinByProp  = "getJoinByProp"
	APIGetJoinBy      = "getJoinBy"
	APIGetSizeByID    = "getSizeById"
	APIGetSizeByProp  = "getSizeByProp"
	APIGetSizeBy      = "getSizeBy"
)

// PropQuery bundles the optional selectors accepted by GetRowsByProp,
// GetJoinByProp, and GetSizeByProp.
type PropQuery struct {
	Valu    any   // nil means "match prop regardless of value"
	MinTime *int64
	MaxTime *int64
	Limit   *int64 // ignored by size queries
}

// ByQuery bundles the selector accepted by GetRowsBy, GetJoinBy, and GetSizeBy.
type ByQuery struct {
	By    By
	Prop  string
	Valu  any
	Limit *int64 // ignored by size queries
}

// Cortex is the backend storage/index contract (spec.md §4.1). Every
// operation must be safe under concurrent calls; serializability is
// required only within a single GetCoreXact scope.
type Cortex interface {
	AddRows(ctx context.Context, rows []types.Row, async bool) error

	GetRowsByID(ctx context.Context, id string) ([]types.Row, error)
	GetRowsByProp(ctx context.Context, prop string, q PropQuery) ([]types.Row, error)
	GetRowsBy(ctx context.Context, q ByQuery) ([]types.Row, error)

	GetJoinByID(ctx context.Context, id string) ([]types.Row, error)
	GetJoinByProp(ctx context.Context, prop string, q PropQuery) ([]types.Row, error)
	GetJoinBy(ctx context.Context, q ByQuery) ([]types.Row, error)

	GetSizeByID(ctx context.Context, id string) (int, error)
	GetSizeByProp(ctx context.Context, prop string, q PropQuery) (int, error)
	GetSizeBy(ctx context.Context, q ByQuery) (int, error)

	AddType(name, base string, flags types.Flags)
	AddTufoForm(form string)
	AddTufoProp(prop, typeName string)
	Types() *types.TypeRegistry

	GetCoreXact(ctx context.Context) (context.Context, Xact)

	CallAsyncApi(ctx context.Context, name string, args ...any) (JobID, error)
	GetAsyncReturn(ctx context.Context, id JobID) (any, error)

	Fini()
}
