// Package telepath implements the tcp:// cortex backend: a thin
// remote-proxy client plus the server that answers it, grounded on
// the teacher's internal/rpc newline-delimited JSON request/response
// shape (Request/Response structs, bufio.Writer+Reader framing).
//
// GetCoreXact on a telepath cortex only serializes the calling
// process's own concurrent callers against each other; it cannot
// offer cross-process atomicity, since the wire protocol has no
// notion of a held server-side transaction. Callers needing true
// cross-process serialization should connect a single writer.
package telepath

import (
	"fmt"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// Op names the requested operation (spec.md §4.1's Cortex contract).
type Op string

const (
	OpAddRows      Op = "addRows"
	OpGetRowsByID  Op = "getRowsById"
	OpGetRowsByProp Op = "getRowsByProp"
	OpGetRowsBy    Op = "getRowsBy"
	OpGetJoinByID  Op = "getJoinById"
	OpGetJoinByProp Op = "getJoinByProp"
	OpGetJoinBy    Op = "getJoinBy"
	OpGetSizeByID  Op = "getSizeById"
	OpGetSizeByProp Op = "getSizeByProp"
	OpGetSizeBy    Op = "getSizeBy"
	OpAddType      Op = "addType"
	OpAddTufoForm  Op = "addTufoForm"
	OpAddTufoProp  Op = "addTufoProp"
	OpPing         Op = "ping"
)

// wireValue carries a storable scalar (spec.md §3's canstor universe)
// across the wire tagged with its kind, since encoding/json alone
// cannot round-trip an `any` without losing int64 precision or
// conflating int/float/bool.
type wireValue struct {
	Kind  string `json:"kind"`
	Str   string `json:"str,omitempty"`
	Int   int64  `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Bool  bool   `json:"bool,omitempty"`
	Blob  []byte `json:"blob,omitempty"`
}

func encodeWireValue(v any) (wireValue, error) {
	switch x := v.(type) {
	case bool:
		return wireValue{Kind: "bool", Bool: x}, nil
	case int:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case int8:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case int16:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case int32:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case int64:
		return wireValue{Kind: "int", Int: x}, nil
	case uint:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case uint8:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case uint16:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case uint32:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case uint64:
		return wireValue{Kind: "int", Int: int64(x)}, nil
	case float32:
		return wireValue{Kind: "float", Float: float64(x)}, nil
	case float64:
		return wireValue{Kind: "float", Float: x}, nil
	case string:
		return wireValue{Kind: "str", Str: x}, nil
	case []byte:
		return wireValue{Kind: "blob", Blob: x}, nil
	default:
		return wireValue{}, fmt.Errorf("telepath: value %v (%T) is not storable", v, v)
	}
}

func (w wireValue) decode() (any, error) {
	switch w.Kind {
	case "bool":
		return w.Bool, nil
	case "int":
		return w.Int, nil
	case "float":
		return w.Float, nil
	case "str":
		return w.Str, nil
	case "blob":
		return w.Blob, nil
	default:
		return nil, fmt.Errorf("telepath: unknown wire value kind %q", w.Kind)
	}
}

type wireRow struct {
	ID   string    `json:"id"`
	Prop string    `json:"prop"`
	Valu wireValue `json:"valu"`
	Time int64     `json:"time"`
}

func encodeRow(r types.Row) (wireRow, error) {
	v, err := encodeWireValue(r.Valu)
	if err != nil {
		return wireRow{}, err
	}
	return wireRow{ID: r.ID, Prop: r.Prop, Valu: v, Time: r.Time}, nil
}

func (w wireRow) decode() (types.Row, error) {
	v, err := w.Valu.decode()
	if err != nil {
		return types.Row{}, err
	}
	return types.Row{ID: w.ID, Prop: w.Prop, Valu: v, Time: w.Time}, nil
}

func encodeRows(rows []types.Row) ([]wireRow, error) {
	out := make([]wireRow, len(rows))
	for i, r := range rows {
		wr, err := encodeRow(r)
		if err != nil {
			return nil, err
		}
		out[i] = wr
	}
	return out, nil
}

func decodeRows(rows []wireRow) ([]types.Row, error) {
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		dr, err := r.decode()
		if err != nil {
			return nil, err
		}
		out[i] = dr
	}
	return out, nil
}

type wirePropQuery struct {
	Valu    *wireValue `json:"valu,omitempty"`
	MinTime *int64     `json:"minTime,omitempty"`
	MaxTime *int64     `json:"maxTime,omitempty"`
	Limit   *int64     `json:"limit,omitempty"`
}

func encodePropQuery(q cortex.PropQuery) (wirePropQuery, error) {
	out := wirePropQuery{MinTime: q.MinTime, MaxTime: q.MaxTime, Limit: q.Limit}
	if q.Valu != nil {
		wv, err := encodeWireValue(q.Valu)
		if err != nil {
			return wirePropQuery{}, err
		}
		out.Valu = &wv
	}
	return out, nil
}

func (q wirePropQuery) decode() (cortex.PropQuery, error) {
	out := cortex.PropQuery{MinTime: q.MinTime, MaxTime: q.MaxTime, Limit: q.Limit}
	if q.Valu != nil {
		v, err := q.Valu.decode()
		if err != nil {
			return cortex.PropQuery{}, err
		}
		out.Valu = v
	}
	return out, nil
}

type wireByQuery struct {
	By     string       `json:"by"`
	Prop   string       `json:"prop"`
	Scalar *wireValue   `json:"scalar,omitempty"`
	Range  []wireValue  `json:"range,omitempty"`
	Limit  *int64       `json:"limit,omitempty"`
}

func encodeByQuery(q cortex.ByQuery) (wireByQuery, error) {
	out := wireByQuery{By: string(q.By), Prop: q.Prop, Limit: q.Limit}
	switch q.By {
	case cortex.ByRange:
		bounds, ok := q.Valu.([]any)
		if !ok || len(bounds) != 2 {
			return wireByQuery{}, fmt.Errorf("telepath: range query needs a 2-tuple")
		}
		lo, err := encodeWireValue(bounds[0])
		if err != nil {
			return wireByQuery{}, err
		}
		hi, err := encodeWireValue(bounds[1])
		if err != nil {
			return wireByQuery{}, err
		}
		out.Range = []wireValue{lo, hi}
	case cortex.ByGe, cortex.ByLe:
		v, err := encodeWireValue(q.Valu)
		if err != nil {
			return wireByQuery{}, err
		}
		out.Scalar = &v
	}
	return out, nil
}

func (q wireByQuery) decode() (cortex.ByQuery, error) {
	out := cortex.ByQuery{By: cortex.By(q.By), Prop: q.Prop, Limit: q.Limit}
	switch out.By {
	case cortex.ByRange:
		if len(q.Range) != 2 {
			return cortex.ByQuery{}, fmt.Errorf("telepath: range query needs a 2-tuple")
		}
		lo, err := q.Range[0].decode()
		if err != nil {
			return cortex.ByQuery{}, err
		}
		hi, err := q.Range[1].decode()
		if err != nil {
			return cortex.ByQuery{}, err
		}
		out.Valu = []any{lo, hi}
	case cortex.ByGe, cortex.ByLe:
		if q.Scalar == nil {
			return cortex.ByQuery{}, fmt.Errorf("telepath: %s query needs a scalar value", q.By)
		}
		v, err := q.Scalar.decode()
		if err != nil {
			return cortex.ByQuery{}, err
		}
		out.Valu = v
	}
	return out, nil
}

type wireTypeFlags struct {
	IsMin bool `json:"isMin,omitempty"`
	IsMax bool `json:"isMax,omitempty"`
}

// Request is a single telepath call, newline-terminated JSON on the wire.
type Request struct {
	Op        Op             `json:"op"`
	ID        string         `json:"id,omitempty"`
	Prop      string         `json:"prop,omitempty"`
	Rows      []wireRow      `json:"rows,omitempty"`
	Async     bool           `json:"async,omitempty"`
	PropQuery *wirePropQuery `json:"propQuery,omitempty"`
	ByQuery   *wireByQuery   `json:"byQuery,omitempty"`

	TypeName  string        `json:"typeName,omitempty"`
	TypeBase  string        `json:"typeBase,omitempty"`
	TypeFlags wireTypeFlags `json:"typeFlags,omitempty"`
	Form      string        `json:"form,omitempty"`
}

// Response answers a Request on the same connection, one JSON object
// per line in request order (spec.md has no pipelining requirement).
type Response struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	Rows  []wireRow `json:"rows,omitempty"`
	Size  int       `json:"size,omitempty"`
}
