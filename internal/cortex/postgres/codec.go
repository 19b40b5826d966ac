package postgres

import (
	"database/sql"
	"fmt"

	"github.com/cortexfed/cortex/internal/errs"
)

type encoded struct {
	kind    string
	intval  sql.NullInt64
	strval  sql.NullString
	realval sql.NullFloat64
	blobval []byte
}

func encodeValue(prop string, v any) (encoded, error) {
	switch x := v.(type) {
	case bool:
		iv := int64(0)
		if x {
			iv = 1
		}
		return encoded{kind: "bool", intval: sql.NullInt64{Int64: iv, Valid: true}}, nil
	case int:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case int8:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case int16:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case int32:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case int64:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: x, Valid: true}}, nil
	case uint:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case uint8:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case uint16:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case uint32:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case uint64:
		return encoded{kind: "int", intval: sql.NullInt64{Int64: int64(x), Valid: true}}, nil
	case float32:
		return encoded{kind: "float", realval: sql.NullFloat64{Float64: float64(x), Valid: true}}, nil
	case float64:
		return encoded{kind: "float", realval: sql.NullFloat64{Float64: x, Valid: true}}, nil
	case string:
		return encoded{kind: "str", strval: sql.NullString{String: x, Valid: true}}, nil
	case []byte:
		return encoded{kind: "blob", blobval: x}, nil
	default:
		return encoded{}, &errs.BadStorValu{Prop: prop, Value: v}
	}
}

func decodeValue(kind string, intval sql.NullInt64, strval sql.NullString, realval sql.NullFloat64, blobval []byte) (any, error) {
	switch kind {
	case "bool":
		return intval.Int64 != 0, nil
	case "int":
		return intval.Int64, nil
	case "float":
		return realval.Float64, nil
	case "str":
		return strval.String, nil
	case "blob":
		return blobval, nil
	default:
		return nil, fmt.Errorf("postgres cortex: unknown stored value kind %q", kind)
	}
}
