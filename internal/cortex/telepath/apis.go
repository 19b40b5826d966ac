package telepath

import (
	"context"
	"fmt"

	"github.com/cortexfed/cortex/internal/cortex"
)

// buildAPIs wires this cortex's named async API surface (spec.md §4.3's
// dispatch rule selects between these by name) to the remote calls in
// client.go.
func (c *Cortex) buildAPIs() map[string]cortex.APIFunc {
	return map[string]cortex.APIFunc{
		cortex.APIGetRowsByID: func(ctx context.Context, args []any) (any, error) {
			id, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetRowsByID(ctx, id)
		},
		cortex.APIGetRowsByProp: func(ctx context.Context, args []any) (any, error) {
			prop, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			q, err := argPropQuery(args, 1)
			if err != nil {
				return nil, err
			}
			return c.GetRowsByProp(ctx, prop, q)
		},
		cortex.APIGetRowsBy: func(ctx context.Context, args []any) (any, error) {
			q, err := argByQuery(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetRowsBy(ctx, q)
		},
		cortex.APIGetJoinByID: func(ctx context.Context, args []any) (any, error) {
			id, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetJoinByID(ctx, id)
		},
		cortex.APIGetJoinByProp: func(ctx context.Context, args []any) (any, error) {
			prop, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			q, err := argPropQuery(args, 1)
			if err != nil {
				return nil, err
			}
			return c.GetJoinByProp(ctx, prop, q)
		},
		cortex.APIGetJoinBy: func(ctx context.Context, args []any) (any, error) {
			q, err := argByQuery(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetJoinBy(ctx, q)
		},
		cortex.APIGetSizeByID: func(ctx context.Context, args []any) (any, error) {
			id, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetSizeByID(ctx, id)
		},
		cortex.APIGetSizeByProp: func(ctx context.Context, args []any) (any, error) {
			prop, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			q, err := argPropQuery(args, 1)
			if err != nil {
				return nil, err
			}
			return c.GetSizeByProp(ctx, prop, q)
		},
		cortex.APIGetSizeBy: func(ctx context.Context, args []any) (any, error) {
			q, err := argByQuery(args, 0)
			if err != nil {
				return nil, err
			}
			return c.GetSizeBy(ctx, q)
		},
	}
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: want string, got %T", i, args[i])
	}
	return s, nil
}

func argPropQuery(args []any, i int) (cortex.PropQuery, error) {
	if i >= len(args) {
		return cortex.PropQuery{}, nil
	}
	q, ok := args[i].(cortex.PropQuery)
	if !ok {
		return cortex.PropQuery{}, fmt.Errorf("argument %d: want cortex.PropQuery, got %T", i, args[i])
	}
	return q, nil
}

func argByQuery(args []any, i int) (cortex.ByQuery, error) {
	if i >= len(args) {
		return cortex.ByQuery{}, fmt.Errorf("missing argument %d", i)
	}
	q, ok := args[i].(cortex.ByQuery)
	if !ok {
		return cortex.ByQuery{}, fmt.Errorf("argument %d: want cortex.ByQuery, got %T", i, args[i])
	}
	return q, nil
}
