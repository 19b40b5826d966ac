package memory

import (
	"context"
	"reflect"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/types"
)

// AddRows appends rows atomically. async is accepted for interface
// parity with persisted backends, where it controls whether the call
// waits on disk I/O; an in-memory store has nothing to wait on so it is
// always synchronous here.
func (c *Cortex) AddRows(ctx context.Context, rows []types.Row, async bool) error {
	for _, r := range rows {
		if !types.CanStor(r.Valu) {
			return &errs.BadStorValu{Prop: r.Prop, Value: r.Valu}
		}
	}

	rctx, xact := c.xact.Acquire(ctx)
	defer xact.Release()
	_ = rctx

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rows {
		if _, ok := c.byID[r.ID]; !ok {
			c.order = append(c.order, r.ID)
		}
		c.byID[r.ID] = append(c.byID[r.ID], r)
	}
	return nil
}

// GetRowsByID returns every row sharing id, in insertion order.
func (c *Cortex) GetRowsByID(ctx context.Context, id string) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.byID[id]
	out := make([]types.Row, len(rows))
	copy(out, rows)
	return out, nil
}

// GetRowsByProp returns rows matching prop, optionally filtered by value
// and a [mintime, maxtime) window, bounded by limit.
func (c *Cortex) GetRowsByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.Row
	for _, id := range c.order {
		for _, r := range c.byID[id] {
			if !matchProp(r, prop, q) {
				continue
			}
			out = append(out, r)
			if q.Limit != nil && int64(len(out)) >= *q.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// GetRowsBy performs a secondary-index lookup under strategy q.By.
func (c *Cortex) GetRowsBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.Row
	for _, id := range c.order {
		for _, r := range c.byID[id] {
			ok, err := matchBy(r, q)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, r)
			if q.Limit != nil && int64(len(out)) >= *q.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// GetJoinByID expands every matched row (all rows for id, trivially) to
// all rows sharing its id — a no-op join since the selector is already
// by id.
func (c *Cortex) GetJoinByID(ctx context.Context, id string) ([]types.Row, error) {
	return c.GetRowsByID(ctx, id)
}

// GetJoinByProp expands each matched row to all rows sharing its id.
func (c *Cortex) GetJoinByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	matched, err := c.GetRowsByProp(ctx, prop, q)
	if err != nil {
		return nil, err
	}
	return c.joinRows(matched), nil
}

// GetJoinBy expands each matched row to all rows sharing its id.
func (c *Cortex) GetJoinBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	matched, err := c.GetRowsBy(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.joinRows(matched), nil
}

// joinRows expands matched rows to every row sharing each matched row's
// id, preserving dispatch order and without duplicating an id already expanded.
func (c *Cortex) joinRows(matched []types.Row) []types.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, len(matched))
	var out []types.Row
	for _, r := range matched {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, c.byID[r.ID]...)
	}
	return out
}

// GetSizeByID returns the row count for id without materializing them.
func (c *Cortex) GetSizeByID(ctx context.Context, id string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID[id]), nil
}

// GetSizeByProp returns the row count matching prop/value/time window.
// limit is ignored for size queries (spec.md §4.1).
func (c *Cortex) GetSizeByProp(ctx context.Context, prop string, q cortex.PropQuery) (int, error) {
	q.Limit = nil
	rows, err := c.GetRowsByProp(ctx, prop, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// GetSizeBy returns the row count matching a secondary-index lookup.
func (c *Cortex) GetSizeBy(ctx context.Context, q cortex.ByQuery) (int, error) {
	q.Limit = nil
	rows, err := c.GetRowsBy(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func matchProp(r types.Row, prop string, q cortex.PropQuery) bool {
	if r.Prop != prop {
		return false
	}
	if q.Valu != nil {
		if cmp, err := cortex.CompareValues(r.Valu, q.Valu); err == nil {
			if cmp != 0 {
				return false
			}
		} else if !reflect.DeepEqual(r.Valu, q.Valu) {
			return false
		}
	}
	if q.MinTime != nil && r.Time < *q.MinTime {
		return false
	}
	if q.MaxTime != nil && r.Time >= *q.MaxTime {
		return false
	}
	return true
}

func matchBy(r types.Row, q cortex.ByQuery) (bool, error) {
	if r.Prop != q.Prop {
		return false, nil
	}
	switch q.By {
	case cortex.ByHas:
		return true, nil
	case cortex.ByGe:
		cmp, err := cortex.CompareValues(r.Valu, q.Valu)
		if err != nil {
			return false, err
		}
		return cmp >= 0, nil
	case cortex.ByLe:
		cmp, err := cortex.CompareValues(r.Valu, q.Valu)
		if err != nil {
			return false, err
		}
		return cmp <= 0, nil
	case cortex.ByRange:
		bounds, ok := q.Valu.([]any)
		if !ok || len(bounds) != 2 {
			return false, &errs.InvalidParam{Name: "valu", Msg: "range expects a 2-tuple (lo, hi)"}
		}
		lo, err := cortex.CompareValues(r.Valu, bounds[0])
		if err != nil {
			return false, err
		}
		hi, err := cortex.CompareValues(r.Valu, bounds[1])
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi < 0, nil
	default:
		return false, &errs.InvalidParam{Name: "by", Msg: "unknown by-strategy: " + string(q.By)}
	}
}
