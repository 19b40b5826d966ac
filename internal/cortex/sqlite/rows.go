package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/types"
)

const rowColumns = "id, prop, kind, intval, strval, realval, blobval, tstamp"

// AddRows inserts rows inside a single transaction. async is accepted
// for interface parity with backends where it controls whether the
// call waits on the write landing on disk; this backend always
// commits synchronously.
func (c *Cortex) AddRows(ctx context.Context, rows []types.Row, async bool) error {
	for _, r := range rows {
		if !types.CanStor(r.Valu) {
			return &errs.BadStorValu{Prop: r.Prop, Value: r.Valu}
		}
	}

	_, xact := c.xact.Acquire(ctx)
	defer xact.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite cortex: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO rows (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", rowColumns))
	if err != nil {
		return fmt.Errorf("sqlite cortex: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		enc, err := encodeValue(r.Prop, r.Valu)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Prop, enc.kind, enc.intval, enc.strval, enc.realval, enc.blobval, r.Time); err != nil {
			return fmt.Errorf("sqlite cortex: insert row: %w", err)
		}
	}

	return tx.Commit()
}

func scanRows(rs *sql.Rows) ([]types.Row, error) {
	defer rs.Close()

	var out []types.Row
	for rs.Next() {
		var (
			id, prop, kind string
			intval         sql.NullInt64
			strval         sql.NullString
			realval        sql.NullFloat64
			blobval        []byte
			tstamp         int64
		)
		if err := rs.Scan(&id, &prop, &kind, &intval, &strval, &realval, &blobval, &tstamp); err != nil {
			return nil, fmt.Errorf("sqlite cortex: scan row: %w", err)
		}
		valu, err := decodeValue(kind, intval, strval, realval, blobval)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Row{ID: id, Prop: prop, Valu: valu, Time: tstamp})
	}
	return out, rs.Err()
}

// GetRowsByID returns every row sharing id, in storage order.
func (c *Cortex) GetRowsByID(ctx context.Context, id string) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rs, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM rows WHERE id = ? ORDER BY rowid", rowColumns), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite cortex: query by id: %w", err)
	}
	return scanRows(rs)
}

// GetRowsByProp returns rows matching prop, optionally filtered by
// value and a [mintime, maxtime) window, bounded by limit.
func (c *Cortex) GetRowsByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM rows WHERE prop = ?", rowColumns)
	args := []any{prop}

	if q.Valu != nil {
		enc, err := encodeValue(prop, q.Valu)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND kind = ? AND intval IS ? AND strval IS ? AND realval IS ? AND blobval IS ?")
		args = append(args, enc.kind, enc.intval, enc.strval, enc.realval, enc.blobval)
	}
	if q.MinTime != nil {
		sb.WriteString(" AND tstamp >= ?")
		args = append(args, *q.MinTime)
	}
	if q.MaxTime != nil {
		sb.WriteString(" AND tstamp < ?")
		args = append(args, *q.MaxTime)
	}
	sb.WriteString(" ORDER BY rowid")
	if q.Limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *q.Limit)
	}

	rs, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite cortex: query by prop: %w", err)
	}
	return scanRows(rs)
}

// GetRowsBy performs a secondary-index lookup under strategy q.By.
func (c *Cortex) GetRowsBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM rows WHERE prop = ?", rowColumns)
	args := []any{q.Prop}

	switch q.By {
	case cortex.ByHas:
		// no additional predicate
	case cortex.ByGe:
		enc, err := encodeValue(q.Prop, q.Valu)
		if err != nil {
			return nil, err
		}
		col, err := orderedColumn(enc.kind)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf(" AND kind = ? AND %s >= ?", col))
		args = append(args, enc.kind, columnValue(enc, col))
	case cortex.ByLe:
		enc, err := encodeValue(q.Prop, q.Valu)
		if err != nil {
			return nil, err
		}
		col, err := orderedColumn(enc.kind)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf(" AND kind = ? AND %s <= ?", col))
		args = append(args, enc.kind, columnValue(enc, col))
	case cortex.ByRange:
		bounds, ok := q.Valu.([]any)
		if !ok || len(bounds) != 2 {
			return nil, &errs.InvalidParam{Name: "valu", Msg: "range expects a 2-tuple (lo, hi)"}
		}
		lo, err := encodeValue(q.Prop, bounds[0])
		if err != nil {
			return nil, err
		}
		hi, err := encodeValue(q.Prop, bounds[1])
		if err != nil {
			return nil, err
		}
		col, err := orderedColumn(lo.kind)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf(" AND kind = ? AND %s >= ? AND %s < ?", col, col))
		args = append(args, lo.kind, columnValue(lo, col), columnValue(hi, col))
	default:
		return nil, &errs.InvalidParam{Name: "by", Msg: "unknown by-strategy: " + string(q.By)}
	}

	sb.WriteString(" ORDER BY rowid")
	if q.Limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *q.Limit)
	}

	rs, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite cortex: query by index: %w", err)
	}
	return scanRows(rs)
}

func orderedColumn(kind string) (string, error) {
	switch kind {
	case "int", "bool":
		return "intval", nil
	case "float":
		return "realval", nil
	case "str":
		return "strval", nil
	default:
		return "", fmt.Errorf("sqlite cortex: kind %q is not orderable", kind)
	}
}

func columnValue(enc encoded, col string) any {
	switch col {
	case "intval":
		return enc.intval
	case "realval":
		return enc.realval
	case "strval":
		return enc.strval
	default:
		return nil
	}
}

// GetJoinByID expands id to all of its own rows — a no-op join.
func (c *Cortex) GetJoinByID(ctx context.Context, id string) ([]types.Row, error) {
	return c.GetRowsByID(ctx, id)
}

// GetJoinByProp expands each matched row to all rows sharing its id.
func (c *Cortex) GetJoinByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	matched, err := c.GetRowsByProp(ctx, prop, q)
	if err != nil {
		return nil, err
	}
	return c.joinRows(ctx, matched)
}

// GetJoinBy expands each matched row to all rows sharing its id.
func (c *Cortex) GetJoinBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	matched, err := c.GetRowsBy(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.joinRows(ctx, matched)
}

func (c *Cortex) joinRows(ctx context.Context, matched []types.Row) ([]types.Row, error) {
	seen := make(map[string]bool, len(matched))
	var out []types.Row
	for _, r := range matched {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		full, err := c.GetRowsByID(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, full...)
	}
	return out, nil
}

// GetSizeByID returns the row count for id without materializing them.
func (c *Cortex) GetSizeByID(ctx context.Context, id string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rows WHERE id = ?", id).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite cortex: count by id: %w", err)
	}
	return n, nil
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
