package meta

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/query"
	"github.com/cortexfed/cortex/internal/types"
)

// queryKind selects which of the three result shapes (rows/join/size) a
// fanned-out query produces, and therefore which async API name and
// event topic to use (spec.md §4.3).
type queryKind int

const (
	kindRows queryKind = iota
	kindJoin
	kindSize
)

func (k queryKind) event() string {
	switch k {
	case kindJoin:
		return "meta:query:join"
	case kindSize:
		return "meta:query:size"
	default:
		return "meta:query:rows"
	}
}

func (k queryKind) apiByID() string {
	switch k {
	case kindJoin:
		return cortex.APIGetJoinByID
	case kindSize:
		return cortex.APIGetSizeByID
	default:
		return cortex.APIGetRowsByID
	}
}

func (k queryKind) apiByProp() string {
	switch k {
	case kindJoin:
		return cortex.APIGetJoinByProp
	case kindSize:
		return cortex.APIGetSizeByProp
	default:
		return cortex.APIGetRowsByProp
	}
}

func (k queryKind) apiBy() string {
	switch k {
	case kindJoin:
		return cortex.APIGetJoinBy
	case kindSize:
		return cortex.APIGetSizeBy
	default:
		return cortex.APIGetRowsBy
	}
}

// GetRowsByQuery parses raw and fans it out across every cortex
// reachable by its tag, returning the dispatch-ordered concatenation of
// each cortex's matching rows (spec.md §4.3, §4.5).
func (m *MetaCortex) GetRowsByQuery(ctx context.Context, raw string) ([]types.Row, error) {
	res, err := m.dispatch(ctx, raw, kindRows)
	if err != nil {
		return nil, err
	}
	out := make([]types.Row, 0, len(res))
	for _, r := range res {
		if r == nil {
			continue
		}
		rows, ok := r.([]types.Row)
		if !ok {
			continue
		}
		out = append(out, rows...)
	}
	return out, nil
}

// GetJoinByQuery is GetRowsByQuery's full-tufo variant: every matched row
// plus every sibling row sharing its id.
func (m *MetaCortex) GetJoinByQuery(ctx context.Context, raw string) ([]types.Row, error) {
	res, err := m.dispatch(ctx, raw, kindJoin)
	if err != nil {
		return nil, err
	}
	out := make([]types.Row, 0, len(res))
	for _, r := range res {
		if r == nil {
			continue
		}
		rows, ok := r.([]types.Row)
		if !ok {
			continue
		}
		out = append(out, rows...)
	}
	return out, nil
}

// GetSizeByQuery sums the per-cortex match counts without materializing
// rows (spec.md §4.1's size queries ignore limit).
func (m *MetaCortex) GetSizeByQuery(ctx context.Context, raw string) (int, error) {
	res, err := m.dispatch(ctx, raw, kindSize)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range res {
		if r == nil {
			continue
		}
		n, ok := r.(int)
		if !ok {
			continue
		}
		total += n
	}
	return total, nil
}

// GetTufosByQuery folds GetJoinByQuery's rows into tufos.
func (m *MetaCortex) GetTufosByQuery(ctx context.Context, raw string) ([]types.Tufo, error) {
	rows, err := m.GetJoinByQuery(ctx, raw)
	if err != nil {
		return nil, err
	}
	return types.FoldRows(rows), nil
}

// dispatch parses raw, fires the kind's observability event (honoring an
// allow=false veto), resolves the query's tag to its reachable cortexes,
// and fans the selected async API out across all of them: every
// CallAsyncApi is submitted before any GetAsyncReturn is awaited, so a
// slow cortex never delays another's submission (spec.md §4.5). A
// per-cortex failure — at submission or at collection — is logged and
// treated as an empty contribution rather than failing the whole query
// (spec.md §7).
func (m *MetaCortex) dispatch(ctx context.Context, raw string, kind queryKind) ([]any, error) {
	q, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}

	info := map[string]any{
		"query": map[string]any{
			"tag":     q.Tag,
			"prop":    q.Prop,
			"valu":    q.Valu,
			"limit":   q.Limit,
			"mintime": q.MinTime,
			"maxtime": q.MaxTime,
			"by":      q.By,
		},
		"allow": true,
	}
	m.bus.Fire(kind.event(), info)
	if allow, ok := info["allow"].(bool); ok && !allow {
		return nil, nil
	}

	cortexes := m.GetCortexes(q.Tag)
	if len(cortexes) == 0 {
		return nil, nil
	}

	api, args := selectAPI(q, kind)

	type job struct {
		idx int
		id  cortex.JobID
		c   cortex.Cortex
	}
	jobs := make([]job, 0, len(cortexes))
	for i, c := range cortexes {
		id, err := c.CallAsyncApi(ctx, api, args...)
		if err != nil {
			log.Printf("meta: submitting %s to cortex %d failed: %v", api, i, err)
			continue
		}
		jobs = append(jobs, job{idx: i, id: id, c: c})
	}

	out := make([]any, len(cortexes))
	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			res, err := j.c.GetAsyncReturn(ctx, j.id)
			if err != nil {
				log.Printf("meta: collecting %s from cortex %d failed: %v", api, j.idx, err)
				return nil
			}
			out[j.idx] = res
			return nil
		})
	}
	_ = g.Wait() // per-job errors are already logged and swallowed above

	return out, nil
}

// selectAPI applies spec.md §4.3's dispatch rule: an explicit by wins
// over everything else; failing that, prop=="id" selects the id-keyed
// variant; otherwise the query falls back to the prop-keyed variant.
func selectAPI(q *query.Query, kind queryKind) (string, []any) {
	if q.By != "" {
		return kind.apiBy(), []any{cortex.ByQuery{
			By:    cortex.By(q.By),
			Prop:  q.Prop,
			Valu:  q.Valu,
			Limit: q.Limit,
		}}
	}
	if q.Prop == "id" {
		id, _ := q.Valu.(string)
		return kind.apiByID(), []any{id}
	}
	return kind.apiByProp(), []any{q.Prop, cortex.PropQuery{
		Valu:    q.Valu,
		MinTime: q.MinTime,
		MaxTime: q.MaxTime,
		Limit:   q.Limit,
	}}
}
