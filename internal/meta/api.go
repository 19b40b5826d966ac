package meta

import (
	"context"

	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/types"
)

// AddMetaRows delegates to the named cortex's AddRows (spec.md §4.2).
func (m *MetaCortex) AddMetaRows(ctx context.Context, name string, rows []types.Row, async bool) error {
	c := m.GetCortex(name)
	if c == nil {
		return &errs.NoSuchName{Name: name}
	}
	return c.AddRows(ctx, rows, async)
}

// CallCorApi delegates a named async call to the named cortex,
// blocking for its result. Unknown name fails with NoSuchName;
// otherwise whatever the cortex raises is surfaced directly.
func (m *MetaCortex) CallCorApi(ctx context.Context, name, api string, args ...any) (any, error) {
	c := m.GetCortex(name)
	if c == nil {
		return nil, &errs.NoSuchName{Name: name}
	}
	jobID, err := c.CallAsyncApi(ctx, api, args...)
	if err != nil {
		return nil, err
	}
	return c.GetAsyncReturn(ctx, jobID)
}

// Fini tears the MetaCortex's event bus down, which in turn runs
// onMetaFini (spec.md §4.2's Teardown note).
func (m *MetaCortex) Fini() {
	m.bus.Fini()
}
