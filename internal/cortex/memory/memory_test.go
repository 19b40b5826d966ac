package memory

import (
	"context"
	"testing"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

func TestAddRowsThenGetRowsByID(t *testing.T) {
	c := New()
	ctx := context.Background()

	id := idgen.Guid()
	row := types.NewRow(id, "foo:bar", int64(10), idgen.Now())

	if err := c.AddRows(ctx, []types.Row{row}, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	got, err := c.GetRowsByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRowsByID: %v", err)
	}
	if len(got) != 1 || got[0] != row {
		t.Fatalf("got %v, want [%v]", got, row)
	}
}

func TestGetRowsByPropFiltersValueAndTime(t *testing.T) {
	c := New()
	ctx := context.Background()

	id1, id2 := idgen.Guid(), idgen.Guid()
	rows := []types.Row{
		types.NewRow(id1, "foo:bar", int64(10), 100),
		types.NewRow(id2, "foo:bar", int64(20), 200),
	}
	if err := c.AddRows(ctx, rows, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	got, err := c.GetRowsByProp(ctx, "foo:bar", cortex.PropQuery{Valu: int64(10)})
	if err != nil {
		t.Fatalf("GetRowsByProp: %v", err)
	}
	if len(got) != 1 || got[0].ID != id1 {
		t.Fatalf("value filter: got %v", got)
	}

	mint := int64(150)
	got, err = c.GetRowsByProp(ctx, "foo:bar", cortex.PropQuery{MinTime: &mint})
	if err != nil {
		t.Fatalf("GetRowsByProp: %v", err)
	}
	if len(got) != 1 || got[0].ID != id2 {
		t.Fatalf("time filter: got %v", got)
	}
}

func TestGetRowsByRangeStrategy(t *testing.T) {
	c := New()
	ctx := context.Background()

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = idgen.Guid()
		row := types.NewRow(ids[i], "foo:num", int64(i), idgen.Now())
		if err := c.AddRows(ctx, []types.Row{row}, false); err != nil {
			t.Fatalf("AddRows: %v", err)
		}
	}

	got, err := c.GetRowsBy(ctx, cortex.ByQuery{By: cortex.ByRange, Prop: "foo:num", Valu: []any{int64(1), int64(4)}})
	if err != nil {
		t.Fatalf("GetRowsBy: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("range [1,4): got %d rows, want 3", len(got))
	}
}

func TestGetJoinByPropExpandsFullTufo(t *testing.T) {
	c := New()
	ctx := context.Background()

	id := idgen.Guid()
	rows := []types.Row{
		types.NewRow(id, "tufo:form", "widget", 1),
		types.NewRow(id, "widget:name", "gizmo", 1),
		types.NewRow(id, "widget:count", int64(3), 1),
	}
	if err := c.AddRows(ctx, rows, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	got, err := c.GetJoinByProp(ctx, "widget:name", cortex.PropQuery{Valu: "gizmo"})
	if err != nil {
		t.Fatalf("GetJoinByProp: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (full join)", len(got))
	}
}

func TestFormTufoByFrobGetOrCreate(t *testing.T) {
	c := New()
	ctx := context.Background()

	id := idgen.Guid()
	t1, err := cortex.FormTufoByFrob(ctx, c, "widget", id, map[string]any{"widget:name": "gizmo"})
	if err != nil {
		t.Fatalf("FormTufoByFrob (create): %v", err)
	}
	if t1.Form() != "widget" {
		t.Fatalf("got form=%q", t1.Form())
	}

	t2, err := cortex.FormTufoByFrob(ctx, c, "widget", id, map[string]any{"widget:name": "ignored"})
	if err != nil {
		t.Fatalf("FormTufoByFrob (get): %v", err)
	}
	if name, _ := t2.Get("widget:name"); name != "gizmo" {
		t.Fatalf("get-or-create should not overwrite: got name=%v", name)
	}
}

func TestSetTufoPropRatchet(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.AddType("foo:min", "", types.Flags{IsMin: true})
	c.AddType("foo:max", "", types.Flags{IsMax: true})
	c.AddTufoProp("earliest", "foo:min")
	c.AddTufoProp("latest", "foo:max")

	id := idgen.Guid()
	tufo, err := cortex.FormTufoByFrob(ctx, c, "span", id, map[string]any{
		"earliest": int64(10),
		"latest":   int64(10),
	})
	if err != nil {
		t.Fatalf("FormTufoByFrob: %v", err)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "earliest", int64(100)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("earliest"); v != int64(10) {
		t.Fatalf("earliest ratchet should reject larger value, got %v", v)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "earliest", int64(1)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("earliest"); v != int64(1) {
		t.Fatalf("earliest ratchet should accept smaller value, got %v", v)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "latest", int64(100)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("latest"); v != int64(100) {
		t.Fatalf("latest ratchet should accept larger value, got %v", v)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "latest", int64(1)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("latest"); v != int64(100) {
		t.Fatalf("latest ratchet should reject smaller value, got %v", v)
	}
}

func TestAsyncApiSurface(t *testing.T) {
	c := New()
	ctx := context.Background()

	id := idgen.Guid()
	row := types.NewRow(id, "foo:bar", int64(10), idgen.Now())
	if err := c.AddRows(ctx, []types.Row{row}, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	jobID, err := c.CallAsyncApi(ctx, cortex.APIGetRowsByID, id)
	if err != nil {
		t.Fatalf("CallAsyncApi: %v", err)
	}
	res, err := c.GetAsyncReturn(ctx, jobID)
	if err != nil {
		t.Fatalf("GetAsyncReturn: %v", err)
	}
	rows, ok := res.([]types.Row)
	if !ok || len(rows) != 1 {
		t.Fatalf("got %v", res)
	}
}

func TestGetCoreXactNestedReentrant(t *testing.T) {
	c := New()
	ctx := context.Background()

	outerCtx, outer := c.GetCoreXact(ctx)
	defer outer.Release()

	// Nested acquisition on the same (carried-forward) context must not
	// deadlock: it re-enters rather than re-locking.
	done := make(chan struct{})
	go func() {
		_, inner := c.GetCoreXact(outerCtx)
		inner.Release()
		close(done)
	}()
	<-done
}
