package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

func openTest(t *testing.T) *Cortex {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortex.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(c.Fini)
	return c
}

func TestAddRowsThenGetRowsByID(t *testing.T) {
	c := openTest(t)
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
	if len(got) != 1 || got[0].Prop != row.Prop || got[0].Valu != row.Valu {
		t.Fatalf("got %v, want [%v]", got, row)
	}
}

func TestAddRowsPreservesValueKinds(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	id := idgen.Guid()
	rows := []types.Row{
		types.NewRow(id, "x:int", int64(-7), 1),
		types.NewRow(id, "x:str", "hello", 1),
		types.NewRow(id, "x:float", 3.5, 1),
		types.NewRow(id, "x:bool", true, 1),
		types.NewRow(id, "x:blob", []byte{1, 2, 3}, 1),
	}
	if err := c.AddRows(ctx, rows, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	got, err := c.GetRowsByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRowsByID: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	byProp := make(map[string]any, len(got))
	for _, r := range got {
		byProp[r.Prop] = r.Valu
	}
	if byProp["x:int"] != int64(-7) {
		t.Fatalf("x:int = %v", byProp["x:int"])
	}
	if byProp["x:str"] != "hello" {
		t.Fatalf("x:str = %v", byProp["x:str"])
	}
	if byProp["x:float"] != 3.5 {
		t.Fatalf("x:float = %v", byProp["x:float"])
	}
	if byProp["x:bool"] != true {
		t.Fatalf("x:bool = %v", byProp["x:bool"])
	}
	blob, ok := byProp["x:blob"].([]byte)
	if !ok || string(blob) != "\x01\x02\x03" {
		t.Fatalf("x:blob = %v", byProp["x:blob"])
	}
}

func TestGetRowsByRangeStrategy(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		row := types.NewRow(idgen.Guid(), "foo:num", int64(i), idgen.Now())
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

func TestSetTufoPropRatchet(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	c.AddType("foo:min", "", types.Flags{IsMin: true})
	c.AddTufoProp("earliest", "foo:min")

	id := idgen.Guid()
	tufo, err := cortex.FormTufoByFrob(ctx, c, "span", id, map[string]any{"earliest": int64(10)})
	if err != nil {
		t.Fatalf("FormTufoByFrob: %v", err)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "earliest", int64(100)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("earliest"); v != int64(10) {
		t.Fatalf("ratchet should reject larger value, got %v", v)
	}

	if err := cortex.SetTufoProp(ctx, c, &tufo, "earliest", int64(1)); err != nil {
		t.Fatalf("SetTufoProp: %v", err)
	}
	if v, _ := tufo.Get("earliest"); v != int64(1) {
		t.Fatalf("ratchet should accept smaller value, got %v", v)
	}
}
