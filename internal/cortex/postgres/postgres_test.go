package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

// openTest connects to a real Postgres server named by
// CORTEX_TEST_POSTGRES_DSN. There is no in-process Postgres, so this
// backend's tests are integration tests skipped by default.
func openTest(t *testing.T) *Cortex {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv("CORTEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CORTEX_TEST_POSTGRES_DSN not set")
	}
	c, err := Open(dsn)
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
	if len(got) != 1 || got[0].Valu != row.Valu {
		t.Fatalf("got %v, want [%v]", got, row)
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
}
