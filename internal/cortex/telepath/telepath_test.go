package telepath

import (
	"context"
	"net"
	"testing"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/cortex/memory"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

func startServer(t *testing.T) (addr string, backend *memory.Cortex, stop func()) {
	t.Helper()
	backend = memory.New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := NewServer(backend, ln)
	return ln.Addr().String(), backend, func() { srv.Close() }
}

func TestClientRoundTripsRows(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	client, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Fini()

	ctx := context.Background()
	id := idgen.Guid()
	row := types.NewRow(id, "foo:bar", int64(42), idgen.Now())
	if err := client.AddRows(ctx, []types.Row{row}, false); err != nil {
		t.Fatalf("AddRows: %v", err)
	}

	got, err := client.GetRowsByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRowsByID: %v", err)
	}
	if len(got) != 1 || got[0].Valu != int64(42) {
		t.Fatalf("got %v", got)
	}

	n, err := client.GetSizeByID(ctx, id)
	if err != nil {
		t.Fatalf("GetSizeByID: %v", err)
	}
	if n != 1 {
		t.Fatalf("size = %d, want 1", n)
	}
}

func TestClientTypeRegistrationMirrorsLocally(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	client, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Fini()

	client.AddType("foo:min", "", types.Flags{IsMin: true})
	client.AddTufoProp("earliest", "foo:min")

	typ, ok := client.Types().TypeOfProp("earliest")
	if !ok || typ.Policy() != "min" {
		t.Fatalf("local type mirror not populated: %v, %v", typ, ok)
	}
}

func TestClientRangeQuery(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	client, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Fini()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		row := types.NewRow(idgen.Guid(), "foo:num", int64(i), idgen.Now())
		if err := client.AddRows(ctx, []types.Row{row}, false); err != nil {
			t.Fatalf("AddRows: %v", err)
		}
	}

	got, err := client.GetRowsBy(ctx, cortex.ByQuery{By: cortex.ByRange, Prop: "foo:num", Valu: []any{int64(1), int64(4)}})
	if err != nil {
		t.Fatalf("GetRowsBy: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("range [1,4): got %d rows, want 3", len(got))
	}
}
