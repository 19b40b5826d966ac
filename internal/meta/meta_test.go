package meta

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/eventbus"
	"github.com/cortexfed/cortex/internal/idgen"
	"github.com/cortexfed/cortex/internal/types"
)

// failingCortex is a minimal Cortex whose every call errors, standing in
// for a shard that is unreachable or crashed mid-query.
type failingCortex struct{}

func (failingCortex) AddRows(context.Context, []types.Row, bool) error { return fmt.Errorf("unreachable") }
func (failingCortex) GetRowsByID(context.Context, string) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetRowsByProp(context.Context, string, cortex.PropQuery) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetRowsBy(context.Context, cortex.ByQuery) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetJoinByID(context.Context, string) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetJoinByProp(context.Context, string, cortex.PropQuery) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetJoinBy(context.Context, cortex.ByQuery) ([]types.Row, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) GetSizeByID(context.Context, string) (int, error) {
	return 0, fmt.Errorf("unreachable")
}
func (failingCortex) GetSizeByProp(context.Context, string, cortex.PropQuery) (int, error) {
	return 0, fmt.Errorf("unreachable")
}
func (failingCortex) GetSizeBy(context.Context, cortex.ByQuery) (int, error) {
	return 0, fmt.Errorf("unreachable")
}
func (failingCortex) AddType(string, string, types.Flags) {}
func (failingCortex) AddTufoForm(string)                  {}
func (failingCortex) AddTufoProp(string, string)          {}
func (failingCortex) Types() *types.TypeRegistry          { return types.NewTypeRegistry() }
func (failingCortex) GetCoreXact(ctx context.Context) (context.Context, cortex.Xact) {
	return ctx, nil
}
func (failingCortex) CallAsyncApi(context.Context, string, ...any) (cortex.JobID, error) {
	return "", fmt.Errorf("unreachable")
}
func (failingCortex) GetAsyncReturn(context.Context, cortex.JobID) (any, error) {
	return nil, fmt.Errorf("unreachable")
}
func (failingCortex) Fini() {}

var _ cortex.Cortex = failingCortex{}

func newTestMeta(t *testing.T) *MetaCortex {
	t.Helper()
	m := New(eventbus.New())
	t.Cleanup(m.Fini)
	return m
}

// Tag hierarchy registration: a cortex tagged "org.east.nyc" is
// reachable under every ancestor prefix.
func TestAddCortexTagHierarchy(t *testing.T) {
	m := newTestMeta(t)
	if _, err := m.AddCortex("nyc", "ram://", "org.east.nyc"); err != nil {
		t.Fatalf("AddCortex: %v", err)
	}

	for _, tag := range []string{"org", "org.east", "org.east.nyc", "nyc"} {
		if got := m.GetCortexes(tag); len(got) != 1 {
			t.Fatalf("GetCortexes(%q) = %d cortexes, want 1", tag, len(got))
		}
	}
	if got := m.GetCortexes("org.west"); len(got) != 0 {
		t.Fatalf("GetCortexes(org.west) = %d cortexes, want 0", len(got))
	}
}

// Duplicate name registration fails without disturbing the existing entry.
func TestAddCortexDuplicateName(t *testing.T) {
	m := newTestMeta(t)
	if _, err := m.AddCortex("a", "ram://"); err != nil {
		t.Fatalf("AddCortex: %v", err)
	}
	_, err := m.AddCortex("a", "ram://")
	var dup *errs.DupCortexName
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want DupCortexName", err)
	}
	if got := m.GetCortexNames(); len(got) != 1 {
		t.Fatalf("GetCortexNames() = %v, want 1 entry", got)
	}
}

func seedRows(t *testing.T, m *MetaCortex, name, tag string, n int, prop string, valuOffset int64) {
	t.Helper()
	if _, err := m.AddCortex(name, "ram://", tag); err != nil {
		t.Fatalf("AddCortex(%s): %v", name, err)
	}
	rows := make([]types.Row, 0, n)
	now := idgen.Now()
	for i := 0; i < n; i++ {
		rows = append(rows, types.NewRow(idgen.Guid(), prop, valuOffset+int64(i), now))
	}
	if err := m.AddMetaRows(context.Background(), name, rows, false); err != nil {
		t.Fatalf("AddMetaRows(%s): %v", name, err)
	}
}

// Query fan-out: rows from every shard tagged "shard" are concatenated,
// and size sums across shards without materializing rows.
func TestQueryFanOutAndSum(t *testing.T) {
	m := newTestMeta(t)
	seedRows(t, m, "shard-a", "shard", 3, "hits", 0)
	seedRows(t, m, "shard-b", "shard", 5, "hits", 100)

	rows, err := m.GetRowsByQuery(context.Background(), "shard:hits")
	if err != nil {
		t.Fatalf("GetRowsByQuery: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("len(rows) = %d, want 8", len(rows))
	}

	size, err := m.GetSizeByQuery(context.Background(), "shard:hits")
	if err != nil {
		t.Fatalf("GetSizeByQuery: %v", err)
	}
	if size != 8 {
		t.Fatalf("size = %d, want 8", size)
	}
}

// Tufos fold the joined rows of a query's matches.
func TestTufosByQueryFoldsJoin(t *testing.T) {
	m := newTestMeta(t)
	if _, err := m.AddCortex("people", "ram://", "people"); err != nil {
		t.Fatalf("AddCortex: %v", err)
	}
	id := idgen.Guid()
	now := idgen.Now()
	rows := []types.Row{
		types.NewRow(id, types.FormTufoForm, "person", now),
		types.NewRow(id, "name", "ada", now),
		types.NewRow(id, "age", int64(30), now),
	}
	if err := m.AddMetaRows(context.Background(), "people", rows, false); err != nil {
		t.Fatalf("AddMetaRows: %v", err)
	}

	tufos, err := m.GetTufosByQuery(context.Background(), `people:name="ada"`)
	if err != nil {
		t.Fatalf("GetTufosByQuery: %v", err)
	}
	if len(tufos) != 1 {
		t.Fatalf("len(tufos) = %d, want 1", len(tufos))
	}
	if got, _ := tufos[0].Get("age"); got != int64(30) {
		t.Fatalf("age = %v, want 30", got)
	}
}

// An observer vetoing the query by setting allow=false short-circuits
// dispatch entirely: no cortex is called and the result is empty.
func TestQueryObserverVeto(t *testing.T) {
	m := newTestMeta(t)
	seedRows(t, m, "vetoed", "watched", 4, "hits", 0)

	m.bus.On("meta:query:rows", func(info map[string]any) error {
		info["allow"] = false
		return nil
	})

	rows, err := m.GetRowsByQuery(context.Background(), "watched:hits")
	if err != nil {
		t.Fatalf("GetRowsByQuery: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len(rows) = %d, want 0 (vetoed)", len(rows))
	}
}

// A failing cortex's contribution is dropped; the remaining shards'
// results still come back.
func TestQueryPartialFailure(t *testing.T) {
	m := newTestMeta(t)
	seedRows(t, m, "healthy", "mixed", 2, "hits", 0)

	// Inject a shard whose every call fails, standing in for a crashed
	// or unreachable backend (registered directly rather than through
	// AddCortex, since every real scheme in the factory succeeds).
	dead := failingCortex{}
	m.mu.Lock()
	m.coresByName["dead"] = dead
	m.tagsByName["dead"] = map[string]bool{"mixed": true, "dead": true}
	m.coresByTag["mixed"] = append(m.coresByTag["mixed"], dead)
	m.mu.Unlock()

	rows, err := m.GetRowsByQuery(context.Background(), "mixed:hits")
	if err != nil {
		t.Fatalf("GetRowsByQuery: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 from the surviving shard", len(rows))
	}
}

// DelCortex removes a shard from every tag it was reachable under.
func TestDelCortexRemovesFromAllTags(t *testing.T) {
	m := newTestMeta(t)
	if _, err := m.AddCortex("nyc", "ram://", "org.east.nyc"); err != nil {
		t.Fatalf("AddCortex: %v", err)
	}
	if err := m.DelCortex("nyc"); err != nil {
		t.Fatalf("DelCortex: %v", err)
	}
	for _, tag := range []string{"org", "org.east", "org.east.nyc"} {
		if got := m.GetCortexes(tag); len(got) != 0 {
			t.Fatalf("GetCortexes(%q) = %d, want 0 after delete", tag, len(got))
		}
	}
	var nsn *errs.NoSuchName
	if err := m.DelCortex("nyc"); !errors.As(err, &nsn) {
		t.Fatalf("second DelCortex: got %v, want NoSuchName", err)
	}
}
