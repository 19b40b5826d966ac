package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cortexfed/cortex/internal/eventbus"
	"github.com/cortexfed/cortex/internal/meta"
)

func writeMetaYAML(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "meta.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Shards) != 0 {
		t.Fatalf("Shards = %v, want empty", cfg.Shards)
	}
}

func TestLoadAndApply(t *testing.T) {
	path := writeMetaYAML(t, t.TempDir(), `
shards:
  - name: primary
    url: ram://
    tags: [org.east]
  - name: archive
    url: ram://
    tags: [org.west]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Shards) != 2 {
		t.Fatalf("len(Shards) = %d, want 2", len(cfg.Shards))
	}

	m := meta.New(eventbus.New())
	t.Cleanup(m.Fini)
	if err := Apply(m, cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := m.GetCortexes("org.east"); len(got) != 1 {
		t.Fatalf("GetCortexes(org.east) = %d, want 1", len(got))
	}
	if got := m.GetCortexes("org.west"); len(got) != 1 {
		t.Fatalf("GetCortexes(org.west) = %d, want 1", len(got))
	}
}

func TestReconcileRemovesDroppedShards(t *testing.T) {
	m := meta.New(eventbus.New())
	t.Cleanup(m.Fini)
	if _, err := m.AddCortex("stale", "ram://", "gone"); err != nil {
		t.Fatalf("AddCortex: %v", err)
	}

	cfg := &Config{Shards: []ShardSpec{{Name: "fresh", URL: "ram://", Tags: []string{"kept"}}}}
	if err := Reconcile(m, cfg); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if m.GetCortex("stale") != nil {
		t.Fatal("stale shard still registered after reconcile")
	}
	if m.GetCortex("fresh") == nil {
		t.Fatal("fresh shard not registered after reconcile")
	}
}

func TestEnvOverrideURL(t *testing.T) {
	t.Setenv("CORTEX_SHARD_PRIMARY_URL", "sqlite:///tmp/override.db")
	url, ok := EnvOverrideURL("primary")
	if !ok || url != "sqlite:///tmp/override.db" {
		t.Fatalf("EnvOverrideURL = (%q, %v), want override", url, ok)
	}
	if _, ok := EnvOverrideURL("unset-shard"); ok {
		t.Fatal("EnvOverrideURL reported an override that was never set")
	}
}
