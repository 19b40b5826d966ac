// Package config bootstraps a MetaCortex's shard registry from a YAML
// file and keeps it in sync as that file changes on disk, the way the
// teacher's own config layer loads config.yaml through viper and
// reconciles on fsnotify writes.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/cortexfed/cortex/internal/meta"
)

// ShardSpec is one entry of a meta.yaml file's `shards:` list.
type ShardSpec struct {
	Name string   `yaml:"name"`
	URL  string   `yaml:"url"`
	Tags []string `yaml:"tags"`
}

// Config is the parsed shape of a meta.yaml bootstrap file.
type Config struct {
	Shards []ShardSpec `yaml:"shards"`
}

// Load reads path with viper and unmarshals its shards list. A missing
// file is not an error: it parses as an empty Config, the way a fresh
// deployment might ship no shards until AddCortex is called directly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.UnmarshalKey("shards", &cfg.Shards); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, s := range cfg.Shards {
		if url, ok := EnvOverrideURL(s.Name); ok {
			cfg.Shards[i].URL = url
		}
	}
	return &cfg, nil
}

// Apply registers every shard in cfg against m that isn't already
// registered under its name. Existing registrations are left untouched;
// callers that want a full resync should Reconcile instead.
func Apply(m *meta.MetaCortex, cfg *Config) error {
	existing := make(map[string]bool)
	for _, name := range m.GetCortexNames() {
		existing[name] = true
	}
	for _, s := range cfg.Shards {
		if existing[s.Name] {
			continue
		}
		if _, err := m.AddCortex(s.Name, s.URL, s.Tags...); err != nil {
			return fmt.Errorf("registering shard %q: %w", s.Name, err)
		}
	}
	return nil
}

// Reconcile brings m's registry exactly in line with cfg: shards no
// longer listed are removed, new ones are added. Shards present in both
// are left alone even if their URL or tags changed — changing a live
// shard's backend out from under its open connections is not something
// a config reload should do silently.
func Reconcile(m *meta.MetaCortex, cfg *Config) error {
	want := make(map[string]ShardSpec, len(cfg.Shards))
	for _, s := range cfg.Shards {
		want[s.Name] = s
	}

	for _, name := range m.GetCortexNames() {
		if _, ok := want[name]; !ok {
			if err := m.DelCortex(name); err != nil {
				return fmt.Errorf("removing shard %q: %w", name, err)
			}
		}
	}
	return Apply(m, cfg)
}

// Watch reloads path into m whenever it changes on disk, debouncing
// rapid successive writes the way the teacher's issue-list watcher
// debounces jsonl/db writes. It runs until stop is closed.
func Watch(path string, m *meta.MetaCortex, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	const debounceDelay = 300 * time.Millisecond
	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Printf("config: reload %s failed: %v", path, err)
			return
		}
		if err := Reconcile(m, cfg); err != nil {
			log.Printf("config: reconcile from %s failed: %v", path, err)
		}
	}

	for {
		select {
		case <-stop:
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

// EnvOverrideURL lets an operator override one shard's URL from the
// environment without editing meta.yaml, e.g.
// CORTEX_SHARD_PRIMARY_URL=sqlite:///var/cortex/primary.db.
func EnvOverrideURL(name string) (string, bool) {
	key := "CORTEX_SHARD_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_URL"
	v := os.Getenv(key)
	return v, v != ""
}
