// Package meta implements the MetaCortex (spec.md §4.2): the registry
// + router + aggregator that federates many cortex backends behind a
// single tag-routed query surface. Grounded on the teacher's
// internal/storage/factory registry-of-constructors shape for the
// name→cortex bookkeeping, and on internal/eventbus for the
// observable-veto hook fired around each query.
package meta

import (
	"sync"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/eventbus"
)

// MetaCortex is the federation registry + router + aggregator.
type MetaCortex struct {
	bus *eventbus.Bus

	mu          sync.RWMutex
	coresByName map[string]cortex.Cortex
	tagsByName  map[string]map[string]bool
	coresByTag  map[string][]cortex.Cortex
	remote      map[string]bool // names whose cortex is a remote proxy, exempt from fini on teardown
}

// New returns an empty MetaCortex and registers its own finalization
// callback on the given bus (the spec's "_onMetaFini wired via onfini"
// lifecycle).
func New(bus *eventbus.Bus) *MetaCortex {
	m := &MetaCortex{
		bus:         bus,
		coresByName: make(map[string]cortex.Cortex),
		tagsByName:  make(map[string]map[string]bool),
		coresByTag:  make(map[string][]cortex.Cortex),
		remote:      make(map[string]bool),
	}
	bus.OnFini(m.onMetaFini)
	return m
}

// onMetaFini finalizes every locally-owned cortex; remote proxies are
// skipped, since the transport (not the MetaCortex) owns them
// (spec.md §4.2's Teardown note).
func (m *MetaCortex) onMetaFini() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.coresByName {
		if m.remote[name] {
			continue
		}
		c.Fini()
	}
}
