package meta

import (
	"strings"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/errs"
	"github.com/cortexfed/cortex/internal/storage/factory"
)

// AddCortex opens url and registers it under name plus the hierarchical
// expansion of name and every supplied tag (spec.md §4.2). A duplicate
// name fails with DupCortexName without touching the registry.
func (m *MetaCortex) AddCortex(name, url string, tags ...string) (cortex.Cortex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.coresByName[name]; exists {
		return nil, &errs.DupCortexName{Name: name}
	}

	c, err := factory.Open(url, factory.Options{})
	if err != nil {
		return nil, err
	}

	allTags := make(map[string]bool)
	for _, t := range choptag(name) {
		allTags[t] = true
	}
	for _, tag := range tags {
		for _, t := range choptag(tag) {
			allTags[t] = true
		}
	}

	m.coresByName[name] = c
	m.tagsByName[name] = allTags
	m.remote[name] = strings.HasPrefix(url, "tcp://")
	for t := range allTags {
		m.coresByTag[t] = append(m.coresByTag[t], c)
	}

	return c, nil
}

// DelCortex removes name from every tag list it appeared under and
// finalizes it (unless it is a remote proxy, whose owning transport
// finalizes it instead). Unknown name fails with NoSuchName.
func (m *MetaCortex) DelCortex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coresByName[name]
	if !ok {
		return &errs.NoSuchName{Name: name}
	}

	for t := range m.tagsByName[name] {
		m.coresByTag[t] = removeCortex(m.coresByTag[t], c)
		if len(m.coresByTag[t]) == 0 {
			delete(m.coresByTag, t)
		}
	}
	delete(m.tagsByName, name)
	delete(m.coresByName, name)

	isRemote := m.remote[name]
	delete(m.remote, name)

	if !isRemote {
		c.Fini()
	}
	return nil
}

func removeCortex(list []cortex.Cortex, target cortex.Cortex) []cortex.Cortex {
	out := list[:0]
	for _, c := range list {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// GetCortex returns the cortex registered under name, or nil if none.
func (m *MetaCortex) GetCortex(name string) cortex.Cortex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coresByName[name]
}

// GetCortexNames returns every registered name, in no particular order.
func (m *MetaCortex) GetCortexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.coresByName))
	for name := range m.coresByName {
		out = append(out, name)
	}
	return out
}

// GetCortexes returns every cortex reachable by tag, in registration
// order; an unreachable tag returns an empty slice.
func (m *MetaCortex) GetCortexes(tag string) []cortex.Cortex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.coresByTag[tag]
	out := make([]cortex.Cortex, len(list))
	copy(out, list)
	return out
}
