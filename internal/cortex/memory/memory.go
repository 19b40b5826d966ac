// Package memory implements the ram:// cortex: an ephemeral, in-memory
// backend. Indexing follows the mutex-guarded-maps shape the teacher's
// internal/storage/ephemeral package uses for its SQLite-backed store,
// adapted here to pure in-memory slices since there is no file to persist
// to.
package memory

import (
	"sync"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// Cortex is the ram:// backend.
type Cortex struct {
	mu    sync.RWMutex
	byID  map[string][]types.Row
	order []string // id insertion order, for stable join/size iteration

	xact *cortex.XactScope
	reg  *types.TypeRegistry

	finiOnce sync.Once

	*cortex.JobTable // embedded for CallAsyncApi/GetAsyncReturn promotion
}

// New returns an empty ram:// cortex.
func New() *Cortex {
	c := &Cortex{
		byID: make(map[string][]types.Row),
		xact: cortex.NewXactScope(),
		reg:  types.NewTypeRegistry(),
	}
	c.JobTable = cortex.NewJobTable(c.buildAPIs())
	return c
}

var _ cortex.Cortex = (*Cortex)(nil)
