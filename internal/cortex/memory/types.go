package memory

import (
	"context"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// AddType registers a named type with the given base and flags.
func (c *Cortex) AddType(name, base string, flags types.Flags) {
	c.reg.AddType(name, base, flags)
}

// AddTufoForm registers a form name.
func (c *Cortex) AddTufoForm(form string) {
	c.reg.AddTufoForm(form)
}

// AddTufoProp binds a property name to a type name.
func (c *Cortex) AddTufoProp(prop, typeName string) {
	c.reg.AddTufoProp(prop, typeName)
}

// Types returns the cortex's type registry.
func (c *Cortex) Types() *types.TypeRegistry {
	return c.reg
}

// GetCoreXact acquires a scoped write transaction.
func (c *Cortex) GetCoreXact(ctx context.Context) (context.Context, cortex.Xact) {
	return c.xact.Acquire(ctx)
}

// Fini idempotently tears the cortex down. An in-memory cortex has no
// external resources to release; Fini exists to satisfy the interface
// and to make lifecycle bugs (double-fini, use-after-fini) easy to add
// assertions for later.
func (c *Cortex) Fini() {
	c.finiOnce.Do(func() {})
}
