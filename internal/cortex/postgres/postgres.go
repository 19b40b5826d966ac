// Package postgres implements the postgres:// cortex backend: a row
// store persisted to a PostgreSQL server, sharing its column/kind
// encoding with the sqlite backend but grounded on lib/pq's
// database/sql driver registration, as used for Postgres connectivity
// elsewhere in the retrieved example pack.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS cortex_rows (
	seq     BIGSERIAL PRIMARY KEY,
	id      TEXT    NOT NULL,
	prop    TEXT    NOT NULL,
	kind    TEXT    NOT NULL,
	intval  BIGINT,
	strval  TEXT,
	realval DOUBLE PRECISION,
	blobval BYTEA,
	tstamp  BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cortex_rows_id ON cortex_rows(id);
CREATE INDEX IF NOT EXISTS idx_cortex_rows_prop_intval ON cortex_rows(prop, intval);
CREATE INDEX IF NOT EXISTS idx_cortex_rows_prop_strval ON cortex_rows(prop, strval);
CREATE INDEX IF NOT EXISTS idx_cortex_rows_prop_tstamp ON cortex_rows(prop, tstamp);
`

// Cortex is the postgres:// backend.
type Cortex struct {
	db *sql.DB
	mu sync.RWMutex

	xact *cortex.XactScope
	reg  *types.TypeRegistry

	finiOnce sync.Once

	*cortex.JobTable
}

// Open connects to a Postgres server at connStr (a standard libpq
// connection string or a full postgres:// URL, as the factory passes
// it) and ensures the row table exists.
func Open(connStr string) (*Cortex, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres cortex: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres cortex: ping: %w", err)
	}

	c := &Cortex{
		db:   db,
		xact: cortex.NewXactScope(),
		reg:  types.NewTypeRegistry(),
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres cortex: init schema: %w", err)
	}
	c.JobTable = cortex.NewJobTable(c.buildAPIs())
	return c, nil
}

// GetCoreXact acquires a scoped write transaction.
func (c *Cortex) GetCoreXact(ctx context.Context) (context.Context, cortex.Xact) {
	return c.xact.Acquire(ctx)
}

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

// Fini closes the underlying connection pool exactly once.
func (c *Cortex) Fini() {
	c.finiOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.db.Close()
	})
}

var _ cortex.Cortex = (*Cortex)(nil)
