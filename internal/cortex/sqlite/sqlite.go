// Package sqlite implements the sqlite:// cortex backend: a row store
// persisted to a single SQLite file, grounded on the teacher's
// internal/storage/ephemeral package's schema-on-open + pooled
// *sql.DB shape. Uses the pure-Go modernc.org/sqlite driver, as seen
// elsewhere in the retrieved corpus, so the backend never requires cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// Columns follow spec.md §6's (id, prop, intval, strval, tstamp) shape.
// kind/realval/blobval extend it to carry the bool/float/[]byte scalars
// CanStor accepts beyond plain integers and strings; intval and strval
// stay the primary indexed columns for the common int/string case.
const schema = `
CREATE TABLE IF NOT EXISTS rows (
	id      TEXT    NOT NULL,
	prop    TEXT    NOT NULL,
	kind    TEXT    NOT NULL,
	intval  INTEGER,
	strval  TEXT,
	realval REAL,
	blobval BLOB,
	tstamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rows_id ON rows(id);
CREATE INDEX IF NOT EXISTS idx_rows_prop_intval ON rows(prop, intval);
CREATE INDEX IF NOT EXISTS idx_rows_prop_strval ON rows(prop, strval);
CREATE INDEX IF NOT EXISTS idx_rows_prop_tstamp ON rows(prop, tstamp);
`

// Cortex is the sqlite:// backend.
type Cortex struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex

	xact *cortex.XactScope
	reg  *types.TypeRegistry

	finiOnce sync.Once

	*cortex.JobTable
}

// Open opens (creating if absent) a SQLite-backed cortex at path.
func Open(path string) (*Cortex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite cortex: create dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite cortex: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cortex: ping: %w", err)
	}

	c := &Cortex{
		db:   db,
		path: path,
		xact: cortex.NewXactScope(),
		reg:  types.NewTypeRegistry(),
	}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cortex: init schema: %w", err)
	}
	c.JobTable = cortex.NewJobTable(c.buildAPIs())
	return c, nil
}

func (c *Cortex) initSchema() error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w\nSQL: %s", err, stmt)
		}
	}
	return tx.Commit()
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

// Fini closes the underlying database handle exactly once.
func (c *Cortex) Fini() {
	c.finiOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.db.Close()
	})
}

var _ cortex.Cortex = (*Cortex)(nil)
