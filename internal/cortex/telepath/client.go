package telepath

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/types"
)

// Cortex is the tcp:// backend: a proxy that forwards every call to a
// telepath Server over a persistent net.Conn, reconnecting with
// exponential backoff on a dropped connection (grounded on the
// teacher's RPC client dial/retry loop).
type Cortex struct {
	addr string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	xact *cortex.XactScope
	reg  *types.TypeRegistry

	finiOnce sync.Once
	fini     bool

	*cortex.JobTable
}

// Dial connects to a telepath Server at addr ("host:port"). The
// objname path component of a tcp:// URL is accepted by callers for
// parity with the scheme grammar but is not otherwise interpreted —
// one telepath server answers for exactly one backend.
func Dial(addr string) (*Cortex, error) {
	c := &Cortex{
		addr: addr,
		xact: cortex.NewXactScope(),
		reg:  types.NewTypeRegistry(),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.JobTable = cortex.NewJobTable(c.buildAPIs())
	return c, nil
}

func (c *Cortex) connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("telepath: dial %s: %w", c.addr, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = bufio.NewWriter(conn)
	c.mu.Unlock()
	return nil
}

// call sends req and returns the decoded Response, reconnecting with
// exponential backoff (up to 5 attempts) if the connection has dropped.
func (c *Cortex) call(ctx context.Context, req Request) (Response, error) {
	var resp Response
	op := func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn == nil {
			if err := c.connectLocked(); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("telepath: marshal request: %w", err))
		}
		payload = append(payload, '\n')

		if deadline, ok := ctx.Deadline(); ok {
			_ = c.conn.SetDeadline(deadline)
		} else {
			_ = c.conn.SetDeadline(time.Now().Add(30 * time.Second))
		}

		if _, err := c.writer.Write(payload); err != nil {
			c.dropLocked()
			return err
		}
		if err := c.writer.Flush(); err != nil {
			c.dropLocked()
			return err
		}

		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.dropLocked()
			return err
		}

		if err := json.Unmarshal(line, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("telepath: unmarshal response: %w", err))
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return Response{}, fmt.Errorf("telepath: %s", resp.Error)
	}
	return resp, nil
}

// connectLocked must be called with c.mu held.
func (c *Cortex) connectLocked() error {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("telepath: reconnect %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = bufio.NewWriter(conn)
	return nil
}

// dropLocked must be called with c.mu held.
func (c *Cortex) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
}

// AddRows forwards the rows to the remote backend.
func (c *Cortex) AddRows(ctx context.Context, rows []types.Row, async bool) error {
	wr, err := encodeRows(rows)
	if err != nil {
		return err
	}
	rctx, xact := c.xact.Acquire(ctx)
	defer xact.Release()
	_, err = c.call(rctx, Request{Op: OpAddRows, Rows: wr, Async: async})
	return err
}

func (c *Cortex) GetRowsByID(ctx context.Context, id string) ([]types.Row, error) {
	resp, err := c.call(ctx, Request{Op: OpGetRowsByID, ID: id})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetRowsByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	wq, err := encodePropQuery(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetRowsByProp, Prop: prop, PropQuery: &wq})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetRowsBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	wq, err := encodeByQuery(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetRowsBy, ByQuery: &wq})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetJoinByID(ctx context.Context, id string) ([]types.Row, error) {
	resp, err := c.call(ctx, Request{Op: OpGetJoinByID, ID: id})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetJoinByProp(ctx context.Context, prop string, q cortex.PropQuery) ([]types.Row, error) {
	wq, err := encodePropQuery(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetJoinByProp, Prop: prop, PropQuery: &wq})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetJoinBy(ctx context.Context, q cortex.ByQuery) ([]types.Row, error) {
	wq, err := encodeByQuery(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetJoinBy, ByQuery: &wq})
	if err != nil {
		return nil, err
	}
	return decodeRows(resp.Rows)
}

func (c *Cortex) GetSizeByID(ctx context.Context, id string) (int, error) {
	resp, err := c.call(ctx, Request{Op: OpGetSizeByID, ID: id})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (c *Cortex) GetSizeByProp(ctx context.Context, prop string, q cortex.PropQuery) (int, error) {
	wq, err := encodePropQuery(q)
	if err != nil {
		return 0, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetSizeByProp, Prop: prop, PropQuery: &wq})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (c *Cortex) GetSizeBy(ctx context.Context, q cortex.ByQuery) (int, error) {
	wq, err := encodeByQuery(q)
	if err != nil {
		return 0, err
	}
	resp, err := c.call(ctx, Request{Op: OpGetSizeBy, ByQuery: &wq})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// AddType registers the type both remotely and in a local mirror, so
// SetTufoProp's ratchet policy lookup (c.Types().TypeOfProp) never
// needs a network round trip.
func (c *Cortex) AddType(name, base string, flags types.Flags) {
	c.reg.AddType(name, base, flags)
	_, _ = c.call(context.Background(), Request{
		Op: OpAddType, TypeName: name, TypeBase: base,
		TypeFlags: wireTypeFlags{IsMin: flags.IsMin, IsMax: flags.IsMax},
	})
}

func (c *Cortex) AddTufoForm(form string) {
	c.reg.AddTufoForm(form)
	_, _ = c.call(context.Background(), Request{Op: OpAddTufoForm, Form: form})
}

func (c *Cortex) AddTufoProp(prop, typeName string) {
	c.reg.AddTufoProp(prop, typeName)
	_, _ = c.call(context.Background(), Request{Op: OpAddTufoProp, Prop: prop, TypeName: typeName})
}

func (c *Cortex) Types() *types.TypeRegistry {
	return c.reg
}

// GetCoreXact scopes only this process's concurrent callers against
// each other; see the package doc for why it cannot serialize across
// processes.
func (c *Cortex) GetCoreXact(ctx context.Context) (context.Context, cortex.Xact) {
	return c.xact.Acquire(ctx)
}

// Fini closes the underlying connection exactly once.
func (c *Cortex) Fini() {
	c.finiOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.fini = true
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

var _ cortex.Cortex = (*Cortex)(nil)
