package cortex

import (
	"context"
	"sync"
)

// Xact is a scoped write-transaction handle returned by GetCoreXact.
// Release must be called exactly once per GetCoreXact call, normally via
// defer, on every exit path (spec.md §4.1, §5).
type Xact interface {
	Release()
}

// XactScope is the mutex-backed scoped-transaction primitive shared by
// every local (non-remote) cortex backend. Nested GetCoreXact calls on a
// context that already carries this scope's transaction re-enter the
// same transaction instead of deadlocking, which is how this package
// expresses the "nested use on the same thread re-enters the same
// transaction" requirement without relying on goroutine-identity tricks:
// callers thread ctx through nested calls the way they already must for
// cancellation.
type XactScope struct {
	mu   sync.Mutex
	flag contextKey
}

type contextKey struct{ scope *XactScope }

// NewXactScope returns a ready-to-use scope.
func NewXactScope() *XactScope {
	s := &XactScope{}
	s.flag = contextKey{scope: s}
	return s
}

// Acquire returns a context carrying this scope's transaction (for
// passing to nested calls) and an Xact whose Release ends the scope —
// unless ctx already carries this scope's transaction, in which case
// Acquire returns ctx unchanged and a no-op Xact that defers to the
// outer call's Release.
func (s *XactScope) Acquire(ctx context.Context) (context.Context, Xact) {
	if v, ok := ctx.Value(s.flag).(*ownedXact); ok {
		return ctx, &nestedXact{owner: v}
	}
	s.mu.Lock()
	owned := &ownedXact{scope: s}
	return context.WithValue(ctx, s.flag, owned), owned
}

type ownedXact struct {
	scope    *XactScope
	released bool
}

func (x *ownedXact) Release() {
	if x.released {
		return
	}
	x.released = true
	x.scope.mu.Unlock()
}

type nestedXact struct {
	owner *ownedXact
}

func (n *nestedXact) Release() {} // outer Acquire call owns the real release
