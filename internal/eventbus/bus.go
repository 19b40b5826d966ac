// Package eventbus implements the lifecycle + pub/sub substrate the
// MetaCortex is built on (spec.md §4.6): on/off/fire with synchronous,
// registration-ordered handler dispatch, a fini teardown hook, and an
// optional NATS JetStream forward for external observability.
package eventbus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// Handler receives a fired event's info bag. Handlers run in registration
// order on the firing goroutine; a handler that returns an error is
// logged and does not prevent the remaining handlers from running.
type Handler func(info map[string]any) error

// Bus is a simple named-event publish/subscribe base with a teardown hook.
// It is safe for concurrent On/Off/Fire/OnFini/Fini calls.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	finiOnce sync.Once
	finiCBs  []func()
	isFini   bool

	js nats.JetStreamContext
}

// New returns a ready-to-use, empty event bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// On registers a handler for event, appended after any existing handlers
// for that event.
func (b *Bus) On(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

// Off removes every handler registered for event.
func (b *Bus) Off(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, event)
}

// SetJetStream attaches a JetStream context; once set, Fire best-effort
// publishes every fired event's info bag to a subject derived from its
// event name. Publish failures are logged and never affect Fire's result.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// Fire synchronously invokes every handler registered for event, in
// registration order, passing the same mutable info map to each so that
// earlier handlers' mutations (e.g. setting allow=false) are visible to
// later ones. Handler panics are not recovered; handler errors are
// logged and do not stop the chain.
func (b *Bus) Fire(event string, info map[string]any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	js := b.js
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(info); err != nil {
			log.Printf("eventbus: handler error for %s: %v", event, err)
		}
	}

	if js != nil {
		b.publishToJetStream(event, info)
	}
}

func (b *Bus) publishToJetStream(event string, info map[string]any) {
	subject := "cortex.events." + event
	data, err := json.Marshal(info)
	if err != nil {
		log.Printf("eventbus: failed to marshal event %s for JetStream: %v", event, err)
		return
	}
	if _, err := b.js.Publish(subject, data); err != nil {
		log.Printf("eventbus: JetStream publish to %s failed: %v", subject, err)
	}
}

// OnFini registers a callback invoked exactly once, in registration
// order, the first time Fini is called.
func (b *Bus) OnFini(cb func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finiCBs = append(b.finiCBs, cb)
}

// Fini tears the bus down, running every OnFini callback. Idempotent:
// calling Fini more than once is a no-op after the first call.
func (b *Bus) Fini() {
	b.finiOnce.Do(func() {
		b.mu.Lock()
		b.isFini = true
		cbs := append([]func(){}, b.finiCBs...)
		b.mu.Unlock()

		for _, cb := range cbs {
			cb()
		}
	})
}

// IsFini reports whether Fini has already run.
func (b *Bus) IsFini() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isFini
}
