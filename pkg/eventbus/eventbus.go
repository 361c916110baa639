// Package eventbus is a small in-process, panic-safe publish/subscribe
// bus used to fan state-change notifications (radio decisions, proxy
// state transitions) out to diagnostics and telemetry consumers without
// involving them in the controller thread's own decision loop.
package eventbus

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/wearos/connsupervisor/pkg/logger"
)

// Event is a single notification carried on the bus.
type Event struct {
	Type    string
	Payload any
}

// Handler receives bus events.
type Handler interface {
	OnEvent(Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(Event)

// OnEvent implements Handler.
func (f HandlerFunc) OnEvent(e Event) { f(e) }

// Bus fans published events out to every subscribed handler. Publish
// never blocks the caller: a full queue drops the event and logs it.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler

	ch     chan Event
	log    *logger.Logger
	closed bool
}

// New creates a Bus with the given inbound buffer size.
func New(buffer int, log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Global()
	}
	return &Bus{
		ch:  make(chan Event, buffer),
		log: log,
	}
}

// Subscribe registers a handler. Handlers are invoked in registration order.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish enqueues an event for dispatch. It is a no-op after Close.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	select {
	case b.ch <- e:
	default:
		b.log.Warn("eventbus queue full, dropping event", "type", e.Type)
	}
}

// Run drains the bus until ctx is canceled or Close is called. It is
// meant to run in its own goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.ch:
			if !ok {
				return
			}
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("panic in eventbus handler", "error", r, "stack", string(debug.Stack()))
				}
			}()
			h.OnEvent(e)
		}()
	}
}

// Close stops accepting new events and closes the inbound channel.
// Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
