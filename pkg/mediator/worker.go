// Package mediator implements the per-radio decision state machines:
// Bluetooth, Wi-Fi/scan-only, and Cellular. Each mediator reduces its
// inputs to a single RadioDecision using a fixed priority-ordered rule
// table, then dispatches the decision onto a dedicated single-threaded
// worker that applies the change and blocks up to 2 seconds awaiting
// the radio's settle notification before the next decision can apply,
// giving the ordering guarantee that a later decision is only ever
// dispatched once the prior one has taken effect.
package mediator

import (
	"context"
	"sync"
	"time"

	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/metrics"
	"github.com/wearos/connsupervisor/pkg/radio"
)

// SettleWait is the maximum time a worker blocks awaiting a radio's
// service-state confirmation after applying a decision.
const SettleWait = 2 * time.Second

// Driver is the blocking radio control surface a worker calls on its
// own goroutine; it is the only suspension point the mediator layer
// introduces.
type Driver interface {
	// SetEnabled issues the radio power change.
	SetEnabled(ctx context.Context, enable bool) error
	// AwaitSettled blocks until the radio reports the change applied
	// or ctx expires, returning false on timeout. A timeout is logged
	// and otherwise ignored; it never blocks the next decision longer
	// than ctx allows.
	AwaitSettled(ctx context.Context) bool
}

// Worker applies radio decisions one at a time on its own goroutine.
type Worker struct {
	radio   radio.Kind
	driver  Driver
	history *radio.History
	log     *logger.Logger

	cmds chan radio.Decision

	mu      sync.Mutex
	current radio.Decision
}

// NewWorker creates a worker for the given radio.
func NewWorker(kind radio.Kind, driver Driver, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Global()
	}
	return &Worker{
		radio:   kind,
		driver:  driver,
		history: radio.NewHistory(),
		log:     log,
		cmds:    make(chan radio.Decision, 8),
	}
}

// History returns the worker's decision history ring.
func (w *Worker) History() *radio.History { return w.history }

// Current returns the last decision applied (or attempted).
func (w *Worker) Current() (radio.Decision, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current.Reason == "" {
		return radio.Decision{}, false
	}
	return w.current, true
}

// Submit enqueues a decision for the worker. Decisions queue FIFO;
// the worker applies them strictly in order.
func (w *Worker) Submit(d radio.Decision) {
	select {
	case w.cmds <- d:
	default:
		w.log.Warn("mediator worker queue full, dropping decision", "radio", w.radio, "reason", d.Reason)
	}
}

// Run drains the command queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-w.cmds:
			w.apply(ctx, d)
		}
	}
}

func (w *Worker) apply(ctx context.Context, d radio.Decision) {
	w.mu.Lock()
	w.current = d
	w.mu.Unlock()

	w.history.Record(d)
	metrics.RecordRadioDecision(string(d.Radio), string(d.Reason), d.Enable)

	if err := w.driver.SetEnabled(ctx, d.Enable); err != nil {
		w.log.Warn("radio driver apply failed", "radio", w.radio, "error", err)
		return
	}

	settleCtx, cancel := context.WithTimeout(ctx, SettleWait)
	defer cancel()
	if !w.driver.AwaitSettled(settleCtx) {
		w.log.Warn("radio settle wait timed out", "radio", w.radio, "reason", d.Reason)
	}
}

// StaticDriver is a deterministic Driver for tests and environments
// without a real radio: SetEnabled always succeeds and AwaitSettled
// returns immediately.
type StaticDriver struct{}

func (StaticDriver) SetEnabled(ctx context.Context, enable bool) error { return nil }
func (StaticDriver) AwaitSettled(ctx context.Context) bool             { return true }
