// Package controller implements the Connectivity Controller: a
// single-threaded reducer that aggregates asynchronous signals
// (companion proxy connectivity, off-body transitions, activity mode,
// network request counts) and fans them out to the per-radio
// mediators on debounce/delay policies.
package controller

import (
	"context"
	"time"

	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/metrics"
	"github.com/wearos/connsupervisor/pkg/policy"
	"github.com/wearos/connsupervisor/pkg/radio"
)

// BTSink is the surface of the Bluetooth mediator the controller drives.
type BTSink interface {
	SetActivityMode(enabled bool)
	SetOffBody(offBody bool)
	OnProxyConnected()
}

// CellularSink is the surface of the cellular mediator the controller drives.
type CellularSink interface {
	SetProxyConnected(connected bool)
	SetActivityMode(enabled bool)
	SetRequestCounts(highBwReq, cellReq int)
}

// WifiSink is the surface of the Wi-Fi mediator the controller drives:
// activity mode turns the radio off by stopping it the same way a
// user toggle would, and comes back up again once the mode clears.
type WifiSink interface {
	Start()
	Stop()
}

// kind enumerates the event types processed on the controller thread.
type kind int

const (
	kProxyChange kind = iota
	kOffBodyChange
	kActivityMode
	kRequestCounts
	kProxyDebounceFire
	kOffBodyDebounceFire
)

type event struct {
	kind         kind
	proxyConn    bool
	offBody      bool
	mode         string
	activityOn   bool
	highBwReq    int
	cellReq      int
	unmeteredReq int
	generation   uint64
}

// Config carries the two debounce delays spec.md §4.1 names.
type Config struct {
	// BTStateChangeDelay delays proxy-disconnect fan-out (default 5s, max 60s).
	// Zero bypasses debouncing entirely.
	BTStateChangeDelay time.Duration
	// OffBodyRadiosOffDelay delays off-body=true fan-out (default 10min).
	OffBodyRadiosOffDelay time.Duration
}

// Controller is the single-threaded reducer described in spec.md §4.1.
// All state is owned by the goroutine running Run; every other method
// only ever posts an event onto the inbound channel.
type Controller struct {
	cfg    Config
	log    *logger.Logger
	policy policy.Engine

	bt   BTSink
	cell CellularSink
	wifi WifiSink

	events chan event

	// goroutine-owned state, touched only inside Run.
	proxyConnected      bool
	proxyDebounceGen    uint64
	proxyDebounceActive bool

	offBodyGen    uint64
	offBodyActive bool

	wifiAffectedByMode bool
}

// New creates a Controller driving the given mediator sinks. engine
// may be nil, in which case policy.NewStaticEngine() is used.
func New(cfg Config, engine policy.Engine, bt BTSink, cell CellularSink, wifi WifiSink, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Global()
	}
	if engine == nil {
		engine = policy.NewStaticEngine()
	}
	return &Controller{
		cfg:    cfg,
		log:    log,
		policy: engine,
		bt:     bt,
		cell:   cell,
		wifi:   wifi,
		events: make(chan event, 256),
	}
}

// Run drains the event channel until ctx is canceled. It is meant to
// run in its own goroutine. A debounce timer that fires after Run has
// returned still posts to the channel, but post() is the only thing
// touching it from outside this goroutine, so the pending notification
// is simply never drained — it is dropped, matching the no-op-after-
// shutdown requirement.
func (c *Controller) Run(ctx context.Context) {
	for {
		metrics.EventQueueDepth.Set(float64(len(c.events)))
		select {
		case <-ctx.Done():
			return
		case e := <-c.events:
			c.handleSafely(e)
		}
	}
}

// handleSafely recovers a panic out of a single event's handling so
// one bad signal cannot take down the controller goroutine.
func (c *Controller) handleSafely(e event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic recovered in controller event handling", "kind", e.kind, "error", r)
		}
	}()
	c.handle(e)
}

func (c *Controller) post(e event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn("controller queue full, dropping event", "kind", e.kind)
	}
}

func (c *Controller) handle(e event) {
	switch e.kind {
	case kProxyChange:
		c.onProxyChange(e.proxyConn)
	case kOffBodyChange:
		c.onOffBodyChange(e.offBody)
	case kActivityMode:
		c.onActivityMode(e.mode, e.activityOn)
	case kRequestCounts:
		c.onRequestCounts(e.cellReq, e.highBwReq, e.unmeteredReq)
	case kProxyDebounceFire:
		c.firesProxyDebounce(e.generation)
	case kOffBodyDebounceFire:
		c.firesOffBodyDebounce(e.generation)
	}
}

// OnProxyChange enqueues a proxy connect/disconnect event (O1: FIFO).
func (c *Controller) OnProxyChange(connected bool) {
	c.post(event{kind: kProxyChange, proxyConn: connected})
}

// OnOffBodyChange enqueues an effective off-body transition (raw_off_body
// AND feature_enabled AND screen_off already folded in by the caller).
func (c *Controller) OnOffBodyChange(offBody bool) {
	c.post(event{kind: kOffBodyChange, offBody: offBody})
}

// OnActivityMode enqueues an activity-mode transition. mode names the
// active activity (consulted against the policy engine to find which
// radios it affects); enabled is false when the activity ends.
func (c *Controller) OnActivityMode(mode string, enabled bool) {
	c.post(event{kind: kActivityMode, mode: mode, activityOn: enabled})
}

// OnRequestCounts enqueues a network request count delta (wifi and
// unmetered counts are accepted to match the full signal set the host
// stack reports, even though only cell/highBw currently gate a rule).
func (c *Controller) OnRequestCounts(wifiReq, cellReq, highBwReq, unmeteredReq int) {
	c.post(event{kind: kRequestCounts, cellReq: cellReq, highBwReq: highBwReq, unmeteredReq: unmeteredReq})
}

// onProxyChange implements the debounced disconnect / immediate
// connect policy. Connect events propagate immediately and cancel any
// pending disconnect notification (O4 cancellation). A zero delay
// bypasses debouncing.
func (c *Controller) onProxyChange(connected bool) {
	c.proxyConnected = connected

	if connected {
		c.proxyDebounceGen++
		c.proxyDebounceActive = false
		metrics.DebounceCanceled.WithLabelValues("proxy").Inc()
		c.propagateProxyState(true)
		return
	}

	if c.cfg.BTStateChangeDelay <= 0 {
		c.propagateProxyState(false)
		return
	}

	c.proxyDebounceGen++
	gen := c.proxyDebounceGen
	c.proxyDebounceActive = true
	time.AfterFunc(c.cfg.BTStateChangeDelay, func() {
		c.post(event{kind: kProxyDebounceFire, generation: gen})
	})
}

// firesProxyDebounce delivers the current proxy status (O4), not the
// status captured when the timer was scheduled; a connect or a newer
// disconnect in the meantime bumps the generation and this fire is
// silently dropped.
func (c *Controller) firesProxyDebounce(gen uint64) {
	if gen != c.proxyDebounceGen || !c.proxyDebounceActive {
		return
	}
	c.proxyDebounceActive = false
	metrics.DebounceFired.WithLabelValues("proxy").Inc()
	c.propagateProxyState(c.proxyConnected)
}

func (c *Controller) propagateProxyState(connected bool) {
	if c.cell != nil {
		c.cell.SetProxyConnected(connected)
	}
	if connected && c.bt != nil {
		c.bt.OnProxyConnected()
	}
}

// onOffBodyChange applies the off-body radio-suppression delay: true
// delays by OffBodyRadiosOffDelay, false fires immediately and cancels
// any pending timer.
func (c *Controller) onOffBodyChange(offBody bool) {
	if !offBody {
		c.offBodyGen++
		c.offBodyActive = false
		metrics.DebounceCanceled.WithLabelValues("off_body").Inc()
		c.fanOutOffBody(false)
		return
	}

	if c.cfg.OffBodyRadiosOffDelay <= 0 {
		c.fanOutOffBody(true)
		return
	}

	c.offBodyGen++
	gen := c.offBodyGen
	c.offBodyActive = true
	time.AfterFunc(c.cfg.OffBodyRadiosOffDelay, func() {
		c.post(event{kind: kOffBodyDebounceFire, generation: gen})
	})
}

func (c *Controller) firesOffBodyDebounce(gen uint64) {
	if gen != c.offBodyGen || !c.offBodyActive {
		return
	}
	c.offBodyActive = false
	metrics.DebounceFired.WithLabelValues("off_body").Inc()
	c.fanOutOffBody(true)
}

func (c *Controller) fanOutOffBody(offBody bool) {
	if c.bt != nil {
		c.bt.SetOffBody(offBody)
	}
}

// onActivityMode consults the policy engine for which radios the named
// mode affects and fans out immediately: BT and cellular are told the
// mode is active/inactive, Wi-Fi is stopped/started directly since it
// has no decision-rule input of its own.
func (c *Controller) onActivityMode(mode string, enabled bool) {
	affected := c.policy.ActivityAffectedRadios(mode)
	if !enabled {
		affected = nil
	}

	btAffected := radioAffected(affected, radio.BT)
	cellAffected := radioAffected(affected, radio.CELL)
	wifiAffected := radioAffected(affected, radio.WIFI)

	if c.bt != nil {
		c.bt.SetActivityMode(btAffected)
	}
	if c.cell != nil {
		c.cell.SetActivityMode(cellAffected)
	}
	if c.wifi != nil {
		switch {
		case wifiAffected && !c.wifiAffectedByMode:
			c.wifi.Stop()
		case !wifiAffected && c.wifiAffectedByMode:
			c.wifi.Start()
		}
	}
	c.wifiAffectedByMode = wifiAffected
}

// onRequestCounts forwards request-count deltas to the cellular
// mediator's ON_NETWORK_REQUEST rule; Wi-Fi has no request-gated
// decision rule to forward unmeteredReq into.
func (c *Controller) onRequestCounts(cellReq, highBwReq, unmeteredReq int) {
	if c.cell != nil {
		c.cell.SetRequestCounts(highBwReq, cellReq)
	}
}

func radioAffected(radios []radio.Kind, want radio.Kind) bool {
	for _, r := range radios {
		if r == want {
			return true
		}
	}
	return false
}
