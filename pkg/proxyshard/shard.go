// Package proxyshard implements the Companion Proxy Shard: the
// reconnecting supervisor that acquires a Bluetooth socket to the
// paired companion, hands it to a native sysproxy bridge that tunnels
// IP over Bluetooth, and publishes the resulting network to a Proxy
// Network Agent. It is the hardest subsystem in the supervisor: a
// single-threaded state machine fed by a command channel, with socket
// acquisition and native connect/disconnect calls running on
// background goroutines that post their results back to the same
// channel rather than blocking the state machine.
package proxyshard

import (
	"context"
	"sync"
	"time"

	"github.com/wearos/connsupervisor/pkg/bluetooth"
	"github.com/wearos/connsupervisor/pkg/companion"
	"github.com/wearos/connsupervisor/pkg/eventbus"
	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/metrics"
	"github.com/wearos/connsupervisor/pkg/netagent"
)

// State is a Companion Proxy Shard state.
type State int

const (
	Disconnected State = iota
	SocketRequesting
	SocketDelivering
	SocketDelivered
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case SocketRequesting:
		return "SocketRequesting"
	case SocketDelivering:
		return "SocketDelivering"
	case SocketDelivered:
		return "SocketDelivered"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// NativeBridge is the sysproxy tunnel the shard hands a socket to.
// Deliver must not block past the controller thread's tolerance: the
// real implementation runs it on a background goroutine. Once
// delivered, the bridge reports connect/disconnect outcomes
// asynchronously via the events channel passed to Deliver.
type NativeBridge interface {
	// Deliver hands sock to the native tunnel, returning whether the
	// handoff itself succeeded (DeliverResult). A later, asynchronous
	// NativeCallback/NativeDisconnect arrives on events.
	Deliver(ctx context.Context, sock bluetooth.Socket, events chan<- NativeEvent) bool
	// Disconnect tears down an established tunnel.
	Disconnect(ctx context.Context)
}

// NativeEvent reports an asynchronous connect/disconnect outcome
// from a NativeBridge back to the shard.
type NativeEvent struct {
	Connected   bool
	NetworkType int
	Metered     bool
	Status      int
}

type kind int

const (
	kStartReq kind = iota
	kStopReq
	kClose
	kSocketResult
	kDeliverResult
	kNativeCallback
	kNativeDisconnect
)

type event struct {
	kind   kind
	sock   bluetooth.Socket
	ok     bool
	ne     NativeEvent
	reason string
}

// Shard is a single companion proxy shard. One exists per companion
// per invariant I1.
type Shard struct {
	companionAddr string

	bt        bluetooth.Service
	companion *companion.Tracker
	bridge    NativeBridge
	agents    *netagent.Registry
	log       *logger.Logger
	bus       *eventbus.Bus

	events chan event

	mu             sync.Mutex
	state          State
	closed         bool
	backoff        *Backoff
	retryTimer     *time.Timer
	currentAgentID string
	lastReason     string
	sock           bluetooth.Socket
}

// New creates a shard for the given companion address.
func New(companionAddr string, bt bluetooth.Service, ct *companion.Tracker, bridge NativeBridge, agents *netagent.Registry, bus *eventbus.Bus, log *logger.Logger) *Shard {
	if log == nil {
		log = logger.Global()
	}
	return &Shard{
		companionAddr: companionAddr,
		bt:            bt,
		companion:     ct,
		bridge:        bridge,
		agents:        agents,
		bus:           bus,
		log:           log,
		events:        make(chan event, 32),
		backoff:       NewBackoff(),
		state:         Disconnected,
	}
}

// State returns the shard's current state.
func (s *Shard) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState updates the shard state and the diagnostic gauge. Callers
// must hold s.mu.
func (s *Shard) setState(state State) {
	if s.state == state {
		return
	}
	metrics.ProxyShardState.WithLabelValues(s.state.String()).Set(0)
	s.state = state
	metrics.ProxyShardState.WithLabelValues(state.String()).Set(1)
}

// Run processes events until ctx is canceled. It is meant to run in
// its own goroutine, standing in for the slice of the controller
// thread dedicated to this shard.
func (s *Shard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			s.handle(ctx, e)
		}
	}
}

// StartReq requests the shard connect (or re-publish) to the companion.
// reason names the trigger ("First Boot", "Companion Connected", ...)
// recorded on the network agent for the diagnostic surface; it is
// ignored (the shard keeps whichever reason triggered the in-flight
// attempt) when empty, which is how internally scheduled retries
// re-post a StartReq without clobbering the original reason.
func (s *Shard) StartReq(reason string) { s.post(event{kind: kStartReq, reason: reason}) }

// StopReq requests the shard disconnect while remaining alive to
// reconnect on a future StartReq.
func (s *Shard) StopReq() { s.post(event{kind: kStopReq}) }

// NativeDisconnect notifies the shard the tunnel dropped.
func (s *Shard) NativeDisconnect(status int) {
	s.post(event{kind: kNativeDisconnect, ne: NativeEvent{Status: status}})
}

// Close terminates the shard: cancels retries, disconnects the native
// tunnel, and discards any outstanding background results.
func (s *Shard) Close() { s.post(event{kind: kClose}) }

func (s *Shard) post(e event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("proxy shard event queue full, dropping event")
	}
}

func (s *Shard) handle(ctx context.Context, e event) {
	switch e.kind {
	case kStartReq:
		s.onStartReq(ctx, e.reason)
	case kStopReq:
		s.onStopReq(ctx)
	case kClose:
		s.onClose(ctx)
	case kSocketResult:
		s.onSocketResult(ctx, e.sock)
	case kDeliverResult:
		s.onDeliverResult(ctx, e.ok)
	case kNativeCallback:
		s.onNativeCallback(e.ne)
	case kNativeDisconnect:
		s.onNativeDisconnect()
	}
}

func (s *Shard) onStartReq(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if reason != "" {
		s.lastReason = reason
	}

	switch s.state {
	case Disconnected:
		if !s.companion.IsCompanion(s.companionAddr) || !s.bt.Enabled() {
			s.mu.Unlock()
			s.log.Warn("proxy shard start refused: bluetooth off or companion unpaired", "companion", s.companionAddr)
			return
		}
		s.setState(SocketRequesting)
		s.ensureAgent(s.lastReason)
		s.mu.Unlock()
		s.publish(netagent.StateConnecting)
		go s.acquireSocket(ctx)
	case Connected:
		s.mu.Unlock()
		s.publish(netagent.StateConnected)
	default:
		s.mu.Unlock()
		s.scheduleRetry(ctx)
	}
}

func (s *Shard) acquireSocket(ctx context.Context) {
	sock, err := s.bt.ConnectSocket(ctx, s.companionAddr)
	if err != nil {
		s.log.Warn("proxy shard socket acquisition failed", "error", err)
		s.post(event{kind: kSocketResult, sock: nil})
		return
	}
	s.post(event{kind: kSocketResult, sock: sock})
}

func (s *Shard) onSocketResult(ctx context.Context, sock bluetooth.Socket) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if sock != nil {
			sock.Close()
		}
		return
	}

	if sock == nil {
		s.mu.Unlock()
		s.resetAndRetry(ctx)
		return
	}

	if s.state != SocketRequesting {
		s.mu.Unlock()
		sock.Close()
		return
	}

	s.sock = sock
	s.setState(SocketDelivering)
	s.mu.Unlock()

	go s.deliverToNative(ctx, sock)
}

func (s *Shard) deliverToNative(ctx context.Context, sock bluetooth.Socket) {
	nativeCh := make(chan NativeEvent, 4)
	ok := s.bridge.Deliver(ctx, sock, nativeCh)
	s.post(event{kind: kDeliverResult, ok: ok})
	if !ok {
		return
	}
	go func() {
		for ne := range nativeCh {
			if ne.Connected {
				s.post(event{kind: kNativeCallback, ne: ne})
			} else {
				s.post(event{kind: kNativeDisconnect, ne: ne})
			}
		}
	}()
}

func (s *Shard) onDeliverResult(ctx context.Context, ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !ok {
		s.mu.Unlock()
		s.resetAndRetry(ctx)
		return
	}
	s.setState(SocketDelivered)
	s.mu.Unlock()
}

func (s *Shard) onNativeCallback(ne NativeEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if ne.NetworkType < 0 {
		s.mu.Unlock()
		s.resetAndRetry(context.Background())
		return
	}
	s.setState(Connected)
	s.backoff.Reset()
	s.mu.Unlock()

	s.agents.SetMetered(s.agentID(), ne.Metered)
	metrics.ProxyReconnectCount.Inc()
	s.publish(netagent.StateConnected)
}

func (s *Shard) onNativeDisconnect() {
	s.mu.Lock()
	if s.closed || s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.setState(Disconnected)
	s.mu.Unlock()
	s.publish(netagent.StateDisconnected)
}

func (s *Shard) onStopReq(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state != Connected {
		s.mu.Unlock()
		return
	}
	s.setState(Disconnected)
	s.mu.Unlock()
	s.publish(netagent.StateDisconnected)
}

func (s *Shard) onClose(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sock := s.sock
	s.sock = nil
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	agentID := s.currentAgentID
	s.mu.Unlock()

	go s.bridge.Disconnect(ctx)
	if sock != nil {
		sock.Close()
	}
	if agentID != "" {
		s.agents.OnUnwanted(agentID)
	}
}

func (s *Shard) resetAndRetry(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.setState(Disconnected)
	sock := s.sock
	s.sock = nil
	s.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	s.publish(netagent.StateDisconnected)
	s.scheduleRetry(ctx)
}

func (s *Shard) scheduleRetry(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delay := s.backoff.Next()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.post(event{kind: kStartReq})
		}
	})
	s.mu.Unlock()
}

// ensureAgent creates the current network agent if none exists yet;
// must be called with s.mu held. It calls Setup with forceNew=false so
// the proxy and HFC shards, which share one registry keyed by the same
// "BT-PROXY" radio name, converge on a single agent rather than racing
// to create two.
func (s *Shard) ensureAgent(reason string) {
	if s.currentAgentID != "" {
		return
	}
	companionName := ""
	if d, ok := s.companion.Device(); ok {
		companionName = d.Name
	}
	rec := s.agents.Setup("BT-PROXY", reason, false, netagent.Capabilities{}, netagent.LinkProperties{}, 0, companionName, false)
	s.agents.SetState(rec.ID, netagent.StateConnecting)
	s.currentAgentID = rec.ID
}

func (s *Shard) agentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAgentID
}

// SetScore updates the advertised network score on the current agent,
// if one exists, without affecting the shard's connection state.
func (s *Shard) SetScore(score int) {
	id := s.agentID()
	if id == "" {
		return
	}
	s.agents.SetScore(id, score)
}

// publish notifies the network agent and the diagnostic/telemetry bus
// of a shard state transition. Per edge case (e), a disconnect may be
// published more than once; downstream listeners are expected to
// deduplicate on (agent id, state).
func (s *Shard) publish(ns netagent.ConnState) {
	s.mu.Lock()
	closed := s.closed
	agentID := s.currentAgentID
	state := s.state
	s.mu.Unlock()

	if closed {
		return
	}

	if agentID != "" {
		s.agents.SetState(agentID, ns)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "proxy.state", Payload: state})
	}
}
