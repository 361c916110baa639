package mediator

import (
	"sync"
	"time"

	"github.com/wearos/connsupervisor/pkg/radio"
)

// BTInputs is the snapshot of signals the Bluetooth decision rule
// reads. It is recomputed and resubmitted to the worker on every
// relevant input change.
type BTInputs struct {
	AdapterOn    bool
	ActivityMode bool
	OffBody      bool
	Charging     bool
	TimeOnlyMode bool
}

// DecideBT applies the fixed priority order from the Bluetooth
// decision rule table: activity mode, then off-body-while-not-
// charging, then time-only mode, else on.
func DecideBT(in BTInputs) radio.Decision {
	switch {
	case in.ActivityMode:
		return radio.Decision{Radio: radio.BT, Enable: false, Reason: radio.ReasonOffActivityMode}
	case in.OffBody && !in.Charging:
		return radio.Decision{Radio: radio.BT, Enable: false, Reason: radio.ReasonOffOffBody}
	case in.TimeOnlyMode:
		return radio.Decision{Radio: radio.BT, Enable: false, Reason: radio.ReasonOffTimeOnlyMode}
	default:
		return radio.Decision{Radio: radio.BT, Enable: true, Reason: radio.ReasonOnAuto}
	}
}

// ProxyScore selects the proxy shard's score for the current charging state.
func ProxyScore(charging bool, onChargerScore, classicScore int) int {
	if charging {
		return onChargerScore
	}
	return classicScore
}

// ShardController is the narrow surface the BT mediator drives the
// Companion Proxy Shard and HFC shard through, kept separate from
// pkg/proxyshard so this package does not need to know the shard's
// internal state machine.
type ShardController interface {
	StartReq(reason string)
	StopReq()
}

// BTMediator owns Bluetooth radio power and the lifecycle of the
// proxy and HFC shards.
type BTMediator struct {
	worker *Worker

	proxy ShardController
	hfc   ShardController

	onChargerScore int
	classicScore   int
	bootTimer      time.Duration

	mu             sync.Mutex
	inputs         BTInputs
	bootLatchDone  bool
	cancelTimer    *time.Timer
	companionKnown bool
}

// NewBTMediator creates a mediator driving worker and the given shards.
func NewBTMediator(worker *Worker, proxy, hfc ShardController, onChargerScore, classicScore int, cancelOnBootDelay time.Duration) *BTMediator {
	return &BTMediator{
		worker:         worker,
		proxy:          proxy,
		hfc:            hfc,
		onChargerScore: onChargerScore,
		classicScore:   classicScore,
		bootTimer:      cancelOnBootDelay,
	}
}

func (m *BTMediator) recompute() {
	m.mu.Lock()
	in := m.inputs
	m.mu.Unlock()
	m.worker.Submit(DecideBT(in))
}

// SetAdapterOn handles an adapter ON/OFF broadcast. On the first
// enable after boot with a known companion, it starts both shards and
// arms the cancel-connect-on-boot timer; subsequent enables only
// re-arm the HFC shard. On disable, both shards are stopped.
func (m *BTMediator) SetAdapterOn(on bool, companionKnown bool) {
	m.mu.Lock()
	m.inputs.AdapterOn = on
	m.companionKnown = companionKnown
	firstBoot := on && !m.bootLatchDone
	if on {
		m.bootLatchDone = true
	}
	m.mu.Unlock()

	m.recompute()

	if !on {
		m.proxy.StopReq()
		m.hfc.StopReq()
		return
	}

	if !companionKnown {
		return
	}

	if firstBoot {
		m.proxy.StartReq("First Boot")
		m.hfc.StartReq("First Boot")
		m.armCancelOnBootTimer()
		return
	}
	m.hfc.StartReq("Adapter On")
}

func (m *BTMediator) armCancelOnBootTimer() {
	m.mu.Lock()
	if m.cancelTimer != nil {
		m.cancelTimer.Stop()
	}
	m.cancelTimer = time.AfterFunc(m.bootTimer, func() {
		m.proxy.StopReq()
	})
	m.mu.Unlock()
}

// OnProxyConnected cancels the pending cancel-on-boot timer, if any.
func (m *BTMediator) OnProxyConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelTimer != nil {
		m.cancelTimer.Stop()
		m.cancelTimer = nil
	}
}

// OnCompanionACLConnect starts the proxy shard if it is not already
// connected; per spec, only the tracked companion's ACL events reach here.
func (m *BTMediator) OnCompanionACLConnect(proxyConnected bool) {
	if !proxyConnected {
		m.proxy.StartReq("Companion Connected")
	}
}

// OnCompanionACLDisconnect stops the proxy shard.
func (m *BTMediator) OnCompanionACLDisconnect() {
	m.proxy.StopReq()
}

// SetActivityMode updates the activity-mode input and recomputes.
func (m *BTMediator) SetActivityMode(enabled bool) {
	m.mu.Lock()
	m.inputs.ActivityMode = enabled
	m.mu.Unlock()
	m.recompute()
}

// SetOffBody updates the effective off-body input and recomputes.
func (m *BTMediator) SetOffBody(offBody bool) {
	m.mu.Lock()
	m.inputs.OffBody = offBody
	m.mu.Unlock()
	m.recompute()
}

// SetTimeOnlyMode updates the time-only-mode input and recomputes.
func (m *BTMediator) SetTimeOnlyMode(enabled bool) {
	m.mu.Lock()
	m.inputs.TimeOnlyMode = enabled
	m.mu.Unlock()
	m.recompute()
}

// SetCharging updates the charging input, recomputes the radio
// decision, and re-scores the proxy shard without tearing it down.
func (m *BTMediator) SetCharging(charging bool, rescore func(score int)) {
	m.mu.Lock()
	m.inputs.Charging = charging
	m.mu.Unlock()
	m.recompute()
	if rescore != nil {
		rescore(ProxyScore(charging, m.onChargerScore, m.classicScore))
	}
}
