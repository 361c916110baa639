package mediator

import (
	"sync"

	"github.com/wearos/connsupervisor/pkg/radio"
)

// Signal is the cellular signal quality the signal detector reports.
type Signal int

const (
	SignalGood Signal = iota
	SignalNoSignal
	SignalUnstable
)

// CellInputs is the snapshot of signals the cellular decision rule
// reads.
type CellInputs struct {
	InTelephonyCall      bool
	ActivityMode         bool
	OffBody              bool
	Charging             bool
	CellUserSettingOff   bool
	SIMAbsent            bool
	ShouldOffInPowerSave bool
	PowerSave            bool
	HighBwReq            int
	CellReq              int
	ProxyConnected       bool
	SignalDetectorActive bool
	Signal               Signal
	CellAuto             bool
}

// DecideCellular applies the twelve-rule cellular priority order
// verbatim, including the deliberately unintuitive placement of the
// proxy-disconnected check (rule 8) ahead of the signal-quality checks
// (rules 9-10): a disconnected proxy takes cellular on regardless of
// how poor the signal currently reads, because the radio must come up
// before anything can assess whether it has a usable signal at all.
func DecideCellular(in CellInputs) radio.Decision {
	d := radio.Decision{Radio: radio.CELL}

	switch {
	case in.InTelephonyCall:
		d.Enable, d.Reason = true, radio.ReasonOnPhoneCall
	case in.ActivityMode:
		d.Enable, d.Reason = false, radio.ReasonOffActivityMode
	case in.OffBody && !in.Charging:
		d.Enable, d.Reason = false, radio.ReasonOffOffBody
	case in.CellUserSettingOff:
		d.Enable, d.Reason = false, radio.ReasonOffCellUserSetting
	case in.SIMAbsent:
		d.Enable, d.Reason = false, radio.ReasonOffSIMAbsent
	case in.ShouldOffInPowerSave && in.PowerSave:
		d.Enable, d.Reason = false, radio.ReasonOffPowerSave
	case in.HighBwReq > 0 || in.CellReq > 0:
		d.Enable, d.Reason = true, radio.ReasonOnNetworkRequest
	case !in.ProxyConnected:
		d.Enable, d.Reason = true, radio.ReasonOnProxyDisconnected
	case in.SignalDetectorActive && in.Signal == SignalNoSignal:
		d.Enable, d.Reason = false, radio.ReasonOffNoSignal
	case in.SignalDetectorActive && in.Signal == SignalUnstable:
		d.Enable, d.Reason = false, radio.ReasonOffUnstableSignal
	case in.CellAuto:
		d.Enable, d.Reason = false, radio.ReasonOffProxyConnected
	default:
		d.Enable, d.Reason = true, radio.ReasonOnDefault
	}

	return d
}

// CellularMediator owns cellular radio power. A boot latch suppresses
// decisions until onBootCompleted fires.
type CellularMediator struct {
	worker *Worker

	mu          sync.Mutex
	inputs      CellInputs
	bootSettled bool
}

// NewCellularMediator creates a mediator driving worker.
func NewCellularMediator(worker *Worker) *CellularMediator {
	return &CellularMediator{worker: worker}
}

// OnBootCompleted releases the boot latch and evaluates the current inputs.
func (m *CellularMediator) OnBootCompleted() {
	m.mu.Lock()
	m.bootSettled = true
	m.mu.Unlock()
	m.recompute()
}

func (m *CellularMediator) recompute() {
	m.mu.Lock()
	settled := m.bootSettled
	in := m.inputs
	m.mu.Unlock()
	if !settled {
		return
	}
	m.worker.Submit(DecideCellular(in))
}

// Update replaces the full input snapshot and recomputes, useful when
// several signals change together (e.g. a controller directive
// carrying both request counts).
func (m *CellularMediator) Update(fn func(*CellInputs)) {
	m.mu.Lock()
	fn(&m.inputs)
	m.mu.Unlock()
	m.recompute()
}

// SetProxyConnected updates the proxy-connected input driving rule 8
// (ON_PROXY_DISCONNECTED) and the signal-quality rules behind it.
func (m *CellularMediator) SetProxyConnected(connected bool) {
	m.Update(func(in *CellInputs) { in.ProxyConnected = connected })
}

// SetActivityMode updates the activity-mode input and recomputes.
func (m *CellularMediator) SetActivityMode(enabled bool) {
	m.Update(func(in *CellInputs) { in.ActivityMode = enabled })
}

// SetRequestCounts updates the network-request-count inputs behind
// rule 7 (ON_NETWORK_REQUEST) and recomputes.
func (m *CellularMediator) SetRequestCounts(highBwReq, cellReq int) {
	m.Update(func(in *CellInputs) {
		in.HighBwReq = highBwReq
		in.CellReq = cellReq
	})
}
