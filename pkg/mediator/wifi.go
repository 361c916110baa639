package mediator

import "sync"

// WifiLifecycleState is the Wi-Fi/scan-only state machine state.
type WifiLifecycleState int

const (
	WifiIdle WifiLifecycleState = iota
	WifiStarted
)

func (s WifiLifecycleState) String() string {
	switch s {
	case WifiStarted:
		return "Started"
	default:
		return "Idle"
	}
}

// WifiBroadcast mirrors the WIFI_STATE values the mediator publishes.
type WifiBroadcast int

const (
	WifiEnabling WifiBroadcast = iota
	WifiEnabled
	WifiDisabling
	WifiDisabled
	WifiUnknown
)

// InterfaceFactory creates the client network interface; an empty
// name return means the platform refused the request.
type InterfaceFactory func() (name string, err error)

// WifiMediator implements the shared Start/Stop/onInterfaceUp/Down/
// Destroyed/onNativeFailure state machine both the ordinary Wi-Fi
// mediator and the scan-only mediator use. scanOnly gates the two
// behavioral differences the specification calls out: starting a
// wake-up controller on enter, and skipping hidden-network scanning.
type WifiMediator struct {
	mu            sync.Mutex
	state         WifiLifecycleState
	scanOnly      bool
	createIface   InterfaceFactory
	onBroadcast   func(WifiBroadcast)
	onWakeupStart func()
	scanResults   []string
}

// NewWifiMediator creates a mediator. Pass scanOnly=true for the
// scan-only variant.
func NewWifiMediator(scanOnly bool, createIface InterfaceFactory, onBroadcast func(WifiBroadcast), onWakeupStart func()) *WifiMediator {
	return &WifiMediator{
		scanOnly:      scanOnly,
		createIface:   createIface,
		onBroadcast:   onBroadcast,
		onWakeupStart: onWakeupStart,
	}
}

// Start attempts to create the client interface and transition to Started.
func (m *WifiMediator) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != WifiIdle {
		return
	}

	m.emit(WifiEnabling)
	name, err := m.createIface()
	if err != nil || name == "" {
		m.emit(WifiUnknown)
		return
	}

	m.state = WifiStarted
	if m.scanOnly && m.onWakeupStart != nil {
		m.onWakeupStart()
	}
	m.emit(WifiEnabled)
}

// Stop transitions Started back to Idle.
func (m *WifiMediator) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != WifiStarted {
		return
	}
	m.emit(WifiDisabling)
	m.exitLocked()
	m.emit(WifiDisabled)
}

// OnInterfaceUp confirms the interface came up while Started.
func (m *WifiMediator) OnInterfaceUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == WifiStarted {
		m.emit(WifiEnabled)
	}
}

// OnInterfaceDown reports the interface going down while Started,
// without leaving Started (the radio itself is still enabled).
func (m *WifiMediator) OnInterfaceDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == WifiStarted {
		m.emit(WifiDisabling)
	}
}

// OnInterfaceDestroyed reports unexpected interface loss and resets to Idle.
func (m *WifiMediator) OnInterfaceDestroyed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != WifiStarted {
		return
	}
	m.exitLocked()
	m.emit(WifiUnknown)
}

// OnNativeFailure reports a native-layer failure and resets to Idle.
func (m *WifiMediator) OnNativeFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != WifiStarted {
		return
	}
	m.exitLocked()
	m.emit(WifiUnknown)
}

// State returns the current lifecycle state.
func (m *WifiMediator) State() WifiLifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *WifiMediator) exitLocked() {
	m.state = WifiIdle
	m.scanResults = nil
}

func (m *WifiMediator) emit(b WifiBroadcast) {
	if m.onBroadcast != nil {
		m.onBroadcast(b)
	}
}
