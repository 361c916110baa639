// Package radio defines the shared radio-decision data model used by
// every per-radio mediator: the Radio and Reason enums, the
// RadioDecision value, and the bounded, duplicate-suppressing history
// ring each mediator keeps.
package radio

import (
	"sync"
	"time"
)

// Kind identifies which radio a decision concerns.
type Kind string

const (
	BT   Kind = "BT"
	WIFI Kind = "WIFI"
	CELL Kind = "CELL"
)

// Reason enumerates every decision reason named in the specification.
type Reason string

const (
	ReasonOffActivityMode     Reason = "OFF_ACTIVITY_MODE"
	ReasonOffOffBody          Reason = "OFF_OFF_BODY"
	ReasonOffTimeOnlyMode     Reason = "OFF_TIME_ONLY_MODE"
	ReasonOnAuto              Reason = "ON_AUTO"
	ReasonOnChargerScore      Reason = "ON_CHARGER"
	ReasonClassicScore        Reason = "CLASSIC"
	ReasonOnPhoneCall         Reason = "ON_PHONE_CALL"
	ReasonOffCellUserSetting  Reason = "OFF_CELL_USER_SETTING"
	ReasonOffSIMAbsent        Reason = "OFF_SIM_ABSENT"
	ReasonOffPowerSave        Reason = "OFF_POWER_SAVE"
	ReasonOnNetworkRequest    Reason = "ON_NETWORK_REQUEST"
	ReasonOnProxyDisconnected Reason = "ON_PROXY_DISCONNECTED"
	ReasonOffNoSignal         Reason = "OFF_NO_SIGNAL"
	ReasonOffUnstableSignal   Reason = "OFF_UNSTABLE_SIGNAL"
	ReasonOffProxyConnected   Reason = "OFF_PROXY_CONNECTED"
	ReasonOnDefault             Reason = "ON_DEFAULT"
	ReasonWarnCompanionUnpaired Reason = "WARN_COMPANION_UNPAIRED"
	ReasonWarnAdapterOff        Reason = "WARN_ADAPTER_OFF"
)

// Decision is a single radio power decision.
type Decision struct {
	Radio  Kind
	Enable bool
	Reason Reason
}

// historyCapacity is the fixed ring size mandated by the specification.
const historyCapacity = 30

// HistoryEntry is the EventHistoryEntry the specification names: a
// recorded decision plus the Unix-millisecond timestamp of its most
// recent occurrence and the number of consecutive times it has fired.
// Count and TimestampMs only advance on a collapse; the entry's
// position in the ring is set once, at first occurrence.
type HistoryEntry struct {
	Decision
	Count       int
	TimestampMs int64
}

// History is a bounded ring of decisions with adjacent-duplicate
// suppression: a decision whose radio and reason match the most
// recently recorded decision's is collapsed into that entry, bumping
// its count and timestamp, rather than appended as a new entry.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// NewHistory creates an empty decision history.
func NewHistory() *History {
	return &History{entries: make([]HistoryEntry, 0, historyCapacity)}
}

// Record appends a decision, collapsing it into the previous entry if
// the radio and reason are unchanged, and evicting the oldest entry once the ring
// is full.
func (h *History) Record(d Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UnixMilli()

	if n := len(h.entries); n > 0 && h.entries[n-1].Reason == d.Reason && h.entries[n-1].Radio == d.Radio {
		h.entries[n-1].Decision = d
		h.entries[n-1].Count++
		h.entries[n-1].TimestampMs = now
		return
	}

	if len(h.entries) >= historyCapacity {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, HistoryEntry{Decision: d, Count: 1, TimestampMs: now})
}

// Snapshot returns a copy of the current history, oldest first.
func (h *History) Snapshot() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Last returns the most recently recorded entry and whether one exists.
func (h *History) Last() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}
