// Package companion tracks the identity and link state of the phone
// paired with the wearable: the companion device record, pairing
// lifecycle, and ACL/bond-state bookkeeping the Bluetooth mediator
// consults before starting the proxy shard.
package companion

import (
	"sync"

	"github.com/google/uuid"
)

// LinkKind is the Bluetooth transport the companion is reachable over.
type LinkKind int

const (
	LinkUnknown LinkKind = iota
	LinkBLE
	LinkClassic
)

// BondState mirrors the platform's Bluetooth bond state machine.
type BondState int

const (
	BondNone BondState = iota
	BondBonding
	BondBonded
)

// Device is the immutable identity of the paired companion phone.
// Created at pairing, destroyed at unpair.
type Device struct {
	SessionID string // synthetic id for logs/diagnostics, not a BT identifier
	Address   string
	Name      string
	LinkKind  LinkKind
	BondState BondState
}

// Tracker owns the single companion device the wearable is paired
// with, plus the two signals the spec requires be modeled
// independently: whether a companion is known (paired) and whether its
// ACL link is currently connected. Conflating the two was flagged in
// spec.md §9 as a possible bug in the original platform; this tracker
// keeps them as separate booleans by construction.
type Tracker struct {
	mu sync.RWMutex

	device       *Device
	aclConnected bool
}

// NewTracker creates an unpaired tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Pair records a newly paired companion. ACL connectivity is not
// implied by pairing and starts false.
func (t *Tracker) Pair(address, name string, link LinkKind) Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := Device{
		SessionID: uuid.NewString(),
		Address:   address,
		Name:      name,
		LinkKind:  link,
		BondState: BondBonded,
	}
	t.device = &d
	t.aclConnected = false
	return d
}

// Unpair clears the companion device and its ACL state.
func (t *Tracker) Unpair() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.device = nil
	t.aclConnected = false
}

// Paired reports whether a companion is currently known.
func (t *Tracker) Paired() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.device != nil
}

// Device returns the current companion, if any.
func (t *Tracker) Device() (Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.device == nil {
		return Device{}, false
	}
	return *t.device, true
}

// IsCompanion reports whether address identifies the tracked companion.
func (t *Tracker) IsCompanion(address string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.device != nil && t.device.Address == address
}

// SetACLConnected records the companion's ACL link state. The caller
// is expected to have already checked IsCompanion; SetACLConnected is
// a distinct signal from pairing and must never be called implicitly
// as a side effect of recognizing a companion (spec.md §9 open
// question 2).
func (t *Tracker) SetACLConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aclConnected = connected
}

// ACLConnected reports the last recorded ACL link state.
func (t *Tracker) ACLConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.aclConnected
}

// SetBondState updates the companion's bond state observationally; it
// does not itself gate any mediator decision.
func (t *Tracker) SetBondState(state BondState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.device != nil {
		t.device.BondState = state
	}
}
