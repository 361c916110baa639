// Package offbody computes the "effective off-body" signal the
// controller debounces before instructing mediators to shed radios:
// the device is effectively off-body only when it is physically off
// the wrist, the off-body-radios-off feature is enabled, and the
// screen is off. Any one of those being false means radios stay on.
package offbody

import "sync"

// Tracker fuses the three inputs into the derived signal.
type Tracker struct {
	mu sync.RWMutex

	rawOffBody     bool
	featureEnabled bool
	screenOff      bool
}

// NewTracker creates a tracker with the feature enabled per cfg and
// the device assumed on-body with the screen on, matching a fresh boot.
func NewTracker(featureEnabled bool) *Tracker {
	return &Tracker{featureEnabled: featureEnabled}
}

// SetRawOffBody records the latest on-body sensor reading.
func (t *Tracker) SetRawOffBody(offBody bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rawOffBody = offBody
}

// SetFeatureEnabled updates the off-body-radios-off feature toggle.
func (t *Tracker) SetFeatureEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.featureEnabled = enabled
}

// SetScreenOff records the latest screen state.
func (t *Tracker) SetScreenOff(off bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screenOff = off
}

// Effective reports the fused off-body signal the controller acts on.
func (t *Tracker) Effective() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rawOffBody && t.featureEnabled && t.screenOff
}

// Raw reports the unfused on-body sensor reading, exposed for
// diagnostics.
func (t *Tracker) Raw() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rawOffBody
}
