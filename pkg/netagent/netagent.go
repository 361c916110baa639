// Package netagent models the per-radio network agents the proxy
// advertises to the platform's connectivity stack: a record carrying
// network info, capabilities, and link properties, plus a score the
// platform uses to prefer the wearable's own radios over the
// companion's proxied connection once it is good enough.
package netagent

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ConnState is the NetworkInfo connection state the platform observes
// for an agent.
type ConnState string

const (
	StateConnecting   ConnState = "Connecting"
	StateConnected    ConnState = "Connected"
	StateDisconnected ConnState = "Disconnected"
)

// Info describes the network an agent represents.
type Info struct {
	Radio   string // "WIFI", "CELL", or "BT-PROXY"
	Metered bool
	State   ConnState
}

// Capabilities mirrors the transport capability bits the platform
// inspects when choosing between networks (internet, validated, not
// restricted, and so on).
type Capabilities struct {
	Internet      bool
	Validated     bool
	NotRestricted bool
	NotMetered    bool
	NotSuspended  bool
}

// LinkProperties carries the addressing details the platform needs to
// route traffic onto this network.
type LinkProperties struct {
	InterfaceName string
	DNSServers    []string
	Routes        []string
}

// Record is a single network agent: one per active radio-backed
// connection, identified by a synthetic id since the underlying
// platform handle is opaque to this package.
type Record struct {
	ID           string
	Info         Info
	Capabilities Capabilities
	Link         LinkProperties
	Score        int

	// Reason is the setup trigger ("First Boot", "Companion Connected",
	// ...) recorded for the diagnostic surface; CompanionName is the
	// paired phone's display name at setup time.
	Reason        string
	CompanionName string
}

// Registry tracks the set of current agents plus the set pending
// teardown (agents the platform has been told to drop but whose
// teardown callback has not yet landed). currentByRadio marks, per
// radio, which record Setup(forceNew=false) should reuse; a forced-new
// setup replaces the marker but leaves the superseded record in
// current until OnUnwanted tears it down, so more than one record per
// radio can coexist.
type Registry struct {
	mu              sync.RWMutex
	current         map[string]*Record
	pendingTeardown map[string]struct{}
	currentByRadio  map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		current:         make(map[string]*Record),
		pendingTeardown: make(map[string]struct{}),
		currentByRadio:  make(map[string]string),
	}
}

// Setup is the Proxy Network Agent's setup operation (spec.md §4.6):
// with forceNew false, it reuses radio's current agent if one exists
// (two setup(forceNew=false) calls for the same radio yield exactly
// one agent); otherwise, or with forceNew true, it creates a brand new
// current agent for radio. A record forceNew supersedes is not
// removed — it stays in the registry, reachable via Get/List, until
// OnUnwanted tears it down.
func (r *Registry) Setup(radio, reason string, metered bool, caps Capabilities, link LinkProperties, score int, companionName string, forceNew bool) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !forceNew {
		if id, ok := r.currentByRadio[radio]; ok {
			if rec, ok := r.current[id]; ok {
				return rec
			}
		}
	}

	rec := &Record{
		ID:            uuid.NewString(),
		Info:          Info{Radio: radio, Metered: metered},
		Capabilities:  caps,
		Link:          link,
		Score:         score,
		Reason:        reason,
		CompanionName: companionName,
	}
	r.current[rec.ID] = rec
	r.currentByRadio[radio] = rec.ID
	return rec
}

// Ensure returns the existing agent for radio, creating one with
// score 0 if none exists yet. A thin convenience wrapper over Setup
// with forceNew=false and no capability/link/score/companion detail.
func (r *Registry) Ensure(radio string, metered bool) *Record {
	return r.Setup(radio, "", metered, Capabilities{}, LinkProperties{}, 0, "", false)
}

// SetCurrentInfo replaces the Info for an existing agent.
func (r *Registry) SetCurrentInfo(id string, info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.current[id]; ok {
		rec.Info = info
	}
}

// SetCapabilities replaces the Capabilities for an existing agent.
func (r *Registry) SetCapabilities(id string, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.current[id]; ok {
		rec.Capabilities = caps
	}
}

// SetLinkProperties replaces the LinkProperties for an existing agent.
func (r *Registry) SetLinkProperties(id string, link LinkProperties) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.current[id]; ok {
		rec.Link = link
	}
}

// SetMetered updates the metered bit on an agent's Info.
func (r *Registry) SetMetered(id string, metered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.current[id]; ok {
		rec.Info.Metered = metered
	}
}

// SetState updates an agent's NetworkInfo connection state. A no-op
// if the agent no longer exists, mirroring setCurrentInfo's silent
// no-op on a missing current agent.
func (r *Registry) SetState(id string, state ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.current[id]; ok {
		rec.Info.State = state
	}
}

// SetScore replaces an agent's score with the requested one, higher or
// lower than before. A no-op if the agent no longer exists.
func (r *Registry) SetScore(id string, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.current[id]
	if !ok {
		return
	}
	rec.Score = score
}

// TearDown moves an agent from current into pending teardown. It
// remains visible via Get until ConfirmTeardown is called, matching
// the async callback the real platform issues.
func (r *Registry) TearDown(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current[id]; ok {
		r.pendingTeardown[id] = struct{}{}
		r.clearCurrentMarker(id)
	}
}

// ConfirmTeardown removes an agent entirely once its teardown has
// been acknowledged.
func (r *Registry) ConfirmTeardown(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearCurrentMarker(id)
	delete(r.current, id)
	delete(r.pendingTeardown, id)
}

// OnUnwanted implements the onUnwanted teardown path named in spec.md
// §4.5/§4.6: the platform no longer wants this agent, so it is moved
// into pending teardown, stamped with a final Disconnected NetworkInfo,
// and removed — returning that final snapshot since the record itself
// is gone once OnUnwanted returns. If id was radio's current agent,
// the marker is cleared so a later Setup(forceNew=false) creates fresh
// rather than resolving to the torn-down id.
func (r *Registry) OnUnwanted(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.current[id]
	if !ok {
		return Record{}, false
	}

	r.pendingTeardown[id] = struct{}{}
	rec.Info.State = StateDisconnected
	final := *rec

	r.clearCurrentMarker(id)
	delete(r.current, id)
	delete(r.pendingTeardown, id)
	return final, true
}

// clearCurrentMarker removes id as the current agent for its radio, if
// it is one. Callers must hold r.mu.
func (r *Registry) clearCurrentMarker(id string) {
	for radio, curID := range r.currentByRadio {
		if curID == id {
			delete(r.currentByRadio, radio)
			return
		}
	}
}

// Get returns the record for id, if it still exists (current or
// pending teardown).
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.current[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// IsPendingTeardown reports whether id has been torn down but not yet confirmed.
func (r *Registry) IsPendingTeardown(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pendingTeardown[id]
	return ok
}

// List returns a snapshot of every current agent, sorted by ID for
// stable diagnostic output.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.current))
	for _, rec := range r.current {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of current agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.current)
}
