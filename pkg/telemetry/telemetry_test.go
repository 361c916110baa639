package telemetry

import (
	"testing"

	"github.com/wearos/connsupervisor/pkg/eventbus"
	"github.com/wearos/connsupervisor/pkg/radio"
)

// These tests exercise OnEvent on a Sink built without a real broker:
// with no client configured, publish is a guaranteed no-op, so they
// only assert that routing and payload construction never panic on
// the known and unknown event shapes.

func TestOnEventIgnoresUnknownEventType(t *testing.T) {
	s := &Sink{prefix: "connsupervisor"}
	s.OnEvent(eventbus.Event{Type: "something.else", Payload: 42})
}

func TestOnEventHandlesRadioDecisionWithoutPanicking(t *testing.T) {
	s := &Sink{prefix: "connsupervisor"}
	s.OnEvent(eventbus.Event{
		Type:    "radio.decision",
		Payload: radio.Decision{Radio: radio.BT, Enable: true, Reason: radio.ReasonOnAuto},
	})
}

func TestOnEventIgnoresMistypedPayload(t *testing.T) {
	s := &Sink{prefix: "connsupervisor"}
	s.OnEvent(eventbus.Event{Type: "radio.decision", Payload: "not-a-decision"})
}

func TestOnEventHandlesProxyStateWithoutPanicking(t *testing.T) {
	s := &Sink{prefix: "connsupervisor"}
	s.OnEvent(eventbus.Event{Type: "proxy.state", Payload: "Connected"})
}

func TestDefaultConfigHasNonEmptyBrokerAndClientID(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Broker == "" || cfg.ClientID == "" {
		t.Fatalf("DefaultConfig() = %+v, want non-empty Broker/ClientID", cfg)
	}
}
