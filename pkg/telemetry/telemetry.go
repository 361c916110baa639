// Package telemetry mirrors radio decisions and proxy state
// transitions to an MQTT broker for a companion-side dashboard. It is
// strictly best-effort: a broker outage never blocks or errors the
// controller thread, matching the non-goal that telemetry is
// observational only.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/wearos/connsupervisor/pkg/eventbus"
	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/radio"
)

// Config configures the MQTT sink.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       fmt.Sprintf("connsupervisor-%d", time.Now().UnixNano()),
		TopicPrefix:    "connsupervisor",
		ConnectTimeout: 10 * time.Second,
	}
}

// Sink publishes eventbus events to MQTT at QoS 0, non-retained.
// Implements eventbus.Handler.
type Sink struct {
	client mqtt.Client
	prefix string
	log    *logger.Logger
}

// NewSink builds and connects a Sink. Connection failures are logged,
// never returned: a sink that cannot reach its broker degrades to
// silently dropping every publish, per the best-effort contract.
func NewSink(cfg Config, log *logger.Logger) *Sink {
	if log == nil {
		log = logger.Global()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("telemetry: mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	go func() {
		if token.WaitTimeout(cfg.ConnectTimeout) && token.Error() != nil {
			log.Warn("telemetry: initial mqtt connect failed", "error", token.Error())
		}
	}()

	return &Sink{client: client, prefix: cfg.TopicPrefix, log: log}
}

// radioDecisionMessage is the wire payload for a radio decision event.
type radioDecisionMessage struct {
	Radio  string `json:"radio"`
	Enable bool   `json:"enable"`
	Reason string `json:"reason"`
}

// OnEvent implements eventbus.Handler, translating known event types
// into topic publishes and ignoring everything else.
func (s *Sink) OnEvent(e eventbus.Event) {
	switch e.Type {
	case "radio.decision":
		d, ok := e.Payload.(radio.Decision)
		if !ok {
			return
		}
		s.publish("radio/"+string(d.Radio), radioDecisionMessage{
			Radio:  string(d.Radio),
			Enable: d.Enable,
			Reason: string(d.Reason),
		})
	case "proxy.state":
		s.publish("proxy/state", map[string]any{"state": fmt.Sprintf("%v", e.Payload)})
	}
}

func (s *Sink) publish(topic string, payload any) {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("telemetry: failed to marshal payload", "error", err)
		return
	}
	token := s.client.Publish(s.prefix+"/"+topic, 0, false, body)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			s.log.Warn("telemetry: publish failed", "topic", topic, "error", token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (s *Sink) Close() {
	s.client.Disconnect(250)
}
