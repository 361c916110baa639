// Package metrics exposes Prometheus instrumentation for the connectivity
// supervisor: radio decisions, proxy shard state, and debounce activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RadioDecisionCount counts every radio power decision issued, by radio and reason.
	RadioDecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connsupervisor_radio_decisions_total",
		Help: "Total number of radio power decisions issued by mediators",
	}, []string{"radio", "reason", "enable"})

	// RadioPowerState reports the last-applied power state per radio (1=on, 0=off).
	RadioPowerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connsupervisor_radio_power_state",
		Help: "Current applied radio power state (1=on, 0=off)",
	}, []string{"radio"})

	// ProxyShardState reports the current ProxyState as a gauge set to 1 for the active state.
	ProxyShardState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connsupervisor_proxy_shard_state",
		Help: "Current companion proxy shard state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	// ProxyReconnectCount counts proxy shard reconnect attempts.
	ProxyReconnectCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connsupervisor_proxy_reconnects_total",
		Help: "Total number of companion proxy reconnect attempts",
	})

	// DebounceFired counts debounce timers that fired (as opposed to being canceled).
	DebounceFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connsupervisor_debounce_fired_total",
		Help: "Total number of debounce timers that fired",
	}, []string{"signal"})

	// DebounceCanceled counts debounce timers canceled before firing.
	DebounceCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connsupervisor_debounce_canceled_total",
		Help: "Total number of debounce timers canceled before firing",
	}, []string{"signal"})

	// EventQueueDepth reports the controller's inbound event channel depth.
	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connsupervisor_controller_queue_depth",
		Help: "Number of events currently buffered in the controller's inbox",
	})

	// NetworkAgentCount reports the number of live network agent records.
	NetworkAgentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connsupervisor_network_agents",
		Help: "Current number of tracked network agent records",
	})
)

// RecordRadioDecision increments the decision counter and sets the power gauge.
func RecordRadioDecision(radio, reason string, enable bool) {
	enableLabel := "false"
	if enable {
		enableLabel = "true"
	}
	RadioDecisionCount.WithLabelValues(radio, reason, enableLabel).Inc()

	v := 0.0
	if enable {
		v = 1.0
	}
	RadioPowerState.WithLabelValues(radio).Set(v)
}
