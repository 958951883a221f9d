package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the gateway's platform-level metrics.
type Metrics struct {
	PacketsReceived *prometheus.CounterVec
	PacketsDropped  *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec

	RequestsDispatched prometheus.Counter
	RepliesReceived    *prometheus.CounterVec
	RequestsCompleted  *prometheus.CounterVec

	EventsBroadcast prometheus.Counter
	SendErrors      *prometheus.CounterVec

	DispatchDuration prometheus.Histogram
	HealthStatus     *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all core gateway metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "reactor",
				Name:      "packets_received_total",
				Help:      "Total UDP datagrams received, labeled by origin tag",
			},
			[]string{"origin"},
		),

		PacketsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "queue",
				Name:      "packets_dropped_total",
				Help:      "Total packets evicted by queue overflow, labeled by queue",
			},
			[]string{"queue"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gatekit",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current queue occupancy, labeled by queue",
			},
			[]string{"queue"},
		),

		RequestsDispatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "dispatcher",
				Name:      "requests_dispatched_total",
				Help:      "Total validated commands fanned out to one or more MSC workers",
			},
		),

		RepliesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "dispatcher",
				Name:      "agent_replies_total",
				Help:      "Total agent replies received, labeled by agent id",
			},
			[]string{"agent_id"},
		),

		RequestsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "dispatcher",
				Name:      "requests_completed_total",
				Help:      "Total final responses emitted, labeled by outcome",
			},
			[]string{"outcome"}, // completed, invalid_target, no_targets, timeout
		),

		EventsBroadcast: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "broadcaster",
				Name:      "events_total",
				Help:      "Total unsolicited MSC events forwarded to the broadcast sink",
			},
		),

		SendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatekit",
				Subsystem: "udp",
				Name:      "send_errors_total",
				Help:      "Total UDP send failures, labeled by component",
			},
			[]string{"component"},
		),

		DispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gatekit",
				Subsystem: "dispatcher",
				Name:      "request_duration_seconds",
				Help:      "Time from validated command to final response",
				Buckets:   prometheus.DefBuckets,
			},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gatekit",
				Subsystem: "health",
				Name:      "status",
				Help:      "Component health status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordPacketReceived increments the received-packet counter for an origin tag.
func (m *Metrics) RecordPacketReceived(origin string) {
	m.PacketsReceived.WithLabelValues(origin).Inc()
}

// RecordPacketDropped increments the dropped-packet counter for a queue.
func (m *Metrics) RecordPacketDropped(queue string) {
	m.PacketsDropped.WithLabelValues(queue).Inc()
}

// SetQueueDepth records the current depth of a queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordDispatched increments the dispatched-request counter.
func (m *Metrics) RecordDispatched() {
	m.RequestsDispatched.Inc()
}

// RecordAgentReply increments the per-agent reply counter.
func (m *Metrics) RecordAgentReply(agentID string) {
	m.RepliesReceived.WithLabelValues(agentID).Inc()
}

// RecordCompleted increments the completed-request counter for an outcome.
func (m *Metrics) RecordCompleted(outcome string) {
	m.RequestsCompleted.WithLabelValues(outcome).Inc()
}

// RecordEventBroadcast increments the broadcast-event counter.
func (m *Metrics) RecordEventBroadcast() {
	m.EventsBroadcast.Inc()
}

// RecordSendError increments the send-error counter for a component.
func (m *Metrics) RecordSendError(component string) {
	m.SendErrors.WithLabelValues(component).Inc()
}

// ObserveDispatchDuration records the elapsed time for a completed request.
func (m *Metrics) ObserveDispatchDuration(d time.Duration) {
	m.DispatchDuration.Observe(d.Seconds())
}

// RecordHealth updates the health gauge for a component (0, 1, or 2).
func (m *Metrics) RecordHealth(component string, value float64) {
	m.HealthStatus.WithLabelValues(component).Set(value)
}
