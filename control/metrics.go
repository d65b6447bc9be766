// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for connection lifecycle and pipe flow control, exposed
// as real prometheus collectors rather than a generic map.

package control

import "github.com/prometheus/client_golang/prometheus"

// MetricsRegistry holds the zlink-wide prometheus collectors and the
// registry they're registered against.
type MetricsRegistry struct {
	reg *prometheus.Registry

	ConnectionsTotal     *prometheus.CounterVec
	HandshakeErrors      *prometheus.CounterVec
	ReconnectsTotal      prometheus.Counter
	MessagesSent         prometheus.Counter
	MessagesReceived     prometheus.Counter
	HeartbeatTimeouts    prometheus.Counter
	PipeHighWaterMarkHit *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge
	ReconnectBackoff     prometheus.Histogram
}

// NewMetricsRegistry builds and registers the standard zlink collector set.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	mr := &MetricsRegistry{
		reg: reg,
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "connections_total",
			Help:      "Connections established, by role (active/passive).",
		}, []string{"role"}),
		HandshakeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "handshake_errors_total",
			Help:      "ZMP handshake failures, by error class.",
		}, []string{"class"}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "reconnects_total",
			Help:      "Active-session reconnect attempts started.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "messages_sent_total",
			Help:      "Messages pulled from a pipe and written to the wire.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "messages_received_total",
			Help:      "Messages decoded off the wire and pushed to a pipe.",
		}),
		HeartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "heartbeat_timeouts_total",
			Help:      "Engines that failed waiting on a peer PING/PONG.",
		}),
		PipeHighWaterMarkHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlink",
			Name:      "pipe_hwm_hit_total",
			Help:      "Times a pipe write was rejected at its high water mark, by direction.",
		}, []string{"direction"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zlink",
			Name:      "active_sessions",
			Help:      "Sessions currently handshaked.",
		}),
		ReconnectBackoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zlink",
			Name:      "reconnect_backoff_seconds",
			Help:      "Delay chosen before each reconnect attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(
		mr.ConnectionsTotal, mr.HandshakeErrors, mr.ReconnectsTotal,
		mr.MessagesSent, mr.MessagesReceived, mr.HeartbeatTimeouts,
		mr.PipeHighWaterMarkHit, mr.ActiveSessions, mr.ReconnectBackoff,
	)
	return mr
}

// Registry returns the underlying prometheus.Registry, for wiring into an
// HTTP /metrics handler via promhttp.HandlerFor.
func (mr *MetricsRegistry) Registry() *prometheus.Registry { return mr.reg }
