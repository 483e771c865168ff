package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics register themselves on the default registry through promauto.

var (
	// CommandsTotal counts executed commands, labeled by command name and outcome ("ok" or "err").
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuanlite_commands_total",
			Help: "Total number of commands processed",
		},
		[]string{"command", "status"},
	)

	// ConnectedClients tracks open client connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuanlite_connected_clients",
			Help: "Number of client connections currently open",
		},
	)

	// ExpiredKeys counts keys evicted because their deadline passed, lazily or by the sweeper.
	ExpiredKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuanlite_expired_keys_total",
			Help: "Total number of keys evicted after expiring",
		},
	)

	// ProtocolErrors counts connections closed for malformed frames.
	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuanlite_protocol_errors_total",
			Help: "Total number of connections closed on a protocol error",
		},
	)

	// SnapshotDuration measures SAVE from copy to rename.
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tuanlite_snapshot_duration_seconds",
			Help:    "Duration of snapshot saves in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
)
