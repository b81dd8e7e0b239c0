package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session or job ids in labels; both are unbounded.
var (
	pendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "goconv",
		Name:      "pending_jobs",
		Help:      "Jobs submitted to the provider and not yet resolved.",
	})

	liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "goconv",
		Name:      "live_connections",
		Help:      "Sessions with a registered notification socket.",
	})

	duplicateConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goconv",
		Name:      "duplicate_connections_total",
		Help:      "Socket connections rejected because the session was already connected.",
	})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goconv",
		Name:      "dispatch_total",
		Help:      "Completion callbacks handled, by result.",
	}, []string{"result"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goconv",
		Name:      "notifications_sent_total",
		Help:      "Terminal notifications written to sockets, by status.",
	}, []string{"status"})

	sweptJobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goconv",
		Name:      "swept_jobs_total",
		Help:      "Pending jobs dropped after exceeding their TTL.",
	})
)

// Dispatch results used as the dispatchTotal label.
const (
	resultDelivered    = "delivered"
	resultMalformed    = "malformed"
	resultUnknownJob   = "unknown_job"
	resultNoExportTask = "no_export_task"
	resultDisconnected = "disconnected"
	resultSinkClosed   = "sink_closed"
)
