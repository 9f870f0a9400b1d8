// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Read-path metrics
	EventsDecoded    *prometheus.CounterVec
	DecodeDrops      *prometheus.CounterVec
	NotificationsIn  prometheus.Counter
	FailedTxSkipped  prometheus.Counter
	HighestSlotSeen  prometheus.Gauge
	WSMessageLatency prometheus.Histogram

	// Write-path metrics
	Submissions         *prometheus.CounterVec
	Rebroadcasts        prometheus.Counter
	ConfirmationLatency prometheus.Histogram

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Journal metrics
	JournalQueryDuration *prometheus.HistogramVec
	JournalQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curvebot"
	}

	return &Metrics{
		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_total",
			Help:      "Total number of events decoded by kind",
		}, []string{"kind"}),
		DecodeDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "drops_total",
			Help:      "Total number of payloads dropped by reason",
		}, []string{"reason"}),
		NotificationsIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "notifications_total",
			Help:      "Total number of log notifications received",
		}),
		FailedTxSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "failed_tx_skipped_total",
			Help:      "Total number of notifications skipped because the transaction failed",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "highest_slot_seen",
			Help:      "Highest slot number seen on the subscription",
		}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "message_latency_seconds",
			Help:      "Notification processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "attempts_total",
			Help:      "Total number of transaction submissions by outcome",
		}, []string{"outcome"}),
		Rebroadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "rebroadcasts_total",
			Help:      "Total number of rebroadcast sends",
		}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from first send to terminal outcome in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of RPC call errors by method",
		}, []string{"method"}),

		JournalQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "query_duration_seconds",
			Help:      "Journal query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		JournalQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "query_errors_total",
			Help:      "Total number of journal query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventDecoded increments the decoded-event counter for a kind.
func RecordEventDecoded(kind string) {
	DefaultMetrics.EventsDecoded.WithLabelValues(kind).Inc()
}

// RecordDecodeDrop increments the dropped-payload counter for a reason.
func RecordDecodeDrop(reason string) {
	DefaultMetrics.DecodeDrops.WithLabelValues(reason).Inc()
}

// RecordNotification counts one incoming log notification and updates the
// slot high-water mark.
func RecordNotification(slot int64) {
	DefaultMetrics.NotificationsIn.Inc()
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordFailedTxSkipped counts a notification skipped for a failed transaction.
func RecordFailedTxSkipped() {
	DefaultMetrics.FailedTxSkipped.Inc()
}

// RecordSubmission records a submission outcome and its latency.
func RecordSubmission(outcome string, seconds float64) {
	DefaultMetrics.Submissions.WithLabelValues(outcome).Inc()
	DefaultMetrics.ConfirmationLatency.Observe(seconds)
}

// RecordRebroadcast counts one rebroadcast send.
func RecordRebroadcast() {
	DefaultMetrics.Rebroadcasts.Inc()
}

// RecordRPCCall records RPC call latency and, when err is non-nil, an error.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordJournalQuery records journal query metrics.
func RecordJournalQuery(operation string, seconds float64, err error) {
	DefaultMetrics.JournalQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.JournalQueryErrors.WithLabelValues(operation).Inc()
	}
}
