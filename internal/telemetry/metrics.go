package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

/*
Metrics collects the counters/histograms SPEC_FULL's supplemented
features call for: one observable per §8 testable property, so the test
suite's assertions (lease reclaims, retry-bound hits, DLQ routes,
QPS-gate waits) don't need to scrape structured logs to check pipeline
behavior.
*/
type Metrics struct {
	MessagesProcessed *prometheus.CounterVec
	Retries           *prometheus.CounterVec
	LeaseReclaims     prometheus.Counter
	DeadLettered      *prometheus.CounterVec
	GateWaitSeconds   prometheus.Histogram
	EmbedLatency      prometheus.Histogram
	IndexLatency      prometheus.Histogram
}

// NewMetrics registers every collector against reg and returns the
// handles workers use to record observations. Passing a fresh
// prometheus.NewRegistry() (rather than the global default registerer)
// keeps tests from colliding over duplicate registrations.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcore_messages_processed_total",
			Help: "Messages processed per pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcore_retries_total",
			Help: "Retry attempts scheduled per pipeline stage.",
		}, []string{"stage"}),
		LeaseReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawlcore_lease_reclaims_total",
			Help: "Lost-lease reclaims observed by crawler supervisors.",
		}),
		DeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcore_dead_lettered_total",
			Help: "Messages routed to a dead-letter queue, by reason.",
		}, []string{"stage", "reason"}),
		GateWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawlcore_gate_wait_seconds",
			Help:    "Time a crawl message spent deferred by the rate/politeness gate.",
			Buckets: prometheus.DefBuckets,
		}),
		EmbedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawlcore_embed_latency_seconds",
			Help:    "Embedding call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		IndexLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawlcore_index_latency_seconds",
			Help:    "Search index upsert latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.MessagesProcessed,
		m.Retries,
		m.LeaseReclaims,
		m.DeadLettered,
		m.GateWaitSeconds,
		m.EmbedLatency,
		m.IndexLatency,
	)
	return m
}

// ObserveSince records the elapsed time since start on h, the idiomatic
// one-liner for defer-timed histogram observations.
func ObserveSince(h prometheus.Histogram, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
