// Package promrecorder provides a refpool.MetricsRecorder backed by
// Prometheus. Latencies are observed into histograms and discrete events
// into counters, all registered on a caller-supplied Registerer so several
// pools can coexist under distinct namespaces.
package promrecorder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/giantswarm/refpool"
)

// outcome label values for the allocation histogram.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Recorder implements refpool.MetricsRecorder on Prometheus collectors.
// All methods are safe for concurrent use; the underlying collectors
// synchronize internally.
type Recorder struct {
	allocation *prometheus.HistogramVec
	reset      prometheus.Histogram
	destroy    prometheus.Histogram
	lifetime   prometheus.Histogram
	idleTime   prometheus.Histogram
	recycled   prometheus.Counter
}

var _ refpool.MetricsRecorder = (*Recorder)(nil)

// New registers the pool collectors on reg under the given namespace and
// returns the recorder. The namespace keeps multiple pools apart; an empty
// namespace is valid for a single pool per registry.
//
// Registration failures (duplicate namespace on the same registry) panic,
// per the promauto contract: colliding collectors are a programmer error.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		allocation: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "allocation_duration_seconds",
			Help:      "Time spent in the allocator, partitioned by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		reset: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "reset_duration_seconds",
			Help:      "Time spent in the release handler.",
			Buckets:   prometheus.DefBuckets,
		}),
		destroy: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "destroy_duration_seconds",
			Help:      "Time spent tearing a resource down.",
			Buckets:   prometheus.DefBuckets,
		}),
		lifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "resource_lifetime_seconds",
			Help:      "Time between a resource's allocation and destruction.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		idleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "resource_idle_seconds",
			Help:      "Time a resource sat idle before being handed out.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}),
		recycled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "recycled_total",
			Help:      "Number of releases that kept the resource for reuse.",
		}),
	}
}

// AllocationSucceeded implements refpool.MetricsRecorder.
func (r *Recorder) AllocationSucceeded(latency time.Duration) {
	r.allocation.WithLabelValues(outcomeSuccess).Observe(latency.Seconds())
}

// AllocationFailed implements refpool.MetricsRecorder.
func (r *Recorder) AllocationFailed(latency time.Duration) {
	r.allocation.WithLabelValues(outcomeError).Observe(latency.Seconds())
}

// ResourceReset implements refpool.MetricsRecorder.
func (r *Recorder) ResourceReset(latency time.Duration) {
	r.reset.Observe(latency.Seconds())
}

// ResourceDestroyed implements refpool.MetricsRecorder.
func (r *Recorder) ResourceDestroyed(latency time.Duration) {
	r.destroy.Observe(latency.Seconds())
}

// ResourceRecycled implements refpool.MetricsRecorder.
func (r *Recorder) ResourceRecycled() {
	r.recycled.Inc()
}

// LifetimeRecorded implements refpool.MetricsRecorder.
func (r *Recorder) LifetimeRecorded(lifetime time.Duration) {
	r.lifetime.Observe(lifetime.Seconds())
}

// IdleTimeRecorded implements refpool.MetricsRecorder.
func (r *Recorder) IdleTimeRecorded(idle time.Duration) {
	r.idleTime.Observe(idle.Seconds())
}
