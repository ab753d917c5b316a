package adminkit

import (
	"sync/atomic"
	"time"
)

// MetricID names one counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts accepted logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected or failed logins.
	MetricLoginFailure
	// MetricLogout counts operator logouts.
	MetricLogout
	// MetricRequestSuccess counts 2xx responses.
	MetricRequestSuccess
	// MetricUnauthorizedResponse counts responses classified unauthorized.
	MetricUnauthorizedResponse
	// MetricForbiddenResponse counts 403 responses.
	MetricForbiddenResponse
	// MetricServerErrorResponse counts 5xx responses.
	MetricServerErrorResponse
	// MetricClientErrorResponse counts other 4xx responses.
	MetricClientErrorResponse
	// MetricNetworkError counts calls that got no response.
	MetricNetworkError
	// MetricSessionInvalidated counts completed invalidation runs.
	MetricSessionInvalidated
	// MetricInvalidationHardRedirect counts runs that fell back to a hard redirect.
	MetricInvalidationHardRedirect
	// MetricReconcileStaleSession counts sessions logged out for lack of a token.
	MetricReconcileStaleSession
	// MetricReconcileMissingUser counts sessions logged out for lack of a user.
	MetricReconcileMissingUser
	// MetricReconcileOrphanToken counts stored tokens cleared without a session.
	MetricReconcileOrphanToken
	// MetricPersistWrite counts successful slice writes.
	MetricPersistWrite
	// MetricPersistWriteFailure counts failed slice writes.
	MetricPersistWriteFailure
	// MetricPersistDiscarded counts stored blobs dropped on load.
	MetricPersistDiscarded
	// MetricPersistPurge counts purges.
	MetricPersistPurge
	// MetricRouteRedirect counts guard redirects.
	MetricRouteRedirect
	// MetricRequestLatency is the request latency histogram.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the request latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
