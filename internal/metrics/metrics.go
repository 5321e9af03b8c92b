package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// responseSampleCap bounds the per-server response-time samples kept for
// percentile calculation.
const responseSampleCap = 1000

// Metrics accumulates request totals, per-pool and per-server
// breakdowns, and response-time samples. All methods are safe for
// concurrent use. When constructed with a Prometheus registry the same
// observations also feed counter and histogram vectors.
type Metrics struct {
	mutex     sync.RWMutex
	startTime time.Time

	totalRequests int64
	totalSuccess  int64
	totalFailed   int64
	pools         map[string]*poolCounters

	promRequests *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
}

type poolCounters struct {
	requests int64
	success  int64
	failed   int64

	selections    map[string]int64
	responseTimes map[string][]time.Duration
}

// NewMetrics creates an empty Metrics. A non-nil registry additionally
// receives a requests counter (by pool and result) and a response-time
// histogram (by pool).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		pools:     make(map[string]*poolCounters),
	}

	if registry != nil {
		m.promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafficdist",
			Name:      "requests_total",
			Help:      "Dispatched requests by pool and result.",
		}, []string{"pool", "result"})

		m.promDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trafficdist",
			Name:      "request_duration_seconds",
			Help:      "Request durations by pool.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"})

		registry.MustRegister(m.promRequests, m.promDuration)
	}

	return m
}

func (m *Metrics) pool(name string) *poolCounters {
	pc, ok := m.pools[name]
	if !ok {
		pc = &poolCounters{
			selections:    make(map[string]int64),
			responseTimes: make(map[string][]time.Duration),
		}
		m.pools[name] = pc
	}
	return pc
}

// RecordSelection counts one server selection in a pool.
func (m *Metrics) RecordSelection(poolName, serverID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pool(poolName).selections[serverID]++
}

// RecordCompletion counts one finished dispatch with its duration.
func (m *Metrics) RecordCompletion(poolName, serverID string, duration time.Duration, success bool) {
	m.mutex.Lock()

	m.totalRequests++
	pc := m.pool(poolName)
	pc.requests++
	if success {
		m.totalSuccess++
		pc.success++
	} else {
		m.totalFailed++
		pc.failed++
	}

	samples := append(pc.responseTimes[serverID], duration)
	if len(samples) > responseSampleCap {
		samples = samples[1:]
	}
	pc.responseTimes[serverID] = samples

	m.mutex.Unlock()

	if m.promRequests != nil {
		result := "success"
		if !success {
			result = "failure"
		}
		m.promRequests.WithLabelValues(poolName, result).Inc()
		m.promDuration.WithLabelValues(poolName).Observe(duration.Seconds())
	}
}

// Uptime returns the time elapsed since construction.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return sum / time.Duration(len(samples))
}
