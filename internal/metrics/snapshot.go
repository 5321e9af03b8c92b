package metrics

import (
	"sort"
	"time"
)

// Snapshot is a read-only copy of the accumulated metrics.
type Snapshot struct {
	TotalRequests int64                  `json:"total_requests"`
	TotalSuccess  int64                  `json:"total_success"`
	TotalFailed   int64                  `json:"total_failed"`
	SuccessRate   float64                `json:"success_rate"`
	Uptime        time.Duration          `json:"uptime"`
	Pools         map[string]PoolMetrics `json:"pools"`
}

// PoolMetrics is one pool's share of the snapshot.
type PoolMetrics struct {
	Requests    int64                    `json:"requests"`
	Success     int64                    `json:"success"`
	Failed      int64                    `json:"failed"`
	SuccessRate float64                  `json:"success_rate"`
	Servers     map[string]ServerMetrics `json:"servers"`
}

// ServerMetrics summarizes one server's selections and response times.
type ServerMetrics struct {
	Selections  int64         `json:"selections"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
}

// Snapshot copies the current totals and breakdowns.
func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.totalRequests,
		TotalSuccess:  m.totalSuccess,
		TotalFailed:   m.totalFailed,
		SuccessRate:   rate(m.totalSuccess, m.totalRequests),
		Uptime:        time.Since(m.startTime),
		Pools:         make(map[string]PoolMetrics, len(m.pools)),
	}

	for name, pc := range m.pools {
		pm := PoolMetrics{
			Requests:    pc.requests,
			Success:     pc.success,
			Failed:      pc.failed,
			SuccessRate: rate(pc.success, pc.requests),
			Servers:     make(map[string]ServerMetrics, len(pc.selections)),
		}

		for serverID, selections := range pc.selections {
			samples := pc.responseTimes[serverID]
			sorted := append([]time.Duration(nil), samples...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			pm.Servers[serverID] = ServerMetrics{
				Selections:  selections,
				AvgResponse: mean(samples),
				P50Response: percentile(sorted, 0.50),
				P95Response: percentile(sorted, 0.95),
				P99Response: percentile(sorted, 0.99),
			}
		}

		snap.Pools[name] = pm
	}

	return snap
}

func rate(success, total int64) float64 {
	if total == 0 {
		return 1
	}
	return float64(success) / float64(total)
}
