package pool

import (
	"time"

	"github.com/trafficdist/engine/internal/strategy"
)

// Status is a point-in-time snapshot of a pool and its servers.
type Status struct {
	Name           string             `json:"name"`
	Algorithm      strategy.Algorithm `json:"algorithm"`
	StickySessions bool               `json:"sticky_sessions"`
	ActiveSessions int                `json:"active_sessions"`
	FailoverPools  []string           `json:"failover_pools,omitempty"`
	Servers        []ServerStatus     `json:"servers"`
}

// ServerStatus is a point-in-time snapshot of one server's statistics.
type ServerStatus struct {
	ID                 string        `json:"id"`
	Address            string        `json:"address"`
	State              string        `json:"state"`
	Weight             int           `json:"weight"`
	CurrentConnections int64         `json:"current_connections"`
	TotalRequests      int64         `json:"total_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	SuccessRate        float64       `json:"success_rate"`
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	LoadScore          float64       `json:"load_score"`
}

// Status captures the pool's current membership and statistics.
func (p *Pool) Status() Status {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	status := Status{
		Name:           p.name,
		Algorithm:      p.algorithm,
		StickySessions: p.stickySessions,
		ActiveSessions: len(p.sessions),
		FailoverPools:  append([]string(nil), p.failoverPools...),
		Servers:        make([]ServerStatus, 0, len(p.servers)),
	}

	for _, srv := range p.servers {
		status.Servers = append(status.Servers, ServerStatus{
			ID:                 srv.ID(),
			Address:            srv.Address(),
			State:              srv.State().String(),
			Weight:             srv.Weight(),
			CurrentConnections: srv.CurrentConnections(),
			TotalRequests:      srv.TotalRequests(),
			FailedRequests:     srv.FailedRequests(),
			SuccessRate:        srv.SuccessRate(),
			AvgResponseTime:    srv.AvgResponseTime(),
			LoadScore:          srv.LoadScore(),
		})
	}

	return status
}
