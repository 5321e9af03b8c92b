package server

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// responseWindowSize bounds the sliding window of recorded response times.
const responseWindowSize = 100

// Load score weights. Connection utilization dominates because it is the
// only signal updated on every dispatch; CPU and memory arrive at the
// slower cadence of the health feed.
const (
	loadWeightConnections = 0.5
	loadWeightCPU         = 0.3
	loadWeightMemory      = 0.2
)

// Server represents a backend node together with its live load statistics.
// A Server is owned by exactly one pool; all mutation happens through the
// owning pool or the dispatch path of the engine.
type Server struct {
	id     string
	host   string
	port   int
	weight int

	maxConnections     int64
	currentConnections atomic.Int64
	totalRequests      atomic.Int64
	failedRequests     atomic.Int64

	mutex         sync.Mutex
	state         State
	cpuUsage      float64
	memoryUsage   float64
	responseTimes []time.Duration
	windowSum     time.Duration
}

// New creates a Server in the HEALTHY state. An empty id is replaced with a
// generated UUID. Weight must be positive; maxConnections of 0 means
// unlimited.
func New(id, host string, port, weight, maxConnections int) (*Server, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("server %q: weight must be positive, got %d", id, weight)
	}
	if maxConnections < 0 {
		return nil, fmt.Errorf("server %q: max connections must not be negative, got %d", id, maxConnections)
	}

	if id == "" {
		id = uuid.NewString()
	}

	return &Server{
		id:             id,
		host:           host,
		port:           port,
		weight:         weight,
		maxConnections: int64(maxConnections),
		state:          StateHealthy,
		responseTimes:  make([]time.Duration, 0, responseWindowSize),
	}, nil
}

// ID returns the server's identifier, unique within its pool.
func (s *Server) ID() string {
	return s.id
}

// Host returns the server's host name or address.
func (s *Server) Host() string {
	return s.host
}

// Port returns the server's port.
func (s *Server) Port() int {
	return s.port
}

// Address returns the server's dial target in host:port form.
func (s *Server) Address() string {
	return s.host + ":" + strconv.Itoa(s.port)
}

// Weight returns the configured selection weight.
func (s *Server) Weight() int {
	return s.weight
}

// MaxConnections returns the connection cap, 0 meaning unlimited.
func (s *Server) MaxConnections() int64 {
	return s.maxConnections
}

// CurrentConnections returns the number of in-flight dispatches.
func (s *Server) CurrentConnections() int64 {
	return s.currentConnections.Load()
}

// AvailableConnections returns the remaining connection headroom.
// For an unlimited server it returns 0.
func (s *Server) AvailableConnections() int64 {
	if s.maxConnections == 0 {
		return 0
	}
	avail := s.maxConnections - s.currentConnections.Load()
	if avail < 0 {
		return 0
	}
	return avail
}

// TryAcquire reserves a connection slot. It fails only when the server is
// at its configured connection cap.
func (s *Server) TryAcquire() bool {
	for {
		cur := s.currentConnections.Load()
		if s.maxConnections > 0 && cur >= s.maxConnections {
			return false
		}
		if s.currentConnections.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a connection slot. Callers must pair every successful
// TryAcquire with exactly one Release on every exit path.
func (s *Server) Release() {
	for {
		cur := s.currentConnections.Load()
		if cur == 0 {
			return
		}
		if s.currentConnections.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// TotalRequests returns the number of completed dispatches.
func (s *Server) TotalRequests() int64 {
	return s.totalRequests.Load()
}

// FailedRequests returns the number of failed dispatches.
func (s *Server) FailedRequests() int64 {
	return s.failedRequests.Load()
}

// SuccessRate returns the fraction of completed dispatches that
// succeeded, or 1 when nothing has been dispatched yet.
func (s *Server) SuccessRate() float64 {
	total := s.totalRequests.Load()
	if total == 0 {
		return 1
	}
	return float64(total-s.failedRequests.Load()) / float64(total)
}

// RecordResponse records the outcome and duration of one dispatch,
// updating the request counters and the sliding response-time window.
func (s *Server) RecordResponse(duration time.Duration, success bool) {
	s.totalRequests.Add(1)
	if !success {
		s.failedRequests.Add(1)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.responseTimes) == responseWindowSize {
		s.windowSum -= s.responseTimes[0]
		copy(s.responseTimes, s.responseTimes[1:])
		s.responseTimes = s.responseTimes[:responseWindowSize-1]
	}
	s.responseTimes = append(s.responseTimes, duration)
	s.windowSum += duration
}

// AvgResponseTime returns the mean of the response-time window, or 0 if
// nothing has been recorded yet.
func (s *Server) AvgResponseTime() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.responseTimes) == 0 {
		return 0
	}
	return s.windowSum / time.Duration(len(s.responseTimes))
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// SetState transitions the server to the given state.
// Returns true if the state changed, false if it was already there.
func (s *Server) SetState(state State) (changed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == state {
		return false
	}
	s.state = state
	return true
}

// CPUUsage returns the last reported CPU utilization as a 0..1 fraction.
func (s *Server) CPUUsage() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cpuUsage
}

// MemoryUsage returns the last reported memory utilization as a 0..1 fraction.
func (s *Server) MemoryUsage() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.memoryUsage
}

// SetUsage records CPU and memory utilization from the health feed.
func (s *Server) SetUsage(cpu, memory float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cpuUsage = cpu
	s.memoryUsage = memory
}

// LoadScore combines connection utilization, CPU and memory usage into a
// single ranking where lower means more available. A server without a
// connection cap contributes 0 connection utilization.
func (s *Server) LoadScore() float64 {
	var connUtil float64
	if s.maxConnections > 0 {
		connUtil = float64(s.currentConnections.Load()) / float64(s.maxConnections)
	}

	s.mutex.Lock()
	cpu, mem := s.cpuUsage, s.memoryUsage
	s.mutex.Unlock()

	return loadWeightConnections*connUtil + loadWeightCPU*cpu + loadWeightMemory*mem
}
