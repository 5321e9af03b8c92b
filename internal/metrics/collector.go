package metrics

import (
	"context"
	"log/slog"
	"time"
)

// EventType discriminates collector events.
type EventType string

const (
	EventServerSelected   EventType = "server_selected"
	EventRequestCompleted EventType = "request_completed"
	EventHealthChanged    EventType = "health_changed"
)

// Event is one observation emitted by a collaborator (health prober,
// admin surface) for deferred processing.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Pool      string
	Server    string
	Duration  time.Duration
	Success   bool
	Healthy   bool
}

// Collector consumes events from a buffered channel and folds them into
// the shared Metrics, decoupling emitters from the metrics lock.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

// NewCollector creates a collector over the given metrics with the given
// channel capacity.
func NewCollector(metrics *Metrics, bufferSize int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: metrics,
		logger:  logger,
	}
}

// EventChannel returns the send side for emitters.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Start launches the consumer goroutine; it stops, draining pending
// events, when the context is canceled.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventServerSelected:
		c.metrics.RecordSelection(event.Pool, event.Server)
	case EventRequestCompleted:
		c.metrics.RecordCompletion(event.Pool, event.Server, event.Duration, event.Success)
	case EventHealthChanged:
		c.logger.Info("server health changed",
			slog.String("pool", event.Pool),
			slog.String("server", event.Server),
			slog.Bool("healthy", event.Healthy))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// Snapshot returns the current state of the underlying metrics.
func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
