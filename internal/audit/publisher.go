package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cardforge/pkg/requestcontext"
)

const defaultBufferSize = 1024

// Publisher queues audit events for asynchronous delivery. Emit never blocks
// the request path: when the buffer is full the event is dropped and counted.
type Publisher struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *Metrics

	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for drop reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize overrides the queue capacity.
func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

// NewPublisher creates a publisher. Start a Worker on Inbox to drain it.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		inbox:  make(chan Event, defaultBufferSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit enqueues an event. It fills in the timestamp, category, and request ID
// when the caller left them empty.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if base.Category == "" {
		base.Category = AuditEvent(base.Action).Category()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- base:
		p.metrics.incQueued()
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", base.Action,
			"subject", base.Subject,
		)
	}
	return nil
}

// Inbox exposes the queue to the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Close stops accepting events. The worker drains what is already queued.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.inbox)
	})
}
