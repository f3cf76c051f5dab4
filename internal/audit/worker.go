package audit

import (
	"context"
	"log/slog"
)

// Sink delivers audit events to their final destination.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and hands them to a sink.
// Delivery failures are logged and counted; one bad event does not stop the
// stream.
type Worker struct {
	sink    Sink
	inbox   <-chan Event
	logger  *slog.Logger
	metrics *Metrics
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger, metrics *Metrics) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger, metrics: metrics}
}

// Run drains the inbox until it is closed or ctx is cancelled. After
// cancellation it flushes whatever is still buffered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.sink.Write(ctx, event); err != nil {
		w.metrics.incFailed()
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
		return
	}
	w.metrics.incDelivered()
}
