package worker

import (
	"context"
	"log/slog"

	audit "clocklayer/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. Append
// failures are logged and the event dropped; audit never blocks signup.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until it is closed or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			// Draining after close must still persist, so use a detached context.
			if err := w.store.Append(context.WithoutCancel(ctx), event); err != nil {
				w.logger.WarnContext(ctx, "failed to append audit event",
					"action", event.Action,
					"error", err,
					"request_id", event.RequestID,
				)
			}
		}
	}
}
