package notify

import (
	"context"
	"log/slog"
)

// Worker drains notices from a channel and hands them to the publisher, so
// emitters never block on broker round trips. A failed publish is logged and
// dropped rather than stalling the scheduler.
type Worker struct {
	publisher Notifier
	inbox     <-chan Notice
	logger    *slog.Logger
}

func NewWorker(publisher Notifier, inbox <-chan Notice, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-w.inbox:
			if err := w.publisher.Publish(ctx, n); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish notice",
					"kind", string(n.Kind),
					"policy_id", n.PolicyID.String(),
					"error", err,
				)
			}
		}
	}
}
