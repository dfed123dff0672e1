package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/vidscribe/internal/events"
	"github.com/phrazzld/vidscribe/internal/platform/metrics"
)

// Notifier publishes resource events through an emitter, once per job.
type Notifier struct {
	guard   Guard
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(guard Guard, emitter events.EventEmitter, logger *slog.Logger) *Notifier {
	return &Notifier{
		guard:   guard,
		emitter: emitter,
		logger:  logger.With("component", "notifier"),
	}
}

// Notify publishes event unless the guard reports it was already sent for
// event.JobID. It returns whether the event was handed to the emitter.
func (n *Notifier) Notify(ctx context.Context, event *events.ResourceEvent) (bool, error) {
	first, err := n.guard.TryMarkSent(ctx, event.JobID)
	if err != nil {
		// A duplicate is preferable to a lost event.
		n.logger.WarnContext(ctx, "notification guard unavailable, emitting anyway",
			"job_id", event.JobID,
			"error", err)
		first = true
	}
	if !first {
		metrics.NotificationsTotal.WithLabelValues("suppressed").Inc()
		n.logger.DebugContext(ctx, "duplicate notification suppressed",
			"job_id", event.JobID,
			"event_type", event.Type)
		return false, nil
	}

	if err := n.emitter.EmitEvent(ctx, event); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return true, fmt.Errorf("failed to emit %s for job %s: %w", event.Type, event.JobID, err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return true, nil
}
