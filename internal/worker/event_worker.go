// Package worker runs the asynchronous gamification pipeline: XP events
// published by the API process are consumed here and applied to the engine.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finchat/internal/amqp"
	"finchat/internal/game"
)

// EventWorker applies queued XP events to the gamification engine.
type EventWorker struct {
	engine *game.Engine
}

func NewEventWorker(engine *game.Engine) *EventWorker {
	return &EventWorker{engine: engine}
}

// HandleEventMessage processes one XP event message. Errors are returned
// unwrapped enough for the AMQP consumer to classify them: duplicates are
// acked, permanent failures dropped, anything else requeued.
func (w *EventWorker) HandleEventMessage(ctx context.Context, msg *amqp.XPEventMessage) error {
	ev := msg.Event()

	st, err := w.engine.Ingest(ctx, ev)
	if err != nil {
		return fmt.Errorf("ingest event %s: %w", ev.EventID, err)
	}

	slog.InfoContext(ctx, "Applied XP event",
		"event_id", ev.EventID,
		"user_id", ev.UserID,
		"action", ev.Action,
		"xp_delta", ev.XPDelta,
		"total_xp", st.TotalXP,
		"level", st.Level)

	return nil
}

// RecomputeUsers rebuilds gamification state from the event log for the
// given users. Run at startup to recover from snapshots lost while the
// worker was down.
func (w *EventWorker) RecomputeUsers(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Recomputing gamification state", "users", len(userIDs))

	errorCount := 0
	for _, id := range userIDs {
		if _, err := w.engine.Recompute(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to recompute state",
				"user_id", id, "error", err)
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("recompute failed for %d of %d users", errorCount, len(userIDs))
	}
	return nil
}
