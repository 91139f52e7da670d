package game

import (
	"context"

	"finchat/internal/core"
)

// EventLog is the append-only XP event store. Append must reject a
// previously seen EventID with core.ErrDuplicateEvent.
type EventLog interface {
	Append(ctx context.Context, ev core.XPEvent) error
	Events(ctx context.Context, userID string) ([]core.XPEvent, error)
}

// StateStore persists derived gamification state so restarts do not have
// to replay the full event log on every read.
type StateStore interface {
	Load(ctx context.Context, userID string) (core.GamificationState, bool, error)
	Save(ctx context.Context, st core.GamificationState) error
}
