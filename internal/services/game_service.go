package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"finchat/internal/core"
	"finchat/internal/game"
	"finchat/internal/log"
)

// EventPublisher hands XP events to the queue for the worker process.
type EventPublisher interface {
	PublishXPEvent(ctx context.Context, ev core.XPEvent) error
}

// GameService fronts the gamification engine. Events go through the queue
// when a publisher is configured; otherwise they are applied in-process.
type GameService struct {
	engine    *game.Engine
	publisher EventPublisher
	logger    *log.Logger
}

func NewGameService(engine *game.Engine, publisher EventPublisher, logger *log.Logger) *GameService {
	return &GameService{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// Award emits one XP event. A missing EventID gets a fresh one; callers
// supplying their own id get idempotent replays for free.
func (s *GameService) Award(ctx context.Context, ev core.XPEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if s.publisher != nil {
		err := s.publisher.PublishXPEvent(ctx, ev)
		if err == nil {
			return nil
		}
		s.logger.WarnContext(ctx, "failed to publish XP event, applying directly",
			"event_id", ev.EventID, "error", err)
	}

	_, err := s.engine.Ingest(ctx, ev)
	if errors.Is(err, core.ErrDuplicateEvent) {
		return nil
	}
	return err
}

// State returns the user's current gamification state.
func (s *GameService) State(ctx context.Context, userID string) (core.GamificationState, error) {
	return s.engine.State(ctx, userID)
}
