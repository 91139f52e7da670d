// Package game implements the event-sourced gamification engine: an
// append-only XP event log with idempotent ingestion, derived per-user
// state, level curves and achievement unlocks.
package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"finchat/internal/core"
	"finchat/internal/ledger"
	"finchat/internal/log"
)

// StateChanged is delivered to subscribers after an event mutates a
// user's state.
type StateChanged struct {
	State    core.GamificationState
	Event    core.XPEvent
	Unlocked []string
	// EffectiveDelta is the XP change actually applied. It differs from
	// Event.XPDelta when a penalty was clamped at the zero floor.
	EffectiveDelta int64
	LeveledUp      bool
}

type subscriber struct {
	userID string
	ch     chan StateChanged
}

// Engine applies XP events to per-user state. Writes for a user are
// serialized behind a per-user lock; reads see the last fully applied
// event.
type Engine struct {
	events EventLog
	states StateStore
	users  ledger.UserDirectory
	curve  LevelCurve
	cat    []Achievement
	logger *log.Logger

	mu      sync.Mutex
	userMus map[string]*sync.Mutex

	subMu   sync.Mutex
	nextSub int
	subs    map[int]subscriber
}

// Option configures an Engine.
type Option func(*Engine)

func WithLevelCurve(c LevelCurve) Option {
	return func(e *Engine) { e.curve = c }
}

func WithAchievements(cat []Achievement) Option {
	return func(e *Engine) { e.cat = cat }
}

func NewEngine(events EventLog, states StateStore, users ledger.UserDirectory, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		events:  events,
		states:  states,
		users:   users,
		curve:   DefaultLevelCurve,
		cat:     DefaultAchievements(),
		logger:  logger,
		userMus: make(map[string]*sync.Mutex),
		subs:    make(map[int]subscriber),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.userMus[userID]
	if !ok {
		mu = &sync.Mutex{}
		e.userMus[userID] = mu
	}
	return mu
}

// Ingest appends the event and applies it to the user's state. A replayed
// EventID returns the current state with core.ErrDuplicateEvent and no
// state change.
func (e *Engine) Ingest(ctx context.Context, ev core.XPEvent) (core.GamificationState, error) {
	if err := ev.Validate(); err != nil {
		return core.GamificationState{}, err
	}
	known, err := e.users.HasUser(ctx, ev.UserID)
	if err != nil {
		return core.GamificationState{}, fmt.Errorf("checking user %s: %w", ev.UserID, err)
	}
	if !known {
		return core.GamificationState{}, fmt.Errorf("user %s: %w", ev.UserID, core.ErrUnknownUser)
	}

	mu := e.userLock(ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.loadLocked(ctx, ev.UserID)
	if err != nil {
		return core.GamificationState{}, err
	}

	if err := e.events.Append(ctx, ev); err != nil {
		if errors.Is(err, core.ErrDuplicateEvent) {
			return st, core.ErrDuplicateEvent
		}
		return core.GamificationState{}, fmt.Errorf("appending event %s: %w", ev.EventID, err)
	}

	prevLevel := st.Level
	prevXP := st.TotalXP
	unlocked := e.apply(&st, ev)
	if err := e.states.Save(ctx, st); err != nil {
		return core.GamificationState{}, fmt.Errorf("saving state for %s: %w", ev.UserID, err)
	}

	effective := st.TotalXP - prevXP
	if effective != ev.XPDelta {
		e.logger.Warn("XP penalty clamped at zero floor",
			"user_id", ev.UserID, "event_id", ev.EventID,
			"xp_delta", ev.XPDelta, "effective_delta", effective)
	}

	e.notify(StateChanged{
		State:          st,
		Event:          ev,
		Unlocked:       unlocked,
		EffectiveDelta: effective,
		LeveledUp:      st.Level > prevLevel,
	})
	if len(unlocked) > 0 {
		e.logger.Info("achievements unlocked",
			"user_id", ev.UserID, "achievements", unlocked)
	}
	return st, nil
}

// State returns the user's current state, replaying the event log when no
// snapshot exists yet.
func (e *Engine) State(ctx context.Context, userID string) (core.GamificationState, error) {
	known, err := e.users.HasUser(ctx, userID)
	if err != nil {
		return core.GamificationState{}, fmt.Errorf("checking user %s: %w", userID, err)
	}
	if !known {
		return core.GamificationState{}, fmt.Errorf("user %s: %w", userID, core.ErrUnknownUser)
	}

	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()
	return e.loadLocked(ctx, userID)
}

// Recompute rebuilds the user's state from the event log, discarding any
// stored snapshot. Used when a snapshot is suspected stale.
func (e *Engine) Recompute(ctx context.Context, userID string) (core.GamificationState, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.replay(ctx, userID)
	if err != nil {
		return core.GamificationState{}, err
	}
	if err := e.states.Save(ctx, st); err != nil {
		return core.GamificationState{}, fmt.Errorf("saving state for %s: %w", userID, err)
	}
	return st, nil
}

func (e *Engine) loadLocked(ctx context.Context, userID string) (core.GamificationState, error) {
	st, ok, err := e.states.Load(ctx, userID)
	if err != nil {
		return core.GamificationState{}, fmt.Errorf("loading state for %s: %w", userID, err)
	}
	if ok {
		return st, nil
	}
	return e.replay(ctx, userID)
}

func (e *Engine) replay(ctx context.Context, userID string) (core.GamificationState, error) {
	evs, err := e.events.Events(ctx, userID)
	if err != nil {
		return core.GamificationState{}, fmt.Errorf("reading events for %s: %w", userID, err)
	}
	st := core.GamificationState{UserID: userID, Level: e.curve(0)}
	for _, ev := range evs {
		e.apply(&st, ev)
	}
	return st, nil
}

// apply mutates st with one event and returns newly unlocked achievement
// ids. XP is clamped at zero: a penalty can never push the total negative.
func (e *Engine) apply(st *core.GamificationState, ev core.XPEvent) []string {
	total := st.TotalXP + ev.XPDelta
	if total < 0 {
		total = 0
	}
	st.TotalXP = total
	st.Level = e.curve(total)

	var unlocked []string
	for _, a := range e.cat {
		if st.HasAchievement(a.ID) {
			continue
		}
		if a.Unlocked(*st, ev) {
			st.Achievements = append(st.Achievements, a.ID)
			unlocked = append(unlocked, a.ID)
		}
	}
	if len(unlocked) > 0 {
		sort.Strings(st.Achievements)
	}
	return unlocked
}

// Subscribe registers for state changes of one user. The returned cancel
// removes the subscription. Slow subscribers miss updates rather than
// blocking ingestion.
func (e *Engine) Subscribe(userID string, buffer int) (<-chan StateChanged, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan StateChanged, buffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = subscriber{userID: userID, ch: ch}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) notify(msg StateChanged) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, s := range e.subs {
		if s.userID != msg.State.UserID {
			continue
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}
