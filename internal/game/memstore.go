package game

import (
	"context"
	"sync"

	"finchat/internal/core"
)

// MemoryLog is an in-memory EventLog. Used by the memory ledger backend
// and in tests; the sqlite backend replaces it in production.
type MemoryLog struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	byUser map[string][]core.XPEvent
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		seen:   make(map[string]struct{}),
		byUser: make(map[string][]core.XPEvent),
	}
}

func (l *MemoryLog) Append(_ context.Context, ev core.XPEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.seen[ev.EventID]; dup {
		return core.ErrDuplicateEvent
	}
	l.seen[ev.EventID] = struct{}{}
	l.byUser[ev.UserID] = append(l.byUser[ev.UserID], ev)
	return nil
}

func (l *MemoryLog) Events(_ context.Context, userID string) ([]core.XPEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	evs := l.byUser[userID]
	out := make([]core.XPEvent, len(evs))
	copy(out, evs)
	return out, nil
}

// MemoryStates is an in-memory StateStore.
type MemoryStates struct {
	mu     sync.Mutex
	states map[string]core.GamificationState
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{states: make(map[string]core.GamificationState)}
}

func (s *MemoryStates) Load(_ context.Context, userID string) (core.GamificationState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok, nil
}

func (s *MemoryStates) Save(_ context.Context, st core.GamificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.UserID] = st
	return nil
}
