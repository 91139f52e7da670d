package memory

import (
	"context"
	"sync"

	"finchat/internal/core"
)

// ExchangeLog keeps the conversation history in memory, newest last.
type ExchangeLog struct {
	mu     sync.RWMutex
	byUser map[string][]core.ChatExchange
}

func NewExchangeLog() *ExchangeLog {
	return &ExchangeLog{byUser: make(map[string][]core.ChatExchange)}
}

// SaveExchange appends one chat exchange to the user's history.
func (l *ExchangeLog) SaveExchange(_ context.Context, ex core.ChatExchange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byUser[ex.UserID] = append(l.byUser[ex.UserID], ex)
	return nil
}

// RecentExchanges returns the user's latest exchanges, newest first.
func (l *ExchangeLog) RecentExchanges(_ context.Context, userID string, limit int) ([]core.ChatExchange, error) {
	if limit <= 0 {
		limit = 20
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.byUser[userID]
	if len(all) < limit {
		limit = len(all)
	}
	out := make([]core.ChatExchange, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
