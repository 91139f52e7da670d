// Package memory provides an in-memory ledger store, used as the default
// backend and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"finchat/internal/core"
)

type Store struct {
	mu       sync.RWMutex
	byUser   map[string][]core.Transaction
	versions map[string]int64
}

func New() *Store {
	return &Store{
		byUser:   make(map[string][]core.Transaction),
		versions: make(map[string]int64),
	}
}

// Record appends transactions for a user and bumps the user's ledger
// version. Transactions are kept sorted by timestamp.
func (s *Store) Record(userID string, txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = append(s.byUser[userID], txs...)
	sort.SliceStable(s.byUser[userID], func(i, j int) bool {
		return s.byUser[userID][i].Timestamp.Before(s.byUser[userID][j].Timestamp)
	})
	s.versions[userID]++
}

// RegisterUser makes a user known without recording any transactions.
func (s *Store) RegisterUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[userID]; !ok {
		s.byUser[userID] = nil
	}
	return nil
}

// RecordTransaction appends a single transaction, bumping the ledger
// version like Record does.
func (s *Store) RecordTransaction(_ context.Context, t core.Transaction) error {
	s.Record(t.UserID, t)
	return nil
}

// QueryTransactions implements ledger.Store.
func (s *Store) QueryTransactions(_ context.Context, userID string, r core.TimeRange, categories []string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[strings.ToLower(c)] = struct{}{}
	}

	var out []core.Transaction
	for _, tx := range s.byUser[userID] {
		if !r.Contains(tx.Timestamp) {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[strings.ToLower(tx.Category)]; !ok {
				continue
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

// Version implements ledger.Store.
func (s *Store) Version(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[userID], nil
}

// HasUser implements ledger.UserDirectory.
func (s *Store) HasUser(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUser[userID]
	return ok, nil
}
