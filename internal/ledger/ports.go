// Package ledger defines the read-only port to the transaction ledger
// store, the external collaborator that owns all transaction data.
package ledger

import (
	"context"

	"finchat/internal/core"
)

// Ports for the outbound ledger adapter.
type (
	// Store is the query interface the aggregator consumes. Implementations
	// must return transactions ordered by timestamp ascending.
	Store interface {
		// QueryTransactions returns the user's transactions inside the
		// half-open range, optionally filtered to the given categories
		// (nil or empty = all).
		QueryTransactions(ctx context.Context, userID string, r core.TimeRange, categories []string) ([]core.Transaction, error)

		// Version returns a monotonically increasing value that changes
		// whenever new transactions land for the user. Used as part of
		// aggregation cache keys so cached results never go stale.
		Version(ctx context.Context, userID string) (int64, error)
	}

	// UserDirectory answers whether a user exists. The gamification engine
	// uses it to reject events for unknown users.
	UserDirectory interface {
		HasUser(ctx context.Context, userID string) (bool, error)
	}
)
