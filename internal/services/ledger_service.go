package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finchat/internal/core"
	"finchat/internal/log"
)

// XP granted for logging an expense.
const expenseLoggedXP = 10

// TransactionRecorder is the ledger write surface.
type TransactionRecorder interface {
	RegisterUser(ctx context.Context, userID string) error
	RecordTransaction(ctx context.Context, t core.Transaction) error
}

// LedgerService records transactions and rewards the logging habit with
// an XP event keyed on the transaction id, so retries never double-award.
type LedgerService struct {
	recorder TransactionRecorder
	game     *GameService
	logger   *log.Logger
}

func NewLedgerService(recorder TransactionRecorder, game *GameService, logger *log.Logger) *LedgerService {
	return &LedgerService{
		recorder: recorder,
		game:     game,
		logger:   logger,
	}
}

// Record validates and stores one transaction, then awards XP. The award
// is best effort: a queue outage never loses the ledger write.
func (s *LedgerService) Record(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.UserID == "" {
		return core.Transaction{}, core.ErrEmptyUserID
	}
	if t.Category == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}
	if t.Amount.Cents == 0 {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	if err := s.recorder.RecordTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	if s.game != nil {
		ev := core.XPEvent{
			EventID:    "txn-" + t.ID,
			UserID:     t.UserID,
			Action:     core.ActionExpenseLogged,
			XPDelta:    expenseLoggedXP,
			OccurredAt: t.Timestamp,
		}
		if err := s.game.Award(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "failed to award XP for transaction",
				"transaction_id", t.ID, "error", err)
		}
	}

	return t, nil
}

// Register creates the user if needed.
func (s *LedgerService) Register(ctx context.Context, userID string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	return s.recorder.RegisterUser(ctx, userID)
}
