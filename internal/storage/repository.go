// Package storage is the sqlite persistence layer: transaction ledger,
// XP event log, gamification snapshots and the chat exchange log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finchat/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Users returns every registered user id.
func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Ping probes the database connection, used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RegisterUser creates the user row if it does not exist yet.
func (r *SQLiteRepository) RegisterUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("register user %s: %w", userID, err)
	}
	return nil
}

// HasUser implements ledger.UserDirectory.
func (r *SQLiteRepository) HasUser(ctx context.Context, userID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", userID, err)
	}
	return true, nil
}

// RecordTransaction appends a ledger entry and bumps the user's ledger
// version in the same transaction, so cached aggregations for the old
// version stop matching.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount_cents, category, occurred_at, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount.Cents, t.Category, t.Timestamp.UTC().Unix(), t.Description)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET ledger_version = ledger_version + 1 WHERE id = ?`, t.UserID)
	if err != nil {
		return fmt.Errorf("bump ledger version for %s: %w", t.UserID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record transaction: user %s: %w", t.UserID, core.ErrUnknownUser)
	}

	return tx.Commit()
}

// QueryTransactions implements ledger.Store. Categories are matched
// case-insensitively; empty categories means all.
func (r *SQLiteRepository) QueryTransactions(ctx context.Context, userID string, tr core.TimeRange, categories []string) ([]core.Transaction, error) {
	query := `SELECT id, user_id, amount_cents, category, occurred_at, description
		FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`
	args := []any{userID, tr.Start.UTC().Unix(), tr.End.UTC().Unix()}

	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, c := range categories {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(c))
		}
		query += fmt.Sprintf(" AND lower(category) IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY occurred_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var occurredAt int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount.Cents, &t.Category, &occurredAt, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Timestamp = time.Unix(occurredAt, 0).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Version implements ledger.Store.
func (r *SQLiteRepository) Version(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT ledger_version FROM users WHERE id = ?`, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ledger version: user %s: %w", userID, core.ErrUnknownUser)
	}
	if err != nil {
		return 0, fmt.Errorf("ledger version for %s: %w", userID, err)
	}
	return v, nil
}

// Append implements game.EventLog. The primary key on event_id makes
// replays visible as a constraint violation.
func (r *SQLiteRepository) Append(ctx context.Context, ev core.XPEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO xp_events (event_id, user_id, action, xp_delta, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.EventID, ev.UserID, ev.Action, ev.XPDelta, ev.OccurredAt.UTC().Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return core.ErrDuplicateEvent
		}
		return fmt.Errorf("append event %s: %w", ev.EventID, err)
	}
	return nil
}

// Events implements game.EventLog, returning events in ingestion order.
func (r *SQLiteRepository) Events(ctx context.Context, userID string) ([]core.XPEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, user_id, action, xp_delta, occurred_at
		 FROM xp_events WHERE user_id = ? ORDER BY ingested_at, event_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []core.XPEvent
	for rows.Next() {
		var ev core.XPEvent
		var occurredAt int64
		if err := rows.Scan(&ev.EventID, &ev.UserID, &ev.Action, &ev.XPDelta, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt = time.Unix(occurredAt, 0).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Load implements game.StateStore.
func (r *SQLiteRepository) Load(ctx context.Context, userID string) (core.GamificationState, bool, error) {
	var st core.GamificationState
	var achievements string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, total_xp, level, achievements
		 FROM gamification_state WHERE user_id = ?`, userID).
		Scan(&st.UserID, &st.TotalXP, &st.Level, &achievements)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GamificationState{}, false, nil
	}
	if err != nil {
		return core.GamificationState{}, false, fmt.Errorf("load state for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(achievements), &st.Achievements); err != nil {
		return core.GamificationState{}, false, fmt.Errorf("decode achievements for %s: %w", userID, err)
	}
	return st, true, nil
}

// Save implements game.StateStore.
func (r *SQLiteRepository) Save(ctx context.Context, st core.GamificationState) error {
	achievements, err := json.Marshal(st.Achievements)
	if err != nil {
		return fmt.Errorf("encode achievements for %s: %w", st.UserID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO gamification_state (user_id, total_xp, level, achievements, updated_at)
		 VALUES (?, ?, ?, ?, unixepoch())
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_xp = excluded.total_xp,
		   level = excluded.level,
		   achievements = excluded.achievements,
		   updated_at = excluded.updated_at`,
		st.UserID, st.TotalXP, st.Level, string(achievements))
	if err != nil {
		return fmt.Errorf("save state for %s: %w", st.UserID, err)
	}
	return nil
}

// SaveExchange appends one chat exchange to the conversation log.
func (r *SQLiteRepository) SaveExchange(ctx context.Context, ex core.ChatExchange) error {
	reconciled := 0
	if ex.Reconciled {
		reconciled = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_exchanges (id, user_id, question, llm_reply, answer, source, reconciled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.UserID, ex.Question, ex.LLMReply, ex.Answer, ex.Source, reconciled,
		ex.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("save exchange %s: %w", ex.ID, err)
	}
	return nil
}

// RecentExchanges returns the user's latest exchanges, newest first.
func (r *SQLiteRepository) RecentExchanges(ctx context.Context, userID string, limit int) ([]core.ChatExchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, question, llm_reply, answer, source, reconciled, created_at
		 FROM chat_exchanges WHERE user_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []core.ChatExchange
	for rows.Next() {
		var ex core.ChatExchange
		var reconciled int
		var createdAt int64
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Question, &ex.LLMReply, &ex.Answer,
			&ex.Source, &reconciled, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.Reconciled = reconciled == 1
		ex.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}
