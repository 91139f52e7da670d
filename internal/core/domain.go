package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AggregationSum     AggregationKind = "sum"
	AggregationCount   AggregationKind = "count"
	AggregationAverage AggregationKind = "average"
	AggregationTrend   AggregationKind = "trend"
)

const (
	BucketDaily   BucketWidth = "daily"
	BucketMonthly BucketWidth = "monthly"
	BucketYearly  BucketWidth = "yearly"
)

type (
	AggregationKind string

	BucketWidth string

	Money struct {
		Cents int64
	}

	// TimeRange is half-open: Start inclusive, End exclusive.
	TimeRange struct {
		Start time.Time
		End   time.Time
	}

	// Transaction is a single ledger entry. Immutable once recorded;
	// owned by the ledger store, this core only reads it.
	Transaction struct {
		ID          string
		UserID      string
		Amount      Money // signed: negative for spending, positive for income
		Category    string
		Timestamp   time.Time
		Description string
	}

	// StructuredQuery is the machine-checkable form of a financial question.
	StructuredQuery struct {
		UserID     string
		Range      TimeRange
		Categories []string // nil or empty = all categories
		Kind       AggregationKind
	}

	Bucket struct {
		Start time.Time
		Total Money
	}

	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// AggregationResult is derived deterministically from the ledger
	// snapshot at query time. The LLM never contributes to these numbers.
	AggregationResult struct {
		Kind       AggregationKind
		Value      Money
		Count      int
		Unit       string
		Range      TimeRange
		Width      BucketWidth // set for trend results
		Buckets    []Bucket
		ByCategory []CategoryAmount
		NoData     bool
	}

	// ChatExchange is one append-only entry in the conversation log.
	ChatExchange struct {
		ID         string
		UserID     string
		Question   string
		Query      *StructuredQuery
		Result     *AggregationResult
		LLMReply   string
		Answer     string
		Source     string // "llm" or "fallback"
		Reconciled bool
		CreatedAt  time.Time
	}

	// XPEvent is immutable once ingested. EventID doubles as the
	// idempotency key: replaying the same id must not double-count.
	XPEvent struct {
		EventID    string
		UserID     string
		Action     string
		XPDelta    int64
		OccurredAt time.Time
	}

	// GamificationState is derived, recomputable from the XPEvent stream.
	GamificationState struct {
		UserID       string
		TotalXP      int64
		Level        int
		Achievements []string // sorted, unlocked achievement ids
	}
)

// Common XP event action kinds. The set is open: unknown actions still
// carry their delta through the engine.
const (
	ActionExpenseLogged = "expense_logged"
	ActionGoalReached   = "goal_reached"
	ActionStreakKept    = "streak_kept"
	ActionPenalty       = "penalty"
)

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Contains reports whether t falls inside the half-open range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days returns the range length in whole days, rounding partial days up.
func (r TimeRange) Days() int {
	d := r.End.Sub(r.Start)
	days := int(d.Hours() / 24)
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("time range must have start and end")
	}
	if !r.End.After(r.Start) {
		return errors.New("time range end must be after start")
	}
	return nil
}

func (q StructuredQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := q.Range.Validate(); err != nil {
		return err
	}
	switch q.Kind {
	case AggregationSum, AggregationCount, AggregationAverage, AggregationTrend:
	default:
		return ErrInvalidAggregation
	}
	for _, c := range q.Categories {
		if strings.TrimSpace(c) == "" {
			return ErrEmptyCategory
		}
	}
	return nil
}

func (e XPEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrEmptyEventID
	}
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(e.Action) == "" {
		return ErrEmptyAction
	}
	if e.OccurredAt.IsZero() {
		return errors.New("event must have an occurrence time")
	}
	return nil
}

// HasAchievement reports whether the achievement id is already unlocked.
func (s GamificationState) HasAchievement(id string) bool {
	for _, a := range s.Achievements {
		if a == id {
			return true
		}
	}
	return false
}
