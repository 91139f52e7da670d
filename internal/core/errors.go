package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the query and gamification paths. Callers match with
// errors.Is; richer detail travels in UnresolvableError / GatewayError.
var (
	// ErrUnresolvable: the question could not be turned into a structured
	// query. User-facing, recoverable by rephrasing.
	ErrUnresolvable = errors.New("question could not be resolved")

	// ErrSourceUnavailable: the ledger store could not be read. Transient,
	// retryable by the caller.
	ErrSourceUnavailable = errors.New("ledger source unavailable")

	// ErrGatewayFailure: the LLM was unreachable or retries were exhausted.
	// Callers fall back to a templated answer from the aggregation.
	ErrGatewayFailure = errors.New("llm gateway failure")

	// ErrUnknownUser: gamification ingestion for a user that does not exist.
	// Fatal to that call, never retried.
	ErrUnknownUser = errors.New("unknown user")

	ErrDuplicateEvent = errors.New("event already applied")
)

// Validation errors shared across packages.
var (
	ErrEmptyUserID        = errors.New("empty user id")
	ErrEmptyEventID       = errors.New("empty event id")
	ErrEmptyAction        = errors.New("empty action kind")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyQuestion      = errors.New("empty question")
	ErrInvalidAggregation = errors.New("invalid aggregation kind")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Unresolvable reasons, surfaced so the HTTP layer can render a useful
// message without parsing error strings.
const (
	ReasonAmbiguousTime   = "ambiguous_time_range"
	ReasonUnknownCategory = "unknown_category"
	ReasonUnsupportedKind = "unsupported_aggregation"
	ReasonGeneralQuestion = "general_question"
)

// UnresolvableError carries why intent resolution failed.
type UnresolvableError struct {
	Reason string
	Detail string
}

func (e *UnresolvableError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unresolvable question: %s", e.Reason)
	}
	return fmt.Sprintf("unresolvable question: %s (%s)", e.Reason, e.Detail)
}

func (e *UnresolvableError) Unwrap() error { return ErrUnresolvable }

// Unresolvable builds an UnresolvableError with the given reason.
func Unresolvable(reason, detail string) error {
	return &UnresolvableError{Reason: reason, Detail: detail}
}

// GatewayError wraps the last error seen after the retry budget ran out.
type GatewayError struct {
	Attempts int
	Last     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm gateway failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *GatewayError) Unwrap() error { return ErrGatewayFailure }
