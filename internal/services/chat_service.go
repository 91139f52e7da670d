// Package services orchestrates the question pipeline and the gamification
// flows on top of the storage, queue and LLM layers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finchat/internal/aggregate"
	"finchat/internal/core"
	"finchat/internal/intent"
	"finchat/internal/ledger"
	"finchat/internal/log"
	"finchat/internal/prompt"
	"finchat/internal/reconcile"
)

// Asker is the LLM gateway surface the chat pipeline needs.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// ExchangeLog records completed exchanges. Append-only.
type ExchangeLog interface {
	SaveExchange(ctx context.Context, ex core.ChatExchange) error
}

// ChatAnswer is the outcome of one question.
type ChatAnswer struct {
	Answer     string
	Source     string // core.SourceLLM or core.SourceFallback
	Reconciled bool
	Query      *core.StructuredQuery
	Result     *core.AggregationResult
}

// ChatService runs a question through resolve, aggregate, compose, the LLM
// gateway and reconciliation. Every number in the final answer comes from
// the ledger, never from the model.
type ChatService struct {
	resolver  *intent.Resolver
	agg       *aggregate.Aggregator
	gateway   Asker
	users     ledger.UserDirectory
	exchanges ExchangeLog
	logger    *log.Logger
}

func NewChatService(resolver *intent.Resolver, agg *aggregate.Aggregator, gateway Asker, users ledger.UserDirectory, exchanges ExchangeLog, logger *log.Logger) *ChatService {
	return &ChatService{
		resolver:  resolver,
		agg:       agg,
		gateway:   gateway,
		users:     users,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Answer handles one user question. now anchors relative time phrases so
// the same question at the same instant always resolves identically.
func (s *ChatService) Answer(ctx context.Context, userID, question string, now time.Time) (ChatAnswer, error) {
	known, err := s.users.HasUser(ctx, userID)
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("checking user %s: %w", userID, err)
	}
	if !known {
		return ChatAnswer{}, fmt.Errorf("user %s: %w", userID, core.ErrUnknownUser)
	}

	q, err := s.resolver.Resolve(question, userID, now)
	if err != nil {
		var unres *core.UnresolvableError
		if errors.As(err, &unres) && unres.Reason == core.ReasonGeneralQuestion {
			return s.answerGeneral(ctx, userID, question)
		}
		return ChatAnswer{}, err
	}

	result, err := s.agg.Run(ctx, q)
	if err != nil {
		return ChatAnswer{}, err
	}

	answer := ChatAnswer{Query: &q, Result: &result}

	composed := prompt.Compose(question, q, result)
	reply, err := s.gateway.Ask(ctx, composed)
	switch {
	case err == nil:
		out := reconcile.Reconcile(reply, result)
		if out.Reconciled {
			s.logger.WarnContext(ctx, "reconciliation rewrote LLM claims",
				"user_id", userID,
				"mismatches", len(out.Mismatches))
			for _, m := range out.Mismatches {
				s.logger.WarnContext(ctx, "numeric claim corrected",
					"user_id", userID,
					"claimed", m.Claimed,
					"expected", m.Expected)
			}
		}
		answer.Answer = out.Answer
		answer.Source = core.SourceLLM
		answer.Reconciled = out.Reconciled
		s.saveExchange(ctx, userID, question, &q, &result, reply, answer)
		return answer, nil

	case errors.Is(err, ctx.Err()) && ctx.Err() != nil:
		return ChatAnswer{}, err

	default:
		// Grounded data is in hand; fall back to a templated answer
		// instead of failing the request.
		s.logger.WarnContext(ctx, "LLM gateway failed, serving fallback answer",
			"user_id", userID, "error", err)
		answer.Answer = FallbackAnswer(q, result)
		answer.Source = core.SourceFallback
		s.saveExchange(ctx, userID, question, &q, &result, "", answer)
		return answer, nil
	}
}

// answerGeneral handles finance questions that need no ledger data. There
// is no grounded result to fall back on, so gateway failures surface.
func (s *ChatService) answerGeneral(ctx context.Context, userID, question string) (ChatAnswer, error) {
	reply, err := s.gateway.Ask(ctx, prompt.ComposeGeneral(question))
	if err != nil {
		return ChatAnswer{}, err
	}
	answer := ChatAnswer{Answer: reply, Source: core.SourceLLM}
	s.saveExchange(ctx, userID, question, nil, nil, reply, answer)
	return answer, nil
}

// saveExchange is best effort: a failed write never fails the request.
func (s *ChatService) saveExchange(ctx context.Context, userID, question string, q *core.StructuredQuery, r *core.AggregationResult, rawReply string, answer ChatAnswer) {
	if s.exchanges == nil {
		return
	}
	ex := core.ChatExchange{
		ID:         uuid.NewString(),
		UserID:     userID,
		Question:   question,
		Query:      q,
		Result:     r,
		LLMReply:   rawReply,
		Answer:     answer.Answer,
		Source:     answer.Source,
		Reconciled: answer.Reconciled,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.exchanges.SaveExchange(ctx, ex); err != nil {
		s.logger.ErrorContext(ctx, "failed to save chat exchange",
			"user_id", userID, "error", err)
	}
}
