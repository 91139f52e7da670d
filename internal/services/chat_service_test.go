package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"finchat/internal/aggregate"
	"finchat/internal/core"
	"finchat/internal/intent"
	"finchat/internal/ledger/memory"
	"finchat/internal/log"
)

type fakeAsker struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (string, error) {
	f.calls++
	f.last = question
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type capturingLog struct {
	exchanges []core.ChatExchange
}

func (c *capturingLog) SaveExchange(_ context.Context, ex core.ChatExchange) error {
	c.exchanges = append(c.exchanges, ex)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{
		Component: "chat",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

var refNow = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

func seededChatService(asker Asker) (*ChatService, *capturingLog) {
	store := memory.New()
	store.Record("alice",
		core.Transaction{ID: "t1", UserID: "alice", Amount: core.Money{Cents: -5000},
			Category: "Groceries", Timestamp: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)},
		core.Transaction{ID: "t2", UserID: "alice", Amount: core.Money{Cents: -3000},
			Category: "Groceries", Timestamp: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)},
	)

	exchanges := &capturingLog{}
	svc := NewChatService(
		intent.NewResolver(nil),
		aggregate.New(store, 128, time.Minute),
		asker,
		store,
		exchanges,
		testLogger(),
	)
	return svc, exchanges
}

func TestAnswerGroundedQuestion(t *testing.T) {
	asker := &fakeAsker{reply: "You spent 80 EUR on groceries in March 2024."}
	svc, exchanges := seededChatService(asker)

	got, err := svc.Answer(context.Background(), "alice",
		"How much did I spend on groceries in March 2024?", refNow)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Source != core.SourceLLM {
		t.Errorf("Source = %q, want %q", got.Source, core.SourceLLM)
	}
	if got.Reconciled {
		t.Error("correct reply flagged as reconciled")
	}
	if !strings.Contains(got.Answer, "80") {
		t.Errorf("answer missing verified amount: %q", got.Answer)
	}
	if !strings.Contains(asker.last, "VERIFIED DATA:") {
		t.Errorf("prompt missing grounded block: %q", asker.last)
	}

	if len(exchanges.exchanges) != 1 {
		t.Fatalf("exchanges logged = %d, want 1", len(exchanges.exchanges))
	}
	ex := exchanges.exchanges[0]
	if ex.Query == nil || ex.Result == nil || ex.Source != core.SourceLLM {
		t.Errorf("exchange = %+v", ex)
	}
}

func TestAnswerRewritesContradictingReply(t *testing.T) {
	asker := &fakeAsker{reply: "You spent 75 EUR on groceries."}
	svc, _ := seededChatService(asker)

	got, err := svc.Answer(context.Background(), "alice",
		"How much did I spend on groceries in March 2024?", refNow)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !got.Reconciled {
		t.Fatal("contradicting reply not reconciled")
	}
	if got.Answer != "You spent 80 EUR on groceries." {
		t.Errorf("answer = %q", got.Answer)
	}
}

func TestAnswerFallsBackWhenGatewayFails(t *testing.T) {
	asker := &fakeAsker{err: &core.GatewayError{Attempts: 3, Last: context.DeadlineExceeded}}
	svc, exchanges := seededChatService(asker)

	got, err := svc.Answer(context.Background(), "alice",
		"How much did I spend on groceries in March 2024?", refNow)
	if err != nil {
		t.Fatalf("Answer should fall back, got error: %v", err)
	}
	if got.Source != core.SourceFallback {
		t.Errorf("Source = %q, want %q", got.Source, core.SourceFallback)
	}
	if !strings.Contains(got.Answer, "80") {
		t.Errorf("fallback answer missing verified amount: %q", got.Answer)
	}
	if len(exchanges.exchanges) != 1 || exchanges.exchanges[0].Source != core.SourceFallback {
		t.Errorf("exchanges = %+v", exchanges.exchanges)
	}
}

func TestAnswerUnknownUser(t *testing.T) {
	svc, _ := seededChatService(&fakeAsker{reply: "ok"})

	_, err := svc.Answer(context.Background(), "mallory", "How much did I spend today?", refNow)
	if !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("err = %v, want ErrUnknownUser", err)
	}
}

func TestAnswerUnresolvableQuestion(t *testing.T) {
	asker := &fakeAsker{reply: "should not be called"}
	svc, _ := seededChatService(asker)

	_, err := svc.Answer(context.Background(), "alice",
		"How much did I spend on groceries?", refNow)
	if !errors.Is(err, core.ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
	var unres *core.UnresolvableError
	if !errors.As(err, &unres) || unres.Reason != core.ReasonAmbiguousTime {
		t.Fatalf("reason = %+v", err)
	}
	if asker.calls != 0 {
		t.Errorf("gateway called %d times for unresolvable question", asker.calls)
	}
}

func TestAnswerGeneralQuestion(t *testing.T) {
	asker := &fakeAsker{reply: "Compound interest is interest earned on interest."}
	svc, exchanges := seededChatService(asker)

	got, err := svc.Answer(context.Background(), "alice", "What is compound interest?", refNow)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Source != core.SourceLLM || got.Query != nil || got.Result != nil {
		t.Errorf("answer = %+v", got)
	}
	if strings.Contains(asker.last, "VERIFIED DATA:") {
		t.Errorf("general prompt should not carry ledger data: %q", asker.last)
	}
	if len(exchanges.exchanges) != 1 || exchanges.exchanges[0].Query != nil {
		t.Errorf("exchanges = %+v", exchanges.exchanges)
	}
}

func TestAnswerGeneralQuestionGatewayFailureSurfaces(t *testing.T) {
	asker := &fakeAsker{err: &core.GatewayError{Attempts: 3, Last: context.DeadlineExceeded}}
	svc, _ := seededChatService(asker)

	_, err := svc.Answer(context.Background(), "alice", "What is compound interest?", refNow)
	if !errors.Is(err, core.ErrGatewayFailure) {
		t.Fatalf("err = %v, want ErrGatewayFailure", err)
	}
}

func TestFallbackAnswerWording(t *testing.T) {
	tr := core.NewTimeRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	)
	q := core.StructuredQuery{UserID: "alice", Range: tr, Categories: []string{"Groceries"}, Kind: core.AggregationSum}

	got := FallbackAnswer(q, core.AggregationResult{
		Kind: core.AggregationSum, Value: core.Money{Cents: -8000},
		Count: 2, Unit: "EUR", Range: tr,
	})
	want := "You spent 80 EUR on Groceries between 1 March 2024 and 31 March 2024."
	if got != want {
		t.Errorf("sum fallback = %q, want %q", got, want)
	}

	got = FallbackAnswer(q, core.AggregationResult{
		Kind: core.AggregationSum, Unit: "EUR", Range: tr, NoData: true,
	})
	if !strings.Contains(got, "No matching transactions") {
		t.Errorf("no-data fallback = %q", got)
	}

	q.Kind = core.AggregationCount
	got = FallbackAnswer(q, core.AggregationResult{
		Kind: core.AggregationCount, Value: core.Money{Cents: 200},
		Count: 2, Unit: "EUR", Range: tr,
	})
	if !strings.Contains(got, "2 transactions") {
		t.Errorf("count fallback = %q", got)
	}
}
