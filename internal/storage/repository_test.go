package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finchat/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "finchat.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordAndQueryTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	march := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{ID: "t1", UserID: "alice", Amount: core.Money{Cents: -5000}, Category: "Groceries", Timestamp: march},
		{ID: "t2", UserID: "alice", Amount: core.Money{Cents: -3000}, Category: "Dining", Timestamp: march.AddDate(0, 0, 5)},
		{ID: "t3", UserID: "alice", Amount: core.Money{Cents: 200000}, Category: "Salary", Timestamp: march.AddDate(0, 1, 0)},
	}
	for _, tx := range txs {
		if err := repo.RecordTransaction(ctx, tx); err != nil {
			t.Fatalf("RecordTransaction %s: %v", tx.ID, err)
		}
	}

	tr := core.NewTimeRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	)
	got, err := repo.QueryTransactions(ctx, "alice", tr, nil)
	if err != nil {
		t.Fatalf("QueryTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}

	got, err = repo.QueryTransactions(ctx, "alice", tr, []string{"groceries"})
	if err != nil {
		t.Fatalf("QueryTransactions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" || got[0].Amount.Cents != -5000 {
		t.Fatalf("filtered = %+v", got)
	}
}

func TestVersionBumpsPerTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	v0, err := repo.Version(ctx, "alice")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	err = repo.RecordTransaction(ctx, core.Transaction{
		ID: "t1", UserID: "alice", Amount: core.Money{Cents: -100},
		Category: "Groceries", Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	v1, err := repo.Version(ctx, "alice")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v1 != v0+1 {
		t.Fatalf("version %d -> %d, want +1", v0, v1)
	}
}

func TestVersionUnknownUser(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Version(context.Background(), "mallory"); !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("err = %v, want ErrUnknownUser", err)
	}
}

func TestHasUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ok, err := repo.HasUser(ctx, "alice")
	if err != nil || ok {
		t.Fatalf("HasUser before register = %v, %v", ok, err)
	}
	if err := repo.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	ok, err = repo.HasUser(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("HasUser after register = %v, %v", ok, err)
	}
}

func TestAppendRejectsDuplicateEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	ev := core.XPEvent{
		EventID: "e1", UserID: "alice", Action: core.ActionExpenseLogged,
		XPDelta: 50, OccurredAt: time.Now().UTC(),
	}
	if err := repo.Append(ctx, ev); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := repo.Append(ctx, ev); !errors.Is(err, core.ErrDuplicateEvent) {
		t.Fatalf("second Append = %v, want ErrDuplicateEvent", err)
	}

	evs, err := repo.Events(ctx, "alice")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 1 || evs[0].EventID != "e1" || evs[0].XPDelta != 50 {
		t.Fatalf("events = %+v", evs)
	}
}

func TestStateRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.RegisterUser(ctx, "alice"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, ok, err := repo.Load(ctx, "alice"); err != nil || ok {
		t.Fatalf("Load before save = %v, %v", ok, err)
	}

	st := core.GamificationState{
		UserID: "alice", TotalXP: 150, Level: 2,
		Achievements: []string{"first_expense", "xp_100"},
	}
	if err := repo.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.TotalXP = 200
	if err := repo.Save(ctx, st); err != nil {
		t.Fatalf("upsert Save: %v", err)
	}

	got, ok, err := repo.Load(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.TotalXP != 200 || got.Level != 2 || len(got.Achievements) != 2 {
		t.Fatalf("state = %+v", got)
	}
}

func TestExchangeLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"x1", "x2"} {
		err := repo.SaveExchange(ctx, core.ChatExchange{
			ID: id, UserID: "alice", Question: "how much did I spend?",
			Answer: "You spent 80 EUR.", Source: core.SourceLLM,
			Reconciled: i == 1, CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveExchange %s: %v", id, err)
		}
	}

	got, err := repo.RecentExchanges(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentExchanges: %v", err)
	}
	if len(got) != 2 || got[0].ID != "x2" || !got[0].Reconciled {
		t.Fatalf("exchanges = %+v", got)
	}
}
