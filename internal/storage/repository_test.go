package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"glidemoney/internal/core"
)

var now = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "glide.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	repo.now = func() time.Time { return now }
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glide.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := repo.Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
		repo.Close()
	}
}

func TestProfileRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetProfile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := core.UserMoneyConfig{
		TargetUtilization: 0.3,
		Cushion:           core.Dollars(100),
		Cadence:           core.Weekly,
		Jurisdiction:      "ON",
		EffectiveTaxRate:  0.18,
		HSTRegistered:     true,
	}
	if err := repo.SaveProfile(ctx, "u1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.Cadence = core.BiWeekly
	if err := repo.SaveProfile(ctx, "u1", want); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("profile mismatch:\n got %+v\nwant %+v", got, want)
	}

	users, err := repo.ListUsers(ctx)
	if err != nil || len(users) != 1 || users[0] != "u1" {
		t.Fatalf("unexpected users %v (err=%v)", users, err)
	}
}

func TestSaveProfileRejectsMissingJurisdiction(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.SaveProfile(context.Background(), "u1", core.UserMoneyConfig{TargetUtilization: 0.3, Cadence: core.Weekly})
	if !errors.Is(err, core.ErrMissingJurisdiction) {
		t.Fatalf("expected ErrMissingJurisdiction, got %v", err)
	}
}

func TestCards(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	closeDate := time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC)
	cards := []core.CardProfile{
		{ID: "rbc-mc", Name: "RBC MC", Limit: core.Dollars(3500), PostedBalance: core.Dollars(200), APR: 20.99},
		{ID: "td-visa", Name: "TD Visa", Institution: "TD", Limit: core.Dollars(2000), PostedBalance: core.Dollars(960),
			APR: 19.99, TargetUtilization: 0.1, NextCloseDate: closeDate, PostingDelayDays: 2},
	}
	for _, c := range cards {
		if err := repo.UpsertCard(ctx, "u1", c); err != nil {
			t.Fatalf("upsert %s: %v", c.ID, err)
		}
	}
	cards[0].PostedBalance = core.Dollars(250)
	if err := repo.UpsertCard(ctx, "u1", cards[0]); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.ListCards(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(got))
	}
	if got[0].PostedBalance.Cents != 25000 {
		t.Errorf("update not applied: %v", got[0].PostedBalance)
	}
	if !got[1].NextCloseDate.Equal(closeDate) || got[1].PostingDelayDays != 2 || got[1].TargetUtilization != 0.1 {
		t.Errorf("unexpected card %+v", got[1])
	}
	if !got[0].NextCloseDate.IsZero() {
		t.Errorf("expected unknown close date, got %v", got[0].NextCloseDate)
	}

	if others, _ := repo.ListCards(ctx, "u2"); len(others) != 0 {
		t.Errorf("cards leaked across users: %v", others)
	}

	if err := repo.UpsertCard(ctx, "u1", core.CardProfile{ID: "bad"}); !errors.Is(err, core.ErrInvalidCardProfile) {
		t.Errorf("expected ErrInvalidCardProfile, got %v", err)
	}

	if err := repo.DeleteCard(ctx, "u1", "rbc-mc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteCard(ctx, "u1", "rbc-mc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestBillsWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, b := range []core.Bill{
		{Name: "phone", Amount: core.Dollars(65), DueDate: now.AddDate(0, 0, 2)},
		{Name: "rent", Amount: core.Dollars(1200), DueDate: now.AddDate(0, 0, 20)},
		{Name: "gym", Amount: core.Dollars(40), DueDate: now.AddDate(0, 0, -1)},
	} {
		if _, err := repo.AddBill(ctx, "u1", b); err != nil {
			t.Fatalf("add %s: %v", b.Name, err)
		}
	}

	got, err := repo.ListUpcomingBills(ctx, "u1", now, now.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "phone" || got[0].Amount.Cents != 6500 {
		t.Fatalf("unexpected bills %+v", got)
	}
	if got[0].ID == "" {
		t.Error("expected bill id")
	}
}

func TestIncomeWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	items := []core.IncomeItem{
		{Gross: core.Dollars(400), HSTRegistered: true, ReceivedAt: now.AddDate(0, 0, -3), Source: "uber"},
		{Gross: core.Dollars(280), ReceivedAt: now.AddDate(0, 0, -1), Source: "doordash"},
		{Gross: core.Dollars(999), ReceivedAt: now.AddDate(0, 0, -10)},
	}
	for _, it := range items {
		if _, err := repo.AddIncome(ctx, "u1", it); err != nil {
			t.Fatalf("add income: %v", err)
		}
	}
	if _, err := repo.AddIncome(ctx, "u1", core.IncomeItem{Gross: core.Money{Cents: -1}}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, err := repo.ListIncome(ctx, "u1", now.AddDate(0, 0, -7), now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items in window, got %d", len(got))
	}
	if total := core.TotalIncome(got); total.Cents != 68000 {
		t.Errorf("expected $680 in window, got %v", total)
	}
	if !got[0].HSTRegistered || got[0].Source != "uber" || !got[0].ReceivedAt.Equal(items[0].ReceivedAt) {
		t.Errorf("unexpected first item %+v", got[0])
	}
}

func TestPlanRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.LastPlanRun(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected no runs, got ok=%v err=%v", ok, err)
	}

	plan := core.Plan{
		AsOf:            now,
		AvailableBudget: core.Dollars(421.14),
		Slices:          []core.PaymentSlice{{CardID: "td-visa", Amount: core.Dollars(421.14)}},
	}
	if err := repo.RecordPlanRun(ctx, "u1", "cron", plan); err != nil {
		t.Fatalf("record: %v", err)
	}
	plan.AsOf = now.Add(time.Hour)
	if err := repo.RecordPlanRun(ctx, "u1", "request", plan); err != nil {
		t.Fatalf("record: %v", err)
	}

	last, ok, err := repo.LastPlanRun(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected a run, got ok=%v err=%v", ok, err)
	}
	if !last.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected latest run, got %v", last)
	}
}
