package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"glidemoney/internal/core"
	"glidemoney/internal/log"
)

// ErrNotFound is returned when a user has no stored profile.
var ErrNotFound = errors.New("not found")

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// SQLiteRepository stores the inputs of a planning run: profiles, cards,
// bills, and income. It never stores plans as authoritative state, only a
// summary of each run.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
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
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, userID string, p core.UserMoneyConfig) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertProfile(ctx, UserProfile{
		UserID:            userID,
		TargetUtilization: p.TargetUtilization,
		CushionCents:      p.Cushion.Cents,
		Cadence:           string(p.Cadence),
		Jurisdiction:      string(p.Jurisdiction),
		EffectiveTaxRate:  p.EffectiveTaxRate,
		HstRegistered:     p.HSTRegistered,
		UpdatedAt:         formatTime(r.now()),
	})
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	slog.InfoContext(ctx, "Profile saved", log.FieldUserID, userID, log.FieldJurisdiction, p.Jurisdiction)
	return nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.UserMoneyConfig, error) {
	p, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserMoneyConfig{}, fmt.Errorf("profile for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return core.UserMoneyConfig{}, fmt.Errorf("get profile: %w", err)
	}
	return core.UserMoneyConfig{
		TargetUtilization: p.TargetUtilization,
		Cushion:           core.Money{Cents: p.CushionCents},
		Cadence:           core.Cadence(p.Cadence),
		Jurisdiction:      core.Jurisdiction(p.Jurisdiction),
		EffectiveTaxRate:  p.EffectiveTaxRate,
		HSTRegistered:     p.HstRegistered,
	}, nil
}

// ListUsers returns every user with a stored profile.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) UpsertCard(ctx context.Context, userID string, c core.CardProfile) error {
	if err := c.Validate(); err != nil {
		return err
	}
	row := Card{
		UserID:             userID,
		ID:                 c.ID,
		Name:               c.Name,
		Institution:        c.Institution,
		LimitCents:         c.Limit.Cents,
		PostedBalanceCents: c.PostedBalance.Cents,
		Apr:                c.APR,
		TargetUtilization:  c.TargetUtilization,
		PostingDelayDays:   int64(c.PostingDelayDays),
		UpdatedAt:          formatTime(r.now()),
	}
	if !c.NextCloseDate.IsZero() {
		row.NextCloseDate = sql.NullString{String: formatTime(c.NextCloseDate), Valid: true}
	}
	if err := r.queries.UpsertCard(ctx, row); err != nil {
		return fmt.Errorf("upsert card %s: %w", c.ID, err)
	}
	slog.DebugContext(ctx, "Card saved", log.FieldUserID, userID, log.FieldCardID, c.ID)
	return nil
}

func (r *SQLiteRepository) DeleteCard(ctx context.Context, userID, cardID string) error {
	n, err := r.queries.DeleteCard(ctx, userID, cardID)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context, userID string) ([]core.CardProfile, error) {
	rows, err := r.queries.ListCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	cards := make([]core.CardProfile, 0, len(rows))
	for _, row := range rows {
		c := core.CardProfile{
			ID:                row.ID,
			Name:              row.Name,
			Institution:       row.Institution,
			Limit:             core.Money{Cents: row.LimitCents},
			PostedBalance:     core.Money{Cents: row.PostedBalanceCents},
			APR:               row.Apr,
			TargetUtilization: row.TargetUtilization,
			PostingDelayDays:  int(row.PostingDelayDays),
		}
		if row.NextCloseDate.Valid {
			if c.NextCloseDate, err = parseTime(row.NextCloseDate.String); err != nil {
				return nil, fmt.Errorf("card %s close date: %w", row.ID, err)
			}
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (r *SQLiteRepository) AddBill(ctx context.Context, userID string, b core.Bill) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	id, err := r.queries.CreateBill(ctx, Bill{UserID: userID, Name: b.Name, AmountCents: b.Amount.Cents, DueDate: formatTime(b.DueDate)})
	if err != nil {
		return "", fmt.Errorf("create bill: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// ListUpcomingBills returns bills due in [from, to).
func (r *SQLiteRepository) ListUpcomingBills(ctx context.Context, userID string, from, to time.Time) ([]core.Bill, error) {
	rows, err := r.queries.ListBillsDue(ctx, userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	bills := make([]core.Bill, 0, len(rows))
	for _, row := range rows {
		due, err := parseTime(row.DueDate)
		if err != nil {
			return nil, fmt.Errorf("bill %d due date: %w", row.ID, err)
		}
		bills = append(bills, core.Bill{
			ID:      strconv.FormatInt(row.ID, 10),
			Name:    row.Name,
			Amount:  core.Money{Cents: row.AmountCents},
			DueDate: due,
		})
	}
	return bills, nil
}

func (r *SQLiteRepository) AddIncome(ctx context.Context, userID string, it core.IncomeItem) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	received := it.ReceivedAt
	if received.IsZero() {
		received = r.now()
	}
	id, err := r.queries.CreateIncome(ctx, Income{
		UserID:        userID,
		GrossCents:    it.Gross.Cents,
		HstRegistered: it.HSTRegistered,
		ReceivedAt:    formatTime(received),
		Source:        it.Source,
	})
	if err != nil {
		return 0, fmt.Errorf("create income: %w", err)
	}
	slog.DebugContext(ctx, "Income recorded", log.FieldUserID, userID, log.FieldAmountCents, it.Gross.Cents)
	return id, nil
}

// ListIncome returns income received in [from, to).
func (r *SQLiteRepository) ListIncome(ctx context.Context, userID string, from, to time.Time) ([]core.IncomeItem, error) {
	rows, err := r.queries.ListIncome(ctx, userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	items := make([]core.IncomeItem, 0, len(rows))
	for _, row := range rows {
		received, err := parseTime(row.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("income %d received at: %w", row.ID, err)
		}
		items = append(items, core.IncomeItem{
			Gross:         core.Money{Cents: row.GrossCents},
			HSTRegistered: row.HstRegistered,
			ReceivedAt:    received,
			Source:        row.Source,
		})
	}
	return items, nil
}

// RecordPlanRun keeps a summary of a computed plan so schedulers know when a
// user was last planned.
func (r *SQLiteRepository) RecordPlanRun(ctx context.Context, userID, trigger string, p core.Plan) error {
	err := r.queries.CreatePlanRun(ctx, PlanRun{
		UserID:         userID,
		AsOf:           formatTime(p.AsOf),
		Trigger:        trigger,
		SetAsideCents:  p.SetAsides.Total.Cents,
		BudgetCents:    p.AvailableBudget.Cents,
		AllocatedCents: p.Allocated().Cents,
		Slices:         int64(len(p.Slices)),
	})
	if err != nil {
		return fmt.Errorf("record plan run: %w", err)
	}
	return nil
}

// LastPlanRun returns when the user was last planned. ok is false if never.
func (r *SQLiteRepository) LastPlanRun(ctx context.Context, userID string) (time.Time, bool, error) {
	run, err := r.queries.LastPlanRun(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last plan run: %w", err)
	}
	t, err := parseTime(run.AsOf)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("plan run as_of: %w", err)
	}
	return t, true, nil
}
