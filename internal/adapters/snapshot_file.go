// Package adapters reads planning inputs from sources other than the SQLite
// store. SnapshotFile serves a single user's profile, cards, bills and income
// from a YAML document so the CLI can plan without a database.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"glidemoney/internal/core"
	"glidemoney/internal/storage"
)

type (
	// Amount is a dollar figure written as a number or a string such as "$1,200.50".
	Amount struct{ core.Money }

	// Date accepts 2006-01-02 or RFC 3339.
	Date struct{ time.Time }

	snapshotDoc struct {
		User    string      `yaml:"user"`
		Profile profileDoc  `yaml:"profile"`
		Cards   []cardDoc   `yaml:"cards"`
		Bills   []billDoc   `yaml:"bills"`
		Income  []incomeDoc `yaml:"income"`
	}

	profileDoc struct {
		TargetUtilization float64 `yaml:"target_utilization"`
		Cushion           Amount  `yaml:"cushion"`
		Cadence           string  `yaml:"cadence"`
		Jurisdiction      string  `yaml:"jurisdiction"`
		EffectiveTaxRate  float64 `yaml:"effective_tax_rate"`
		HSTRegistered     bool    `yaml:"hst_registered"`
	}

	cardDoc struct {
		ID                string  `yaml:"id"`
		Name              string  `yaml:"name"`
		Institution       string  `yaml:"institution"`
		Limit             Amount  `yaml:"limit"`
		PostedBalance     Amount  `yaml:"posted_balance"`
		APR               float64 `yaml:"apr"`
		TargetUtilization float64 `yaml:"target_utilization"`
		NextCloseDate     Date    `yaml:"next_close_date"`
		PostingDelayDays  int     `yaml:"posting_delay_days"`
	}

	billDoc struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Amount  Amount `yaml:"amount"`
		DueDate Date   `yaml:"due_date"`
	}

	incomeDoc struct {
		Gross         Amount `yaml:"gross"`
		HSTRegistered bool   `yaml:"hst_registered"`
		ReceivedAt    Date   `yaml:"received_at"`
		Source        string `yaml:"source"`
	}
)

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q is not an amount", core.ErrInvalidAmount, node.Line, node.Value)
	}
	a.Money = core.Money{Cents: d.Shift(2).Round(0).IntPart()}
	return nil
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: line %d: %q is not a date", core.ErrInvalidInput, node.Line, node.Value)
}

// SnapshotFile is an in-memory snapshot loaded from YAML. Income without a
// received_at date belongs to every window.
type SnapshotFile struct {
	user    string
	profile core.UserMoneyConfig
	cards   []core.CardProfile
	bills   []core.Bill
	income  []core.IncomeItem
}

// LoadSnapshotFile reads and parses the YAML document at path.
func LoadSnapshotFile(path string) (*SnapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	f, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot file %s: %w", path, err)
	}
	return f, nil
}

// ParseSnapshot decodes a YAML snapshot. The jurisdiction is required and
// normalized; other fields are validated when a plan is computed.
func ParseSnapshot(data []byte) (*SnapshotFile, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	if strings.TrimSpace(doc.User) == "" {
		return nil, fmt.Errorf("%w: user is required", core.ErrInvalidInput)
	}
	j, err := core.ParseJurisdiction(doc.Profile.Jurisdiction)
	if err != nil {
		return nil, err
	}

	f := &SnapshotFile{
		user: doc.User,
		profile: core.UserMoneyConfig{
			TargetUtilization: doc.Profile.TargetUtilization,
			Cushion:           doc.Profile.Cushion.Money,
			Cadence:           core.Cadence(strings.ToLower(doc.Profile.Cadence)),
			Jurisdiction:      j,
			EffectiveTaxRate:  doc.Profile.EffectiveTaxRate,
			HSTRegistered:     doc.Profile.HSTRegistered,
		},
	}
	if f.profile.Cadence == "" {
		f.profile.Cadence = core.Weekly
	}
	for _, c := range doc.Cards {
		f.cards = append(f.cards, core.CardProfile{
			ID:                c.ID,
			Name:              c.Name,
			Institution:       c.Institution,
			Limit:             c.Limit.Money,
			PostedBalance:     c.PostedBalance.Money,
			APR:               c.APR,
			TargetUtilization: c.TargetUtilization,
			NextCloseDate:     c.NextCloseDate.Time,
			PostingDelayDays:  c.PostingDelayDays,
		})
	}
	for i, b := range doc.Bills {
		id := b.ID
		if id == "" {
			id = fmt.Sprintf("bill-%d", i+1)
		}
		f.bills = append(f.bills, core.Bill{ID: id, Name: b.Name, Amount: b.Amount.Money, DueDate: b.DueDate.Time})
	}
	for _, it := range doc.Income {
		f.income = append(f.income, core.IncomeItem{
			Gross:         it.Gross.Money,
			HSTRegistered: it.HSTRegistered,
			ReceivedAt:    it.ReceivedAt.Time,
			Source:        it.Source,
		})
	}
	return f, nil
}

// User returns the user the snapshot belongs to.
func (f *SnapshotFile) User() string { return f.user }

func (f *SnapshotFile) ListUsers(context.Context) ([]string, error) {
	return []string{f.user}, nil
}

func (f *SnapshotFile) GetProfile(_ context.Context, userID string) (core.UserMoneyConfig, error) {
	if err := f.check(userID); err != nil {
		return core.UserMoneyConfig{}, err
	}
	return f.profile, nil
}

func (f *SnapshotFile) ListCards(_ context.Context, userID string) ([]core.CardProfile, error) {
	if err := f.check(userID); err != nil {
		return nil, err
	}
	return slices.Clone(f.cards), nil
}

// ListUpcomingBills returns bills due in [from, to). Undated bills are always due.
func (f *SnapshotFile) ListUpcomingBills(_ context.Context, userID string, from, to time.Time) ([]core.Bill, error) {
	if err := f.check(userID); err != nil {
		return nil, err
	}
	var out []core.Bill
	for _, b := range f.bills {
		if b.DueDate.IsZero() || inWindow(b.DueDate, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListIncome returns income received in [from, to) plus undated items.
func (f *SnapshotFile) ListIncome(_ context.Context, userID string, from, to time.Time) ([]core.IncomeItem, error) {
	if err := f.check(userID); err != nil {
		return nil, err
	}
	var out []core.IncomeItem
	for _, it := range f.income {
		if it.ReceivedAt.IsZero() || inWindow(it.ReceivedAt, from, to) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Income returns every income item in the file.
func (f *SnapshotFile) Income() []core.IncomeItem {
	return slices.Clone(f.income)
}

// Import writes the snapshot into a store. Undated bills are stored as due
// at now and undated income as received at now.
func (f *SnapshotFile) Import(ctx context.Context, repo *storage.SQLiteRepository, now time.Time) error {
	if err := repo.SaveProfile(ctx, f.user, f.profile); err != nil {
		return err
	}
	for _, c := range f.cards {
		if err := repo.UpsertCard(ctx, f.user, c); err != nil {
			return err
		}
	}
	for _, b := range f.bills {
		if b.DueDate.IsZero() {
			b.DueDate = now
		}
		if _, err := repo.AddBill(ctx, f.user, b); err != nil {
			return err
		}
	}
	for _, it := range f.income {
		if it.ReceivedAt.IsZero() {
			it.ReceivedAt = now
		}
		if _, err := repo.AddIncome(ctx, f.user, it); err != nil {
			return err
		}
	}
	return nil
}

func (f *SnapshotFile) check(userID string) error {
	if userID != f.user {
		return fmt.Errorf("profile for %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
