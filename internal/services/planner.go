package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"glidemoney/internal/core"
	"glidemoney/internal/export"
	"glidemoney/internal/glide"
	"glidemoney/internal/log"
	"glidemoney/internal/metrics"
	"glidemoney/internal/tax"
)

// Trigger names recorded with every run.
const (
	TriggerRequest = "request"
	TriggerCron    = "cron"
	TriggerCLI     = "cli"
	TriggerAPI     = "api"
)

type (
	// SnapshotSource is the read side of the collaborator store.
	SnapshotSource interface {
		GetProfile(ctx context.Context, userID string) (core.UserMoneyConfig, error)
		ListCards(ctx context.Context, userID string) ([]core.CardProfile, error)
		ListUpcomingBills(ctx context.Context, userID string, from, to time.Time) ([]core.Bill, error)
		ListIncome(ctx context.Context, userID string, from, to time.Time) ([]core.IncomeItem, error)
	}

	// RunLog remembers when each user was last planned.
	RunLog interface {
		RecordPlanRun(ctx context.Context, userID, trigger string, p core.Plan) error
		LastPlanRun(ctx context.Context, userID string) (time.Time, bool, error)
	}

	PlanCache interface {
		Get(ctx context.Context, userID string) (core.Plan, bool, error)
		Set(ctx context.Context, userID string, p core.Plan) error
	}
)

// PlannerConfig holds the knobs that are not collaborators.
type PlannerConfig struct {
	// TaxYear selects the rate table. Zero means the year of the run.
	TaxYear int
	Glide   glide.Options
}

// Planner runs one planning pass per call. Every run reads a fresh snapshot;
// nothing computed by a previous run feeds the next one.
type Planner struct {
	source   SnapshotSource
	rates    tax.RateTableProvider
	config   PlannerConfig
	runs     RunLog
	cache    PlanCache
	exporter export.Exporter
	metrics  *metrics.Registry
}

func NewPlanner(source SnapshotSource, rates tax.RateTableProvider, config PlannerConfig) *Planner {
	return &Planner{source: source, rates: rates, config: config}
}

// WithRunLog, WithCache, WithExporter and WithMetrics attach optional side
// effects. Their failures are logged and never fail a run.
func (p *Planner) WithRunLog(r RunLog) *Planner {
	p.runs = r
	return p
}

func (p *Planner) WithCache(c PlanCache) *Planner {
	p.cache = c
	return p
}

func (p *Planner) WithExporter(e export.Exporter) *Planner {
	p.exporter = e
	return p
}

func (p *Planner) WithMetrics(m *metrics.Registry) *Planner {
	p.metrics = m
	return p
}

// PlanResult is everything one run produces.
type PlanResult struct {
	UserID     string
	Trigger    string
	Snapshot   core.Snapshot
	Plan       core.Plan
	YearToDate core.SetAsides
	HSTPace    tax.Pace
	Ranked     []glide.CardState
	Top        glide.CardState
	HasTop     bool
	Queue      []glide.CardState
}

// Snapshot reads every collaborator for one run. The profile is read first
// because its cadence sets the income and bill windows; the remaining reads
// run concurrently.
func (p *Planner) Snapshot(ctx context.Context, userID string, now time.Time) (core.Snapshot, []core.IncomeItem, error) {
	profile, err := p.source.GetProfile(ctx, userID)
	if err != nil {
		return core.Snapshot{}, nil, fmt.Errorf("get profile: %w", err)
	}
	checker, err := GetRecomputeChecker(profile.Cadence)
	if err != nil {
		return core.Snapshot{}, nil, err
	}
	from, to := checker.Window(now)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	snap := core.Snapshot{UserID: userID, Profile: profile}
	var ytd []core.IncomeItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cards, err := p.source.ListCards(gctx, userID)
		if err != nil {
			return fmt.Errorf("list cards: %w", err)
		}
		snap.Cards = cards
		return nil
	})
	g.Go(func() error {
		// bills due before the next income arrives
		bills, err := p.source.ListUpcomingBills(gctx, userID, now, now.Add(to.Sub(from)))
		if err != nil {
			return fmt.Errorf("list bills: %w", err)
		}
		snap.Bills = bills
		return nil
	})
	g.Go(func() error {
		items, err := p.source.ListIncome(gctx, userID, from, to)
		if err != nil {
			return fmt.Errorf("list period income: %w", err)
		}
		snap.Income = items
		return nil
	})
	g.Go(func() error {
		items, err := p.source.ListIncome(gctx, userID, yearStart, now)
		if err != nil {
			return fmt.Errorf("list year-to-date income: %w", err)
		}
		ytd = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, nil, err
	}

	snap.PeriodIncome = core.TotalIncome(snap.Income)
	return snap, ytd, nil
}

// Run computes a plan for userID as of now, records the run and exports
// the result.
func (p *Planner) Run(ctx context.Context, userID string, now time.Time, trigger string) (*PlanResult, error) {
	return p.run(ctx, userID, now, trigger, true)
}

// Preview computes and caches a plan without recording the run or
// exporting it. Reads use it so they never append export rows or reset
// cadence due-ness.
func (p *Planner) Preview(ctx context.Context, userID string, now time.Time, trigger string) (*PlanResult, error) {
	return p.run(ctx, userID, now, trigger, false)
}

func (p *Planner) run(ctx context.Context, userID string, now time.Time, trigger string, persist bool) (*PlanResult, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentPlanner)
	start := time.Now()

	result, err := p.compute(ctx, userID, now, trigger)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ObserveFailure(trigger, time.Since(start))
		}
		logger.ErrorContext(ctx, "Planning run failed",
			log.NewFields().WithUser(userID).WithOperation(log.OpPlan).WithError(err).Args()...)
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.ObservePlan(trigger, result.Plan, time.Since(start))
	}
	logger.InfoContext(ctx, "Plan computed",
		append(log.NewFields().WithUser(userID).WithSetAsides(result.Plan.SetAsides).WithPlan(result.Plan).Args(),
			log.FieldTrigger, trigger,
			log.FieldDuration, time.Since(start).Milliseconds())...)

	p.sideEffects(ctx, logger, result, persist)
	return result, nil
}

func (p *Planner) compute(ctx context.Context, userID string, now time.Time, trigger string) (*PlanResult, error) {
	snap, ytd, err := p.Snapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	year := p.config.TaxYear
	if year == 0 {
		year = now.Year()
	}
	table, err := p.rates.RateTable(year, snap.Profile.Jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("rate table %d/%s: %w", year, snap.Profile.Jurisdiction, err)
	}

	plan, err := glide.ComputePlan(glide.PlanInput{
		Cards:        snap.Cards,
		Config:       snap.Profile,
		Bills:        snap.Bills,
		PeriodIncome: snap.PeriodIncome,
	}, table, now, p.config.Glide)
	if err != nil {
		return nil, fmt.Errorf("compute plan: %w", err)
	}

	ytdSetAsides, err := tax.ComputeSetAsides(ytd, table)
	if err != nil {
		return nil, fmt.Errorf("year-to-date set-asides: %w", err)
	}
	pace, err := tax.HSTPace(core.TotalIncome(ytd), table)
	if err != nil {
		return nil, fmt.Errorf("hst pace: %w", err)
	}

	states := glide.States(snap.Cards, snap.Profile.TargetUtilization, plan)
	top, hasTop := glide.TopAction(states, now)
	return &PlanResult{
		UserID:     userID,
		Trigger:    trigger,
		Snapshot:   snap,
		Plan:       plan,
		YearToDate: ytdSetAsides,
		HSTPace:    pace,
		Ranked:     glide.SortCards(states, now),
		Top:        top,
		HasTop:     hasTop,
		Queue:      glide.ActionQueue(states, now),
	}, nil
}

// sideEffects caches a computed plan and, when persist is set, records the
// run and exports it. Failures only log; the caller still gets the plan.
func (p *Planner) sideEffects(ctx context.Context, logger *log.Logger, r *PlanResult, persist bool) {
	fail := func(stage string, err error) {
		if p.metrics != nil {
			p.metrics.SideEffectFailed(stage)
		}
		logger.WarnContext(ctx, "Plan side effect failed",
			log.FieldUserID, r.UserID, "stage", stage, log.FieldError, err)
	}

	if persist && p.runs != nil {
		if err := p.runs.RecordPlanRun(ctx, r.UserID, r.Trigger, r.Plan); err != nil {
			fail("record", err)
		}
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, r.UserID, r.Plan); err != nil {
			fail("cache", err)
		}
	}
	if persist && p.exporter != nil {
		if _, err := p.exporter.ExportSetAsides(ctx, r.UserID, r.Plan.AsOf, r.Plan.SetAsides); err != nil {
			fail("export_set_asides", err)
		}
		if _, err := p.exporter.ExportPlan(ctx, r.UserID, r.Plan); err != nil {
			fail("export_plan", err)
		}
	}
}

// CachedPlan returns the last cached plan for a user without recomputing.
func (p *Planner) CachedPlan(ctx context.Context, userID string) (core.Plan, bool, error) {
	if p.cache == nil {
		return core.Plan{}, false, nil
	}
	plan, ok, err := p.cache.Get(ctx, userID)
	if err != nil {
		return core.Plan{}, false, err
	}
	if p.metrics != nil {
		p.metrics.CacheLookup(ok)
	}
	return plan, ok, nil
}

// IsDue reports whether a user's plan is stale for their cadence.
func (p *Planner) IsDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	if p.runs == nil {
		return true, nil
	}
	profile, err := p.source.GetProfile(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get profile: %w", err)
	}
	checker, err := GetRecomputeChecker(profile.Cadence)
	if err != nil {
		return false, err
	}
	last, ok, err := p.runs.LastPlanRun(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return checker.IsDue(last, now), nil
}
