// Package services orchestrates planning runs around the pure tax and glide
// packages: it reads a snapshot, computes the plan, and fans the result out
// to the run log, the plan cache, metrics, and exporters.
//
// This file holds one recompute strategy per income cadence. Each decides
// whether a user's plan is stale given when it was last computed.
package services

import (
	"fmt"
	"time"

	"glidemoney/internal/core"
)

// RecomputeChecker is the strategy interface for deciding whether a plan is due.
type RecomputeChecker interface {
	// IsDue returns true if the plan should be recomputed given the last run.
	IsDue(lastRun, now time.Time) bool

	// Window returns the income period ending at now.
	Window(now time.Time) (from, to time.Time)
}

type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since the last run.
func (WeeklyChecker) IsDue(lastRun, now time.Time) bool {
	return daysSince(lastRun, now, 7)
}

func (WeeklyChecker) Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -7), now
}

type BiWeeklyChecker struct{}

// IsDue returns true if 14 or more days have passed since the last run.
func (BiWeeklyChecker) IsDue(lastRun, now time.Time) bool {
	return daysSince(lastRun, now, 14)
}

func (BiWeeklyChecker) Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -14), now
}

type MonthlyChecker struct{}

// IsDue returns true once per calendar month.
func (MonthlyChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Year() != now.Year() || lastRun.Month() != now.Month()
}

func (MonthlyChecker) Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, -1, 0), now
}

func daysSince(lastRun, now time.Time, days float64) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun).Hours()/24 >= days
}

var recomputeStrategies = map[core.Cadence]RecomputeChecker{
	core.Weekly:   WeeklyChecker{},
	core.BiWeekly: BiWeeklyChecker{},
	core.Monthly:  MonthlyChecker{},
}

// GetRecomputeChecker returns the checker for a cadence.
func GetRecomputeChecker(c core.Cadence) (RecomputeChecker, error) {
	checker, ok := recomputeStrategies[c]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cadence %q", core.ErrInvalidMoneyConfig, c)
	}
	return checker, nil
}

// RegisterRecomputeChecker installs a checker for a cadence, replacing any existing one.
func RegisterRecomputeChecker(c core.Cadence, checker RecomputeChecker) {
	recomputeStrategies[c] = checker
}
