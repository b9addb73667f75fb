package services

import (
	"context"
	"fmt"
	"time"

	"glidemoney/internal/log"
)

// UserLister enumerates users with a stored profile.
type UserLister interface {
	ListUsers(ctx context.Context) ([]string, error)
}

// RecomputeProcessor replans every user whose plan is stale for their cadence.
type RecomputeProcessor struct {
	users   UserLister
	planner *Planner
}

func NewRecomputeProcessor(users UserLister, planner *Planner) *RecomputeProcessor {
	return &RecomputeProcessor{users: users, planner: planner}
}

// ProcessDue plans each due user and returns how many were planned. A failing
// user is logged and skipped so one bad profile cannot block the rest.
func (p *RecomputeProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.users == nil || p.planner == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)

	users, err := p.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	processed := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		due, err := p.planner.IsDue(ctx, userID, now)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to check if plan is due",
				log.FieldUserID, userID, log.FieldError, err)
			continue
		}
		if !due {
			if p.planner.metrics != nil {
				p.planner.metrics.ObserveSkip(TriggerCron)
			}
			continue
		}

		if _, err := p.planner.Run(ctx, userID, now, TriggerCron); err != nil {
			continue
		}
		processed++
	}

	logger.InfoContext(ctx, "Scheduled recompute complete",
		"processed", processed,
		"total_checked", len(users))
	return processed, nil
}
