// Package worker drives the planner from queued requests and a schedule.
package worker

import (
	"context"
	"errors"
	"time"

	"glidemoney/internal/amqp"
	"glidemoney/internal/core"
	"glidemoney/internal/log"
	"glidemoney/internal/services"
	"glidemoney/internal/storage"
)

// PlanWorker turns recompute requests into planning runs.
type PlanWorker struct {
	planner *services.Planner
	now     func() time.Time
}

func NewPlanWorker(planner *services.Planner) *PlanWorker {
	return &PlanWorker{planner: planner, now: time.Now}
}

// HandleRecompute processes a single recompute message from AMQP. Requests
// that can never succeed are dropped instead of requeued.
func (w *PlanWorker) HandleRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	now := w.now()

	if !msg.Force {
		due, err := w.planner.IsDue(ctx, msg.UserID, now)
		if err != nil {
			if permanent(err) {
				logger.WarnContext(ctx, "Dropping recompute request",
					log.FieldMessageID, msg.ID, log.FieldUserID, msg.UserID, log.FieldError, err)
				return nil
			}
			return err
		}
		if !due {
			logger.DebugContext(ctx, "Plan not due, skipping",
				log.FieldMessageID, msg.ID, log.FieldUserID, msg.UserID)
			return nil
		}
	}

	trigger := msg.Trigger
	if trigger == "" {
		trigger = services.TriggerRequest
	}
	if _, err := w.planner.Run(ctx, msg.UserID, now, trigger); err != nil {
		if permanent(err) {
			logger.WarnContext(ctx, "Dropping recompute request",
				log.FieldMessageID, msg.ID, log.FieldUserID, msg.UserID, log.FieldError, err)
			return nil
		}
		return err
	}
	return nil
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, core.ErrInvalidInput) ||
		errors.Is(err, core.ErrUnsupportedJurisdiction) ||
		errors.Is(err, storage.ErrNotFound)
}
