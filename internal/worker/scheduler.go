package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"glidemoney/internal/log"
)

// DueProcessor replans every user whose plan is stale.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the due processor on a cron schedule.
type Scheduler struct {
	processor DueProcessor
	spec      string
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewScheduler(processor DueProcessor, spec string) *Scheduler {
	return &Scheduler{processor: processor, spec: spec, now: time.Now}
}

// Start registers the schedule and begins firing. Returns an error if
// already running or if the spec does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid recompute schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron, s.running = c, true

	log.FromContext(ctx).WithComponent(log.ComponentWorker).InfoContext(ctx, "Recompute scheduler started",
		"schedule", s.spec)
	return nil
}

// RunOnce processes due users immediately.
func (s *Scheduler) RunOnce(ctx context.Context) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	n, err := s.processor.ProcessDue(ctx, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled recompute failed", log.FieldError, err)
		return
	}
	logger.DebugContext(ctx, "Scheduled recompute ran", "processed", n)
}

// Stop halts the schedule and waits for a running job or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	done := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
