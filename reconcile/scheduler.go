package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig configures the watch-mode pass scheduler.
type SchedulerConfig struct {
	// Reconciler runs the passes. Required.
	Reconciler *Reconciler

	// CronExpr is a standard 5-field cron expression, evaluated in UTC.
	// Required.
	CronExpr string

	Now    func() time.Time
	Logger *slog.Logger
}

// Scheduler fires reconciliation passes on a cron schedule. Passes never
// overlap: a fire that lands while the prior pass is still running is
// skipped and logged.
type Scheduler struct {
	reconciler *Reconciler
	schedule   cron.Schedule
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a pass scheduler instance.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Reconciler == nil {
		return nil, errors.New("pass scheduler reconciler is nil")
	}
	schedule, err := parseCronExpressionUTC(cfg.CronExpr)
	if err != nil {
		return nil, fmt.Errorf("pass scheduler: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		reconciler: cfg.Reconciler,
		schedule:   schedule,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}, nil
}

// Start begins firing passes in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("pass scheduler is nil")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(loopCtx, done)

	return nil
}

// Stop cancels the schedule and waits for the loop, including any in-flight
// pass, to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single pass outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if s == nil || s.reconciler == nil {
		return Report{}, errors.New("pass scheduler is not configured")
	}
	return s.reconciler.Run(ctx)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var passDone chan struct{}

	for {
		now := s.now().UTC()
		next := s.schedule.Next(now)
		s.logger.Debug("next pass scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			if passDone != nil {
				<-passDone
			}
			return
		case <-timer.C:
		}

		if passDone != nil {
			select {
			case <-passDone:
				passDone = nil
			default:
				s.logger.Warn("skipping scheduled pass, prior pass still running", "fired_at", next)
				continue
			}
		}

		passDone = make(chan struct{})
		go func(ch chan struct{}) {
			defer close(ch)
			s.runPass(ctx)
		}(passDone)
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	report, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled pass failed", "pass_id", report.PassID, "error", err)
		return
	}
	s.logger.Info("scheduled pass finished",
		"pass_id", report.PassID,
		"inserted", report.Counts.Inserted,
		"deactivated", report.Counts.Deactivated,
		"refreshed", report.Counts.Refreshed,
		"empty", report.Counts.Empty,
	)
}
