package radar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs the pipeline repeatedly at a fixed interval.
type Scheduler struct {
	pipeline  *Pipeline
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    *slog.Logger
	onResult  func(*Result)
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a daemon-mode runner. onResult is invoked after
// every successful run with that run's outcome; pass nil to ignore them.
func NewScheduler(pipeline *Pipeline, interval time.Duration, logger *slog.Logger, onResult func(*Result)) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{
		pipeline:  pipeline,
		scheduler: s,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
		onResult:  onResult,
	}, nil
}

// Start schedules the detection job and begins ticking. The first run
// fires immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			start := time.Now()
			s.logger.Info("Running scheduled detection")

			result, runErr := s.pipeline.RunOnce(ctx, time.Now().UTC())
			if runErr != nil {
				s.logger.Error("Scheduled detection failed", "error", runErr)
				return
			}
			if s.onResult != nil {
				s.onResult(result)
			}
			s.logger.Info("Finished scheduled detection",
				"candidates", len(result.Candidates),
				"duration", time.Since(start))
		}),
		gocron.WithName("detect"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule detection job: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "interval", s.interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.running = false
	s.logger.Info("Scheduler stopped")
	return nil
}
