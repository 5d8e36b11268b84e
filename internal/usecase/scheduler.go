package usecase

import (
	"context"
	"log/slog"
	"time"

	"FinMuse/internal/ports"
)

// Scheduler wires the timer driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring cycle.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: log}
}

// Start registers the pipeline with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Debug("scheduled cycle triggered", "at", trigger)
		if _, err := s.pipeline.RunCycle(ctx); err != nil {
			s.logger.Error("scheduled cycle failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
