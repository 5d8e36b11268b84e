package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"FinMuse/internal/ports"
)

// DelayedTicker runs a job once after an initial delay and then again after
// every interval. The interval is measured from the end of the previous run,
// so runs never overlap.
type DelayedTicker struct {
	delay    time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DelayedTicker)(nil)

// NewDelayedTicker builds a scheduler with the given initial delay and interval.
func NewDelayedTicker(delay, interval time.Duration, log *slog.Logger) *DelayedTicker {
	if log == nil {
		log = slog.Default()
	}
	return &DelayedTicker{delay: delay, interval: interval, logger: log}
}

// Start launches the loop; a second Start while running is a no-op.
func (d *DelayedTicker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if d.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", d.interval)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	d.stop, d.done = stop, done

	go func() {
		defer close(done)

		timer := time.NewTimer(d.delay)
		defer timer.Stop()

		for {
			select {
			case t := <-timer.C:
				d.run(job, t)
				timer.Reset(d.interval)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for an in-flight run to finish or ctx to expire.
func (d *DelayedTicker) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DelayedTicker) run(job func(time.Time), t time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("scheduled job panicked", "panic", r)
		}
	}()
	job(t)
}
