package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Task is one unit of work run every cycle, e.g. a search profile sync.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler owns the watch loop: ticks on an interval and runs each task sequentially.
type Scheduler struct {
	tasks    []Task
	interval time.Duration
	pause    time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs all tasks at the given interval.
func NewScheduler(tasks []Task, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		interval: interval,
		pause:    time.Second,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"tasks", len(s.tasks),
	)

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runAll(ctx)
		}
	}
}

// runAll runs each task in order with a small pause between them. A failing
// task is logged and does not stop the cycle.
func (s *Scheduler) runAll(ctx context.Context) {
	for i, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		if err := t.Run(ctx); err != nil {
			s.logger.Error("task failed",
				"task", t.Name,
				"error", err,
			)
		} else {
			s.logger.Info("task finished", "task", t.Name, "elapsed", time.Since(start).Round(time.Millisecond))
		}

		if i < len(s.tasks)-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pause):
			}
		}
	}
}
