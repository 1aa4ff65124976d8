package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task interface for scheduled tasks
type Task interface {
	Run(ctx context.Context) error
	Interval() time.Duration
	Name() string
}

// Scheduler runs each task on its own ticker until stopped
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tasks    []Task
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new task scheduler
func New(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make([]Task, 0),
	}
}

// AddTask adds a task to the scheduler. Tasks added after Start are not run.
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting task scheduler")
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(task)
	}
	slog.Info("Task scheduler started", "task_count", len(s.tasks))
}

// Stop cancels all tasks and waits for in-flight runs. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping task scheduler")
		s.cancel()
		s.wg.Wait()
		slog.Info("Task scheduler stopped")
	})
}

// runTask runs a single task immediately and then on its interval.
// A run may not take longer than one interval.
func (s *Scheduler) runTask(task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	s.runOnce(task)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(task)
		}
	}
}

func (s *Scheduler) runOnce(task Task) {
	ctx, cancel := context.WithTimeout(s.ctx, task.Interval())
	defer cancel()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		slog.Error("Error running task", "task", task.Name(), "duration", time.Since(start), "error", err)
		return
	}
	slog.Debug("Task completed", "task", task.Name(), "duration", time.Since(start))
}
