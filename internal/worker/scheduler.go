package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"budgeteer/internal/log"
)

// Job is a task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on their intervals until stopped. Each job runs once
// immediately at start. A failing run is logged and retried next tick.
type Scheduler struct {
	jobs []Job

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Start launches the jobs. It returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			slog.WarnContext(ctx, "Skipping job without interval", "job", job.Name)
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job, stopCh)
		}(job)
		slog.InfoContext(ctx, "Scheduled job", "job", job.Name, "interval", job.Interval)
	}

	go func() {
		wg.Wait()
		close(doneCh)
	}()
	return nil
}

// Stop signals the jobs and waits for in-flight runs to finish, or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runLoop exits when stopCh, the channel of the Start call that launched
// it, is closed.
func (s *Scheduler) runLoop(ctx context.Context, job Job, stopCh <-chan struct{}) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	ctx = log.WithTraceID(ctx, log.NewTraceID())
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled job failed", "job", job.Name, "error", err)
		return
	}
	slog.DebugContext(ctx, "Scheduled job completed", "job", job.Name, "duration", time.Since(start))
}
