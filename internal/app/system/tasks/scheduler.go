// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means 30s.
	Timeout time.Duration
	// RunAtStart runs the job once immediately instead of waiting a full interval.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs a set of Jobs, each on its own ticker.
type Scheduler struct {
	log    *zap.Logger
	jobs   []Job
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a scheduler for the given jobs. Jobs with a
// non-positive interval or nil Run are ignored.
func NewScheduler(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{log: logger, stopCh: make(chan struct{})}
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			logger.Warn("skipping invalid job", zap.String("job", j.Name))
			continue
		}
		s.jobs = append(s.jobs, j)
	}
	return s
}

// Start launches one goroutine per job.
func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(j)
		s.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals all jobs to stop and waits for in-flight runs to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("background jobs stopped")
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()

	if j.RunAtStart {
		s.runOnce(j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(j)
		}
	}
}

func (s *Scheduler) runOnce(j Job) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("background job panicked", zap.String("job", j.Name), zap.Any("panic", rec))
		}
	}()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.log.Error("background job failed",
			zap.String("job", j.Name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
	}
}
