// Package scheduler runs background tasks: periodic cron jobs, one-shot delayed
// jobs and immediate jobs. Every run of a named task is single-flight: cron's
// SkipIfStillRunning guards one process and a lock.Locker guards replicas.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/allisson/compliance/internal/lock"
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Scheduler owns the lifecycle of background tasks.
type Scheduler struct {
	cron    *cron.Cron
	locker  lock.Locker
	lockTTL time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler. Nothing runs until Start is called, except RunNow.
func New(locker lock.Locker, lockTTL time.Duration, logger *slog.Logger) *Scheduler {
	cronLogger := &cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[*time.Timer]struct{}),
	}
}

// RunEvery registers task under a cron spec ("@daily", "0 3 * * *", "@every 1h").
func (s *Scheduler) RunEvery(name, spec string, task Task) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, task) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

// RunNow starts task in the background immediately.
func (s *Scheduler) RunNow(name string, task Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(name, task)
	}()
}

// RunAt starts task at the given time, or immediately if it is in the past.
func (s *Scheduler) RunAt(name string, at time.Time, task Task) {
	delay := time.Until(at)
	if delay <= 0 {
		s.RunNow(name, task)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.RunNow(name, task)
	})
	s.timers[timer] = struct{}{}
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels pending one-shot timers, signals running tasks through their
// context and waits for them to return or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	for timer := range s.timers {
		timer.Stop()
		delete(s.timers, timer)
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(name string, task Task) {
	if s.ctx.Err() != nil {
		return
	}

	release, err := s.locker.TryLock(s.ctx, "scheduler:"+name, s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Debug("task already running elsewhere, skipping", slog.String("task", name))
			return
		}
		s.logger.Error("failed to acquire task lock", slog.String("task", name), slog.Any("error", err))
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(s.ctx)); err != nil {
			s.logger.Warn("failed to release task lock", slog.String("task", name), slog.Any("error", err))
		}
	}()

	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.logger.Error("task failed",
			slog.String("task", name),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Debug("task completed", slog.String("task", name), slog.Duration("duration", time.Since(start)))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
