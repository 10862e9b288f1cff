package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
	"github.com/allisson/compliance/internal/app"
	"github.com/allisson/compliance/internal/config"
	consentUseCase "github.com/allisson/compliance/internal/consent/usecase"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
	"github.com/allisson/compliance/internal/scheduler"
)

// Periodic task names. They double as the single-flight lock keys.
const (
	taskRetention     = "retention-policies"
	taskInactivity    = "inactive-accounts"
	taskConsentExpiry = "consent-expiry"
	taskDueJobs       = "anonymization-due-jobs"
)

// TaskRegistrar registers periodic tasks.
type TaskRegistrar interface {
	RunEvery(name, spec string, task scheduler.Task) error
}

// RegisterPeriodicTasks wires the retention run, the inactive account sweep, the
// pending consent expiry and the due anonymization job sweep into registrar
// under the configured schedules.
func RegisterPeriodicTasks(
	registrar TaskRegistrar,
	cfg *config.Config,
	retention retentionUseCase.UseCase,
	anonymization anonymizationUseCase.UseCase,
	consent consentUseCase.UseCase,
	logger *slog.Logger,
) error {
	tasks := []struct {
		name string
		spec string
		task scheduler.Task
	}{
		{
			name: taskRetention,
			spec: cfg.RetentionSchedule,
			task: func(ctx context.Context) error {
				report, err := retention.ExecutePolicies(ctx)
				if err != nil {
					return err
				}
				logger.Info("retention run finished",
					slog.Int("policies", len(report.Policies)),
					slog.Int("failed", report.Failed),
				)
				return nil
			},
		},
		{
			name: taskInactivity,
			spec: cfg.InactivitySchedule,
			task: func(ctx context.Context) error {
				report, err := anonymization.CheckInactiveAccounts(ctx)
				if err != nil {
					return err
				}
				logger.Info("inactive account check finished",
					slog.Int("checked", report.Checked),
					slog.Int("warned", report.Warned),
					slog.Int("scheduled", report.Scheduled),
				)
				return nil
			},
		},
		{
			name: taskConsentExpiry,
			spec: cfg.ConsentExpirySchedule,
			task: func(ctx context.Context) error {
				count, err := consent.ExpirePending(ctx)
				if err != nil {
					return err
				}
				if count > 0 {
					logger.Info("pending consents expired", slog.Int("count", count))
				}
				return nil
			},
		},
		{
			name: taskDueJobs,
			spec: cfg.AnonymizationDueSchedule,
			task: func(ctx context.Context) error {
				_, err := anonymization.RunDueJobs(ctx)
				return err
			},
		},
	}

	for _, t := range tasks {
		if err := registrar.RunEvery(t.name, t.spec, t.task); err != nil {
			return err
		}
		logger.Info("periodic task registered", slog.String("task", t.name), slog.String("schedule", t.spec))
	}
	return nil
}

// RunWorker runs the background side of the service: it recovers anonymization
// jobs left behind by a previous process, starts the periodic compliance tasks
// and delivers outbox notifications until SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))
	defer closeContainer(container, logger)

	anonymization, err := container.AnonymizationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize anonymization use case: %w", err)
	}
	retention, err := container.RetentionUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize retention use case: %w", err)
	}
	consent, err := container.ConsentUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize consent use case: %w", err)
	}
	outbox, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}
	sched, err := container.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recovery, err := anonymization.RecoverJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover anonymization jobs: %w", err)
	}
	logger.Info("anonymization jobs recovered",
		slog.Int("failed", recovery.Failed),
		slog.Int("rescheduled", recovery.Rescheduled),
	)

	if err := RegisterPeriodicTasks(sched, cfg, retention, anonymization, consent, logger); err != nil {
		return err
	}
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := outbox.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox processor error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("worker stopping")
	return err
}
