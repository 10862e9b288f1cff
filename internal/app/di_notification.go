package app

import (
	"fmt"

	notificationService "github.com/allisson/compliance/internal/notification/service"
	outboxRepository "github.com/allisson/compliance/internal/outbox/repository"
	outboxUseCase "github.com/allisson/compliance/internal/outbox/usecase"
)

// OutboxUseCase returns the outbox use case that stores and delivers notification events.
func (c *Container) OutboxUseCase() (outboxUseCase.UseCase, error) {
	err := c.once(&c.outboxUseCaseInit, "outboxUseCase", func() error {
		var err error
		c.outboxUseCase, err = c.initOutboxUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.outboxUseCase, nil
}

// Notifier returns the notifier that queues emails through the outbox.
func (c *Container) Notifier() (notificationService.Notifier, error) {
	err := c.once(&c.notifierInit, "notifier", func() error {
		outbox, err := c.OutboxUseCase()
		if err != nil {
			return fmt.Errorf("failed to get outbox use case for notifier: %w", err)
		}
		c.notifier = notificationService.NewOutboxNotifier(outbox)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.notifier, nil
}

// notificationDispatcher publishes to Redis when enabled and logs otherwise.
func (c *Container) notificationDispatcher() (notificationService.Dispatcher, error) {
	client, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for notifications: %w", err)
	}
	if client == nil {
		return notificationService.NewLogDispatcher(c.Logger()), nil
	}
	return notificationService.NewRedisDispatcher(client, c.config.NotificationChannel), nil
}

func (c *Container) initOutboxUseCase() (outboxUseCase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	dispatcher, err := c.notificationDispatcher()
	if err != nil {
		return nil, err
	}

	return outboxUseCase.NewOutboxUseCase(
		outboxUseCase.Config{
			Interval:   c.config.OutboxInterval,
			BatchSize:  c.config.OutboxBatchSize,
			MaxRetries: c.config.OutboxMaxRetries,
		},
		txManager,
		outboxRepository.NewOutboxEventRepository(db, dialect),
		notificationService.NewEventProcessor(dispatcher, c.Logger()),
		c.Logger(),
	), nil
}
