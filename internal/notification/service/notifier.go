// Package service sends parent notifications through the transactional outbox
// and delivers them to the mail system.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/compliance/internal/notification/domain"
	outboxDomain "github.com/allisson/compliance/internal/outbox/domain"
)

// Notifier queues a templated email to a parent.
type Notifier interface {
	Notify(ctx context.Context, to string, template domain.Template, vars map[string]string) error
}

// Enqueuer stores an outbox event in the caller's transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, eventType string, payload any) error
}

// Dispatcher hands a message to the mail delivery system.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *domain.Message) error
}

// OutboxNotifier implements Notifier by enqueueing outbox events, so an email
// is only sent if the state change that triggered it commits.
type OutboxNotifier struct {
	outbox Enqueuer
}

// NewOutboxNotifier creates a new OutboxNotifier.
func NewOutboxNotifier(outbox Enqueuer) *OutboxNotifier {
	return &OutboxNotifier{outbox: outbox}
}

func (n *OutboxNotifier) Notify(
	ctx context.Context,
	to string,
	template domain.Template,
	vars map[string]string,
) error {
	msg := &domain.Message{To: to, Template: template, Vars: vars}
	if err := n.outbox.Enqueue(ctx, domain.EventTypeEmail, msg); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// EventProcessor implements the outbox EventProcessor for notification events.
type EventProcessor struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewEventProcessor creates a new EventProcessor.
func NewEventProcessor(dispatcher Dispatcher, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{dispatcher: dispatcher, logger: logger}
}

// Process dispatches email events. Unknown event types are logged and dropped.
func (p *EventProcessor) Process(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	if event.EventType != domain.EventTypeEmail {
		p.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		return nil
	}

	var msg domain.Message
	if err := json.Unmarshal([]byte(event.Payload), &msg); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	return p.dispatcher.Dispatch(ctx, &msg)
}

// RedisDispatcher publishes messages on a Redis channel consumed by the mailer.
type RedisDispatcher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisDispatcher creates a new RedisDispatcher.
func NewRedisDispatcher(client redis.UniversalClient, channel string) *RedisDispatcher {
	return &RedisDispatcher{client: client, channel: channel}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, msg *domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		return fmt.Errorf("notification.RedisDispatcher.Dispatch: %w", err)
	}
	return nil
}

// LogDispatcher writes messages to the log. Used when Redis is disabled.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, msg *domain.Message) error {
	d.logger.Info("notification dispatched",
		slog.String("to", MaskEmail(msg.To)),
		slog.String("template", string(msg.Template)),
	)
	return nil
}

// MaskEmail hides the local part of an address for logging: "jane@x.org" -> "j***@x.org".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
