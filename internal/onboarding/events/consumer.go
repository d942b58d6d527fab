package events

import (
	"context"

	"github.com/agb-digital/onboarding/pkg/logger"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

// AuditQueue is the durable queue feeding the audit trail
const AuditQueue = "wizard-service.audit"

// AuditConsumer writes every onboarding event to the audit trail
type AuditConsumer struct {
	consumer *messaging.Consumer
	recorder Recorder
	logger   *logger.Logger
}

// NewAuditConsumer subscribes to all onboarding events
func NewAuditConsumer(rmq *messaging.RabbitMQ, recorder Recorder, log *logger.Logger) (*AuditConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, AuditQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeOnboardingEvents, "onboarding.#"); err != nil {
		return nil, err
	}

	c := &AuditConsumer{
		consumer: consumer,
		recorder: recorder,
		logger:   log,
	}
	consumer.RegisterFallback(c.record)

	return c, nil
}

// Start starts consuming messages
func (c *AuditConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *AuditConsumer) record(ctx context.Context, event *messaging.Event) error {
	var data messaging.SessionEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.OccurredAt.IsZero() {
		data.OccurredAt = event.Timestamp
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("session_id", data.SessionID).
		Msg("recording audit event")

	return c.recorder.Insert(ctx, auditEvent(event.ID, event.Type, data))
}
