// Package events emits onboarding wizard events and records them in the
// audit trail.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agb-digital/onboarding/internal/onboarding/repository"
	"github.com/agb-digital/onboarding/pkg/logger"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

// Publisher is satisfied by *messaging.Publisher
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Recorder is satisfied by *repository.AuditRepository
type Recorder interface {
	Insert(ctx context.Context, e *repository.AuditEvent) error
}

// Emitter sends wizard events to RabbitMQ when a publisher is configured,
// otherwise straight to the audit recorder. Failures are logged and never
// reach the caller.
type Emitter struct {
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
	logger    *logger.Logger
}

// NewEmitter creates an emitter. Both publisher and recorder may be nil.
func NewEmitter(publisher Publisher, recorder Recorder, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.Nop()
	}
	return &Emitter{publisher: publisher, recorder: recorder, now: time.Now, logger: log}
}

// NewRabbitEmitter publishes on the onboarding exchange
func NewRabbitEmitter(rmq *messaging.RabbitMQ, log *logger.Logger) (*Emitter, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOnboardingEvents, "wizard-service", log)
	if err != nil {
		return nil, err
	}
	return NewEmitter(publisher, nil, log), nil
}

// Emit sends one event
func (e *Emitter) Emit(ctx context.Context, eventType string, ev messaging.SessionEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now().UTC()
	}

	log := e.logger.Debug().
		Str("event_type", eventType).
		Str("session_id", ev.SessionID).
		Str("step_id", ev.StepID)

	switch {
	case e.publisher != nil:
		if err := e.publisher.Publish(ctx, eventType, ev); err != nil {
			e.logger.Error().Err(err).Str("event_type", eventType).Str("session_id", ev.SessionID).Msg("failed to publish event")
			return
		}
	case e.recorder != nil:
		if err := e.recorder.Insert(ctx, auditEvent(uuid.New().String(), eventType, ev)); err != nil {
			e.logger.Error().Err(err).Str("event_type", eventType).Str("session_id", ev.SessionID).Msg("failed to record event")
			return
		}
	}

	log.Msg("event emitted")
}

func auditEvent(id, eventType string, ev messaging.SessionEvent) *repository.AuditEvent {
	return &repository.AuditEvent{
		ID:         id,
		EventType:  eventType,
		SessionID:  ev.SessionID,
		Flow:       ev.Flow,
		StepID:     ev.StepID,
		Action:     ev.Action,
		Details:    repository.Details(ev.Details),
		OccurredAt: ev.OccurredAt,
	}
}
