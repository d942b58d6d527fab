package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agb-digital/onboarding/internal/onboarding/repository"
	"github.com/agb-digital/onboarding/pkg/logger"
	"github.com/agb-digital/onboarding/pkg/messaging"
	"github.com/agb-digital/onboarding/pkg/testutil"
)

type fakeRecorder struct {
	events []*repository.AuditEvent
	err    error
}

func (f *fakeRecorder) Insert(_ context.Context, e *repository.AuditEvent) error {
	f.events = append(f.events, e)
	return f.err
}

func TestEmitter_PrefersPublisher(t *testing.T) {
	pub := testutil.NewMockPublisher()
	rec := &fakeRecorder{}
	e := NewEmitter(pub, rec, logger.Nop())

	e.Emit(context.Background(), messaging.EventSessionStarted, messaging.SessionEvent{SessionID: "s1", Flow: "kyc"})

	pub.AssertEventPublished(t, messaging.EventSessionStarted)
	assert.Empty(t, rec.events)

	data, ok := pub.Events()[0].Payload.(messaging.SessionEvent)
	require.True(t, ok)
	assert.False(t, data.OccurredAt.IsZero())
}

func TestEmitter_FallsBackToRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	e := NewEmitter(nil, rec, logger.Nop())
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	e.Emit(context.Background(), messaging.EventReviewDecided, messaging.SessionEvent{
		SessionID:  "s2",
		Flow:       "review",
		StepID:     "decision",
		Details:    map[string]string{"decision": "reject"},
		OccurredAt: at,
	})

	require.Len(t, rec.events, 1)
	got := rec.events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, messaging.EventReviewDecided, got.EventType)
	assert.Equal(t, "reject", got.Details["decision"])
	assert.Equal(t, at, got.OccurredAt)
}

func TestEmitter_FailuresAreSwallowed(t *testing.T) {
	pub := testutil.NewMockPublisher()
	pub.Err = errors.New("channel closed")
	assert.NotPanics(t, func() {
		NewEmitter(pub, nil, nil).Emit(context.Background(), messaging.EventStepCompleted, messaging.SessionEvent{})
	})

	NewEmitter(nil, nil, nil).Emit(context.Background(), messaging.EventStepCompleted, messaging.SessionEvent{})
}

func TestAuditConsumer_Record(t *testing.T) {
	rec := &fakeRecorder{}
	c := &AuditConsumer{recorder: rec, logger: logger.Nop()}

	ev, err := messaging.NewEvent(messaging.EventApplicationSubmitted, "wizard-service", "req-1", messaging.SessionEvent{
		SessionID: "s3",
		Flow:      "kyc",
		StepID:    "signature",
		Action:    "submit_application",
	})
	require.NoError(t, err)

	require.NoError(t, c.record(context.Background(), ev))
	require.Len(t, rec.events, 1)
	assert.Equal(t, ev.ID, rec.events[0].ID)
	assert.Equal(t, ev.Timestamp, rec.events[0].OccurredAt)
	assert.Equal(t, "submit_application", rec.events[0].Action)

	rec.err = errors.New("db down")
	assert.Error(t, c.record(context.Background(), ev))

	assert.Error(t, c.record(context.Background(), &messaging.Event{Data: []byte("{")}))
}
