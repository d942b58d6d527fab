package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventSessionStarted       = "onboarding.session.started"
	EventSessionAbandoned     = "onboarding.session.abandoned"
	EventStepCompleted        = "onboarding.step.completed"
	EventEvidenceStaged       = "onboarding.evidence.staged"
	EventAccountRegistered    = "onboarding.account.registered"
	EventApplicationSubmitted = "onboarding.application.submitted"
	EventReviewDecided        = "onboarding.review.decided"
	EventSubmissionFailed     = "onboarding.submission.failed"
)

// ExchangeOnboardingEvents carries every wizard event
const ExchangeOnboardingEvents = "onboarding.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// SessionEvent describes something that happened in a wizard session.
// Details never carry secrets or evidence payloads.
type SessionEvent struct {
	SessionID  string            `json:"session_id"`
	Flow       string            `json:"flow"`
	StepID     string            `json:"step_id,omitempty"`
	Action     string            `json:"action,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
