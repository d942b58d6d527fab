package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agb-digital/onboarding/pkg/database"
)

// Details holds string attributes of an audit event, stored as JSONB
type Details map[string]string

// Value implements driver.Valuer
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner
func (d *Details) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Details{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type %T", src)
	}
	return json.Unmarshal(raw, d)
}

// AuditEvent is one recorded wizard event
type AuditEvent struct {
	ID         string    `db:"id" json:"id"`
	EventType  string    `db:"event_type" json:"event_type"`
	SessionID  string    `db:"session_id" json:"session_id"`
	Flow       string    `db:"flow" json:"flow"`
	StepID     string    `db:"step_id" json:"step_id,omitempty"`
	Action     string    `db:"action" json:"action,omitempty"`
	Details    Details   `db:"details" json:"details,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// AuditRepository stores the onboarding audit trail
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert records an event. Replaying an already recorded event ID is a no-op
// so redelivered messages stay idempotent.
func (r *AuditRepository) Insert(ctx context.Context, e *AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, event_type, session_id, flow, step_id, action, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.EventType, e.SessionID, e.Flow, e.StepID, e.Action, e.Details, e.OccurredAt,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListBySession returns the events of a session, oldest first
func (r *AuditRepository) ListBySession(ctx context.Context, sessionID string) ([]*AuditEvent, error) {
	query := `
		SELECT id, event_type, session_id, flow, step_id, action, details, occurred_at, recorded_at
		FROM audit_events
		WHERE session_id = $1
		ORDER BY occurred_at, recorded_at`

	var events []*AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

// CountByType counts events of one type since the given time
func (r *AuditRepository) CountByType(ctx context.Context, eventType string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_events WHERE event_type = $1 AND occurred_at >= $2`

	var n int64
	if err := r.db.GetContext(ctx, &n, query, eventType, since); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}
