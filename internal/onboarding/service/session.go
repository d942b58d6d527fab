package service

import (
	"sync"
	"time"

	"github.com/agb-digital/onboarding/internal/submission"
	"github.com/agb-digital/onboarding/internal/wizard"
)

// Session is one running wizard bound to a browser by its session token
type Session struct {
	ID     string
	Flow   string
	Locale string

	wizard *wizard.Wizard
	// evidence slots and code fields of the flow, by field
	slots     map[string]wizard.EvidenceSlot
	codeField map[string]bool

	mu       sync.Mutex
	remote   submission.Session
	lastSeen time.Time
	// accepted evidence bytes by field, kept for the life of the session
	payloads map[string]evidenceBytes
}

type evidenceBytes struct {
	artifactID string
	data       []byte
}

func newSession(id, flow, locale string, def *wizard.Definition, now time.Time) *Session {
	sess := &Session{
		ID:        id,
		Flow:      flow,
		Locale:    locale,
		slots:     make(map[string]wizard.EvidenceSlot),
		codeField: make(map[string]bool),
		lastSeen:  now,
		payloads:  make(map[string]evidenceBytes),
	}

	for _, step := range def.Steps() {
		for _, slot := range step.Slots() {
			sess.slots[slot.Field] = slot
		}
		switch k := step.Kind.(type) {
		case wizard.OTPStep:
			sess.codeField[k.Field] = true
		case wizard.BranchStep:
			for _, subs := range k.Branches {
				for _, sub := range subs {
					for _, slot := range sub.Slots {
						sess.slots[slot.Field] = slot
					}
				}
			}
		}
	}
	return sess
}

// Wizard returns the session's step engine
func (s *Session) Wizard() *wizard.Wizard {
	return s.wizard
}

// Remote returns the façade session of the authenticated user, if any
func (s *Session) Remote() submission.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

func (s *Session) setRemote(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = submission.Session{Token: token}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// holdPayload keeps the bytes of the artifact accepted for field, replacing
// those of an earlier capture
func (s *Session) holdPayload(field, artifactID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[field] = evidenceBytes{artifactID: artifactID, data: data}
}

// heldPayload returns the bytes of artifactID if they are still held for field
func (s *Session) heldPayload(field, artifactID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payloads[field]
	if !ok || p.artifactID != artifactID {
		return nil, false
	}
	return p.data, true
}

func (s *Session) releasePayload(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, field)
}

func (s *Session) releasePayloads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = make(map[string]evidenceBytes)
}
