// Package service hosts wizard sessions for the browser pages: it creates
// sessions, applies navigation and evidence uploads, and commits completed
// steps to the remote banking API.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agb-digital/onboarding/internal/onboarding/events"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/session"
	"github.com/agb-digital/onboarding/internal/submission"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
	"github.com/agb-digital/onboarding/internal/wizard/flows"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/i18n"
	"github.com/agb-digital/onboarding/pkg/logger"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

// Facade is the part of the remote banking API the wizards commit to.
// *submission.Client implements it.
type Facade interface {
	Register(ctx context.Context, reg submission.Registration) (submission.AuthResult, error)
	Login(ctx context.Context, creds submission.Credentials) (submission.AuthResult, error)
	VerifyTwoFactor(ctx context.Context, sess submission.Session, code string) (submission.AuthResult, error)
	UploadDocument(ctx context.Context, sess submission.Session, doc submission.DocumentUpload) (submission.UploadReceipt, error)
	SubmitKYC(ctx context.Context, sess submission.Session, app submission.KYCApplication) (submission.KYCResult, error)
	ActivateUser(ctx context.Context, sess submission.Session, userID string) error
}

var _ Facade = (*submission.Client)(nil)

// Config holds the service tunables
type Config struct {
	OTPResend      time.Duration
	MaxUploadBytes int64
	// IdleTimeout abandons sessions without activity; zero keeps them
	// until they are abandoned explicitly
	IdleTimeout         time.Duration
	ReviewAllowedEmails []string
}

// Service owns every live wizard session
type Service struct {
	registries map[string]*flows.Registry
	bridge     *persistence.Bridge
	facade     Facade
	tokens     *session.Manager
	emitter    *events.Emitter
	cfg        Config
	allowed    map[string]bool
	now        func() time.Time
	logger     *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the time source of the service and of its wizards
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the flows once per supported locale so that validation
// messages are rendered in the language the session started in.
func New(
	rules *validation.Rules,
	bridge *persistence.Bridge,
	facade Facade,
	tokens *session.Manager,
	emitter *events.Emitter,
	cfg Config,
	log *logger.Logger,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		registries: make(map[string]*flows.Registry),
		bridge:     bridge,
		facade:     facade,
		tokens:     tokens,
		emitter:    emitter,
		cfg:        cfg,
		allowed:    make(map[string]bool),
		now:        time.Now,
		logger:     log.WithComponent("onboarding"),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, locale := range []string{i18n.LocaleFrench, i18n.LocaleEnglish} {
		reg, err := flows.NewRegistry(rules.WithLocalizer(i18n.NewLocalizer(locale)).WithClock(s.now), cfg.OTPResend)
		if err != nil {
			return nil, err
		}
		s.registries[locale] = reg
	}

	for _, email := range cfg.ReviewAllowedEmails {
		s.allowed[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return s, nil
}

// Flows lists the flows a session can be created for
func (s *Service) Flows() []string {
	return s.registries[i18n.DefaultLocale].Names()
}

func (s *Service) registry(locale string) *flows.Registry {
	if reg, ok := s.registries[locale]; ok {
		return reg
	}
	return s.registries[i18n.DefaultLocale]
}

// Created is returned when a session starts
type Created struct {
	Token *session.Token `json:"session"`
	View  View           `json:"view"`
}

// CreateSession starts a wizard. A KYC session may present the token of a
// completed signup session to pick up the staged handoff, once.
func (s *Service) CreateSession(ctx context.Context, flow, handoffToken string) (*Created, error) {
	locale := i18n.GetLocaleFromContext(ctx)
	def, ok := s.registry(locale).Get(flow)
	if !ok {
		return nil, apperrors.NotFound("flow")
	}

	sess := newSession(uuid.New().String(), flow, locale, def, s.now())
	opts := []wizard.Option{
		wizard.WithClock(s.now),
		wizard.WithCommitter(s.committer(sess)),
	}

	if handoffToken != "" {
		if flow != flows.KYC {
			return nil, apperrors.BadRequest("only the kyc flow accepts a signup handoff")
		}
		data, err := s.consumeHandoff(ctx, sess, handoffToken)
		if err != nil {
			return nil, err
		}
		opts = append(opts, wizard.WithData(data))
	}
	sess.wizard = wizard.New(def, opts...)

	token, err := s.tokens.Issue(sess.ID, flow)
	if err != nil {
		return nil, apperrors.Internal("failed to issue session token")
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("flow", flow).
		Str("locale", locale).
		Bool("handoff", handoffToken != "").
		Msg("wizard session started")
	s.emit(ctx, sess, messaging.EventSessionStarted, "", "", nil)

	view, err := s.View(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Created{Token: token, View: view}, nil
}

func (s *Service) consumeHandoff(ctx context.Context, sess *Session, handoffToken string) (wizard.FormData, error) {
	claims, err := s.tokens.Validate(handoffToken)
	if err != nil {
		return nil, err
	}
	if claims.Flow != flows.Signup {
		return nil, apperrors.BadRequest("handoff token does not belong to a signup session")
	}

	fields, err := s.bridge.ConsumeHandoff(ctx, claims.SessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, apperrors.NotFound("handoff")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read signup handoff")
	}

	if token, err := s.bridge.AuthToken(ctx, claims.SessionID); err == nil {
		sess.setRemote(token)
		if err := s.bridge.SetAuthToken(ctx, sess.ID, token); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to stage auth token")
		}
	}

	secret := make(map[string]bool, len(flows.SignupSecrets))
	for _, f := range flows.SignupSecrets {
		secret[f] = true
	}
	data := wizard.FormData{}
	for field, value := range fields {
		if !secret[field] {
			data[field] = wizard.Text(value)
		}
	}
	return data, nil
}

// Authenticate resolves a bearer session token to its live session
func (s *Service) Authenticate(token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	sess, ok := s.sessions[claims.SessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("session")
	}

	sess.touch(s.now())
	return sess, nil
}

// Abandon ends a session and wipes everything staged for it
func (s *Service) Abandon(ctx context.Context, sess *Session) error {
	return s.end(ctx, sess, "abandoned")
}

func (s *Service) end(ctx context.Context, sess *Session, reason string) error {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	sess.releasePayloads()
	s.emit(ctx, sess, messaging.EventSessionAbandoned, "", "", map[string]string{"reason": reason})
	if err := s.bridge.Clear(ctx, sess.ID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to clear staged values")
		return apperrors.Internal("failed to clear session data")
	}
	return nil
}

// Sweep abandons sessions idle for longer than the configured timeout and
// returns how many were removed
func (s *Service) Sweep(ctx context.Context) int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	now := s.now()

	s.mu.RLock()
	var stale []*Session
	for _, sess := range s.sessions {
		if sess.idleSince(now) > s.cfg.IdleTimeout {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()

	failed := 0
	for _, sess := range stale {
		if err := s.end(ctx, sess, "expired"); err != nil {
			failed++
		}
	}
	if len(stale) > 0 {
		s.logger.Info().Int("count", len(stale)).Int("clear_failures", failed).Msg("expired idle wizard sessions")
	}
	return len(stale)
}

// SessionCount is the number of live sessions
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) emit(ctx context.Context, sess *Session, eventType, stepID, action string, details map[string]string) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, eventType, messaging.SessionEvent{
		SessionID:  sess.ID,
		Flow:       sess.Flow,
		StepID:     stepID,
		Action:     action,
		Details:    details,
		OccurredAt: s.now().UTC(),
	})
}

func (s *Service) localizer(sess *Session) *i18n.Localizer {
	return i18n.NewLocalizer(sess.Locale)
}
