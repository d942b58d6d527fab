// Package session signs the tokens that bind a browser to its wizard session
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agb-digital/onboarding/pkg/config"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
)

// Claims identifies a wizard session
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Flow      string `json:"flow"`
}

// Token is a signed session token
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
}

// Manager issues and validates session tokens
type Manager struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewManager creates a new session token manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg, now: time.Now}
}

// WithClock returns a manager that reads time from now
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{config: m.config, now: now}
}

// Issue signs a token for a new wizard session
func (m *Manager) Issue(sessionID, flow string) (*Token, error) {
	now := m.now()
	expiry := now.Add(m.config.SessionExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		SessionID: sessionID,
		Flow:      flow,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	return &Token{Token: signed, ExpiresAt: expiry, TokenType: "Bearer"}, nil
}

// Validate checks a token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(m.config.Issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, apperrors.TokenInvalid()
	}

	return claims, nil
}

// Expiry returns the session lifetime
func (m *Manager) Expiry() time.Duration {
	return m.config.SessionExpiry
}
