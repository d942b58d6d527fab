package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agb-digital/onboarding/pkg/logger"
)

// Stage keys, one per evidence kind
const (
	KeyIdentityDocument   = "identityDocument"
	KeyBirthCertificate   = "birthCertificate"
	KeyResidenceProof     = "residenceProof"
	KeySelfieVerification = "selfieVerification"
	KeyVideoSelfie        = "videoSelfie"

	KeyAuthToken    = "auth_token"
	KeyUserFormData = "userFormData"
)

// StageKeys lists every evidence stage key
var StageKeys = []string{
	KeyIdentityDocument,
	KeyBirthCertificate,
	KeyResidenceProof,
	KeySelfieVerification,
	KeyVideoSelfie,
}

// Descriptor statuses
const (
	StatusUploaded  = "uploaded"
	StatusValidated = "validated"
)

// Descriptor records a staged piece of evidence without its payload
type Descriptor struct {
	ArtifactID   string    `json:"artifactId"`
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	FileType     string    `json:"fileType"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Status       string    `json:"status"`
	DocumentType string    `json:"documentType,omitempty"`
	CameraUsed   string    `json:"cameraUsed,omitempty"`
}

// Bridge namespaces staged values per wizard session on top of a Store
type Bridge struct {
	store           Store
	ttl             time.Duration
	persistPayloads bool
	log             *logger.Logger
	hashCost        int

	// serialises read-modify-write of stage maps
	mu sync.Mutex
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithTTL sets the lifetime of every staged value
func WithTTL(ttl time.Duration) BridgeOption {
	return func(b *Bridge) { b.ttl = ttl }
}

// WithPayloads also stores raw evidence bytes next to their descriptors
func WithPayloads(enabled bool) BridgeOption {
	return func(b *Bridge) { b.persistPayloads = enabled }
}

// WithLogger sets the bridge logger
func WithLogger(log *logger.Logger) BridgeOption {
	return func(b *Bridge) { b.log = log }
}

// WithHashCost sets the bcrypt cost used for handoff secrets
func WithHashCost(cost int) BridgeOption {
	return func(b *Bridge) { b.hashCost = cost }
}

// NewBridge creates a bridge over store
func NewBridge(store Store, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		store:    store,
		log:      logger.Nop(),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PersistsPayloads reports whether raw evidence bytes are kept
func (b *Bridge) PersistsPayloads() bool {
	return b.persistPayloads
}

func sessionKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}

func payloadKey(sessionID, stageKey, field string) string {
	return sessionKey(sessionID, stageKey+":"+field+":payload")
}

func handoffKey(handoffID string) string {
	return "handoff:" + handoffID + ":" + KeyUserFormData
}

// StageEvidence records d under stageKey/field. The payload is stored only
// when payload persistence is enabled.
func (b *Bridge) StageEvidence(ctx context.Context, sessionID, stageKey, field string, d Descriptor, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stage, err := b.loadStage(ctx, sessionID, stageKey)
	if err != nil {
		return err
	}
	if d.Status == "" {
		d.Status = StatusUploaded
	}
	stage[field] = d
	if err := b.saveStage(ctx, sessionID, stageKey, stage); err != nil {
		return err
	}

	if b.persistPayloads && len(payload) > 0 {
		if err := b.store.Set(ctx, payloadKey(sessionID, stageKey, field), payload, b.ttl); err != nil {
			return fmt.Errorf("failed to stage payload: %w", err)
		}
	}

	b.log.Debug().
		Str("session_id", sessionID).
		Str("stage", stageKey).
		Str("field", field).
		Int64("size", d.FileSize).
		Msg("Evidence staged")
	return nil
}

// Evidence returns the descriptors staged under stageKey. A stage with
// nothing staged yields an empty map.
func (b *Bridge) Evidence(ctx context.Context, sessionID, stageKey string) (map[string]Descriptor, error) {
	return b.loadStage(ctx, sessionID, stageKey)
}

// Payload returns the raw bytes staged for stageKey/field
func (b *Bridge) Payload(ctx context.Context, sessionID, stageKey, field string) ([]byte, error) {
	return b.store.Get(ctx, payloadKey(sessionID, stageKey, field))
}

// DropEvidence removes one field from a stage
func (b *Bridge) DropEvidence(ctx context.Context, sessionID, stageKey, field string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stage, err := b.loadStage(ctx, sessionID, stageKey)
	if err != nil {
		return err
	}
	if _, ok := stage[field]; !ok {
		return nil
	}
	delete(stage, field)
	if err := b.store.Delete(ctx, payloadKey(sessionID, stageKey, field)); err != nil {
		return err
	}
	if len(stage) == 0 {
		return b.store.Delete(ctx, sessionKey(sessionID, stageKey))
	}
	return b.saveStage(ctx, sessionID, stageKey, stage)
}

// MarkValidated flips every descriptor of a stage to validated
func (b *Bridge) MarkValidated(ctx context.Context, sessionID, stageKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stage, err := b.loadStage(ctx, sessionID, stageKey)
	if err != nil || len(stage) == 0 {
		return err
	}
	for field, d := range stage {
		d.Status = StatusValidated
		stage[field] = d
	}
	return b.saveStage(ctx, sessionID, stageKey, stage)
}

func (b *Bridge) loadStage(ctx context.Context, sessionID, stageKey string) (map[string]Descriptor, error) {
	raw, err := b.store.Get(ctx, sessionKey(sessionID, stageKey))
	if errors.Is(err, ErrNotFound) {
		return map[string]Descriptor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stage %s: %w", stageKey, err)
	}

	stage := map[string]Descriptor{}
	if err := json.Unmarshal(raw, &stage); err != nil {
		return nil, fmt.Errorf("failed to decode stage %s: %w", stageKey, err)
	}
	return stage, nil
}

func (b *Bridge) saveStage(ctx context.Context, sessionID, stageKey string, stage map[string]Descriptor) error {
	raw, err := json.Marshal(stage)
	if err != nil {
		return fmt.Errorf("failed to encode stage %s: %w", stageKey, err)
	}
	if err := b.store.Set(ctx, sessionKey(sessionID, stageKey), raw, b.ttl); err != nil {
		return fmt.Errorf("failed to save stage %s: %w", stageKey, err)
	}
	return nil
}

// SetAuthToken stores the bearer token returned by the remote API
func (b *Bridge) SetAuthToken(ctx context.Context, sessionID, token string) error {
	return b.store.Set(ctx, sessionKey(sessionID, KeyAuthToken), []byte(token), b.ttl)
}

// AuthToken returns the stored bearer token or ErrNotFound
func (b *Bridge) AuthToken(ctx context.Context, sessionID string) (string, error) {
	raw, err := b.store.Get(ctx, sessionKey(sessionID, KeyAuthToken))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ClearAuthToken forgets the bearer token
func (b *Bridge) ClearAuthToken(ctx context.Context, sessionID string) error {
	return b.store.Delete(ctx, sessionKey(sessionID, KeyAuthToken))
}

// StageHandoff stores the signup fields for the KYC flow to pick up.
// Fields named in secrets are replaced by their bcrypt hash.
func (b *Bridge) StageHandoff(ctx context.Context, handoffID string, fields map[string]string, secrets ...string) error {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, name := range secrets {
		v, ok := out[name]
		if !ok || v == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(v), b.hashCost)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", name, err)
		}
		out[name] = string(hash)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode handoff: %w", err)
	}
	return b.store.Set(ctx, handoffKey(handoffID), raw, b.ttl)
}

// ConsumeHandoff reads and deletes the staged signup fields. A second call
// returns ErrNotFound.
func (b *Bridge) ConsumeHandoff(ctx context.Context, handoffID string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := handoffKey(handoffID)
	raw, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := b.store.Delete(ctx, key); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode handoff: %w", err)
	}
	return fields, nil
}

// Clear removes everything staged for a session
func (b *Bridge) Clear(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, stageKey := range StageKeys {
		stage, err := b.loadStage(ctx, sessionID, stageKey)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for field := range stage {
			errs = append(errs, b.store.Delete(ctx, payloadKey(sessionID, stageKey, field)))
		}
		errs = append(errs, b.store.Delete(ctx, sessionKey(sessionID, stageKey)))
	}
	errs = append(errs, b.store.Delete(ctx, sessionKey(sessionID, KeyAuthToken)))
	return errors.Join(errs...)
}

// CheckSecret reports whether plain matches a hash produced by StageHandoff
func CheckSecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
