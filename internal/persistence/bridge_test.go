package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestBridge(t *testing.T, opts ...BridgeOption) (*Bridge, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	opts = append([]BridgeOption{WithHashCost(bcrypt.MinCost)}, opts...)
	return NewBridge(store, opts...), store
}

func TestBridge_StageEvidence(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, b.StageEvidence(ctx, "s1", KeyIdentityDocument, "recto", Descriptor{
		ArtifactID: "a1", FileName: "recto.jpg", FileSize: 1024, FileType: "image/jpeg",
		UploadedAt: at, DocumentType: "cni", CameraUsed: "back",
	}, []byte{1, 2, 3}))
	require.NoError(t, b.StageEvidence(ctx, "s1", KeyIdentityDocument, "verso", Descriptor{
		ArtifactID: "a2", FileName: "verso.jpg", FileSize: 2048, FileType: "image/jpeg", UploadedAt: at,
	}, nil))

	stage, err := b.Evidence(ctx, "s1", KeyIdentityDocument)
	require.NoError(t, err)
	require.Len(t, stage, 2)
	assert.Equal(t, StatusUploaded, stage["recto"].Status)
	assert.Equal(t, "cni", stage["recto"].DocumentType)
	assert.True(t, at.Equal(stage["verso"].UploadedAt))

	// payloads are descriptor-only by default
	_, err = b.Payload(ctx, "s1", KeyIdentityDocument, "recto")
	assert.ErrorIs(t, err, ErrNotFound)

	// other sessions see nothing
	other, err := b.Evidence(ctx, "s2", KeyIdentityDocument)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBridge_PayloadsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t, WithPayloads(true))
	assert.True(t, b.PersistsPayloads())

	require.NoError(t, b.StageEvidence(ctx, "s1", KeySelfieVerification, "selfie",
		Descriptor{FileName: "selfie.jpg"}, []byte{0xff, 0xd8}))

	got, err := b.Payload(ctx, "s1", KeySelfieVerification, "selfie")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, got)

	require.NoError(t, b.DropEvidence(ctx, "s1", KeySelfieVerification, "selfie"))
	_, err = b.Payload(ctx, "s1", KeySelfieVerification, "selfie")
	assert.ErrorIs(t, err, ErrNotFound)
	stage, err := b.Evidence(ctx, "s1", KeySelfieVerification)
	require.NoError(t, err)
	assert.Empty(t, stage)
}

func TestBridge_MarkValidated(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t)

	require.NoError(t, b.MarkValidated(ctx, "s1", KeyResidenceProof))
	require.NoError(t, b.StageEvidence(ctx, "s1", KeyResidenceProof, "residenceProof", Descriptor{FileName: "facture.pdf"}, nil))
	require.NoError(t, b.MarkValidated(ctx, "s1", KeyResidenceProof))

	stage, err := b.Evidence(ctx, "s1", KeyResidenceProof)
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, stage["residenceProof"].Status)
}

func TestBridge_AuthToken(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t)

	_, err := b.AuthToken(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.SetAuthToken(ctx, "s1", "tok"))
	tok, err := b.AuthToken(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	require.NoError(t, b.ClearAuthToken(ctx, "s1"))
	_, err = b.AuthToken(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBridge_HandoffIsOneShot(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t)

	require.NoError(t, b.StageHandoff(ctx, "h1", map[string]string{
		"nom":      "Benali",
		"password": "Abcdef1!",
	}, "password", "absent"))

	fields, err := b.ConsumeHandoff(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Benali", fields["nom"])
	assert.NotEqual(t, "Abcdef1!", fields["password"])
	assert.True(t, CheckSecret(fields["password"], "Abcdef1!"))
	assert.False(t, CheckSecret(fields["password"], "wrong"))

	_, err = b.ConsumeHandoff(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBridge_Clear(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBridge(t, WithPayloads(true))

	require.NoError(t, b.StageEvidence(ctx, "s1", KeyBirthCertificate, "birthCertificate", Descriptor{}, []byte("pdf")))
	require.NoError(t, b.StageEvidence(ctx, "s1", KeyVideoSelfie, "videoSelfie", Descriptor{}, []byte("webm")))
	require.NoError(t, b.SetAuthToken(ctx, "s1", "tok"))
	require.NoError(t, b.StageEvidence(ctx, "s2", KeyVideoSelfie, "videoSelfie", Descriptor{}, nil))

	require.NoError(t, b.Clear(ctx, "s1"))

	store.mu.RLock()
	defer store.mu.RUnlock()
	assert.Len(t, store.entries, 1)
	_, kept := store.entries[sessionKey("s2", KeyVideoSelfie)]
	assert.True(t, kept)
}

func TestBridge_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b, store := newTestBridge(t, WithTTL(time.Hour))
	store.now = func() time.Time { return now }

	require.NoError(t, b.SetAuthToken(ctx, "s1", "tok"))
	now = now.Add(2 * time.Hour)
	_, err := b.AuthToken(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
