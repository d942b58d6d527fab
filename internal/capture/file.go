package capture

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxFileBytes is the default upload ceiling
const DefaultMaxFileBytes int64 = 5 << 20

// Upload describes bytes arriving from a client, either picked from disk
// or captured by a browser camera.
type Upload struct {
	Kind         string
	FileName     string
	DeclaredType string
	Source       Source
	Facing       Facing
}

// FilePolicy is the per-slot allow-list and size limit
type FilePolicy struct {
	Accept   []string
	MaxBytes int64
}

// Read enforces the policy and builds an artifact. The content type is
// sniffed from the bytes; the declared type is only used when sniffing
// finds nothing more specific.
func (p FilePolicy) Read(u Upload, r io.Reader, now time.Time) (*Artifact, error) {
	max := p.MaxBytes
	if max <= 0 {
		max = DefaultMaxFileBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, &PolicyError{Key: "capture.empty"}
	}
	if int64(len(data)) > max {
		return nil, &PolicyError{Key: "capture.too_large", Params: map[string]string{"max": strconv.FormatInt(max, 10)}}
	}

	mimeType := p.detect(data, u.DeclaredType)
	if !p.allowed(mimeType) {
		return nil, &PolicyError{Key: "capture.type_not_allowed", Params: map[string]string{"type": mimeType}}
	}

	source := u.Source
	if source == "" {
		source = SourceFilePicker
	}
	return newArtifact(u.Kind, u.FileName, mimeType, source, u.Facing, now, data), nil
}

func (p FilePolicy) detect(data []byte, declared string) string {
	sniffed := mimetype.Detect(data)
	if sniffed.Is("application/octet-stream") || sniffed.Is("text/plain") {
		if d := strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]); d != "" {
			return strings.ToLower(d)
		}
	}
	return strings.SplitN(sniffed.String(), ";", 2)[0]
}

func (p FilePolicy) allowed(mimeType string) bool {
	if len(p.Accept) == 0 {
		return true
	}
	for _, a := range p.Accept {
		if strings.EqualFold(a, mimeType) {
			return true
		}
	}
	return false
}
