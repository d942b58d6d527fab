// Package capture turns camera frames, recordings and picked files into
// immutable evidence artifacts.
package capture

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
)

// Facing is a camera direction
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
	FacingAny   Facing = "any"
)

// ParseFacing maps user input to a Facing, defaulting to FacingAny
func ParseFacing(s string) Facing {
	switch Facing(s) {
	case FacingFront, FacingBack:
		return Facing(s)
	default:
		return FacingAny
	}
}

// LabelKey is the i18n key naming the camera
func (f Facing) LabelKey() string {
	return "camera." + string(f)
}

// Source tells how an artifact was produced
type Source string

const (
	SourceCamera     Source = "camera"
	SourceFilePicker Source = "file-picker"
)

// Artifact is a captured or uploaded piece of evidence. It cannot be changed
// after creation; a retake produces a new Artifact.
type Artifact struct {
	id         string
	kind       string
	fileName   string
	mimeType   string
	source     Source
	facing     Facing
	capturedAt time.Time
	payload    []byte
}

func newArtifact(kind, fileName, mimeType string, source Source, facing Facing, at time.Time, payload []byte) *Artifact {
	if source != SourceCamera {
		facing = ""
	}
	return &Artifact{
		id:         uuid.NewString(),
		kind:       kind,
		fileName:   fileName,
		mimeType:   mimeType,
		source:     source,
		facing:     facing,
		capturedAt: at.UTC(),
		payload:    bytes.Clone(payload),
	}
}

func (a *Artifact) ID() string            { return a.id }
func (a *Artifact) Kind() string          { return a.kind }
func (a *Artifact) FileName() string      { return a.fileName }
func (a *Artifact) MIMEType() string      { return a.mimeType }
func (a *Artifact) Size() int64           { return int64(len(a.payload)) }
func (a *Artifact) Source() Source        { return a.source }
func (a *Artifact) Facing() Facing        { return a.facing }
func (a *Artifact) CapturedAt() time.Time { return a.capturedAt }

// Payload returns a copy of the artifact bytes
func (a *Artifact) Payload() []byte {
	return bytes.Clone(a.payload)
}

// Reader streams the artifact bytes
func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.payload)
}
