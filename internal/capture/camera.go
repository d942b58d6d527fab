package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"github.com/agb-digital/onboarding/pkg/logger"
)

// Camera grants media streams
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an open camera. Stop releases every track and must be called
// whenever the stream is abandoned.
type Stream interface {
	Facing() Facing
	// Dimensions is the native resolution, zero until the first frame arrives
	Dimensions() (width, height int)
	Frame(ctx context.Context) (image.Image, error)
	Stop()
}

// State of the camera path
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCaptured
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCaptured:
		return "captured"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// DefaultJPEGQuality matches a 0.9 encoder quality factor
const DefaultJPEGQuality = 90

// Candidates is the ordered facing fallback chain for a preferred facing.
// A back preference, used by document slots, never tries the front camera.
func Candidates(preferred Facing) []Facing {
	switch preferred {
	case FacingFront:
		return []Facing{FacingFront, FacingBack, FacingAny}
	case FacingBack:
		return []Facing{FacingBack, FacingAny}
	default:
		return []Facing{FacingAny}
	}
}

func opposite(f Facing) Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// Adapter drives one camera through Idle, Requesting, Streaming and
// Captured. Camera requests are strictly sequential.
type Adapter struct {
	mu       sync.Mutex
	camera   Camera
	state    State
	stream   Stream
	attempts []Attempt
	// gen changes whenever a pending request is superseded
	gen     uint64
	cancel  context.CancelFunc
	quality int
	now     func() time.Time
	log     *logger.Logger
	rec     *Recording
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithJPEGQuality sets the encoder quality (1-100)
func WithJPEGQuality(q int) AdapterOption {
	return func(a *Adapter) {
		if q >= 1 && q <= 100 {
			a.quality = q
		}
	}
}

// WithLogger sets the adapter logger
func WithLogger(l *logger.Logger) AdapterOption {
	return func(a *Adapter) { a.log = l }
}

// WithNow sets the clock used for capture timestamps
func WithNow(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an idle adapter over camera
func NewAdapter(camera Camera, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		camera:  camera,
		quality: DefaultJPEGQuality,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current camera state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Facing returns the facing of the open stream, empty when none is open
func (a *Adapter) Facing() Facing {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == nil {
		return ""
	}
	return a.stream.Facing()
}

// Attempts returns the failures recorded by the last Start
func (a *Adapter) Attempts() []Attempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Attempt{}, a.attempts...)
}

// Start requests a camera, walking the fallback chain of preferred. Each
// candidate is awaited before the next is tried and keeps its own error.
// When all fail the adapter is Failed and an *UnavailableError is returned;
// the caller should offer the file picker. The adapter is not locked while a
// request is pending, so Stop cancels it and Start returns ErrStopped.
func (a *Adapter) Start(ctx context.Context, preferred Facing) error {
	a.mu.Lock()
	a.release()
	gen := a.gen
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state = StateRequesting
	a.attempts = nil
	a.mu.Unlock()
	defer cancel()

	for _, facing := range Candidates(preferred) {
		stream, err := a.camera.Open(rctx, facing)

		a.mu.Lock()
		if a.gen != gen {
			a.mu.Unlock()
			if stream != nil {
				stream.Stop()
			}
			a.log.Debug().Str("facing", string(facing)).Msg("camera request superseded")
			return ErrStopped
		}
		if err == nil {
			a.stream = stream
			a.state = StateStreaming
			a.cancel = nil
			a.log.Debug().Str("facing", string(stream.Facing())).Int("attempts", len(a.attempts)+1).Msg("camera stream granted")
			a.mu.Unlock()
			return nil
		}
		a.attempts = append(a.attempts, Attempt{Facing: facing, Err: err})
		a.mu.Unlock()

		a.log.Warn().Err(err).Str("facing", string(facing)).Msg("camera request failed")
		if rctx.Err() != nil {
			break
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return ErrStopped
	}
	a.state = StateFailed
	a.cancel = nil
	return &UnavailableError{Attempts: append([]Attempt{}, a.attempts...)}
}

// SwitchCamera stops the current tracks and requests the opposite facing
func (a *Adapter) SwitchCamera(ctx context.Context) error {
	a.mu.Lock()
	current := FacingAny
	if a.stream != nil {
		current = a.stream.Facing()
	}
	a.release()
	a.mu.Unlock()

	return a.Start(ctx, opposite(current))
}

// Capture grabs the current frame at native resolution, encodes it as JPEG
// and stops the stream. It fails with ErrCameraNotReady while the stream has
// no dimensions; the stream stays open so the caller can retry.
func (a *Adapter) Capture(ctx context.Context, kind string) (*Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStreaming || a.stream == nil {
		return nil, ErrNotStreaming
	}

	w, h := a.stream.Dimensions()
	if w == 0 || h == 0 {
		return nil, ErrCameraNotReady
	}

	frame, err := a.stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: a.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	at := a.now()
	artifact := newArtifact(kind, fmt.Sprintf("capture-%d.jpg", at.UnixMilli()), "image/jpeg",
		SourceCamera, a.stream.Facing(), at, buf.Bytes())

	a.release()
	a.state = StateCaptured
	return artifact, nil
}

// Stop releases the stream. Leaving a camera view must always call Stop.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.release()
	if a.state != StateCaptured && a.state != StateFailed {
		a.state = StateIdle
	}
}

// release cancels a pending request, stops any recording and every track;
// callers hold mu
func (a *Adapter) release() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		a.gen++
	}
	if a.rec != nil {
		a.rec.cancel()
		a.rec = nil
	}
	if a.stream != nil {
		a.stream.Stop()
		a.stream = nil
	}
}
