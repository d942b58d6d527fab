package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// ErrPermissionDenied is what a VirtualCamera returns for denied facings
var ErrPermissionDenied = errors.New("permission denied")

// VirtualCamera is an in-process camera for the CLI, local development and
// tests. It renders a gradient and records synthetic chunks.
type VirtualCamera struct {
	Width, Height int
	// Deny makes Open fail for the listed facings
	Deny map[Facing]error
	// Warmup is how many Dimensions calls report 0x0 before the stream is ready
	Warmup int
	// ChunkEvery is the interval between recorded chunks
	ChunkEvery time.Duration

	mu      sync.Mutex
	opened  []Facing
	streams []*virtualStream
}

// NewVirtualCamera returns a 1280x720 camera that grants every facing
func NewVirtualCamera() *VirtualCamera {
	return &VirtualCamera{Width: 1280, Height: 720, ChunkEvery: 250 * time.Millisecond}
}

// Open implements Camera
func (c *VirtualCamera) Open(ctx context.Context, facing Facing) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opened = append(c.opened, facing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, denied := c.Deny[facing]; denied {
		if err == nil {
			err = ErrPermissionDenied
		}
		return nil, fmt.Errorf("%s camera: %w", facing, err)
	}

	s := &virtualStream{camera: c, facing: facing, warmup: c.Warmup}
	c.streams = append(c.streams, s)
	return s, nil
}

// Requests lists the facings requested so far, in order
func (c *VirtualCamera) Requests() []Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Facing{}, c.opened...)
}

// Live counts streams that were opened and not stopped
func (c *VirtualCamera) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.streams {
		if !s.stopped {
			n++
		}
	}
	return n
}

type virtualStream struct {
	camera  *VirtualCamera
	facing  Facing
	warmup  int
	stopped bool
}

func (s *virtualStream) Facing() Facing { return s.facing }

func (s *virtualStream) Dimensions() (int, int) {
	s.camera.mu.Lock()
	defer s.camera.mu.Unlock()

	if s.warmup > 0 {
		s.warmup--
		return 0, 0
	}
	return s.camera.Width, s.camera.Height
}

func (s *virtualStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := s.camera.Width, s.camera.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img, nil
}

func (s *virtualStream) Stop() {
	s.camera.mu.Lock()
	defer s.camera.mu.Unlock()
	s.stopped = true
}

// Record emits one chunk per ChunkEvery until ctx ends
func (s *virtualStream) Record(ctx context.Context) (<-chan []byte, error) {
	every := s.camera.ChunkEvery
	if every <= 0 {
		every = 250 * time.Millisecond
	}

	out := make(chan []byte)
	go func() {
		defer close(out)

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		// WebM EBML magic so sniffers recognise the container
		chunk := []byte{0x1a, 0x45, 0xdf, 0xa3}
		for {
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}

			chunk = []byte("frame")
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}
