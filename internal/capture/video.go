package capture

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxVideoDuration is the recording ceiling of the video selfie
const DefaultMaxVideoDuration = 10 * time.Second

// Recorder is implemented by streams that can record. The returned channel
// yields encoded chunks and is closed once ctx is done.
type Recorder interface {
	Record(ctx context.Context) (<-chan []byte, error)
}

// Recording is a video capture in progress. It stops by itself at the
// ceiling or earlier through Stop.
type Recording struct {
	adapter *Adapter
	kind    string
	facing  Facing
	cancel  context.CancelFunc
	done    chan struct{}
	buf     bytes.Buffer

	once     sync.Once
	artifact *Artifact
	err      error
}

// StartRecording records from the open stream for at most max
func (a *Adapter) StartRecording(ctx context.Context, kind string, max time.Duration) (*Recording, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateStreaming || a.stream == nil {
		return nil, ErrNotStreaming
	}
	if a.rec != nil {
		return nil, ErrRecording
	}
	recorder, ok := a.stream.(Recorder)
	if !ok {
		return nil, ErrRecordingUnsupported
	}
	if max <= 0 {
		max = DefaultMaxVideoDuration
	}

	rctx, cancel := context.WithTimeout(ctx, max)
	chunks, err := recorder.Record(rctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	r := &Recording{
		adapter: a,
		kind:    kind,
		facing:  a.stream.Facing(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	a.rec = r

	go func() {
		defer close(r.done)
		for chunk := range chunks {
			r.buf.Write(chunk)
		}
	}()

	return r, nil
}

// Stop ends the recording early and returns the video
func (r *Recording) Stop() (*Artifact, error) {
	r.cancel()
	return r.Wait()
}

// Wait blocks until the recording ends and returns the video
func (r *Recording) Wait() (*Artifact, error) {
	<-r.done
	r.once.Do(r.finish)
	return r.artifact, r.err
}

// Done is closed when the recorder has flushed its last chunk
func (r *Recording) Done() <-chan struct{} {
	return r.done
}

func (r *Recording) finish() {
	r.cancel()

	a := r.adapter
	a.mu.Lock()
	defer a.mu.Unlock()

	owned := a.rec == r
	if owned {
		a.rec = nil
	}
	if r.buf.Len() == 0 {
		r.err = fmt.Errorf("recording produced no data: %w", ErrCameraNotReady)
		return
	}

	at := a.now()
	r.artifact = newArtifact(r.kind, fmt.Sprintf("selfie-%d.webm", at.UnixMilli()), "video/webm",
		SourceCamera, r.facing, at, r.buf.Bytes())

	if owned {
		a.release()
		a.state = StateCaptured
	}
}
