package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCameraNotReady is returned when the stream has not reported its size yet
	ErrCameraNotReady = errors.New("capture: camera not ready")
	// ErrNotStreaming is returned when capturing without an open stream
	ErrNotStreaming = errors.New("capture: no active stream")
	// ErrDeviceUnavailable is matched by UnavailableError
	ErrDeviceUnavailable = errors.New("capture: no camera available")
	// ErrRecordingUnsupported is returned when the stream cannot record video
	ErrRecordingUnsupported = errors.New("capture: stream cannot record")
	// ErrRecording is returned when a recording is already running
	ErrRecording = errors.New("capture: recording in progress")
	// ErrStopped is returned by Start when Stop ends a pending request
	ErrStopped = errors.New("capture: camera request stopped")
)

// Attempt is one failed camera request of the fallback chain
type Attempt struct {
	Facing Facing
	Err    error
}

// MessageKey is the i18n key shown for this attempt's failure
func (a Attempt) MessageKey() string {
	switch a.Facing {
	case FacingFront:
		return "capture.front_failed"
	case FacingBack:
		return "capture.back_failed"
	default:
		return "capture.unavailable"
	}
}

// UnavailableError reports that every candidate camera failed. Each attempt
// keeps its own cause.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Facing, a.Err))
	}
	return "capture: no camera available (" + strings.Join(parts, "; ") + ")"
}

// Is makes errors.Is(err, ErrDeviceUnavailable) succeed
func (e *UnavailableError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

// MessageKey is the i18n key of the final user-facing message
func (e *UnavailableError) MessageKey() string {
	return "capture.unavailable"
}

// PolicyError rejects a picked file. No artifact is created.
type PolicyError struct {
	Key    string
	Params map[string]string
}

func (e *PolicyError) Error() string {
	return "capture: " + e.Key
}
