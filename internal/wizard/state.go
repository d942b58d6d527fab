package wizard

import (
	"math"
	"time"
)

// State is the per-session position and data of a wizard. Reducers never
// mutate a State in place.
type State struct {
	StepIndex    int
	SubStepIndex int
	Data         FormData
	Errors       ErrorMap
	// Timers holds deadlines keyed by timer ID
	Timers     map[string]time.Time
	Submitting bool
}

func (s State) clone() State {
	c := s
	c.Data = s.Data.clone()
	c.Errors = s.Errors.clone()
	c.Timers = make(map[string]time.Time, len(s.Timers))
	for k, v := range s.Timers {
		c.Timers[k] = v
	}
	return c
}

// Clone returns a deep copy of the state
func (s State) Clone() State {
	return s.clone()
}

// Remaining returns the whole seconds left on a timer, 0 once it expired or
// when it was never started.
func (s State) Remaining(timerID string, now time.Time) int {
	deadline, ok := s.Timers[timerID]
	if !ok {
		return 0
	}
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
