// Package wizard implements the step engine shared by the onboarding flows:
// pure reducers over State plus a Wizard that serialises navigation for one
// session.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Committer runs the side effect of a completed step, such as a remote
// submission. It receives a snapshot taken before the wizard moves.
type Committer func(ctx context.Context, step StepSpec, s State) error

// Wizard owns the State of one session. Navigation is rejected with ErrBusy
// while a commit is in flight.
type Wizard struct {
	mu     sync.Mutex
	def    *Definition
	state  State
	now    func() time.Time
	commit Committer
}

// Option configures a Wizard
type Option func(*Wizard)

// WithClock sets the time source used for timers
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithCommitter sets the hook awaited on every successful advance
func WithCommitter(c Committer) Option {
	return func(w *Wizard) { w.commit = c }
}

// WithData seeds the form, typically from a staged handoff
func WithData(data FormData) Option {
	return func(w *Wizard) {
		for k, v := range data {
			w.state.Data[k] = v
		}
	}
}

// New starts a wizard on the first step of def
func New(def *Definition, opts ...Option) *Wizard {
	w := &Wizard{def: def, now: time.Now}
	w.state = State{Data: FormData{}, Errors: ErrorMap{}, Timers: map[string]time.Time{}}
	for _, opt := range opts {
		opt(w)
	}
	w.state = def.enter(w.state, w.now())
	return w
}

// Definition returns the flow the wizard runs
func (w *Wizard) Definition() *Definition {
	return w.def
}

// State returns a copy of the current state
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// View projects the current state for rendering
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.def.View(w.state, w.now())
}

// Advance validates the current screen and, on success, awaits the committer
// before moving. A non-empty ErrorMap means the wizard stayed in place. Any
// returned error other than ErrBusy is a transient commit failure; the
// form data is kept so the user can retry.
func (w *Wizard) Advance(ctx context.Context) (ErrorMap, error) {
	w.mu.Lock()
	if w.state.Submitting {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.def.IsTerminal(w.state) {
		w.mu.Unlock()
		return nil, nil
	}

	next, errs := w.def.Advance(w.state, w.now())
	if len(errs) > 0 || w.commit == nil {
		w.state = next
		w.mu.Unlock()
		return errs, nil
	}

	step := w.def.steps[w.state.StepIndex]
	w.state.Submitting = true
	snapshot := w.state.clone()
	w.mu.Unlock()

	err := w.commit(ctx, step, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Submitting = false

	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			field := rejected.Field
			if field == "" {
				field = FormErrorKey
			}
			w.state.Errors = ErrorMap{field: rejected.Message}
			return w.state.Errors.clone(), nil
		}
		return nil, err
	}

	// Only the committer could have run since next was computed, and it
	// works on a snapshot.
	w.state = next
	return nil, nil
}

// Retreat moves back one screen
func (w *Wizard) Retreat() error {
	return w.apply(func(s State) (State, error) {
		return w.def.Retreat(s), nil
	})
}

// SetField stores a value for a field of the current screen. Fields of
// other steps are edited by jumping back to them.
func (w *Wizard) SetField(field string, v Value) error {
	return w.apply(func(s State) (State, error) {
		if !w.def.OnScreen(s, field) {
			return s, fmt.Errorf("%w: %s", ErrFieldNotOnScreen, field)
		}
		return w.def.SetField(s, field, v), nil
	})
}

// SetFields stores several values of the current screen. A branch selector
// is applied first so the fields of the branch it opens are accepted. Nothing
// is stored when one field is off screen.
func (w *Wizard) SetFields(values map[string]Value) error {
	return w.apply(func(s State) (State, error) {
		selector := ""
		if b, ok := w.def.steps[s.StepIndex].Kind.(BranchStep); ok {
			selector = b.Selector
		}

		fields := make([]string, 0, len(values))
		for field := range values {
			fields = append(fields, field)
		}
		sort.Slice(fields, func(i, j int) bool {
			if (fields[i] == selector) != (fields[j] == selector) {
				return fields[i] == selector
			}
			return fields[i] < fields[j]
		})

		next := s
		for _, field := range fields {
			if !w.def.OnScreen(next, field) {
				return s, fmt.Errorf("%w: %s", ErrFieldNotOnScreen, field)
			}
			next = w.def.SetField(next, field, values[field])
		}
		return next, nil
	})
}

// SetBranch selects the branch of the current step
func (w *Wizard) SetBranch(value string) error {
	return w.apply(func(s State) (State, error) {
		return w.def.SetBranch(s, value)
	})
}

// JumpTo returns to a completed step
func (w *Wizard) JumpTo(stepID string) (ErrorMap, error) {
	var errs ErrorMap
	err := w.apply(func(s State) (State, error) {
		next, e, err := w.def.JumpTo(s, stepID)
		errs = e
		return next, err
	})
	return errs, err
}

// ResendOTP restarts the countdown of the current OTP step
func (w *Wizard) ResendOTP() error {
	return w.apply(func(s State) (State, error) {
		return w.def.ResendOTP(s, w.now())
	})
}

func (w *Wizard) apply(fn func(State) (State, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Submitting {
		return ErrBusy
	}
	next, err := fn(w.state)
	if err != nil {
		return err
	}
	w.state = next
	return nil
}
