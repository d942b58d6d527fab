package wizard

import (
	"fmt"
	"time"
)

// Start returns the initial state of the flow
func (d *Definition) Start(now time.Time) State {
	s := State{
		Data:   FormData{},
		Errors: ErrorMap{},
		Timers: map[string]time.Time{},
	}
	return d.enter(s, now)
}

// Current returns the active step and, for branch steps with a selection,
// the active sub-step.
func (d *Definition) Current(s State) (StepSpec, *SubStepSpec) {
	step := d.steps[s.StepIndex]
	subs := d.subSteps(step, s.Data)
	if s.SubStepIndex < len(subs) {
		sub := subs[s.SubStepIndex]
		return step, &sub
	}
	return step, nil
}

// subSteps returns the sequence selected for a branch step, nil otherwise
func (d *Definition) subSteps(step StepSpec, data FormData) []SubStepSpec {
	b, ok := step.Kind.(BranchStep)
	if !ok {
		return nil
	}
	return b.Branches[data.Text(b.Selector)]
}

// TotalSteps is the number of screens of the current step under the current
// branch selection. It is recomputed on every call.
func (d *Definition) TotalSteps(s State) int {
	step := d.steps[s.StepIndex]
	if n := len(d.subSteps(step, s.Data)); n > 0 {
		return n
	}
	return 1
}

// CompletesStep reports whether advancing from s leaves the current step,
// that is whether s shows the last screen of its step.
func (d *Definition) CompletesStep(s State) bool {
	return s.SubStepIndex >= d.TotalSteps(s)-1
}

// IsTerminal reports whether the flow reached its confirmation step
func (d *Definition) IsTerminal(s State) bool {
	_, ok := d.steps[s.StepIndex].Kind.(TerminalStep)
	return ok
}

// Validate runs the rules of every visible field of the current screen.
// On the first screen of a branch step this includes the selector.
func (d *Definition) Validate(s State) ErrorMap {
	step, sub := d.Current(s)

	var parts []map[string]string
	if step.Validate != nil && s.SubStepIndex == 0 {
		parts = append(parts, step.Validate(s.Data))
	}
	if sub != nil && sub.Validate != nil {
		parts = append(parts, sub.Validate(s.Data))
	}
	return merge(parts...)
}

// Advance validates the current screen and moves forward by exactly one
// screen. Failing validation leaves the position unchanged and returns the
// errors. Advancing from the terminal step is a no-op.
func (d *Definition) Advance(s State, now time.Time) (State, ErrorMap) {
	if d.IsTerminal(s) {
		return s, nil
	}

	errs := d.Validate(s)
	next := s.clone()
	next.Errors = errs
	if len(errs) > 0 {
		return next, errs
	}

	step := d.steps[s.StepIndex]
	if subs := d.subSteps(step, s.Data); s.SubStepIndex < len(subs)-1 {
		next.SubStepIndex++
		return next, nil
	}

	next.StepIndex++
	next.SubStepIndex = 0
	return d.enter(next, now), nil
}

// enter starts the timer of an OTP step the first time it becomes current
func (d *Definition) enter(s State, now time.Time) State {
	if otp, ok := d.steps[s.StepIndex].Kind.(OTPStep); ok {
		if _, running := s.Timers[otp.TimerID]; !running {
			s.Timers[otp.TimerID] = now.Add(otp.ResendAfter)
		}
	}
	return s
}

// Retreat moves back one screen. It is a no-op on the first screen and on
// the terminal step. Leaving a sub-step marked ClearOnRetreat drops its data.
func (d *Definition) Retreat(s State) State {
	if d.IsTerminal(s) || (s.StepIndex == 0 && s.SubStepIndex == 0) {
		return s
	}

	next := s.clone()
	next.Errors = ErrorMap{}

	if s.SubStepIndex > 0 {
		if _, sub := d.Current(s); sub != nil && sub.ClearOnRetreat {
			for _, field := range sub.owned() {
				delete(next.Data, field)
			}
		}
		next.SubStepIndex--
		return next
	}

	next.StepIndex--
	next.SubStepIndex = 0
	return next
}

// OnScreen reports whether field is edited on the screen s shows: the fields
// and evidence slots of the current step or sub-step, the code of an OTP step
// and the branch selector of the current step.
func (d *Definition) OnScreen(s State, field string) bool {
	step, sub := d.Current(s)
	switch k := step.Kind.(type) {
	case BranchStep:
		if k.Selector == field {
			return true
		}
	case OTPStep:
		if k.Field == field {
			return true
		}
	}

	if s.SubStepIndex == 0 && (contains(step.Fields, field) || hasSlot(step.Slots(), field)) {
		return true
	}
	return sub != nil && (contains(sub.Fields, field) || hasSlot(sub.Slots, field))
}

func hasSlot(slots []EvidenceSlot, field string) bool {
	for _, slot := range slots {
		if slot.Field == field {
			return true
		}
	}
	return false
}

// SetField stores a value and clears that field's error without revalidating.
// Changing a branch selector through SetField applies the branch reset.
func (d *Definition) SetField(s State, field string, v Value) State {
	for i, step := range d.steps {
		if b, ok := step.Kind.(BranchStep); ok && b.Selector == field {
			if t, isText := v.(Text); isText {
				return d.selectBranch(s, i, b, string(t))
			}
		}
	}

	next := s.clone()
	next.Data[field] = v
	delete(next.Errors, field)
	return next
}

// SetBranch selects the branch of the current step. The sub-step index goes
// back to 0 and fields owned only by the previous branch are cleared.
func (d *Definition) SetBranch(s State, value string) (State, error) {
	b, ok := d.steps[s.StepIndex].Kind.(BranchStep)
	if !ok {
		return s, ErrNotBranching
	}
	if _, known := b.Branches[value]; !known {
		return s, fmt.Errorf("%w: %q", ErrUnknownBranch, value)
	}
	return d.selectBranch(s, s.StepIndex, b, value), nil
}

func (d *Definition) selectBranch(s State, stepIndex int, b BranchStep, value string) State {
	next := s.clone()
	previous := s.Data.Text(b.Selector)

	if previous != value {
		keep := map[string]bool{}
		for _, sub := range b.Branches[value] {
			for _, f := range sub.owned() {
				keep[f] = true
			}
		}
		for _, sub := range b.Branches[previous] {
			for _, f := range sub.owned() {
				if !keep[f] {
					delete(next.Data, f)
					delete(next.Errors, f)
				}
			}
		}
	}

	next.Data[b.Selector] = Text(value)
	delete(next.Errors, b.Selector)
	if s.StepIndex == stepIndex {
		next.SubStepIndex = 0
	}
	return next
}

// JumpTo returns to a completed step when the flow allows it. The target is
// revalidated against the existing data so stale answers show up at once.
func (d *Definition) JumpTo(s State, stepID string) (State, ErrorMap, error) {
	if !d.allowJump || d.IsTerminal(s) {
		return s, nil, ErrJumpNotAllowed
	}
	target, ok := d.index[stepID]
	if !ok {
		return s, nil, fmt.Errorf("%w: %q", ErrUnknownStep, stepID)
	}
	if target >= s.StepIndex {
		return s, nil, ErrJumpNotAllowed
	}

	next := s.clone()
	next.StepIndex = target
	next.SubStepIndex = 0
	next.Errors = d.Validate(next)
	return next, next.Errors, nil
}

// ResendOTP restarts the countdown of the current OTP step. It fails while
// the previous countdown is still running.
func (d *Definition) ResendOTP(s State, now time.Time) (State, error) {
	otp, ok := d.steps[s.StepIndex].Kind.(OTPStep)
	if !ok {
		return s, ErrNotOTPStep
	}
	if s.Remaining(otp.TimerID, now) > 0 {
		return s, ErrResendLocked
	}

	next := s.clone()
	next.Timers[otp.TimerID] = now.Add(otp.ResendAfter)
	return next, nil
}

// CanResend reports whether the current OTP step may resend its code
func (d *Definition) CanResend(s State, now time.Time) bool {
	otp, ok := d.steps[s.StepIndex].Kind.(OTPStep)
	return ok && s.Remaining(otp.TimerID, now) == 0
}
