package wizard

import (
	"fmt"
	"time"
)

// StepKind is the closed set of step variants: FormStep, BranchStep, OTPStep,
// EvidenceStep and TerminalStep.
type StepKind interface {
	stepKind()
}

// FormStep collects plain fields
type FormStep struct{}

// BranchStep expands into the sub-step sequence selected by the Selector field
type BranchStep struct {
	Selector string
	Branches map[string][]SubStepSpec
}

// OTPStep gates advance on a complete one-time code. The timer only gates
// resending the code.
type OTPStep struct {
	Field       string
	TimerID     string
	ResendAfter time.Duration
}

// EvidenceStep collects artifacts for its slots
type EvidenceStep struct {
	Slots []EvidenceSlot
}

// TerminalStep ends the flow; it has no navigation
type TerminalStep struct{}

func (FormStep) stepKind()     {}
func (BranchStep) stepKind()   {}
func (OTPStep) stepKind()      {}
func (EvidenceStep) stepKind() {}
func (TerminalStep) stepKind() {}

// KindName names a step kind for views and logs
func KindName(k StepKind) string {
	switch k.(type) {
	case FormStep:
		return "form"
	case BranchStep:
		return "branch"
	case OTPStep:
		return "otp"
	case EvidenceStep:
		return "evidence"
	case TerminalStep:
		return "terminal"
	default:
		panic(fmt.Sprintf("wizard: unhandled step kind %T", k))
	}
}

// Evidence artifact kinds
const (
	ArtifactDocumentPhoto = "document-photo"
	ArtifactSelfiePhoto   = "selfie-photo"
	ArtifactSelfieVideo   = "selfie-video"
)

// EvidenceSlot is a field that accepts one artifact
type EvidenceSlot struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
	// Accept lists MIME types allowed from the file picker
	Accept []string `json:"accept"`
	// Camera allows live capture in addition to the file picker
	Camera bool `json:"camera"`
	// StageKey groups descriptors in local persistence
	StageKey string `json:"stageKey"`
	// Facing is the first camera to try
	Facing string `json:"facing,omitempty"`
}

// Action is the side effect committed when a step is completed
type Action int

const (
	ActionNone Action = iota
	ActionRegister
	ActionSubmitApplication
	ActionAuthenticate
	ActionVerifyTwoFactor
	ActionReviewDecision
)

func (a Action) String() string {
	switch a {
	case ActionRegister:
		return "register"
	case ActionSubmitApplication:
		return "submit_application"
	case ActionAuthenticate:
		return "authenticate"
	case ActionVerifyTwoFactor:
		return "verify_two_factor"
	case ActionReviewDecision:
		return "review_decision"
	default:
		return "none"
	}
}

// Validator returns the errors of a step for the given data
type Validator func(FormData) ErrorMap

// SubStepSpec is one entry of a branch sequence
type SubStepSpec struct {
	ID       string
	Title    string
	Fields   []string
	Slots    []EvidenceSlot
	Validate Validator
	// ClearOnRetreat drops the sub-step's data when the user goes back past it
	ClearOnRetreat bool
}

// owned lists the fields this sub-step writes
func (s SubStepSpec) owned() []string {
	out := append([]string{}, s.Fields...)
	for _, slot := range s.Slots {
		out = append(out, slot.Field)
	}
	return out
}

// StepSpec is one immutable step of a flow
type StepSpec struct {
	ID       string
	Title    string
	Kind     StepKind
	Fields   []string
	Validate Validator
	Action   Action
}

// Slots returns the evidence slots declared directly on the step
func (s StepSpec) Slots() []EvidenceSlot {
	if e, ok := s.Kind.(EvidenceStep); ok {
		return e.Slots
	}
	return nil
}

// Definition is the ordered step list of one flow
type Definition struct {
	name      string
	steps     []StepSpec
	allowJump bool
	index     map[string]int
}

// DefinitionOption configures a Definition
type DefinitionOption func(*Definition)

// AllowJump lets users return directly to any completed step
func AllowJump() DefinitionOption {
	return func(d *Definition) { d.allowJump = true }
}

// NewDefinition checks that step IDs are unique, that branch steps are
// well formed and that the flow ends with exactly one terminal step.
func NewDefinition(name string, steps []StepSpec, opts ...DefinitionOption) (*Definition, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %s has no steps", ErrInvalidDefinition, name)
	}

	d := &Definition{name: name, steps: steps, index: make(map[string]int, len(steps))}
	for _, opt := range opts {
		opt(d)
	}

	for i, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("%w: %s step %d has no id", ErrInvalidDefinition, name, i)
		}
		if _, dup := d.index[step.ID]; dup {
			return nil, fmt.Errorf("%w: %s has duplicate step %q", ErrInvalidDefinition, name, step.ID)
		}
		d.index[step.ID] = i

		switch k := step.Kind.(type) {
		case TerminalStep:
			if i != len(steps)-1 {
				return nil, fmt.Errorf("%w: %s terminal step %q is not last", ErrInvalidDefinition, name, step.ID)
			}
		case BranchStep:
			if k.Selector == "" || len(k.Branches) == 0 {
				return nil, fmt.Errorf("%w: %s branch step %q needs a selector and branches", ErrInvalidDefinition, name, step.ID)
			}
			for value, subs := range k.Branches {
				if len(subs) == 0 {
					return nil, fmt.Errorf("%w: %s branch %q of %q is empty", ErrInvalidDefinition, name, value, step.ID)
				}
			}
		case OTPStep:
			if k.Field == "" || k.TimerID == "" || k.ResendAfter <= 0 {
				return nil, fmt.Errorf("%w: %s otp step %q is incomplete", ErrInvalidDefinition, name, step.ID)
			}
		case nil:
			return nil, fmt.Errorf("%w: %s step %q has no kind", ErrInvalidDefinition, name, step.ID)
		}
	}

	if _, ok := steps[len(steps)-1].Kind.(TerminalStep); !ok {
		return nil, fmt.Errorf("%w: %s does not end with a terminal step", ErrInvalidDefinition, name)
	}

	return d, nil
}

// MustDefinition is NewDefinition for package-level flow tables
func MustDefinition(name string, steps []StepSpec, opts ...DefinitionOption) *Definition {
	d, err := NewDefinition(name, steps, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the flow name
func (d *Definition) Name() string {
	return d.name
}

// Steps returns the step list
func (d *Definition) Steps() []StepSpec {
	return d.steps
}

// Step looks up a step by ID
func (d *Definition) Step(id string) (StepSpec, bool) {
	i, ok := d.index[id]
	if !ok {
		return StepSpec{}, false
	}
	return d.steps[i], true
}

// LastIndex is the index of the terminal step
func (d *Definition) LastIndex() int {
	return len(d.steps) - 1
}
