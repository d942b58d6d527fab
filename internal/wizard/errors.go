package wizard

import (
	"errors"
)

var (
	ErrBusy              = errors.New("wizard: submission in progress")
	ErrUnknownStep       = errors.New("wizard: unknown step")
	ErrUnknownBranch     = errors.New("wizard: unknown branch")
	ErrNotBranching      = errors.New("wizard: current step has no branch selector")
	ErrNotOTPStep        = errors.New("wizard: current step has no one-time code")
	ErrJumpNotAllowed    = errors.New("wizard: jump not allowed")
	ErrResendLocked      = errors.New("wizard: resend not yet available")
	ErrTerminal          = errors.New("wizard: flow is complete")
	ErrFieldNotOnScreen  = errors.New("wizard: field is not on the current screen")
	ErrInvalidDefinition = errors.New("wizard: invalid definition")
)

// FormErrorKey is the ErrorMap key of errors that belong to no single field
const FormErrorKey = "form"

// RejectedError is a user-correctable failure reported while committing a
// step. The wizard shows it and stays on the step.
type RejectedError struct {
	Field   string
	Message string
}

func (e *RejectedError) Error() string {
	return "rejected: " + e.Message
}

// Reject builds a form-level RejectedError
func Reject(message string) error {
	return &RejectedError{Field: FormErrorKey, Message: message}
}

// ErrorMap maps field names to messages. A missing key means the field is valid.
type ErrorMap map[string]string

func (m ErrorMap) clone() ErrorMap {
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func merge(maps ...map[string]string) ErrorMap {
	out := ErrorMap{}
	for _, m := range maps {
		for k, v := range m {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}
