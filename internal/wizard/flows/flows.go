// Package flows declares the onboarding wizards: customer signup, the KYC
// dossier and the back-office review.
package flows

import (
	"fmt"
	"sort"
	"time"

	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
)

// Flow names
const (
	Signup = "signup"
	KYC    = "kyc"
	Review = "review"
)

// OTP timer shared by the code steps
const OTPTimer = "otp"

// DefaultOTPResend is the delay before a code may be sent again
const DefaultOTPResend = 180 * time.Second

// MIME types accepted from the file picker
var (
	documentTypes = []string{"image/jpeg", "image/png", "application/pdf"}
	photoTypes    = []string{"image/jpeg", "image/png"}
	videoTypes    = []string{"video/webm", "video/mp4"}
)

func rule(fn func(validation.Form) map[string]string) wizard.Validator {
	return func(d wizard.FormData) wizard.ErrorMap {
		return fn(d)
	}
}

func title(id string) string {
	return "steps." + id
}

// Registry holds the definitions by name
type Registry struct {
	defs map[string]*wizard.Definition
}

// NewRegistry builds every flow against the given rules
func NewRegistry(rules *validation.Rules, otpResend time.Duration) (*Registry, error) {
	if otpResend <= 0 {
		otpResend = DefaultOTPResend
	}

	builders := map[string]func(*validation.Rules, time.Duration) (*wizard.Definition, error){
		Signup: NewSignup,
		KYC:    NewKYC,
		Review: func(r *validation.Rules, _ time.Duration) (*wizard.Definition, error) { return NewReview(r) },
	}

	reg := &Registry{defs: make(map[string]*wizard.Definition, len(builders))}
	for name, build := range builders {
		def, err := build(rules, otpResend)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s flow: %w", name, err)
		}
		reg.defs[name] = def
	}
	return reg, nil
}

// Get returns a flow by name
func (r *Registry) Get(name string) (*wizard.Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names lists the registered flows in order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
