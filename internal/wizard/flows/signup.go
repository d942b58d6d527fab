package flows

import (
	"time"

	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
)

// SignupHandoffFields are the fields staged for the KYC flow once signup completes
var SignupHandoffFields = []string{
	validation.FieldNom,
	validation.FieldPrenom,
	validation.FieldEmail,
	validation.FieldCountryCode,
	validation.FieldTelephone,
	validation.FieldPassword,
	validation.FieldSecurityQuestion1,
	validation.FieldSecurityAnswer1,
	validation.FieldSecurityQuestion2,
	validation.FieldSecurityAnswer2,
}

// SignupSecrets are hashed before the handoff is staged
var SignupSecrets = []string{
	validation.FieldPassword,
	validation.FieldSecurityAnswer1,
	validation.FieldSecurityAnswer2,
}

// NewSignup builds the account creation flow. The account is registered
// when the security step is completed.
func NewSignup(r *validation.Rules, otpResend time.Duration) (*wizard.Definition, error) {
	return wizard.NewDefinition(Signup, []wizard.StepSpec{
		{
			ID:       "personal",
			Title:    title("personal"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldNom, validation.FieldPrenom},
			Validate: rule(r.Personal),
		},
		{
			ID:       "contact",
			Title:    title("contact"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldEmail, validation.FieldCountryCode, validation.FieldTelephone},
			Validate: rule(r.Contact),
		},
		{
			ID:       "password",
			Title:    title("password"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldPassword, validation.FieldPasswordConfirm},
			Validate: rule(r.Password),
		},
		{
			ID:       "verification",
			Title:    title("verification"),
			Kind:     wizard.OTPStep{Field: validation.FieldOTPCode, TimerID: OTPTimer, ResendAfter: otpResend},
			Fields:   []string{validation.FieldOTPCode},
			Validate: rule(r.OTP(validation.FieldOTPCode)),
		},
		{
			ID:    "security",
			Title: title("security"),
			Kind:  wizard.FormStep{},
			Fields: []string{
				validation.FieldSecurityQuestion1, validation.FieldSecurityAnswer1,
				validation.FieldSecurityQuestion2, validation.FieldSecurityAnswer2,
			},
			Validate: rule(r.Security),
			Action:   wizard.ActionRegister,
		},
		{ID: "confirmation", Title: title("confirmation"), Kind: wizard.TerminalStep{}},
	})
}
