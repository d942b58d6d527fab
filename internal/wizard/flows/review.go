package flows

import (
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
)

// ReviewDocumentFields are the per-document verdicts of a review
var ReviewDocumentFields = []string{
	validation.FieldReviewIdentity,
	validation.FieldReviewBirthCertificate,
	validation.FieldReviewResidence,
	validation.FieldReviewSelfie,
}

// NewReview builds the back-office flow: sign in, second factor, pick a
// dossier, review its documents and record a decision.
func NewReview(r *validation.Rules) (*wizard.Definition, error) {
	return wizard.NewDefinition(Review, []wizard.StepSpec{
		{
			ID:       "credentials",
			Title:    title("credentials"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldAdminEmail, validation.FieldAdminPassword},
			Validate: rule(r.Credentials),
			Action:   wizard.ActionAuthenticate,
		},
		{
			ID:       "twofactor",
			Title:    title("twofactor"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldTwoFactorCode},
			Validate: rule(r.TwoFactor),
			Action:   wizard.ActionVerifyTwoFactor,
		},
		{
			ID:       "application",
			Title:    title("application"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldApplicationID},
			Validate: rule(r.Application),
		},
		{
			ID:       "documents",
			Title:    title("documents"),
			Kind:     wizard.FormStep{},
			Fields:   ReviewDocumentFields,
			Validate: rule(r.DocumentReview(ReviewDocumentFields...)),
		},
		{
			ID:    "decision",
			Title: title("decision"),
			Kind: wizard.BranchStep{
				Selector: validation.FieldDecision,
				Branches: map[string][]wizard.SubStepSpec{
					validation.DecisionApprove: {{
						ID:     "approve",
						Title:  title("approve"),
						Fields: []string{validation.FieldApprovalNote},
					}},
					validation.DecisionReject: {{
						ID:       "reject",
						Title:    title("reject"),
						Fields:   []string{validation.FieldRejectCategory, validation.FieldRejectComment},
						Validate: rule(r.Rejection),
					}},
				},
			},
			Fields:   []string{validation.FieldDecision},
			Validate: rule(r.Choice(validation.FieldDecision, validation.Decisions)),
			Action:   wizard.ActionReviewDecision,
		},
		{ID: "done", Title: title("done"), Kind: wizard.TerminalStep{}},
	})
}
