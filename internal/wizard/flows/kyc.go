package flows

import (
	"time"

	"github.com/agb-digital/onboarding/internal/capture"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
)

func documentSlot(field string) []wizard.EvidenceSlot {
	return []wizard.EvidenceSlot{{
		Field:    field,
		Kind:     wizard.ArtifactDocumentPhoto,
		Accept:   documentTypes,
		Camera:   true,
		StageKey: persistence.KeyIdentityDocument,
		Facing:   string(capture.FacingBack),
	}}
}

// NewKYC builds the account opening dossier. Completed steps can be
// revisited from the progress rail.
func NewKYC(r *validation.Rules, otpResend time.Duration) (*wizard.Definition, error) {
	identity := wizard.BranchStep{
		Selector: validation.FieldDocumentType,
		Branches: map[string][]wizard.SubStepSpec{
			validation.DocumentCNI: {
				{
					ID:       "recto",
					Title:    title("recto"),
					Slots:    documentSlot(validation.FieldRecto),
					Validate: rule(r.Evidence(validation.FieldRecto)),
				},
				{
					ID:             "verso",
					Title:          title("verso"),
					Slots:          documentSlot(validation.FieldVerso),
					Validate:       rule(r.Evidence(validation.FieldVerso)),
					ClearOnRetreat: true,
				},
			},
			validation.DocumentPassport: {{
				ID:       "passeport",
				Title:    title("passeport"),
				Slots:    documentSlot(validation.FieldPassport),
				Validate: rule(r.Evidence(validation.FieldPassport)),
			}},
			validation.DocumentPermis: {{
				ID:       "permis",
				Title:    title("permis"),
				Slots:    documentSlot(validation.FieldPermis),
				Validate: rule(r.Evidence(validation.FieldPermis)),
			}},
		},
	}

	selfie := wizard.BranchStep{
		Selector: validation.FieldSelfieMode,
		Branches: map[string][]wizard.SubStepSpec{
			validation.SelfiePhotoMode: {{
				ID:    "photo",
				Title: title("photo"),
				Slots: []wizard.EvidenceSlot{{
					Field:    validation.FieldSelfiePhoto,
					Kind:     wizard.ArtifactSelfiePhoto,
					Accept:   photoTypes,
					Camera:   true,
					StageKey: persistence.KeySelfieVerification,
					Facing:   string(capture.FacingFront),
				}},
				Validate: rule(r.Evidence(validation.FieldSelfiePhoto)),
			}},
			validation.SelfieVideoMode: {{
				ID:    "video",
				Title: title("video"),
				Slots: []wizard.EvidenceSlot{{
					Field:    validation.FieldSelfieVideo,
					Kind:     wizard.ArtifactSelfieVideo,
					Accept:   videoTypes,
					Camera:   true,
					StageKey: persistence.KeyVideoSelfie,
					Facing:   string(capture.FacingFront),
				}},
				Validate: rule(r.Evidence(validation.FieldSelfieVideo)),
			}},
		},
	}

	return wizard.NewDefinition(KYC, []wizard.StepSpec{
		{
			ID:       "situation",
			Title:    title("situation"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldSituationFamiliale},
			Validate: rule(r.Situation),
		},
		{
			ID:    "filiation",
			Title: title("filiation"),
			Kind:  wizard.FormStep{},
			Fields: []string{
				validation.FieldPrenomPere, validation.FieldNomPere,
				validation.FieldPrenomMere, validation.FieldNomMere,
			},
			Validate: rule(r.Filiation),
		},
		{
			ID:    "naissance",
			Title: title("naissance"),
			Kind:  wizard.FormStep{},
			Fields: []string{
				validation.FieldDateNaissance, validation.FieldPaysNaissance,
				validation.FieldWilayaNaissance, validation.FieldCommuneNaissance,
			},
			Validate: rule(r.Birth),
		},
		{
			ID:    "adresse",
			Title: title("adresse"),
			Kind:  wizard.FormStep{},
			Fields: []string{
				validation.FieldAdresseRue, validation.FieldAdresseWilaya,
				validation.FieldAdresseCommune, validation.FieldCodePostal,
			},
			Validate: rule(r.Address),
		},
		{
			ID:    "profession",
			Title: title("profession"),
			Kind:  wizard.FormStep{},
			Fields: []string{
				validation.FieldProfession, validation.FieldSecteurActivite,
				validation.FieldEmployeur, validation.FieldSalaire, validation.FieldDateEmbauche,
			},
			Validate: rule(r.Profession),
		},
		{
			ID:       "identite",
			Title:    title("identite"),
			Kind:     identity,
			Fields:   []string{validation.FieldDocumentType},
			Validate: rule(r.Choice(validation.FieldDocumentType, validation.DocumentTypes)),
		},
		{
			ID:    "extrait",
			Title: title("extrait"),
			Kind: wizard.EvidenceStep{Slots: []wizard.EvidenceSlot{{
				Field:    validation.FieldBirthCertificate,
				Kind:     wizard.ArtifactDocumentPhoto,
				Accept:   documentTypes,
				StageKey: persistence.KeyBirthCertificate,
			}}},
			Validate: rule(r.Evidence(validation.FieldBirthCertificate)),
		},
		{
			ID:    "justificatif",
			Title: title("justificatif"),
			Kind: wizard.EvidenceStep{Slots: []wizard.EvidenceSlot{{
				Field:    validation.FieldResidenceProof,
				Kind:     wizard.ArtifactDocumentPhoto,
				Accept:   documentTypes,
				StageKey: persistence.KeyResidenceProof,
			}}},
			Fields:   []string{validation.FieldResidenceType},
			Validate: rule(r.Residence),
		},
		{
			ID:       "selfie",
			Title:    title("selfie"),
			Kind:     selfie,
			Fields:   []string{validation.FieldSelfieMode},
			Validate: rule(r.Choice(validation.FieldSelfieMode, validation.SelfieModes)),
		},
		{
			ID:       "contrat",
			Title:    title("contrat"),
			Kind:     wizard.FormStep{},
			Fields:   []string{validation.FieldAcceptConditions},
			Validate: rule(r.Contract),
		},
		{
			ID:       "signature",
			Title:    title("signature"),
			Kind:     wizard.OTPStep{Field: validation.FieldOTPCode, TimerID: OTPTimer, ResendAfter: otpResend},
			Fields:   []string{validation.FieldOTPCode},
			Validate: rule(r.OTP(validation.FieldOTPCode)),
			Action:   wizard.ActionSubmitApplication,
		},
		{ID: "confirmation", Title: title("confirmation"), Kind: wizard.TerminalStep{}},
	}, wizard.AllowJump())
}

// IdentityFields lists the evidence fields of each identity document type
var IdentityFields = map[string][]string{
	validation.DocumentCNI:      {validation.FieldRecto, validation.FieldVerso},
	validation.DocumentPassport: {validation.FieldPassport},
	validation.DocumentPermis:   {validation.FieldPermis},
}
