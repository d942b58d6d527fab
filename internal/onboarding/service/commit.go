package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/submission"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
	"github.com/agb-digital/onboarding/internal/wizard/flows"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

// committer runs the action of a step once its last screen is accepted
func (s *Service) committer(sess *Session) wizard.Committer {
	return func(ctx context.Context, step wizard.StepSpec, snapshot wizard.State) error {
		if !sess.wizard.Definition().CompletesStep(snapshot) {
			return nil
		}
		action := step.Action.String()

		if err := s.dispatch(ctx, sess, step, snapshot); err != nil {
			log := s.logger.Warn()
			var rejected *wizard.RejectedError
			if errors.As(err, &rejected) {
				log = s.logger.Info()
			}
			log.Err(err).
				Str("session_id", sess.ID).
				Str("step_id", step.ID).
				Str("action", action).
				Msg("step commit failed")
			s.emit(ctx, sess, messaging.EventSubmissionFailed, step.ID, action, map[string]string{"error": err.Error()})
			return err
		}

		s.markValidated(ctx, sess, step, snapshot)
		s.logger.Info().
			Str("session_id", sess.ID).
			Str("flow", sess.Flow).
			Str("step_id", step.ID).
			Str("action", action).
			Msg("step committed")
		s.emit(ctx, sess, messaging.EventStepCompleted, step.ID, action, nil)
		return nil
	}
}

func (s *Service) dispatch(ctx context.Context, sess *Session, step wizard.StepSpec, snapshot wizard.State) error {
	d := snapshot.Data
	switch step.Action {
	case wizard.ActionRegister:
		return s.register(ctx, sess, step, d)
	case wizard.ActionSubmitApplication:
		return s.submitApplication(ctx, sess, step, d)
	case wizard.ActionAuthenticate:
		return s.authenticate(ctx, sess, d)
	case wizard.ActionVerifyTwoFactor:
		res, err := s.facade.VerifyTwoFactor(ctx, sess.Remote(), d.Text(validation.FieldTwoFactorCode))
		if err != nil {
			return remoteError(err)
		}
		if res.Token != "" {
			s.keepToken(ctx, sess, res.Token)
		}
		return nil
	case wizard.ActionReviewDecision:
		return s.reviewDecision(ctx, sess, step, d)
	default:
		return nil
	}
}

// remoteError turns a façade failure into what the wizard expects: a
// rejection the user can correct, or a transient error
func remoteError(err error) error {
	var rejected *submission.RejectedError
	if errors.As(err, &rejected) {
		return wizard.Reject(rejected.Message)
	}
	return apperrors.Transient(err.Error())
}

func (s *Service) keepToken(ctx context.Context, sess *Session, token string) {
	sess.setRemote(token)
	if err := s.bridge.SetAuthToken(ctx, sess.ID, token); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to stage auth token")
	}
}

func (s *Service) register(ctx context.Context, sess *Session, step wizard.StepSpec, d wizard.FormData) error {
	email := d.Text(validation.FieldEmail)
	reg := submission.Registration{
		Username:  email,
		Email:     email,
		Password:  d.Text(validation.FieldPassword),
		FirstName: d.Text(validation.FieldPrenom),
		LastName:  d.Text(validation.FieldNom),
		Phone:     "+" + strings.TrimPrefix(d.Text(validation.FieldCountryCode), "+") + d.Text(validation.FieldTelephone),
		SecurityQuestions: []submission.SecurityAnswer{
			{Question: d.Text(validation.FieldSecurityQuestion1), Answer: d.Text(validation.FieldSecurityAnswer1)},
			{Question: d.Text(validation.FieldSecurityQuestion2), Answer: d.Text(validation.FieldSecurityAnswer2)},
		},
	}

	res, err := s.facade.Register(ctx, reg)
	if err != nil {
		return remoteError(err)
	}
	if res.Token != "" {
		s.keepToken(ctx, sess, res.Token)
	}

	fields := make(map[string]string, len(flows.SignupHandoffFields))
	for _, f := range flows.SignupHandoffFields {
		fields[f] = d.Text(f)
	}
	// The account exists at this point; a failed handoff only means the
	// KYC wizard starts empty.
	if err := s.bridge.StageHandoff(ctx, sess.ID, fields, flows.SignupSecrets...); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to stage signup handoff")
	}

	details := map[string]string{}
	if res.User != nil {
		details["user_id"] = strconv.FormatInt(res.User.ID, 10)
	}
	s.emit(ctx, sess, messaging.EventAccountRegistered, step.ID, step.Action.String(), details)
	return nil
}

func (s *Service) submitApplication(ctx context.Context, sess *Session, step wizard.StepSpec, d wizard.FormData) error {
	remote := sess.Remote()

	fields := make([]string, 0, len(sess.slots))
	for field := range sess.slots {
		if d.HasArtifact(field) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	docs := make([]submission.DocumentRef, 0, len(fields))
	for _, field := range fields {
		ref, _ := d.Artifact(field)
		slot := sess.slots[field]
		doc := submission.DocumentRef{Kind: ref.Kind, Field: field, FileName: ref.FileName}

		payload, err := s.evidencePayload(ctx, sess, slot, field, ref.ID)
		if err != nil {
			return err
		}
		receipt, err := s.facade.UploadDocument(ctx, remote, submission.DocumentUpload{
			DocumentType: slot.StageKey,
			Field:        field,
			FileName:     ref.FileName,
			ContentType:  ref.MIMEType,
			Body:         bytes.NewReader(payload),
		})
		if err != nil {
			return remoteError(err)
		}
		doc.DocumentID = receipt.DocumentID
		docs = append(docs, doc)
	}

	personal := d.Texts()
	for _, f := range flows.SignupSecrets {
		delete(personal, f)
	}

	result, err := s.facade.SubmitKYC(ctx, remote, submission.KYCApplication{PersonalInfo: personal, Documents: docs})
	if err != nil {
		return remoteError(err)
	}

	s.emit(ctx, sess, messaging.EventApplicationSubmitted, step.ID, step.Action.String(), map[string]string{
		"application_id": result.ApplicationID,
		"status":         result.Status,
		"documents":      strconv.Itoa(len(docs)),
	})
	return nil
}

// evidencePayload finds the bytes of an accepted artifact: in the session
// first, then in local persistence when payloads are stored there. A missing
// payload is a rejection asking the user to provide the document again.
func (s *Service) evidencePayload(ctx context.Context, sess *Session, slot wizard.EvidenceSlot, field, artifactID string) ([]byte, error) {
	if payload, ok := sess.heldPayload(field, artifactID); ok {
		return payload, nil
	}
	if s.bridge.PersistsPayloads() {
		payload, err := s.bridge.Payload(ctx, sess.ID, slot.StageKey, field)
		switch {
		case err == nil:
			return payload, nil
		case !errors.Is(err, persistence.ErrNotFound):
			return nil, apperrors.Transient("failed to read staged document")
		}
	}

	s.logger.Warn().Str("session_id", sess.ID).Str("field", field).Msg("accepted evidence has no payload")
	return nil, &wizard.RejectedError{
		Field:   field,
		Message: s.localizer(sess).T("evidence.payload_missing", map[string]string{"field": field}),
	}
}

func (s *Service) authenticate(ctx context.Context, sess *Session, d wizard.FormData) error {
	loc := s.localizer(sess)
	email := strings.ToLower(strings.TrimSpace(d.Text(validation.FieldAdminEmail)))

	res, err := s.facade.Login(ctx, submission.Credentials{Email: email, Password: d.Text(validation.FieldAdminPassword)})
	if err != nil {
		return remoteError(err)
	}
	if res.User == nil || !res.User.IsStaff() {
		return wizard.Reject(loc.T("review.not_staff"))
	}
	if len(s.allowed) > 0 && !s.allowed[email] {
		return wizard.Reject(loc.T("review.not_allowed"))
	}

	s.keepToken(ctx, sess, res.Token)
	return nil
}

// reviewDecision activates the applicant on approval. Rejections have no
// remote endpoint and are only recorded in the audit trail.
func (s *Service) reviewDecision(ctx context.Context, sess *Session, step wizard.StepSpec, d wizard.FormData) error {
	decision := d.Text(validation.FieldDecision)
	applicant := d.Text(validation.FieldApplicationID)
	details := map[string]string{
		"decision":       decision,
		"application_id": applicant,
	}

	switch decision {
	case validation.DecisionApprove:
		if err := s.facade.ActivateUser(ctx, sess.Remote(), applicant); err != nil {
			return remoteError(err)
		}
		if note := d.Text(validation.FieldApprovalNote); note != "" {
			details["note"] = note
		}
	case validation.DecisionReject:
		details["category"] = d.Text(validation.FieldRejectCategory)
		details["comment"] = d.Text(validation.FieldRejectComment)
	}
	for _, f := range flows.ReviewDocumentFields {
		details[f] = d.Text(f)
	}

	s.emit(ctx, sess, messaging.EventReviewDecided, step.ID, step.Action.String(), details)
	return nil
}
