package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/agb-digital/onboarding/internal/capture"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
)

// View is the rendered wizard screen with localized labels and the
// descriptors of evidence already staged for it
type View struct {
	wizard.View
	TitleText        string                            `json:"titleText"`
	Values           map[string]any                    `json:"values"`
	Staged           map[string]persistence.Descriptor `json:"staged,omitempty"`
	CameraLabels     map[string]string                 `json:"cameraLabels,omitempty"`
	PasswordStrength string                            `json:"passwordStrength,omitempty"`
	StrengthGauge    float64                           `json:"strengthGauge,omitempty"`
}

// View renders the current screen of a session
func (s *Service) View(ctx context.Context, sess *Session) (View, error) {
	w := sess.wizard
	loc := s.localizer(sess)
	v := View{View: w.View()}
	v.TitleText = loc.T(v.Title)
	v.Values = values(w.State().Data)

	for _, slot := range v.Evidence {
		if v.CameraLabels == nil {
			v.CameraLabels = make(map[string]string)
		}
		if slot.Camera {
			v.CameraLabels[slot.Field] = loc.T(capture.ParseFacing(slot.Facing).LabelKey())
		}

		staged, err := s.bridge.Evidence(ctx, sess.ID, slot.StageKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("stage_key", slot.StageKey).Msg("failed to read staged evidence")
			continue
		}
		if d, ok := staged[slot.Field]; ok {
			if v.Staged == nil {
				v.Staged = make(map[string]persistence.Descriptor)
			}
			v.Staged[slot.Field] = d
		}
	}

	for _, f := range v.Fields {
		if f != validation.FieldPassword {
			continue
		}
		strength := validation.PasswordStrength(w.State().Data.Text(f))
		if key := strength.LabelKey(); key != "" {
			v.PasswordStrength = loc.T(key)
			v.StrengthGauge = strength.Gauge()
		}
	}
	return v, nil
}

// hidden fields are never echoed back to the browser
var hidden = map[string]bool{
	validation.FieldPassword:        true,
	validation.FieldPasswordConfirm: true,
	validation.FieldAdminPassword:   true,
}

func values(d wizard.FormData) map[string]any {
	out := make(map[string]any, len(d))
	for field, v := range d {
		if hidden[field] {
			continue
		}
		switch t := v.(type) {
		case wizard.Text:
			out[field] = string(t)
		case wizard.Flag:
			out[field] = bool(t)
		case wizard.ArtifactRef:
			out[field] = t
		}
	}
	return out
}

// SetFields stores form values of the current screen. Strings and numbers
// become text, booleans become flags and code fields are split into digit
// slots. Evidence is only accepted through UploadEvidence, and fields of
// earlier steps only after JumpTo.
func (s *Service) SetFields(ctx context.Context, sess *Session, fields map[string]any) (View, error) {
	before := sess.wizard.State().Data

	values := make(map[string]wizard.Value, len(fields))
	for field, raw := range fields {
		if _, ok := sess.slots[field]; ok {
			return View{}, apperrors.BadRequest(fmt.Sprintf("field %s only accepts uploads", field))
		}

		value, err := s.toValue(sess, field, raw)
		if err != nil {
			return View{}, err
		}
		values[field] = value
	}
	if err := sess.wizard.SetFields(values); err != nil {
		return View{}, s.wizardError(sess, err)
	}

	s.dropOrphans(ctx, sess, before)
	return s.View(ctx, sess)
}

func (s *Service) toValue(sess *Session, field string, raw any) (wizard.Value, error) {
	var text string
	switch v := raw.(type) {
	case nil:
	case bool:
		return wizard.Flag(v), nil
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return nil, apperrors.Validation(map[string]string{field: "unsupported value type"})
	}

	if sess.codeField[field] {
		return wizard.ParseOTP(text), nil
	}
	return wizard.Text(text), nil
}

// Advance validates the current screen and moves forward, committing the
// step when it is completed. Validation and rejected submissions come back
// as a StepBlocked error carrying the field messages.
func (s *Service) Advance(ctx context.Context, sess *Session) (View, error) {
	errs, err := sess.wizard.Advance(ctx)
	if err != nil {
		return View{}, s.wizardError(sess, err)
	}
	if len(errs) > 0 {
		return View{}, apperrors.StepBlocked(errs)
	}
	return s.View(ctx, sess)
}

// Back moves one screen backwards
func (s *Service) Back(ctx context.Context, sess *Session) (View, error) {
	before := sess.wizard.State().Data
	if err := sess.wizard.Retreat(); err != nil {
		return View{}, s.wizardError(sess, err)
	}
	s.dropOrphans(ctx, sess, before)
	return s.View(ctx, sess)
}

// SetBranch selects the branch of the current step
func (s *Service) SetBranch(ctx context.Context, sess *Session, value string) (View, error) {
	before := sess.wizard.State().Data
	if err := sess.wizard.SetBranch(value); err != nil {
		return View{}, s.wizardError(sess, err)
	}
	s.dropOrphans(ctx, sess, before)
	return s.View(ctx, sess)
}

// JumpTo returns to a completed step. The view carries the errors the
// existing answers produce on that step.
func (s *Service) JumpTo(ctx context.Context, sess *Session, stepID string) (View, error) {
	if _, err := sess.wizard.JumpTo(stepID); err != nil {
		return View{}, s.wizardError(sess, err)
	}
	return s.View(ctx, sess)
}

// ResendOTP restarts the code countdown
func (s *Service) ResendOTP(ctx context.Context, sess *Session) (View, error) {
	if err := sess.wizard.ResendOTP(); err != nil {
		return View{}, s.wizardError(sess, err)
	}
	s.logger.Info().Str("session_id", sess.ID).Msg("one-time code resent")
	return s.View(ctx, sess)
}

// wizardError maps engine sentinels and commit failures to AppErrors
func (s *Service) wizardError(sess *Session, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, wizard.ErrBusy):
		return apperrors.Busy()
	case errors.Is(err, wizard.ErrUnknownStep):
		return apperrors.NotFound("step")
	case errors.Is(err, wizard.ErrResendLocked):
		v := sess.wizard.View()
		var seconds int
		for _, remaining := range v.Timers {
			seconds = remaining
		}
		return apperrors.ResendLocked(seconds)
	case errors.Is(err, wizard.ErrJumpNotAllowed),
		errors.Is(err, wizard.ErrUnknownBranch),
		errors.Is(err, wizard.ErrNotBranching),
		errors.Is(err, wizard.ErrNotOTPStep),
		errors.Is(err, wizard.ErrTerminal):
		return apperrors.BadRequest(err.Error())
	case errors.Is(err, wizard.ErrFieldNotOnScreen):
		return apperrors.BadRequest(err.Error() + "; jump back to the step to edit it")
	default:
		return apperrors.Transient(err.Error())
	}
}
