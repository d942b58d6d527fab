package service

import (
	"context"
	"errors"
	"io"

	"github.com/agb-digital/onboarding/internal/capture"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/internal/wizard"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

// EvidenceUpload is one file sent for an evidence slot, either picked from
// disk or captured by the browser camera
type EvidenceUpload struct {
	Field        string
	FileName     string
	DeclaredType string
	Source       capture.Source
	Facing       capture.Facing
	Body         io.Reader
}

// UploadEvidence checks the file against the slot policy, stages its
// descriptor and payload, and stores the artifact reference in the form.
// Only slots shown on the current screen accept uploads.
func (s *Service) UploadEvidence(ctx context.Context, sess *Session, up EvidenceUpload) (View, error) {
	loc := s.localizer(sess)
	current := sess.wizard.View()
	if current.Submitting {
		return View{}, apperrors.Busy()
	}

	var slot *wizard.EvidenceSlot
	for i := range current.Evidence {
		if current.Evidence[i].Field == up.Field {
			slot = &current.Evidence[i]
		}
	}
	if slot == nil {
		return View{}, apperrors.Validation(map[string]string{
			up.Field: loc.T("evidence.not_expected", map[string]string{"field": up.Field}),
		})
	}

	source := up.Source
	if source == "" {
		source = capture.SourceFilePicker
	}
	if source == capture.SourceCamera && !slot.Camera {
		return View{}, apperrors.BadRequest("this document cannot be captured with the camera")
	}
	facing := up.Facing
	if facing == "" && source == capture.SourceCamera {
		facing = capture.ParseFacing(slot.Facing)
	}

	policy := capture.FilePolicy{Accept: slot.Accept, MaxBytes: s.cfg.MaxUploadBytes}
	art, err := policy.Read(capture.Upload{
		Kind:         slot.Kind,
		FileName:     up.FileName,
		DeclaredType: up.DeclaredType,
		Source:       source,
		Facing:       facing,
	}, up.Body, s.now())
	if err != nil {
		var policyErr *capture.PolicyError
		if errors.As(err, &policyErr) {
			return View{}, apperrors.Validation(map[string]string{up.Field: loc.T(policyErr.Key, policyErr.Params)})
		}
		return View{}, apperrors.BadRequest("failed to read upload")
	}

	d := persistence.Descriptor{
		ArtifactID:   art.ID(),
		FileName:     art.FileName(),
		FileSize:     art.Size(),
		FileType:     art.MIMEType(),
		UploadedAt:   art.CapturedAt(),
		Status:       persistence.StatusUploaded,
		DocumentType: sess.wizard.State().Data.Text(validation.FieldDocumentType),
	}
	if art.Source() == capture.SourceCamera {
		d.CameraUsed = string(art.Facing())
	}
	if slot.StageKey != persistence.KeyIdentityDocument {
		d.DocumentType = slot.StageKey
	}

	previous, hadPrevious := s.stagedDescriptor(ctx, sess, slot.StageKey, up.Field)
	if err := s.bridge.StageEvidence(ctx, sess.ID, slot.StageKey, up.Field, d, art.Payload()); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Str("field", up.Field).Msg("failed to stage evidence")
		return View{}, apperrors.Internal("failed to store the document")
	}

	ref := wizard.ArtifactRef{
		ID:         art.ID(),
		Kind:       art.Kind(),
		FileName:   art.FileName(),
		MIMEType:   art.MIMEType(),
		Size:       art.Size(),
		Source:     string(art.Source()),
		Facing:     string(art.Facing()),
		CapturedAt: art.CapturedAt(),
	}
	if err := sess.wizard.SetField(up.Field, ref); err != nil {
		s.restoreEvidence(ctx, sess, slot.StageKey, up.Field, previous, hadPrevious)
		return View{}, s.wizardError(sess, err)
	}
	sess.holdPayload(up.Field, art.ID(), art.Payload())

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("field", up.Field).
		Str("mime_type", ref.MIMEType).
		Int64("size", ref.Size).
		Str("source", ref.Source).
		Msg("evidence staged")
	s.emit(ctx, sess, messaging.EventEvidenceStaged, current.StepID, "", map[string]string{
		"field":     up.Field,
		"kind":      ref.Kind,
		"mime_type": ref.MIMEType,
		"source":    ref.Source,
	})

	return s.View(ctx, sess)
}

// stagedDescriptor returns what is staged for field before it is replaced
func (s *Service) stagedDescriptor(ctx context.Context, sess *Session, stageKey, field string) (persistence.Descriptor, bool) {
	staged, err := s.bridge.Evidence(ctx, sess.ID, stageKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("stage_key", stageKey).Msg("failed to read staged evidence")
		return persistence.Descriptor{}, false
	}
	d, ok := staged[field]
	return d, ok
}

// restoreEvidence puts back the staged record of field after a new upload
// could not be stored in the form, which still references the earlier one
func (s *Service) restoreEvidence(ctx context.Context, sess *Session, stageKey, field string, previous persistence.Descriptor, hadPrevious bool) {
	var err error
	if hadPrevious {
		payload, _ := sess.heldPayload(field, previous.ArtifactID)
		err = s.bridge.StageEvidence(ctx, sess.ID, stageKey, field, previous, payload)
	} else {
		err = s.bridge.DropEvidence(ctx, sess.ID, stageKey, field)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("field", field).Msg("failed to restore staged evidence")
	}
}

// dropOrphans removes staged evidence whose reference left the form, for
// instance after a document type switch or a retreat past a cleared screen
func (s *Service) dropOrphans(ctx context.Context, sess *Session, before wizard.FormData) {
	after := sess.wizard.State().Data
	for field, slot := range sess.slots {
		prev, had := before.Artifact(field)
		if !had {
			continue
		}
		if cur, ok := after.Artifact(field); ok && cur.ID == prev.ID {
			continue
		}
		sess.releasePayload(field)
		if err := s.bridge.DropEvidence(ctx, sess.ID, slot.StageKey, field); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("field", field).Msg("failed to drop staged evidence")
		}
	}
}

// markValidated flags the staged evidence of a completed step
func (s *Service) markValidated(ctx context.Context, sess *Session, step wizard.StepSpec, snapshot wizard.State) {
	keys := map[string]bool{}
	for _, slot := range step.Slots() {
		keys[slot.StageKey] = true
	}
	if b, ok := step.Kind.(wizard.BranchStep); ok {
		for _, sub := range b.Branches[snapshot.Data.Text(b.Selector)] {
			for _, slot := range sub.Slots {
				keys[slot.StageKey] = true
			}
		}
	}

	for key := range keys {
		if err := s.bridge.MarkValidated(ctx, sess.ID, key); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("stage_key", key).Msg("failed to mark evidence validated")
		}
	}
}
