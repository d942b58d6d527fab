// Package handler exposes the wizard sessions over HTTP
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agb-digital/onboarding/internal/capture"
	"github.com/agb-digital/onboarding/internal/onboarding/service"
	"github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/httputil"
	"github.com/agb-digital/onboarding/pkg/logger"
)

// HandoffHeader carries the signup session token when a KYC session starts
const HandoffHeader = "X-Handoff-Token"

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

// WizardHandler handles the wizard session endpoints
type WizardHandler struct {
	service        *service.Service
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewWizardHandler creates a new wizard handler
func NewWizardHandler(svc *service.Service, maxUploadBytes int64, log *logger.Logger) *WizardHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = capture.DefaultMaxFileBytes
	}
	return &WizardHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         log,
	}
}

// RegisterRoutes mounts the session endpoints. Resends of the one-time code
// are limited to resendRPS per client address.
func (h *WizardHandler) RegisterRoutes(r chi.Router, resendRPS float64) {
	r.Post("/flows/{flow}/sessions", h.CreateSession)

	r.Route("/session", func(r chi.Router) {
		r.Use(SessionMiddleware(h.service, h.logger))

		r.Get("/", h.GetSession)
		r.Delete("/", h.Abandon)
		r.Patch("/fields", h.SetFields)
		r.Post("/advance", h.Advance)
		r.Post("/back", h.Back)
		r.Put("/branch", h.SetBranch)
		r.Post("/jump/{stepId}", h.JumpTo)
		r.With(httputil.RateLimit(resendRPS, 1, time.Hour)).Post("/otp/resend", h.ResendOTP)
		r.Post("/evidence/{field}", h.UploadEvidence)
	})
}

// CreateSessionRequest optionally carries a signup session token
type CreateSessionRequest struct {
	HandoffToken string `json:"handoff_token"`
}

// CreateSession starts a wizard session
func (h *WizardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	flow := chi.URLParam(r, "flow")

	var req CreateSessionRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if req.HandoffToken == "" {
		req.HandoffToken = r.Header.Get(HandoffHeader)
	}

	created, err := h.service.CreateSession(r.Context(), flow, req.HandoffToken)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, created)
}

// GetSession returns the current screen
func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// SetFieldsRequest holds the values typed on the current screen
type SetFieldsRequest struct {
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

// SetFields stores field values
func (h *WizardHandler) SetFields(w http.ResponseWriter, r *http.Request) {
	var req SetFieldsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	view, err := h.service.SetFields(r.Context(), sessionFrom(r), req.Fields)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Advance validates the screen and moves forward
func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Advance(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Back moves one screen backwards
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Back(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// SetBranchRequest selects a branch of the current step
type SetBranchRequest struct {
	Value string `json:"value" validate:"required"`
}

// SetBranch selects the branch of the current step
func (h *WizardHandler) SetBranch(w http.ResponseWriter, r *http.Request) {
	var req SetBranchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	view, err := h.service.SetBranch(r.Context(), sessionFrom(r), req.Value)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// JumpTo returns to a completed step
func (h *WizardHandler) JumpTo(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.JumpTo(r.Context(), sessionFrom(r), chi.URLParam(r, "stepId"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// ResendOTP restarts the one-time code countdown
func (h *WizardHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResendOTP(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// evidenceForm holds the non-file parts of an evidence upload
type evidenceForm struct {
	Source string `validate:"omitempty,oneof=camera file-picker"`
	Facing string `validate:"omitempty,oneof=front back any"`
}

// UploadEvidence receives a picked or captured file for an evidence slot
func (h *WizardHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes + formOverhead); err != nil {
		httputil.Error(w, r, errors.BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := evidenceForm{
		Source: strings.TrimSpace(r.FormValue("source")),
		Facing: strings.TrimSpace(r.FormValue("facing")),
	}
	if err := httputil.Validate(&form); err != nil {
		httputil.Error(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, r, errors.Validation(map[string]string{"file": "this field is required"}))
		return
	}
	defer file.Close()

	view, err := h.service.UploadEvidence(r.Context(), sessionFrom(r), service.EvidenceUpload{
		Field:        chi.URLParam(r, "field"),
		FileName:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Source:       capture.Source(form.Source),
		Facing:       capture.Facing(form.Facing),
		Body:         file,
	})
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Abandon ends the session and wipes its staged values
func (h *WizardHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), sessionFrom(r)); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}
