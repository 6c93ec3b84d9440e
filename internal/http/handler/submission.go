package handler

import (
	"net/http"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/service"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	service *service.SubmissionService
}

func NewSubmissionHandler(service *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Submit handles POST /v1/public/forms/{slug}/submissions. No authentication.
//
// The body is fully decoded and validated before anything is written; an
// aborted request leaves no partial submission behind.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.CreateSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestValidationError(w, ctx, err)
		return
	}

	receipt, err := h.service.Submit(ctx, chi.URLParam(r, "slug"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// ListSubmissions handles GET /v1/forms/{formId}/submissions
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}
	limit, cursor, ok := parsePage(w, r)
	if !ok {
		return
	}

	resp, err := h.service.List(ctx, actor, chi.URLParam(r, "formId"), domain.ListSubmissionsParams{Limit: limit, Cursor: cursor})
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSubmission handles GET /v1/forms/{formId}/submissions/{submissionId}
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	sub, err := h.service.Get(ctx, actor, chi.URLParam(r, "formId"), chi.URLParam(r, "submissionId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubmission handles DELETE /v1/forms/{formId}/submissions/{submissionId}
func (h *SubmissionHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, actor, chi.URLParam(r, "formId"), chi.URLParam(r, "submissionId")); err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllSubmissions handles DELETE /v1/forms/{formId}/submissions
func (h *SubmissionHandler) DeleteAllSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	resp, err := h.service.DeleteAll(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
