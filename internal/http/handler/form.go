package handler

import (
	"net/http"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type FormHandler struct {
	service *service.FormService
}

func NewFormHandler(service *service.FormService) *FormHandler {
	return &FormHandler{service: service}
}

// ListForms handles GET /v1/forms
func (h *FormHandler) ListForms(w http.ResponseWriter, r *http.Request) {
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
	params := domain.ListFormsParams{
		Limit:           limit,
		Cursor:          cursor,
		IncludeArchived: r.URL.Query().Get("includeArchived") == "true",
	}

	response, err := h.service.List(ctx, actor, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	log.Debug(ctx, "forms listed",
		logger.Module("form"),
		logger.Action("list"),
		zap.Int("count", len(response.Data)),
	)
	writeJSON(w, http.StatusOK, response)
}

// CreateForm handles POST /v1/forms
func (h *FormHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	var req domain.CreateFormRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestValidationError(w, ctx, err)
		return
	}

	form, err := h.service.Create(ctx, actor, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	w.Header().Set("Location", "/v1/forms/"+form.ID)
	writeJSON(w, http.StatusCreated, form)
}

// GetForm handles GET /v1/forms/{formId}
func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	form, err := h.service.Get(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// ArchiveForm handles DELETE /v1/forms/{formId}
func (h *FormHandler) ArchiveForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	form, err := h.service.Archive(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// RestoreForm handles POST /v1/forms/{formId}/restore
func (h *FormHandler) RestoreForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	form, err := h.service.Restore(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// PublishForm handles POST /v1/forms/{formId}/publish
func (h *FormHandler) PublishForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	resp, err := h.service.Publish(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnpublishForm handles POST /v1/forms/{formId}/unpublish
func (h *FormHandler) UnpublishForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	resp, err := h.service.Unpublish(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPublicForm handles GET /v1/public/forms/{slug}. No authentication.
func (h *FormHandler) GetPublicForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	form, err := h.service.GetPublic(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}
