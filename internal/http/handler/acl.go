package handler

import (
	"net/http"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/service"

	"github.com/go-chi/chi/v5"
)

type AclHandler struct {
	service *service.AclService
}

func NewAclHandler(service *service.AclService) *AclHandler {
	return &AclHandler{service: service}
}

// aclListResponse wraps entries the way list endpoints do elsewhere.
type aclListResponse struct {
	Data []domain.AclEntry `json:"data"`
}

// ListAcl handles GET /v1/forms/{formId}/acl
func (h *AclHandler) ListAcl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	entries, err := h.service.List(ctx, actor, chi.URLParam(r, "formId"))
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	if entries == nil {
		entries = []domain.AclEntry{}
	}
	writeJSON(w, http.StatusOK, aclListResponse{Data: entries})
}

// UpsertAcl handles PUT /v1/forms/{formId}/acl
func (h *AclHandler) UpsertAcl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	var req domain.UpsertAclRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestValidationError(w, ctx, err)
		return
	}

	entry, err := h.service.Upsert(ctx, actor, chi.URLParam(r, "formId"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RemoveAcl handles DELETE /v1/forms/{formId}/acl/{groupId}
func (h *AclHandler) RemoveAcl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	if err := h.service.Remove(ctx, actor, chi.URLParam(r, "formId"), chi.URLParam(r, "groupId")); err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
