package handler

import (
	"net/http"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/service"

	"github.com/go-chi/chi/v5"
)

type GroupHandler struct {
	service *service.GroupService
}

func NewGroupHandler(service *service.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

// CreateGroup handles POST /v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	var req domain.CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestValidationError(w, ctx, err)
		return
	}

	group, err := h.service.Create(ctx, actor, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	w.Header().Set("Location", "/v1/groups/"+group.ID)
	writeJSON(w, http.StatusCreated, group)
}

// DeleteGroup handles DELETE /v1/groups/{groupId}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, actor, chi.URLParam(r, "groupId")); err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetGroupPermissions handles PUT /v1/groups/{groupId}/permissions
func (h *GroupHandler) SetGroupPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	var req domain.SetGroupPermissionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestValidationError(w, ctx, err)
		return
	}

	resp, err := h.service.SetPermissions(ctx, actor, chi.URLParam(r, "groupId"), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
