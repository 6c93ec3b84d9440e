package handler

import (
	"net/http"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/service"
)

type DirectoryHandler struct {
	service *service.DirectoryService
}

func NewDirectoryHandler(service *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// GetMyPermissions handles GET /v1/me/permissions
func (h *DirectoryHandler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Me(ctx, actor))
}

// ListGroups handles GET /v1/groups
func (h *DirectoryHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	groups, err := h.service.Groups(ctx, actor)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": groups})
}

// ListPermissions handles GET /v1/permissions
func (h *DirectoryHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	actor, ok := requireActor(w, ctx)
	if !ok {
		return
	}

	perms, err := h.service.Permissions(ctx, actor)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}
	if perms == nil {
		perms = []domain.Permission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": perms})
}
