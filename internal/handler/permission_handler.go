package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/middleware"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
	"github.com/stemsi/conduct-console/internal/validator"
)

// PermissionHandler manages per-student event permission grants.
type PermissionHandler struct {
	permissions *service.PermissionService
	log         zerolog.Logger
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(permissions *service.PermissionService, log zerolog.Logger) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, log: log.With().Str("component", "permission_handler").Logger()}
}

// Check godoc
// GET /api/v1/students/:id/event-permission
// Reports whether the student may record events for themselves right now.
func (h *PermissionHandler) Check(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	check, err := h.permissions.Check(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, check)
}

// Grant godoc
// PUT /api/v1/students/:id/event-permission
// Issues or replaces the student's grant. Staff only.
func (h *PermissionHandler) Grant(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req model.GrantPermissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	grant, err := h.permissions.Grant(c.Request.Context(), claims, id, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	h.log.Info().Int("student_id", id).Int("granted_by", claims.UserID).Msg("Event permission granted")
	response.Success(c, http.StatusOK, grant)
}

// Revoke godoc
// DELETE /api/v1/students/:id/event-permission
// Deactivates the student's grant. Staff only.
func (h *PermissionHandler) Revoke(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	grant, err := h.permissions.Revoke(c.Request.Context(), claims, id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	h.log.Info().Int("student_id", id).Int("revoked_by", claims.UserID).Msg("Event permission revoked")
	response.Success(c, http.StatusOK, grant)
}
