package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/middleware"
	"github.com/stemsi/conduct-console/internal/repository"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
)

// RosterHandler serves classrooms, students and event types.
type RosterHandler struct {
	roster *service.RosterService
	log    zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(roster *service.RosterService, log zerolog.Logger) *RosterHandler {
	return &RosterHandler{roster: roster, log: log.With().Str("component", "roster_handler").Logger()}
}

// ListClassrooms godoc
// GET /api/v1/classrooms
func (h *RosterHandler) ListClassrooms(c *gin.Context) {
	classrooms, err := h.roster.ListClassrooms(c.Request.Context())
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, classrooms)
}

// ListEventTypes godoc
// GET /api/v1/event-types
func (h *RosterHandler) ListEventTypes(c *gin.Context) {
	types, err := h.roster.ListEventTypes(c.Request.Context())
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}

// ListStudents godoc
// GET /api/v1/students?user_id=&classroom_id=
// Students only ever receive their own roster entry.
func (h *RosterHandler) ListStudents(c *gin.Context) {
	var filter repository.StudentFilter
	var ok bool
	if filter.UserID, ok = queryInt(c, "user_id"); !ok {
		return
	}
	if filter.ClassroomID, ok = queryInt(c, "classroom_id"); !ok {
		return
	}

	students, err := h.roster.ListStudents(c.Request.Context(), middleware.GetClaims(c), filter)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, students)
}

// queryInt reads an optional positive integer query parameter. It writes the error
// response and reports false when the value is malformed.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			key: key + " must be a positive integer",
		})
		return 0, false
	}
	return n, true
}

// paramID reads the :id path parameter.
func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
