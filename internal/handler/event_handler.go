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

// EventHandler records and lists conduct events.
type EventHandler struct {
	events *service.EventService
	log    zerolog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events *service.EventService, log zerolog.Logger) *EventHandler {
	return &EventHandler{events: events, log: log.With().Str("component", "event_handler").Logger()}
}

// List godoc
// GET /api/v1/events?student_id=
func (h *EventHandler) List(c *gin.Context) {
	studentID, ok := queryInt(c, "student_id")
	if !ok {
		return
	}

	events, err := h.events.List(c.Request.Context(), middleware.GetClaims(c), studentID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// Create godoc
// POST /api/v1/events
// Staff record events for any student. Students record their own while they hold
// a usable event permission.
func (h *EventHandler) Create(c *gin.Context) {
	var req model.CreateEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	event, err := h.events.Create(c.Request.Context(), claims, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	h.log.Info().
		Int("event_id", event.ID).
		Int("student_id", event.StudentID).
		Int("recorded_by", claims.UserID).
		Msg("Event recorded")
	response.Success(c, http.StatusCreated, event)
}
