package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
)

// failService writes the envelope matching a service error.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrEventTypeNotFound),
		errors.Is(err, service.ErrPermissionNotFound):
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, err.Error())
	case errors.Is(err, service.ErrOwnRecordOnly):
		response.Fail(c, http.StatusForbidden, response.ErrOwnRecordOnly)
	case errors.Is(err, service.ErrEventNotGranted):
		response.Fail(c, http.StatusForbidden, response.ErrEventNotGranted)
	case errors.Is(err, service.ErrExpiryInPast):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"expires_at": err.Error(),
		})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
