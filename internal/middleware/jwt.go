package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireJWT validates the bearer access token. An expired token is answered with
// TOKEN_EXPIRED and an ended session with SESSION_INVALIDATED, so the console knows
// a refresh may help; anything else malformed is TOKEN_INVALID.
func RequireJWT(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			case errors.Is(err, service.ErrSessionInvalidated):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			case errors.Is(err, service.ErrTokenInvalid):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			default:
				log.Error().Err(err).Msg("Failed to validate access token")
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// BearerToken returns the token from an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
