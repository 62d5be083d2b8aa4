package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/middleware"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
	"github.com/stemsi/conduct-console/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	users       *repository.UserRepository
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, users *repository.UserRepository, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates username + password and opens a session with a fresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("Login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Int("user_id", tokens.User.ID).Str("role", string(tokens.User.Role)).Msg("User signed in")
	response.Success(c, http.StatusOK, tokens)
}

// refreshRequest lets clients that cannot set headers send the refresh token in the body.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh godoc
// POST /api/v1/auth/refresh
// Exchanges a refresh token (Authorization: Bearer <refresh_token>) for a new pair.
// The presented refresh token is spent either way.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrRefreshTokenRequired)
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshTokenInvalid):
			response.Fail(c, http.StatusUnauthorized, response.ErrRefreshTokenInvalid)
		case errors.Is(err, service.ErrSessionInvalidated):
			response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
		default:
			h.log.Error().Err(err).Msg("Token refresh failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, tokens)
}

// Logout godoc
// POST /api/v1/auth/logout
// Ends the caller's session; its refresh token stops working.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("Logout failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Profile godoc
// GET /api/v1/users/profile
// Returns the identity of the currently authenticated user.
func (h *AuthHandler) Profile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("Profile lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, user.Identity())
}
