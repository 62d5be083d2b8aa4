package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/handler"
	"github.com/stemsi/conduct-console/internal/middleware"
	"github.com/stemsi/conduct-console/internal/response"
	"github.com/stemsi/conduct-console/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Roster     *handler.RosterHandler
	Permission *handler.PermissionHandler
	Event      *handler.EventHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// loginLimiter may be nil to disable login rate limiting.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	loginLimiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(response.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	requireJWT := middleware.RequireJWT(authService, log)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		login := []gin.HandlerFunc{handlers.Auth.Login}
		if loginLimiter != nil {
			login = append([]gin.HandlerFunc{loginLimiter.Middleware()}, login...)
		}
		auth.POST("/login", login...)
		auth.POST("/refresh", handlers.Auth.Refresh)
		auth.POST("/logout", requireJWT, handlers.Auth.Logout)
	}

	// ─── 2. Authenticated API (any role) ───────────────────────────────
	api := router.Group("/api/v1")
	api.Use(requireJWT)
	{
		api.GET("/users/profile", middleware.NoStore(), handlers.Auth.Profile)

		api.GET("/students", handlers.Roster.ListStudents)
		api.GET("/students/:id/event-permission", handlers.Permission.Check)
		api.GET("/event-types", handlers.Roster.ListEventTypes)

		api.GET("/events", handlers.Event.List)
		api.POST("/events", handlers.Event.Create)
	}

	// ─── 3. Staff API (teachers and administrators) ────────────────────
	staff := router.Group("/api/v1")
	staff.Use(requireJWT, middleware.RequireStaff())
	{
		staff.GET("/classrooms", handlers.Roster.ListClassrooms)
		staff.PUT("/students/:id/event-permission", handlers.Permission.Grant)
		staff.DELETE("/students/:id/event-permission", handlers.Permission.Revoke)
	}

	return router
}
