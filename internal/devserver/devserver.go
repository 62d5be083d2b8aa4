// Package devserver assembles the reference backend the console is developed and
// tested against: an in-memory roster behind the same HTTP contract as production.
package devserver

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/handler"
	"github.com/stemsi/conduct-console/internal/middleware"
	"github.com/stemsi/conduct-console/internal/repository"
	"github.com/stemsi/conduct-console/internal/router"
	"github.com/stemsi/conduct-console/internal/service"
	"github.com/stemsi/conduct-console/internal/validator"
)

// Server is a wired dev backend.
type Server struct {
	Engine *gin.Engine
	Auth   *service.AuthService
	DB     *database.MemoryDB
}

// New builds a seeded dev backend on sessions. The login rate limiter stops when
// ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, sessions service.SessionStore, adminPassword string, log zerolog.Logger) (*Server, error) {
	validator.Setup()

	db := database.NewMemoryDB()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	eventTypeRepo := repository.NewEventTypeRepository(db)
	eventRepo := repository.NewEventRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, sessions, userRepo)
	rosterService := service.NewRosterService(studentRepo, classroomRepo, eventTypeRepo)
	permissionService := service.NewPermissionService(rosterService, permissionRepo, classroomRepo, userRepo)
	eventService := service.NewEventService(rosterService, permissionService, eventRepo, eventTypeRepo, studentRepo)

	seeder := service.NewSeedService(authService, userRepo, studentRepo, classroomRepo, eventTypeRepo, permissionRepo, log)
	if err := seeder.SeedDemo(ctx, adminPassword); err != nil {
		return nil, fmt.Errorf("seed demo data: %w", err)
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, userRepo, log),
		Roster:     handler.NewRosterHandler(rosterService, log),
		Permission: handler.NewPermissionHandler(permissionService, log),
		Event:      handler.NewEventHandler(eventService, log),
	}

	var limiter *middleware.RateLimiter
	if cfg.LoginRateLimit > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.LoginRateLimit, time.Minute)
	}

	return &Server{
		Engine: router.SetupRouter(authService, handlers, limiter, cfg, log),
		Auth:   authService,
		DB:     db,
	}, nil
}
