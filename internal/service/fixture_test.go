package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/repository"
)

// fixture is a seeded dev server backend without the HTTP layer.
type fixture struct {
	cfg         *config.Config
	sessions    *MemorySessionStore
	auth        *AuthService
	roster      *RosterService
	permissions *PermissionService
	events      *EventService
	students    *repository.StudentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      4,
	}
	db := database.NewMemoryDB()
	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	classrooms := repository.NewClassroomRepository(db)
	eventTypes := repository.NewEventTypeRepository(db)
	events := repository.NewEventRepository(db)
	permissions := repository.NewPermissionRepository(db)

	sessions := NewMemorySessionStore()
	auth := NewAuthService(cfg, sessions, users)
	roster := NewRosterService(students, classrooms, eventTypes)
	permissionService := NewPermissionService(roster, permissions, classrooms, users)
	eventService := NewEventService(roster, permissionService, events, eventTypes, students)

	seed := NewSeedService(auth, users, students, classrooms, eventTypes, permissions, zerolog.Nop())
	require.NoError(t, seed.SeedDemo(context.Background(), "admin123"))

	return &fixture{
		cfg:         cfg,
		sessions:    sessions,
		auth:        auth,
		roster:      roster,
		permissions: permissionService,
		events:      eventService,
		students:    students,
	}
}

// claims signs in as username and returns the validated claims.
func (f *fixture) claims(t *testing.T, username string) *Claims {
	t.Helper()
	ctx := context.Background()

	password := DemoPassword
	if username == "admin" {
		password = "admin123"
	}
	resp, err := f.auth.Login(ctx, username, password)
	require.NoError(t, err)
	claims, err := f.auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	return claims
}

// Seeded student IDs, in seeding order.
const (
	studentGranted    = 1
	studentNotGranted = 2
	studentExpired    = 3
	studentRevoked    = 4
)

