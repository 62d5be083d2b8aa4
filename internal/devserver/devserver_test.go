package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/conduct-console/internal/access"
	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/conduct"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/credstore"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/service"
	"github.com/stemsi/conduct-console/internal/session"
	"github.com/stemsi/conduct-console/internal/transport"
)

const adminPassword = "admin123"

// harness runs a seeded dev server and counts the refresh calls it receives.
type harness struct {
	cfg       *config.Config
	srv       *Server
	url       string
	refreshes atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		GinMode:         "test",
		JWTSecret:       "integration-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      4,
	}
	srv, err := New(ctx, cfg, service.NewMemorySessionStore(), adminPassword, zerolog.Nop())
	require.NoError(t, err)

	h := &harness{cfg: cfg, srv: srv}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			h.refreshes.Add(1)
		}
		srv.Engine.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	h.url = ts.URL + "/api/v1"
	return h
}

func (h *harness) client() *transport.Client {
	return transport.NewClient(h.url, 5*time.Second)
}

type console struct {
	store    *credstore.MemoryStore
	session  *session.Manager
	gate     *access.Gate
	conduct  *conduct.Service
	identity model.Identity
}

func (h *harness) newConsole(store *credstore.MemoryStore) *console {
	m := session.NewManager(h.client(), store, zerolog.Nop())
	return &console{
		store:   store,
		session: m,
		gate:    access.NewGate(m),
		conduct: conduct.NewService(m),
	}
}

func (h *harness) signIn(t *testing.T, username string) *console {
	t.Helper()
	password := service.DemoPassword
	if username == "admin" {
		password = adminPassword
	}
	c := h.newConsole(credstore.NewMemoryStore())
	identity, err := c.session.Login(context.Background(), username, password)
	require.NoError(t, err)
	c.identity = identity
	return c
}

// expireAccessToken swaps the stored access token for an already expired one
// belonging to the same session.
func (h *harness) expireAccessToken(t *testing.T, c *console) model.Credential {
	t.Helper()
	ctx := context.Background()

	cred, err := c.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	claims, err := h.srv.Auth.ValidateToken(ctx, cred.AccessToken)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	claims.IssuedAt = jwt.NewNumericDate(past.Add(-h.cfg.AccessTokenTTL))
	claims.ExpiresAt = jwt.NewNumericDate(past)
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	require.NoError(t, err)

	staleCred := model.Credential{AccessToken: stale, RefreshToken: cred.RefreshToken}
	require.NoError(t, c.store.Save(ctx, staleCred))
	return staleCred
}

func TestTeacherSignsInAndListsClassrooms(t *testing.T) {
	h := newHarness(t)
	c := h.signIn(t, "t1")

	assert.Equal(t, model.RoleTeacher, c.identity.Role)
	assert.Equal(t, "Teacher One", c.identity.DisplayName)
	assert.Equal(t, access.Sections(model.RoleTeacher), c.gate.Sections(&c.identity))

	rooms, err := c.conduct.Classrooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "X-A", rooms[0].Name)

	students, err := c.conduct.Students(context.Background(), rooms[0].ID)
	require.NoError(t, err)
	assert.Len(t, students, 4)
}

func TestWrongPasswordIsRejectedVerbatim(t *testing.T) {
	h := newHarness(t)
	c := h.newConsole(credstore.NewMemoryStore())

	_, err := c.session.Login(context.Background(), "t1", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, "Incorrect username or password.", apperr.Message(err))
	assert.Equal(t, session.StateAnonymous, c.session.State())
}

func TestStudentIsForbiddenFromStaffRoutes(t *testing.T) {
	h := newHarness(t)
	c := h.signIn(t, "s2")

	_, err := c.conduct.Classrooms(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "STAFF_ACCESS_ONLY", appErr.Code)
	assert.Zero(t, h.refreshes.Load())
	assert.Equal(t, session.StateAuthenticated, c.session.State())
}

func TestSeededGrantOutcomes(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		username string
		want     access.Outcome
	}{
		{"s1", access.OutcomeGranted},
		{"s2", access.OutcomeNotGranted},
		{"s3", access.OutcomeExpired},
		{"s4", access.OutcomeInactive},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			c := h.signIn(t, tt.username)

			decision, err := c.gate.CheckEventPermission(context.Background(), c.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Outcome)
			assert.Equal(t, tt.want.Message(), decision.Message)
			assert.Equal(t, c.identity.ID, decision.Student.UserID)
		})
	}
}

func TestStudentSelfServiceEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	granted := h.signIn(t, "s1")
	event, err := granted.gate.CreateOwnEvent(ctx, granted.identity, 2, "library shelving")
	require.NoError(t, err)
	assert.Equal(t, 10, event.Points)

	events, err := granted.conduct.Events(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "library shelving", events[0].Note)

	denied := h.signIn(t, "s2")
	_, err = denied.gate.CreateOwnEvent(ctx, denied.identity, 2, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, access.OutcomeNotGranted.Message(), apperr.Message(err))
}

func TestTeacherGrantTakesEffectImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	teacher := h.signIn(t, "t1")
	student := h.signIn(t, "s2")

	decision, err := student.gate.CheckEventPermission(ctx, student.identity)
	require.NoError(t, err)
	require.Equal(t, access.OutcomeNotGranted, decision.Outcome)

	grant, err := teacher.conduct.GrantEventPermission(ctx, decision.Student.ID, 24*time.Hour, "sports day")
	require.NoError(t, err)
	assert.Equal(t, "Teacher One", grant.GrantedByName)

	decision, err = student.gate.CheckEventPermission(ctx, student.identity)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeGranted, decision.Outcome)

	require.NoError(t, teacher.conduct.RevokeEventPermission(ctx, decision.Student.ID))

	decision, err = student.gate.CheckEventPermission(ctx, student.identity)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeInactive, decision.Outcome)
}

func TestExpiredAccessTokenIsRefreshedOnce(t *testing.T) {
	h := newHarness(t)
	c := h.signIn(t, "t1")
	stale := h.expireAccessToken(t, c)

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.conduct.Classrooms(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), h.refreshes.Load())

	cred, err := c.store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEqual(t, stale.AccessToken, cred.AccessToken)
	assert.NotEqual(t, stale.RefreshToken, cred.RefreshToken)

	// The spent refresh token cannot be replayed.
	err = h.client().Do(context.Background(), transport.Request{
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		BearerToken: stale.RefreshToken,
	}, nil)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "REFRESH_TOKEN_INVALID", appErr.Code)
}

func TestRejectedRefreshExpiresSession(t *testing.T) {
	h := newHarness(t)
	c := h.signIn(t, "t1")
	ctx := context.Background()

	require.NoError(t, c.store.Save(ctx, model.Credential{AccessToken: "garbage", RefreshToken: "unknown"}))

	_, err := c.conduct.Classrooms(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.Equal(t, session.StateExpired, c.session.State())

	cred, err := c.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestLogoutEndsServerSession(t *testing.T) {
	h := newHarness(t)
	c := h.signIn(t, "t1")
	ctx := context.Background()

	cred, err := c.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)

	require.NoError(t, c.session.Logout(ctx))
	assert.Equal(t, session.StateAnonymous, c.session.State())

	err = h.client().Do(ctx, transport.Request{Method: http.MethodGet, Path: "/users/profile", Credential: cred}, nil)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SESSION_INVALIDATED", appErr.Code)

	err = h.client().Do(ctx, transport.Request{Method: http.MethodPost, Path: "/auth/refresh", BearerToken: cred.RefreshToken}, nil)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SESSION_INVALIDATED", appErr.Code)
}

func TestRestoreResumesPersistedSession(t *testing.T) {
	h := newHarness(t)
	first := h.signIn(t, "admin")

	// A second console process sharing the same credential store.
	second := h.newConsole(first.store)
	identity, err := second.session.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, model.RoleAdmin, identity.Role)
	assert.Equal(t, session.StateAuthenticated, second.session.State())
}
