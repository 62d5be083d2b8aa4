// Package session owns the signed-in session: it logs in and out, persists the
// credential, refreshes it when the backend reports expiry, and exposes the current
// identity. A Manager is an explicit value; construct one per console and inject it.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/credstore"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/transport"
	"github.com/stemsi/conduct-console/internal/validator"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshTimeout = 10 * time.Second
	defaultLogoutTimeout  = 3 * time.Second
)

// Doer sends one backend request. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req transport.Request, out any) error
}

// Manager serializes every mutation of the session state, the identity and the
// credential store behind one mutex.
type Manager struct {
	api   Doer
	store credstore.Store
	log   zerolog.Logger

	refreshTimeout time.Duration
	logoutTimeout  time.Duration
	cacheIdentity  bool

	mu       sync.Mutex
	state    State
	identity *model.Identity
	verified bool
	// generation changes on login, logout and expiry. Work started under an older
	// generation is discarded when it completes.
	generation uint64
	refreshes  singleflight.Group
	pending    []transition
	delivering bool

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshTimeout bounds the refresh call, which runs detached from callers.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

// WithLogoutTimeout bounds the best-effort logout notification.
func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.logoutTimeout = d
		}
	}
}

// WithIdentityCache stores the identity next to the credential for instant paint.
func WithIdentityCache(enabled bool) Option {
	return func(m *Manager) { m.cacheIdentity = enabled }
}

// NewManager creates a Manager in the anonymous state.
func NewManager(api Doer, store credstore.Store, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:            api,
		store:          store,
		log:            log.With().Str("component", "session").Logger(),
		refreshTimeout: defaultRefreshTimeout,
		logoutTimeout:  defaultLogoutTimeout,
		listeners:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns a copy of the current identity, or nil. It performs no I/O.
func (m *Manager) Identity() *model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyIdentity(m.identity)
}

// Subscribe registers fn for state transitions and returns its unsubscribe func.
func (m *Manager) Subscribe(fn Listener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// signInInput is checked locally before a login reaches the network. Every other
// credential rule belongs to the backend.
type signInInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates with the backend and persists the resulting credential.
// Server messages for rejected credentials are returned verbatim; there is no retry.
func (m *Manager) Login(ctx context.Context, username, password string) (model.Identity, error) {
	input := signInInput{Username: strings.TrimSpace(username), Password: password}
	if fields := validator.Struct(input); fields != nil {
		return model.Identity{}, apperr.New(apperr.KindInvalidRequest, validator.Summary(fields))
	}
	req := model.LoginRequest{Username: input.Username, Password: input.Password}

	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.unlock()
		return model.Identity{}, apperr.New(apperr.KindInvalidRequest, "a sign-in is already in progress")
	}
	// A new login replaces whatever session existed before it.
	m.generation++
	gen := m.generation
	m.identity = nil
	m.verified = false
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.setLocked(StateAnonymous)
		m.unlock()
		return model.Identity{}, err
	}
	m.setLocked(StateAuthenticating)
	m.unlock()

	var resp model.TokenResponse
	err := m.api.Do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      req,
		Anonymous: true,
	}, &resp)

	m.mu.Lock()
	defer m.unlock()

	if gen != m.generation {
		return model.Identity{}, apperr.New(apperr.KindUnauthenticated, "sign-in was cancelled")
	}
	if err != nil {
		m.setLocked(StateAnonymous)
		return model.Identity{}, err
	}
	if !resp.Credential().Valid() || resp.User == nil {
		m.setLocked(StateAnonymous)
		return model.Identity{}, apperr.New(apperr.KindServiceUnavailable, "unexpected sign-in response from server")
	}

	if err := m.store.Save(context.WithoutCancel(ctx), resp.Credential()); err != nil {
		m.setLocked(StateAnonymous)
		return model.Identity{}, err
	}

	identity := *resp.User
	m.identity = &identity
	m.verified = true
	m.cacheIdentityLocked(ctx)
	m.setLocked(StateAuthenticated)

	m.log.Info().
		Int("user_id", identity.ID).
		Str("role", string(identity.Role)).
		Msg("Signed in")

	return identity, nil
}

// Logout ends the session. Local teardown always happens: the store is cleared and
// the state becomes anonymous before the backend is notified, and a refresh still in
// flight can no longer repopulate the store. The backend notification is best effort
// and its failure is only logged. The returned error is non-nil only when the local
// store could not be cleared.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	cred, loadErr := m.store.Load(context.WithoutCancel(ctx))
	clearErr := m.store.Clear(context.WithoutCancel(ctx))
	m.identity = nil
	m.verified = false
	m.setLocked(StateAnonymous)
	m.unlock()

	if loadErr != nil {
		m.log.Warn().Err(loadErr).Msg("Could not read credential during sign-out")
	}
	if clearErr != nil {
		m.log.Error().Err(clearErr).Msg("Could not clear stored credential")
	}

	if cred != nil {
		m.notifyLogout(ctx, *cred)
	}

	m.log.Info().Msg("Signed out")
	return clearErr
}

func (m *Manager) notifyLogout(ctx context.Context, cred model.Credential) {
	ctx, cancel := context.WithTimeout(ctx, m.logoutTimeout)
	defer cancel()

	err := m.api.Do(ctx, transport.Request{
		Method:     http.MethodPost,
		Path:       "/auth/logout",
		Credential: &cred,
	}, nil)
	if err != nil {
		m.log.Warn().Err(err).Msg("Backend sign-out failed, local session cleared anyway")
	}
}

// Restore resumes a persisted session after a restart. A cached identity, when
// present, is exposed immediately but is revalidated against the profile endpoint
// before Restore returns. Returns nil, nil when nothing is stored.
func (m *Manager) Restore(ctx context.Context) (*model.Identity, error) {
	m.mu.Lock()
	if m.state != StateAnonymous {
		identity := copyIdentity(m.identity)
		m.unlock()
		return identity, nil
	}

	cred, err := m.store.Load(ctx)
	if err != nil {
		m.unlock()
		return nil, err
	}
	if cred == nil {
		m.unlock()
		return nil, nil
	}

	cached, err := m.store.LoadIdentity(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("Ignoring unreadable cached identity")
		cached = nil
	}
	m.identity = cached
	m.verified = false
	m.setLocked(StateAuthenticated)
	m.unlock()

	identity, err := m.RefreshProfile(ctx)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// RefreshProfile fetches GET /users/profile and replaces the identity with it.
func (m *Manager) RefreshProfile(ctx context.Context) (model.Identity, error) {
	m.mu.Lock()
	gen := m.generation
	m.unlock()

	var identity model.Identity
	if err := m.Do(ctx, http.MethodGet, "/users/profile", nil, &identity); err != nil {
		return model.Identity{}, err
	}

	m.mu.Lock()
	defer m.unlock()
	// The generation moves only on login, logout and expiry, so a moved generation
	// means this profile belongs to a session that is gone.
	if gen != m.generation {
		return model.Identity{}, apperr.New(apperr.KindUnauthenticated, "you have been signed out")
	}
	m.identity = &identity
	m.verified = true
	m.cacheIdentityLocked(ctx)
	m.setLocked(m.state)
	return identity, nil
}

// VerifiedIdentity returns the identity once it has been confirmed by the backend,
// fetching the profile if the current one only came from the local cache.
func (m *Manager) VerifiedIdentity(ctx context.Context) (model.Identity, error) {
	m.mu.Lock()
	if m.identity != nil && m.verified {
		identity := *m.identity
		m.unlock()
		return identity, nil
	}
	m.unlock()
	return m.RefreshProfile(ctx)
}

func (m *Manager) cacheIdentityLocked(ctx context.Context) {
	if !m.cacheIdentity || m.identity == nil {
		return
	}
	if err := m.store.SaveIdentity(context.WithoutCancel(ctx), *m.identity); err != nil {
		m.log.Debug().Err(err).Msg("Could not cache identity")
	}
}

// setLocked records a transition. m.mu must be held; listeners run in unlock.
func (m *Manager) setLocked(state State) {
	m.state = state
	m.pending = append(m.pending, transition{state: state, identity: copyIdentity(m.identity)})
}

// unlock releases m.mu and delivers pending transitions. One goroutine at a time
// drains the queue, so listeners see transitions in the order they happened.
func (m *Manager) unlock() {
	deliver := len(m.pending) > 0 && !m.delivering
	if deliver {
		m.delivering = true
	}
	m.mu.Unlock()
	if !deliver {
		return
	}

	for {
		m.mu.Lock()
		events := m.pending
		m.pending = nil
		if len(events) == 0 {
			m.delivering = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.listenersMu.Lock()
		listeners := make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
		m.listenersMu.Unlock()

		for _, ev := range events {
			for _, l := range listeners {
				l(ev.state, copyIdentity(ev.identity))
			}
		}
	}
}

func copyIdentity(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
