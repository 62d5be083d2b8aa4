package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/transport"
)

// Do sends an authenticated request. See DoRequest.
func (m *Manager) Do(ctx context.Context, method, path string, body, out any) error {
	return m.DoRequest(ctx, transport.Request{Method: method, Path: path, Body: body}, out)
}

// DoRequest sends req with the current credential. An expiry-shaped Unauthorized
// triggers at most one refresh shared by every concurrent caller, after which the
// request is retried exactly once. A failed refresh expires the session and returns
// SessionExpired. Permission-shaped Unauthorized is returned as Forbidden.
func (m *Manager) DoRequest(ctx context.Context, req transport.Request, out any) error {
	if req.Anonymous {
		return m.api.Do(ctx, req, out)
	}

	cred, gen, err := m.currentCredential(ctx)
	if err != nil {
		return err
	}
	req.Credential = cred
	req.BearerToken = ""

	err = m.api.Do(ctx, req, out)
	if err == nil || apperr.KindOf(err) != apperr.KindUnauthorized {
		return err
	}
	if !apperr.IsExpiryShaped(err) {
		return forbidden(err)
	}

	next, err := m.renew(ctx, gen, *cred)
	if err != nil {
		return err
	}

	req.Credential = next
	err = m.api.Do(ctx, req, out)
	if err == nil || apperr.KindOf(err) != apperr.KindUnauthorized {
		return err
	}
	if !apperr.IsExpiryShaped(err) {
		return forbidden(err)
	}

	// A freshly issued token was rejected as stale: the session cannot recover.
	m.expireIfCurrent(*next)
	return sessionExpired(err)
}

// currentCredential returns the stored credential and the generation it belongs to.
func (m *Manager) currentCredential(ctx context.Context) (*model.Credential, uint64, error) {
	m.mu.Lock()
	defer m.unlock()

	switch m.state {
	case StateExpired:
		return nil, 0, sessionExpired(nil)
	case StateAnonymous, StateAuthenticating:
		return nil, 0, apperr.New(apperr.KindUnauthenticated, "you are not signed in")
	}

	cred, err := m.store.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	if cred == nil {
		return nil, 0, apperr.New(apperr.KindUnauthenticated, "you are not signed in")
	}
	return cred, m.generation, nil
}

// renew returns a credential newer than used, refreshing if nobody has yet. used
// must belong to generation sent; a request from an ended session is never retried.
func (m *Manager) renew(ctx context.Context, sent uint64, used model.Credential) (*model.Credential, error) {
	m.mu.Lock()

	switch {
	case m.state == StateExpired:
		m.unlock()
		return nil, sessionExpired(nil)
	case m.state == StateAnonymous, m.state == StateAuthenticating, m.generation != sent:
		m.unlock()
		return nil, apperr.New(apperr.KindUnauthenticated, "you have been signed out")
	}

	current, err := m.store.Load(ctx)
	if err != nil {
		m.unlock()
		return nil, err
	}
	if current == nil {
		m.unlock()
		return nil, apperr.New(apperr.KindUnauthenticated, "you have been signed out")
	}
	if current.AccessToken != used.AccessToken {
		// Already rotated by a refresh that finished after this request was sent.
		m.unlock()
		return current, nil
	}

	gen := m.generation
	if m.state == StateAuthenticated {
		m.setLocked(StateRefreshing)
	}
	// Registered under the lock, so a caller either joins this refresh or observes
	// its committed result; it never starts a second one for the same token.
	ch := m.refreshes.DoChan(fmt.Sprintf("refresh:%d", gen), func() (any, error) {
		return m.refresh(gen, *current)
	})
	m.unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Credential), nil
	case <-ctx.Done():
		// The refresh keeps running for the other waiters.
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "request cancelled", ctx.Err())
	}
}

// refresh exchanges the refresh token for a new pair. It runs detached from any
// caller's context so cancelling one request cannot cancel it.
func (m *Manager) refresh(gen uint64, cred model.Credential) (*model.Credential, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	m.log.Debug().Msg("Refreshing access token")

	var resp model.TokenResponse
	err := m.api.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		BearerToken: cred.RefreshToken,
	}, &resp)

	m.mu.Lock()
	defer m.unlock()

	if gen != m.generation {
		m.log.Debug().Msg("Discarding refresh that completed after the session ended")
		if m.state == StateExpired {
			return nil, sessionExpired(nil)
		}
		return nil, apperr.New(apperr.KindUnauthenticated, "you have been signed out")
	}

	next := resp.Credential()
	if err == nil && !next.Valid() {
		err = apperr.New(apperr.KindServiceUnavailable, "unexpected refresh response from server")
	}
	if err == nil {
		err = m.store.Save(context.Background(), next)
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("Token refresh failed, session expired")
		m.expireLocked()
		return nil, sessionExpired(err)
	}

	if resp.User != nil {
		identity := *resp.User
		m.identity = &identity
		m.verified = true
	}
	m.cacheIdentityLocked(context.Background())
	m.setLocked(StateAuthenticated)

	m.log.Debug().Msg("Access token refreshed")
	return &next, nil
}

func (m *Manager) expireIfCurrent(cred model.Credential) {
	m.mu.Lock()
	defer m.unlock()

	if m.state != StateAuthenticated && m.state != StateRefreshing {
		return
	}
	current, err := m.store.Load(context.Background())
	if err != nil || current == nil || current.AccessToken != cred.AccessToken {
		return
	}
	m.log.Warn().Msg("Refreshed token rejected, session expired")
	m.expireLocked()
}

// expireLocked clears the store and moves to the expired state. m.mu must be held.
func (m *Manager) expireLocked() {
	m.generation++
	if err := m.store.Clear(context.Background()); err != nil {
		m.log.Error().Err(err).Msg("Could not clear stored credential")
	}
	m.identity = nil
	m.verified = false
	m.setLocked(StateExpired)
}

func sessionExpired(cause error) error {
	return apperr.Wrap(apperr.KindSessionExpired, "your session has expired, please sign in again", detach(cause))
}

func forbidden(err error) error {
	e := &apperr.Error{Kind: apperr.KindForbidden, Message: apperr.Message(err)}
	var src *apperr.Error
	if errors.As(err, &src) {
		e.Status = src.Status
		e.Code = src.Code
	}
	return e
}

// detach keeps the text of cause without its kind, so the returned error matches
// only the kind it was re-classified as.
func detach(cause error) error {
	if cause == nil {
		return nil
	}
	return errors.New(cause.Error())
}
