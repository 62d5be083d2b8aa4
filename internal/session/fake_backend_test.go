package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/transport"
)

var teacher = model.Identity{ID: 2, Username: "t1", DisplayName: "Teacher One", Role: model.RoleTeacher}

// fakeBackend stands in for the transport. It issues rotating token pairs and
// answers with the same error shapes the real transport produces.
type fakeBackend struct {
	mu      sync.Mutex
	seq     int
	access  map[string]bool
	refresh map[string]bool
	calls   []string

	refreshCalls int
	expiredHits  int

	// refreshGate, when set, holds every refresh until it is closed.
	refreshGate chan struct{}
	// refreshStarted receives a value when a refresh reaches the backend.
	refreshStarted chan struct{}
	failRefresh    bool
	// staleForever makes GET /classrooms reject every token as expired.
	staleForever bool
	logoutErr    error

	// gradeGate, when set, parks the first GET /grades until it is closed and then
	// answers it as expired.
	gradeGate    chan struct{}
	gradeStarted chan struct{}
	gradeTokens  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		access:         make(map[string]bool),
		refresh:        make(map[string]bool),
		refreshStarted: make(chan struct{}, 16),
		gradeStarted:   make(chan struct{}, 1),
	}
}

func (b *fakeBackend) Do(ctx context.Context, req transport.Request, out any) error {
	bearer := req.BearerToken
	if bearer == "" && req.Credential != nil {
		bearer = req.Credential.AccessToken
	}
	if !req.Anonymous && bearer == "" {
		return apperr.New(apperr.KindUnauthenticated, "you are not signed in")
	}

	b.mu.Lock()
	b.calls = append(b.calls, req.Method+" "+req.Path)
	b.mu.Unlock()

	switch req.Method + " " + req.Path {
	case "POST /auth/login":
		body, _ := req.Body.(model.LoginRequest)
		if body.Username != "t1" || body.Password != "pw1" {
			return &apperr.Error{Kind: apperr.KindUnauthorized, Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "Incorrect username or password."}
		}
		b.mu.Lock()
		resp := b.issueLocked()
		b.mu.Unlock()
		return encode(out, resp)
	case "POST /auth/refresh":
		return b.doRefresh(ctx, bearer, out)
	case "POST /auth/logout":
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.logoutErr
	case "GET /users/profile":
		if err := b.authorize(bearer, false); err != nil {
			return err
		}
		return encode(out, teacher)
	case "GET /classrooms":
		if err := b.authorize(bearer, true); err != nil {
			return err
		}
		return encode(out, []model.Classroom{{ID: 1, Name: "X-A", GradeLevel: 10}})
	case "GET /grades":
		b.mu.Lock()
		b.gradeTokens = append(b.gradeTokens, bearer)
		parked := len(b.gradeTokens) == 1 && b.gradeGate != nil
		gate := b.gradeGate
		b.mu.Unlock()
		if parked {
			b.gradeStarted <- struct{}{}
			<-gate
			return &apperr.Error{Kind: apperr.KindUnauthorized, Status: http.StatusUnauthorized, Code: "TOKEN_EXPIRED", Message: "Authentication token has expired.", Expired: true}
		}
		if err := b.authorize(bearer, false); err != nil {
			return err
		}
		return encode(out, "grades-for-"+bearer)
	case "GET /forbidden":
		if err := b.authorize(bearer, false); err != nil {
			return err
		}
		return &apperr.Error{Kind: apperr.KindUnauthorized, Status: http.StatusForbidden, Code: "STAFF_ACCESS_ONLY", Message: "staff only"}
	}
	return &apperr.Error{Kind: apperr.KindNotFound, Status: http.StatusNotFound, Message: "not found"}
}

func (b *fakeBackend) authorize(bearer string, strict bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.access[bearer] && !(strict && b.staleForever) {
		return nil
	}
	b.expiredHits++
	return &apperr.Error{Kind: apperr.KindUnauthorized, Status: http.StatusUnauthorized, Code: "TOKEN_EXPIRED", Message: "Authentication token has expired.", Expired: true}
}

func (b *fakeBackend) doRefresh(ctx context.Context, token string, out any) error {
	b.mu.Lock()
	b.refreshCalls++
	gate := b.refreshGate
	b.mu.Unlock()

	select {
	case b.refreshStarted <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindServiceUnavailable, "the server could not be reached", ctx.Err())
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRefresh || !b.refresh[token] {
		return &apperr.Error{Kind: apperr.KindUnauthorized, Status: http.StatusUnauthorized, Code: "REFRESH_TOKEN_INVALID", Message: "Refresh token is invalid or has already been used."}
	}
	delete(b.refresh, token)
	return encode(out, b.issueLocked())
}

func (b *fakeBackend) issueLocked() model.TokenResponse {
	b.seq++
	resp := model.TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", b.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", b.seq),
		User:         &teacher,
	}
	b.access[resp.AccessToken] = true
	b.refresh[resp.RefreshToken] = true
	return resp
}

// seed registers cred as an issued pair, with the access token already stale when
// accessValid is false.
func (b *fakeBackend) seed(cred model.Credential, accessValid bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access[cred.AccessToken] = accessValid
	b.refresh[cred.RefreshToken] = true
}

// expireAccess invalidates every access token issued so far.
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]bool)
}

func (b *fakeBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func (b *fakeBackend) expiredCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expiredHits
}

func (b *fakeBackend) gradeRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.gradeTokens...)
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func encode(out any, v any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
