package access

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/transport"
)

// Outcome is the result of a grant check. The four outcomes lead the user to
// different next steps, so they are never collapsed into a boolean.
type Outcome string

const (
	OutcomeGranted    Outcome = "granted"
	OutcomeNotGranted Outcome = "not_granted"
	OutcomeExpired    Outcome = "expired"
	OutcomeInactive   Outcome = "inactive"
)

// Message returns the user-facing explanation for an outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeGranted:
		return "You may record conduct events for yourself."
	case OutcomeNotGranted:
		return "You have not been given permission to record events. Ask your teacher if you need it."
	case OutcomeExpired:
		return "Your permission to record events has expired. Ask your teacher to renew it."
	case OutcomeInactive:
		return "Your permission to record events was revoked by your teacher."
	default:
		return "Your permission to record events could not be determined."
	}
}

// ProfileNotFoundMessage is shown when a student identity has no roster entry.
const ProfileNotFoundMessage = "Your student profile could not be found. Please contact your teacher."

// Evaluate classifies grant at now. A nil grant is never granted.
func Evaluate(grant *model.PermissionGrant, now time.Time) Outcome {
	switch {
	case grant == nil:
		return OutcomeNotGranted
	case grant.UsableAt(now):
		return OutcomeGranted
	case !grant.IsActive:
		return OutcomeInactive
	default:
		return OutcomeExpired
	}
}

// Decision is the outcome of one grant check for one student.
type Decision struct {
	Outcome Outcome                `json:"outcome"`
	Message string                 `json:"message"`
	Student model.Student          `json:"student"`
	Grant   *model.PermissionGrant `json:"grant,omitempty"`
	// CheckedAt is when the outcome was evaluated.
	CheckedAt time.Time `json:"checked_at"`
}

// Allowed reports whether the action may be shown.
func (d *Decision) Allowed() bool {
	return d.Outcome == OutcomeGranted
}

// UsableAt re-evaluates the held grant at now. A decision is never trusted past the
// moment it was computed; callers about to act re-check through the Gate.
func (d *Decision) UsableAt(now time.Time) bool {
	return d.Outcome == OutcomeGranted && Evaluate(d.Grant, now) == OutcomeGranted
}

// Requester sends authenticated requests. *session.Manager implements it.
type Requester interface {
	DoRequest(ctx context.Context, req transport.Request, out any) error
}

// Gate resolves fine-grained permissions through the backend.
type Gate struct {
	api Requester
	now func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate that calls the backend through api.
func NewGate(api Requester, opts ...Option) *Gate {
	g := &Gate{api: api, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Sections is the role-based menu for identity.
func (g *Gate) Sections(identity *model.Identity) []Section {
	if identity == nil {
		return Sections("")
	}
	return Sections(identity.Role)
}

// StudentProfile resolves the roster entry belonging to identity.
func (g *Gate) StudentProfile(ctx context.Context, identity model.Identity) (model.Student, error) {
	var roster []model.Student
	err := g.api.DoRequest(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/students",
		Query:  url.Values{"user_id": {strconv.Itoa(identity.ID)}},
	}, &roster)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return model.Student{}, apperr.New(apperr.KindProfileNotFound, ProfileNotFoundMessage)
		}
		return model.Student{}, err
	}
	for _, s := range roster {
		if s.UserID == identity.ID {
			return s, nil
		}
	}
	return model.Student{}, apperr.New(apperr.KindProfileNotFound, ProfileNotFoundMessage)
}

// CheckEventPermission resolves whether identity, a student, may record an event
// for themselves right now. The grant is fetched on every call.
func (g *Gate) CheckEventPermission(ctx context.Context, identity model.Identity) (*Decision, error) {
	if identity.Role != model.RoleStudent {
		return nil, apperr.New(apperr.KindForbidden, "event self-service is only available to students")
	}

	student, err := g.StudentProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	var check model.PermissionCheck
	err = g.api.DoRequest(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/students/%d/event-permission", student.ID),
	}, &check)
	if err != nil {
		return nil, err
	}

	now := g.now()
	outcome := resolve(check, now)
	return &Decision{
		Outcome:   outcome,
		Message:   outcome.Message(),
		Student:   student,
		Grant:     check.Permission,
		CheckedAt: now,
	}, nil
}

// resolve combines the backend verdict with a local evaluation at now. The local
// evaluation can only narrow a positive verdict, since the grant may have lapsed
// between the backend answering and now.
func resolve(check model.PermissionCheck, now time.Time) Outcome {
	if check.HasPermission {
		if check.Permission == nil {
			return OutcomeGranted
		}
		return Evaluate(check.Permission, now)
	}
	if check.Reason != nil && check.Reason.Valid() {
		return Outcome(*check.Reason)
	}
	if check.Permission != nil {
		if o := Evaluate(check.Permission, now); o != OutcomeGranted {
			return o
		}
	}
	return OutcomeNotGranted
}

// CreateOwnEvent records an event for the signed-in student. The grant is checked
// again immediately before the call; an earlier Decision is not consulted.
func (g *Gate) CreateOwnEvent(ctx context.Context, identity model.Identity, eventTypeID int, note string) (*model.Event, error) {
	decision, err := g.CheckEventPermission(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return nil, &apperr.Error{
			Kind:    apperr.KindForbidden,
			Code:    string(decision.Outcome),
			Message: decision.Message,
		}
	}

	var event model.Event
	err = g.api.DoRequest(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/events",
		Body: model.CreateEventRequest{
			StudentID:   decision.Student.ID,
			EventTypeID: eventTypeID,
			Note:        note,
		},
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
