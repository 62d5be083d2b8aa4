// Package conduct wraps the backend's conduct resources in typed calls that go
// through the session, so every call is authenticated and refreshed as needed.
package conduct

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/transport"
)

// Requester sends authenticated requests. *session.Manager implements it.
type Requester interface {
	DoRequest(ctx context.Context, req transport.Request, out any) error
}

// Service exposes the conduct resources.
type Service struct {
	api Requester
}

// NewService creates a Service.
func NewService(api Requester) *Service {
	return &Service{api: api}
}

// Classrooms lists classrooms visible to the signed-in user.
func (s *Service) Classrooms(ctx context.Context) ([]model.Classroom, error) {
	var out []model.Classroom
	if err := s.get(ctx, "/classrooms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventTypes lists the configured event types.
func (s *Service) EventTypes(ctx context.Context) ([]model.EventType, error) {
	var out []model.EventType
	if err := s.get(ctx, "/event-types", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Students lists roster entries, optionally filtered by classroom (0 for all).
func (s *Service) Students(ctx context.Context, classroomID int) ([]model.Student, error) {
	var q url.Values
	if classroomID > 0 {
		q = url.Values{"classroom_id": {strconv.Itoa(classroomID)}}
	}
	var out []model.Student
	if err := s.get(ctx, "/students", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Events lists events, optionally for one student (0 for all visible).
func (s *Service) Events(ctx context.Context, studentID int) ([]model.Event, error) {
	var q url.Values
	if studentID > 0 {
		q = url.Values{"student_id": {strconv.Itoa(studentID)}}
	}
	var out []model.Event
	if err := s.get(ctx, "/events", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEvent records an event for any student. Teachers and admins only; students
// go through access.Gate.CreateOwnEvent.
func (s *Service) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	var out model.Event
	err := s.api.DoRequest(ctx, transport.Request{Method: http.MethodPost, Path: "/events", Body: req}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GrantEventPermission gives a student permission to record their own events,
// until validFor elapses (0 for no expiry).
func (s *Service) GrantEventPermission(ctx context.Context, studentID int, validFor time.Duration, notes string) (*model.PermissionGrant, error) {
	req := model.GrantPermissionRequest{}
	if validFor > 0 {
		expires := time.Now().Add(validFor).UTC()
		req.ExpiresAt = &expires
	}
	if notes != "" {
		req.Notes = &notes
	}
	var out model.PermissionGrant
	err := s.api.DoRequest(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   permissionPath(studentID),
		Body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeEventPermission deactivates a student's grant.
func (s *Service) RevokeEventPermission(ctx context.Context, studentID int) error {
	return s.api.DoRequest(ctx, transport.Request{Method: http.MethodDelete, Path: permissionPath(studentID)}, nil)
}

func (s *Service) get(ctx context.Context, path string, q url.Values, out any) error {
	return s.api.DoRequest(ctx, transport.Request{Method: http.MethodGet, Path: path, Query: q}, out)
}

func permissionPath(studentID int) string {
	return fmt.Sprintf("/students/%d/event-permission", studentID)
}
