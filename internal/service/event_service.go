package service

import (
	"context"
	"errors"

	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
)

// ErrEventNotGranted is returned when a student records an event without a usable
// permission grant.
var ErrEventNotGranted = errors.New("event permission not granted")

// EventService records and lists conduct events.
type EventService struct {
	roster      *RosterService
	permissions *PermissionService
	events      *repository.EventRepository
	eventTypes  *repository.EventTypeRepository
	students    *repository.StudentRepository
}

// NewEventService creates a new EventService.
func NewEventService(
	roster *RosterService,
	permissions *PermissionService,
	events *repository.EventRepository,
	eventTypes *repository.EventTypeRepository,
	students *repository.StudentRepository,
) *EventService {
	return &EventService{
		roster:      roster,
		permissions: permissions,
		events:      events,
		eventTypes:  eventTypes,
		students:    students,
	}
}

// List returns events visible to the caller. studentID 0 means all students for
// staff and the caller's own record for students.
func (s *EventService) List(ctx context.Context, caller *Claims, studentID int) ([]model.Event, error) {
	if caller.Role == model.RoleStudent {
		own, err := s.roster.ListStudents(ctx, caller, repository.StudentFilter{})
		if err != nil {
			return nil, err
		}
		if len(own) == 0 {
			return []model.Event{}, nil
		}
		if studentID != 0 && studentID != own[0].ID {
			return nil, ErrOwnRecordOnly
		}
		studentID = own[0].ID
	}
	return s.events.List(ctx, studentID)
}

// Create records an event. Students may only record events for themselves and
// only while they hold a usable grant; the grant is checked on every call.
func (s *EventService) Create(ctx context.Context, caller *Claims, req model.CreateEventRequest) (*model.Event, error) {
	if caller.Role == model.RoleStudent {
		check, err := s.permissions.Check(ctx, caller, req.StudentID)
		if err != nil {
			return nil, err
		}
		if !check.HasPermission {
			return nil, ErrEventNotGranted
		}
	} else if _, err := s.roster.GetStudent(ctx, caller, req.StudentID); err != nil {
		return nil, err
	}

	eventType, err := s.eventTypes.GetByID(ctx, req.EventTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventTypeNotFound
		}
		return nil, err
	}

	event := &model.Event{
		StudentID:     req.StudentID,
		EventTypeID:   eventType.ID,
		EventTypeName: eventType.Name,
		Points:        eventType.Points,
		Note:          req.Note,
		RecordedBy:    caller.UserID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	if err := s.students.AddPoints(ctx, req.StudentID, eventType.Points); err != nil {
		return nil, err
	}
	return event, nil
}
