package service

import (
	"context"
	"errors"

	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
)

// Roster errors.
var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrEventTypeNotFound = errors.New("event type not found")
	ErrOwnRecordOnly     = errors.New("students may only access their own records")
)

// RosterService serves classrooms, students and event types.
type RosterService struct {
	students   *repository.StudentRepository
	classrooms *repository.ClassroomRepository
	eventTypes *repository.EventTypeRepository
}

// NewRosterService creates a new RosterService.
func NewRosterService(
	students *repository.StudentRepository,
	classrooms *repository.ClassroomRepository,
	eventTypes *repository.EventTypeRepository,
) *RosterService {
	return &RosterService{students: students, classrooms: classrooms, eventTypes: eventTypes}
}

// ListClassrooms returns every classroom.
func (s *RosterService) ListClassrooms(ctx context.Context) ([]model.Classroom, error) {
	return s.classrooms.List(ctx)
}

// ListEventTypes returns every event type.
func (s *RosterService) ListEventTypes(ctx context.Context) ([]model.EventType, error) {
	return s.eventTypes.List(ctx)
}

// ListStudents returns the students visible to the caller. Students only ever see
// their own roster entry, whatever filter they ask for.
func (s *RosterService) ListStudents(ctx context.Context, caller *Claims, filter repository.StudentFilter) ([]model.Student, error) {
	if caller.Role == model.RoleStudent {
		if filter.UserID != 0 && filter.UserID != caller.UserID {
			return []model.Student{}, nil
		}
		filter.UserID = caller.UserID
	}
	return s.students.List(ctx, filter)
}

// GetStudent returns a student the caller is allowed to see.
func (s *RosterService) GetStudent(ctx context.Context, caller *Claims, studentID int) (*model.Student, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if caller.Role == model.RoleStudent && student.UserID != caller.UserID {
		return nil, ErrOwnRecordOnly
	}
	return student, nil
}
