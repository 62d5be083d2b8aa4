package service

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
)

// Permission errors.
var (
	ErrPermissionNotFound = errors.New("no event permission on record")
	ErrExpiryInPast       = errors.New("expires_at must be in the future")
)

// PermissionService manages event permission grants.
type PermissionService struct {
	roster      *RosterService
	permissions *repository.PermissionRepository
	classrooms  *repository.ClassroomRepository
	users       *repository.UserRepository
	now         func() time.Time
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(
	roster *RosterService,
	permissions *repository.PermissionRepository,
	classrooms *repository.ClassroomRepository,
	users *repository.UserRepository,
) *PermissionService {
	return &PermissionService{
		roster:      roster,
		permissions: permissions,
		classrooms:  classrooms,
		users:       users,
		now:         time.Now,
	}
}

// Check reports whether the student may currently record events for themselves.
func (s *PermissionService) Check(ctx context.Context, caller *Claims, studentID int) (*model.PermissionCheck, error) {
	if _, err := s.roster.GetStudent(ctx, caller, studentID); err != nil {
		return nil, err
	}

	grant, err := s.permissions.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return denied(model.ReasonNotGranted, nil), nil
		}
		return nil, err
	}

	switch {
	case grant.UsableAt(s.now()):
		return &model.PermissionCheck{HasPermission: true, Permission: grant}, nil
	case !grant.IsActive:
		return denied(model.ReasonInactive, grant), nil
	default:
		return denied(model.ReasonExpired, grant), nil
	}
}

// Grant issues or replaces the student's event permission.
func (s *PermissionService) Grant(ctx context.Context, caller *Claims, studentID int, req model.GrantPermissionRequest) (*model.PermissionGrant, error) {
	student, err := s.roster.GetStudent(ctx, caller, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}

	grant := model.PermissionGrant{
		ClassroomID: student.ClassroomID,
		GrantedAt:   now,
		ExpiresAt:   req.ExpiresAt,
		Notes:       req.Notes,
		IsActive:    true,
	}
	if classroom, err := s.classrooms.GetByID(ctx, student.ClassroomID); err == nil {
		grant.ClassroomName = classroom.Name
	}
	if granter, err := s.users.GetByID(ctx, caller.UserID); err == nil {
		grant.GrantedByName = granter.DisplayName
	}

	if err := s.permissions.Upsert(ctx, studentID, grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Revoke deactivates the student's event permission.
func (s *PermissionService) Revoke(ctx context.Context, caller *Claims, studentID int) (*model.PermissionGrant, error) {
	if _, err := s.roster.GetStudent(ctx, caller, studentID); err != nil {
		return nil, err
	}
	grant, err := s.permissions.Deactivate(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, err
	}
	return grant, nil
}

func denied(reason model.PermissionReason, grant *model.PermissionGrant) *model.PermissionCheck {
	return &model.PermissionCheck{HasPermission: false, Reason: &reason, Permission: grant}
}
