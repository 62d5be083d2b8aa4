package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
)

// DemoPassword is the password of every seeded non-admin account.
const DemoPassword = "pw1"

// SeedService fills an empty dev server with demo data.
type SeedService struct {
	auth        *AuthService
	users       *repository.UserRepository
	students    *repository.StudentRepository
	classrooms  *repository.ClassroomRepository
	eventTypes  *repository.EventTypeRepository
	permissions *repository.PermissionRepository
	log         zerolog.Logger
}

// NewSeedService creates a new SeedService.
func NewSeedService(
	auth *AuthService,
	users *repository.UserRepository,
	students *repository.StudentRepository,
	classrooms *repository.ClassroomRepository,
	eventTypes *repository.EventTypeRepository,
	permissions *repository.PermissionRepository,
	log zerolog.Logger,
) *SeedService {
	return &SeedService{
		auth:        auth,
		users:       users,
		students:    students,
		classrooms:  classrooms,
		eventTypes:  eventTypes,
		permissions: permissions,
		log:         log,
	}
}

type demoStudent struct {
	username string
	name     string
	// grant describes the seeded permission: "active", "expired", "revoked" or "" for none.
	grant string
}

var demoStudents = []demoStudent{
	{username: "s1", name: "Ayu Lestari", grant: "active"},
	{username: "s2", name: "Bima Saputra"},
	{username: "s3", name: "Citra Dewi", grant: "expired"},
	{username: "s4", name: "Dimas Pratama", grant: "revoked"},
}

// SeedDemo creates one admin, one teacher, one classroom with four students covering
// every grant state, and a small catalogue of event types.
func (s *SeedService) SeedDemo(ctx context.Context, adminPassword string) error {
	admin, err := s.createUser(ctx, "admin", "Administrator", model.RoleAdmin, adminPassword)
	if err != nil {
		return err
	}
	teacher, err := s.createUser(ctx, "t1", "Teacher One", model.RoleTeacher, DemoPassword)
	if err != nil {
		return err
	}

	classroom := &model.Classroom{Name: "X-A", GradeLevel: 10, TeacherID: teacher.ID, TeacherName: teacher.DisplayName}
	if err := s.classrooms.Create(ctx, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}

	for _, et := range []model.EventType{
		{Name: "Helped a classmate", Points: 5, Description: "Assisted another student with coursework"},
		{Name: "Volunteer work", Points: 10},
		{Name: "Late to class", Points: -2},
		{Name: "Uniform violation", Points: -5},
	} {
		et := et
		if err := s.eventTypes.Create(ctx, &et); err != nil {
			return fmt.Errorf("create event type: %w", err)
		}
	}

	now := time.Now().UTC()
	for i, d := range demoStudents {
		user, err := s.createUser(ctx, d.username, d.name, model.RoleStudent, DemoPassword)
		if err != nil {
			return err
		}
		student := &model.Student{
			UserID:      user.ID,
			StudentCode: fmt.Sprintf("2026%04d", i+1),
			Name:        d.name,
			ClassroomID: classroom.ID,
		}
		if err := s.students.Create(ctx, student); err != nil {
			return fmt.Errorf("create student: %w", err)
		}

		if d.grant == "" {
			continue
		}
		expires := now.Add(7 * 24 * time.Hour)
		if d.grant == "expired" {
			expires = now.Add(-time.Hour)
		}
		notes := "seeded " + d.grant + " grant"
		grant := model.PermissionGrant{
			ClassroomID:   classroom.ID,
			ClassroomName: classroom.Name,
			GrantedAt:     now.Add(-24 * time.Hour),
			GrantedByName: teacher.DisplayName,
			ExpiresAt:     &expires,
			Notes:         &notes,
			IsActive:      d.grant != "revoked",
		}
		if err := s.permissions.Upsert(ctx, student.ID, grant); err != nil {
			return fmt.Errorf("seed grant: %w", err)
		}
	}

	s.log.Info().
		Int("admin_id", admin.ID).
		Int("teacher_id", teacher.ID).
		Int("students", len(demoStudents)).
		Msg("Demo data seeded")
	return nil
}

func (s *SeedService) createUser(ctx context.Context, username, name string, role model.Role, password string) (*model.User, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Username: username, DisplayName: name, Role: role, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}
