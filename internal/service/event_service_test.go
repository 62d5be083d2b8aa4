package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/repository"
)

const volunteerWork = 2

func TestStudentWithGrantRecordsOwnEvent(t *testing.T) {
	f := newFixture(t)
	s1 := f.claims(t, "s1")
	ctx := context.Background()

	event, err := f.events.Create(ctx, s1, model.CreateEventRequest{StudentID: studentGranted, EventTypeID: volunteerWork, Note: "library"})
	require.NoError(t, err)
	assert.Equal(t, 10, event.Points)
	assert.Equal(t, "Volunteer work", event.EventTypeName)
	assert.Equal(t, s1.UserID, event.RecordedBy)

	student, err := f.students.GetByID(ctx, studentGranted)
	require.NoError(t, err)
	assert.Equal(t, 10, student.Points)

	events, err := f.events.List(ctx, s1, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}

func TestStudentWithoutUsableGrantIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for username, studentID := range map[string]int{"s2": studentNotGranted, "s3": studentExpired, "s4": studentRevoked} {
		t.Run(username, func(t *testing.T) {
			caller := f.claims(t, username)
			_, err := f.events.Create(ctx, caller, model.CreateEventRequest{StudentID: studentID, EventTypeID: volunteerWork})
			assert.ErrorIs(t, err, ErrEventNotGranted)
		})
	}
}

func TestStudentCannotRecordForOthers(t *testing.T) {
	f := newFixture(t)
	s1 := f.claims(t, "s1")

	_, err := f.events.Create(context.Background(), s1, model.CreateEventRequest{StudentID: studentNotGranted, EventTypeID: volunteerWork})
	assert.ErrorIs(t, err, ErrOwnRecordOnly)

	_, err = f.events.List(context.Background(), s1, studentNotGranted)
	assert.ErrorIs(t, err, ErrOwnRecordOnly)
}

func TestTeacherRecordsForAnyStudent(t *testing.T) {
	f := newFixture(t)
	teacher := f.claims(t, "t1")
	ctx := context.Background()

	_, err := f.events.Create(ctx, teacher, model.CreateEventRequest{StudentID: studentNotGranted, EventTypeID: 3})
	require.NoError(t, err)

	student, err := f.students.GetByID(ctx, studentNotGranted)
	require.NoError(t, err)
	assert.Equal(t, -2, student.Points)

	_, err = f.events.Create(ctx, teacher, model.CreateEventRequest{StudentID: studentNotGranted, EventTypeID: 99})
	assert.ErrorIs(t, err, ErrEventTypeNotFound)

	_, err = f.events.Create(ctx, teacher, model.CreateEventRequest{StudentID: 99, EventTypeID: 1})
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestListStudentsScopesStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	teacher := f.claims(t, "t1")
	all, err := f.roster.ListStudents(ctx, teacher, repository.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	s2 := f.claims(t, "s2")
	own, err := f.roster.ListStudents(ctx, s2, repository.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, studentNotGranted, own[0].ID)

	other, err := f.roster.ListStudents(ctx, s2, repository.StudentFilter{UserID: teacher.UserID})
	require.NoError(t, err)
	assert.Empty(t, other)
}
