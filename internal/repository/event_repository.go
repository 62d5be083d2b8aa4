package repository

import (
	"context"
	"sort"
	"time"

	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// EventTypeRepository handles event type data access.
type EventTypeRepository struct {
	db *database.MemoryDB
}

// NewEventTypeRepository creates a new EventTypeRepository.
func NewEventTypeRepository(db *database.MemoryDB) *EventTypeRepository {
	return &EventTypeRepository{db: db}
}

// GetByID retrieves an event type by ID.
func (r *EventTypeRepository) GetByID(_ context.Context, id int) (*model.EventType, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	t, ok := r.db.EventTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

// List returns all event types ordered by ID.
func (r *EventTypeRepository) List(_ context.Context) ([]model.EventType, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	out := make([]model.EventType, 0, len(r.db.EventTypes))
	for _, t := range r.db.EventTypes {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create inserts a new event type and sets its ID.
func (r *EventTypeRepository) Create(_ context.Context, t *model.EventType) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	t.ID = r.db.NextID("event_types")
	stored := *t
	r.db.EventTypes[t.ID] = &stored
	return nil
}

// EventRepository handles conduct event data access.
type EventRepository struct {
	db *database.MemoryDB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *database.MemoryDB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events, newest first, optionally for one student (0 for all).
func (r *EventRepository) List(_ context.Context, studentID int) ([]model.Event, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	out := make([]model.Event, 0)
	for _, e := range r.db.Events {
		if studentID != 0 && e.StudentID != studentID {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Create inserts a new event and sets its ID and timestamp.
func (r *EventRepository) Create(_ context.Context, e *model.Event) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	e.ID = r.db.NextID("events")
	e.CreatedAt = time.Now().UTC()
	stored := *e
	r.db.Events[e.ID] = &stored
	return nil
}
