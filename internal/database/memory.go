package database

import (
	"sync"

	"github.com/stemsi/conduct-console/internal/model"
)

// MemoryDB is the dev server's in-process data set. Repositories share it and take
// its lock for every read and write.
type MemoryDB struct {
	Mu sync.RWMutex

	Users      map[int]*model.User
	Students   map[int]*model.Student
	Classrooms map[int]*model.Classroom
	EventTypes map[int]*model.EventType
	Events     map[int]*model.Event
	// Grants is keyed by student ID; a student holds at most one grant.
	Grants map[int]*model.PermissionGrant

	seq map[string]int
}

// NewMemoryDB creates an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		Users:      make(map[int]*model.User),
		Students:   make(map[int]*model.Student),
		Classrooms: make(map[int]*model.Classroom),
		EventTypes: make(map[int]*model.EventType),
		Events:     make(map[int]*model.Event),
		Grants:     make(map[int]*model.PermissionGrant),
		seq:        make(map[string]int),
	}
}

// NextID returns the next identifier for table. Mu must be held for writing.
func (db *MemoryDB) NextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}
