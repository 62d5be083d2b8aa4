// Package access decides what a signed-in user may reach: the role-based list of
// navigable sections, and the time-boxed grant a student needs before recording an
// event for themselves. The two mechanisms are independent.
package access

import (
	"strings"

	"github.com/stemsi/conduct-console/internal/model"
)

// Section is a navigable area of the console.
type Section struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
}

var (
	sectionDashboard  = Section{Key: "dashboard", Label: "Dashboard", Path: "/dashboard", Icon: "home"}
	sectionClassrooms = Section{Key: "classrooms", Label: "Classrooms", Path: "/classrooms", Icon: "school"}
	sectionStudents   = Section{Key: "students", Label: "Students", Path: "/students", Icon: "users"}
	sectionTeachers   = Section{Key: "teachers", Label: "Teachers", Path: "/teachers", Icon: "user-check"}
	sectionEventTypes = Section{Key: "event-types", Label: "Event Types", Path: "/event-types", Icon: "tag"}
	sectionEvents     = Section{Key: "events", Label: "Events", Path: "/events", Icon: "clipboard-list"}
	sectionGrants     = Section{Key: "permissions", Label: "Event Permissions", Path: "/permissions", Icon: "key"}
	sectionMyEvents   = Section{Key: "my-events", Label: "My Events", Path: "/my-events", Icon: "clipboard"}
	sectionProfile    = Section{Key: "profile", Label: "My Profile", Path: "/profile", Icon: "user"}
)

var sectionsByRole = map[model.Role][]Section{
	model.RoleAdmin: {
		sectionDashboard,
		sectionClassrooms,
		sectionStudents,
		sectionTeachers,
		sectionEventTypes,
		sectionEvents,
		sectionGrants,
	},
	model.RoleTeacher: {
		sectionDashboard,
		sectionClassrooms,
		sectionStudents,
		sectionEvents,
		sectionGrants,
	},
	model.RoleStudent: {
		sectionDashboard,
		sectionMyEvents,
		sectionProfile,
	},
}

// Sections returns the ordered sections visible to role. The result is a fresh
// slice on every call. An empty or unknown role gets the administrative set: partial
// identity data degrades to the full menu, and the backend still enforces access.
func Sections(role model.Role) []Section {
	list, ok := sectionsByRole[role]
	if !ok {
		list = sectionsByRole[model.RoleAdmin]
	}
	out := make([]Section, len(list))
	copy(out, list)
	return out
}

// Allowed reports whether path, or a sub-path of it, belongs to a section visible
// to role.
func Allowed(role model.Role, path string) bool {
	for _, s := range Sections(role) {
		if path == s.Path || strings.HasPrefix(path, s.Path+"/") {
			return true
		}
	}
	return false
}
