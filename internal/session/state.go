package session

import "github.com/stemsi/conduct-console/internal/model"

// State is the lifecycle state of a session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Listener observes state transitions. Identity is nil when no one is signed in.
// Listeners may be invoked from whichever goroutine caused a transition and
// should return quickly.
type Listener func(state State, identity *model.Identity)

type transition struct {
	state    State
	identity *model.Identity
}
