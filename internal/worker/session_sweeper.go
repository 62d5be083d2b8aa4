package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is a store that can purge its expired entries.
type Sweeper interface {
	Sweep() int
}

// SessionSweeper periodically purges expired sessions and refresh tokens from an
// in-process session store. Redis expires its keys on its own and needs no sweeper.
type SessionSweeper struct {
	store    Sweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewSessionSweeper creates a new SessionSweeper.
func NewSessionSweeper(store Sweeper, interval time.Duration, log zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		store:    store,
		interval: interval,
		log:      log.With().Str("component", "session_sweeper").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled. Call in a goroutine.
func (w *SessionSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.sweep()
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *SessionSweeper) sweep() int {
	removed := w.store.Sweep()
	if removed > 0 {
		w.log.Debug().Int("count", removed).Msg("Purged expired session records")
	}
	return removed
}
