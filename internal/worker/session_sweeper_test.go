package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingStore struct {
	calls atomic.Int32
}

func (s *countingStore) Sweep() int {
	s.calls.Add(1)
	return 1
}

func TestSessionSweeperRunsUntilCancelled(t *testing.T) {
	store := &countingStore{}
	w := NewSessionSweeper(store, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	stopped := store.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, store.calls.Load())
}

func TestSessionSweeperDefaultsInterval(t *testing.T) {
	w := NewSessionSweeper(&countingStore{}, 0, zerolog.Nop())
	assert.Equal(t, time.Minute, w.interval)
}
