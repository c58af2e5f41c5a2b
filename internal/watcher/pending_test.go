package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestWatcher(debounce time.Duration) *Watcher {
	return &Watcher{
		cfg:    Config{DebounceDur: debounce},
		events: make(chan Event, 4),
		timers: make(map[string]*pending),
		done:   make(chan struct{}),
	}
}

// A write that lands after the debounce timer fired, but before its callback
// took the lock, must produce exactly one event.
func TestSchedule_AfterTimerFiredReportsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("[ RUN      ] S.T\n"), 0644))

	w := newTestWatcher(50 * time.Millisecond)
	t.Cleanup(func() { close(w.done) })

	w.schedule(path)
	w.mu.Lock()
	fired := w.timers[path]
	w.mu.Unlock()
	require.NotNil(t, fired)

	// Expire the timer without running its callback.
	require.True(t, fired.timer.Stop())

	w.schedule(path)
	w.mu.Lock()
	current := w.timers[path]
	w.mu.Unlock()
	require.NotSame(t, fired, current, "a fired timer must be replaced, not reset")

	// The stale callback runs late and must not report the file.
	w.fire(path, fired)

	select {
	case evt := <-w.events:
		require.Equal(t, path, evt.Path)
	case <-time.After(time.Second):
		require.Fail(t, "expected an event from the current timer")
	}

	select {
	case evt := <-w.events:
		require.Failf(t, "duplicate event", "got a second event for %s", evt.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSchedule_PendingTimerIsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w := newTestWatcher(time.Hour)
	t.Cleanup(func() {
		w.cancel(path)
		close(w.done)
	})

	w.schedule(path)
	w.mu.Lock()
	first := w.timers[path]
	w.mu.Unlock()

	w.schedule(path)
	w.mu.Lock()
	second := w.timers[path]
	w.mu.Unlock()
	require.Same(t, first, second)
}
