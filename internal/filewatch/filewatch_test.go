package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watch(t *testing.T, path string, opts Options) (*Watcher, <-chan string) {
	t.Helper()
	w := New(path, opts)
	got := make(chan string, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.OnChange(ctx, func(contents []byte) error {
			got <- string(contents)
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w, got
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal(`timed out waiting for a reload`)
		return ``
	}
}

func TestWatcher_OnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), `sketch.js`)
	require.NoError(t, os.WriteFile(path, []byte(`one`), 0o644))

	w, got := watch(t, path, Options{Interval: 5 * time.Millisecond})
	assert.Equal(t, `one`, next(t, got))

	require.NoError(t, os.WriteFile(path, []byte(`two`), 0o644))
	assert.Equal(t, `two`, next(t, got))

	// unchanged contents do not fire
	require.NoError(t, os.WriteFile(path, []byte(`two`), 0o644))
	select {
	case s := <-got:
		t.Fatalf(`unexpected reload: %q`, s)
	case <-time.After(50 * time.Millisecond):
	}

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Reloads)
	assert.Greater(t, stats.Checks, int64(2))
}

func TestWatcher_debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), `sketch.js`)
	require.NoError(t, os.WriteFile(path, []byte(`a`), 0o644))

	_, got := watch(t, path, Options{Interval: 5 * time.Millisecond, Debounce: 200 * time.Millisecond})
	assert.Equal(t, `a`, next(t, got))

	for _, s := range []string{`ab`, `abc`, `abcd`} {
		require.NoError(t, os.WriteFile(path, []byte(s), 0o644))
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, `abcd`, next(t, got))
}

func TestWatcher_missingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `missing.js`)
	w, got := watch(t, path, Options{Interval: 5 * time.Millisecond})

	assert.Eventually(t, func() bool { return w.Stats().Errors >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`late`), 0o644))
	assert.Equal(t, `late`, next(t, got))
}
