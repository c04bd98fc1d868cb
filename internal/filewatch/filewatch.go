// Package filewatch polls a file for changes, and runs an action with its
// contents once they settle.
package filewatch

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Options tunes the watcher.
type Options struct {
	Logger *logiface.Logger[logiface.Event]
	// Interval is the polling frequency. Default: 250ms.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes restart it. 0 fires immediately.
	Debounce time.Duration
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 250 * time.Millisecond
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64
	Changes int64
	Errors  int64
	Reloads int64
}

// Watcher polls a single file. It is safe for concurrent use.
type Watcher struct {
	path    string
	opts    Options
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// New creates a Watcher for path. Call OnChange to start it.
func New(path string, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{path: path, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Reloads: w.reloads.Load(),
	}
}

type version [sha256.Size]byte

// OnChange blocks until ctx is done. The action is called with the initial
// contents, then whenever they change. If it returns an error the contents
// are not marked as seen, and are retried on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func(contents []byte) error) error {
	var (
		current     version
		seen        bool
		pending     []byte
		debounce    *time.Timer
		debounceCh  <-chan time.Time
		pendingHash version
	)

	fire := func(contents []byte, hash version) {
		if err := action(contents); err != nil {
			w.errors.Add(1)
			w.opts.Logger.Warning().
				Str(`path`, w.path).
				Err(err).
				Log(`reload failed`)
			return
		}
		w.reloads.Add(1)
		current, seen = hash, true
	}

	poll := func() {
		w.checks.Add(1)
		contents, err := os.ReadFile(w.path)
		if err != nil {
			w.errors.Add(1)
			w.opts.Logger.Warning().
				Str(`path`, w.path).
				Err(err).
				Log(`read failed`)
			return
		}
		hash := version(sha256.Sum256(contents))
		if seen && hash == current {
			return
		}
		if pending != nil && hash == pendingHash {
			return
		}
		w.changes.Add(1)
		if w.opts.Debounce <= 0 || !seen {
			pending = nil
			fire(contents, hash)
			return
		}
		pending, pendingHash = contents, hash
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.NewTimer(w.opts.Debounce)
		debounceCh = debounce.C
		w.opts.Logger.Debug().
			Str(`path`, w.path).
			Log(`change detected, debouncing`)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	w.opts.Logger.Info().
		Str(`path`, w.path).
		Dur(`interval`, w.opts.Interval).
		Dur(`debounce`, w.opts.Debounce).
		Log(`watching`)

	poll()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			poll()
		case <-debounceCh:
			debounceCh = nil
			if pending != nil {
				contents := pending
				pending = nil
				fire(contents, pendingHash)
			}
		}
	}
}
