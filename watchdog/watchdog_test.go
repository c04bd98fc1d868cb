package watchdog

import (
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every read.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Armed", StateArmed.String())
	assert.Equal(t, "Tripped", StateTripped.String())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestNew_invalidBaseDelay(t *testing.T) {
	_, err := New(WithBaseDelay(0))
	require.Error(t, err)
}

func TestWatchdog_Check_withinDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 10 * time.Millisecond}
	w, err := New(WithClock(clock.Now), WithDecider(DeciderFunc(func(Trip) Decision {
		t.Fatal("unexpected decision")
		return DecisionAbort
	})))
	require.NoError(t, err)

	w.Reset()
	for i := 0; i < 40; i++ {
		require.NoError(t, w.Check())
	}
	assert.Equal(t, StateArmed, w.State())
}

func TestWatchdog_Check_firstCheckArms(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Second}
	w, err := New(WithClock(clock.Now))
	require.NoError(t, err)
	require.Equal(t, StateIdle, w.State())
	require.NoError(t, w.Check())
	assert.Equal(t, StateArmed, w.State())
}

func TestWatchdog_Check_backoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	var trips []Trip
	w, err := New(
		WithClock(clock.Now),
		WithBaseDelay(500*time.Millisecond),
		WithDecider(DeciderFunc(func(trip Trip) Decision {
			trips = append(trips, trip)
			if len(trips) < 3 {
				return DecisionContinue
			}
			return DecisionAbort
		})),
	)
	require.NoError(t, err)

	w.Reset()
	checks := 0
	for {
		checks++
		if err = w.Check(); err != nil {
			break
		}
		require.Less(t, checks, 1000)
	}

	var loopErr *InfiniteLoopError
	require.ErrorAs(t, err, &loopErr)
	assert.True(t, errors.Is(err, ErrInfiniteLoop))

	require.Len(t, trips, 3)
	assert.Equal(t, 500*time.Millisecond, trips[0].Delay)
	assert.Equal(t, time.Second, trips[1].Delay)
	assert.Equal(t, 2*time.Second, trips[2].Delay)
	for i, trip := range trips {
		assert.Equal(t, i+1, trip.Count)
	}
	// each check advances 100ms, the first trip happens once 600ms passed
	assert.Equal(t, 600*time.Millisecond, trips[0].Stalled)
	assert.Equal(t, loopErr.Stalled, trips[2].Stalled)

	// abort resets to the base delay
	assert.Equal(t, 500*time.Millisecond, w.Delay())
	assert.Equal(t, StateIdle, w.State())
}

func TestWatchdog_Reset_clearsBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 300 * time.Millisecond}
	w, err := New(WithClock(clock.Now), WithDecider(AlwaysContinue))
	require.NoError(t, err)

	w.Reset()
	require.NoError(t, w.Check())
	require.NoError(t, w.Check())
	require.Equal(t, time.Second, w.Delay())
	require.NotZero(t, w.Stalled())

	w.Reset()
	assert.Equal(t, DefaultBaseDelay, w.Delay())
	assert.Zero(t, w.Stalled())
}

func TestWatchdog_SetEnabled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Second}
	w, err := New(WithClock(clock.Now))
	require.NoError(t, err)

	w.Reset()
	w.SetEnabled(false)
	assert.False(t, w.Enabled())
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Check())
	}

	w.SetEnabled(true)
	assert.True(t, w.Enabled())
	// the first check after re-enabling only re-arms
	require.NoError(t, w.Check())
	require.Error(t, w.Check())
}

func TestWatchdog_Bind(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 50 * time.Millisecond}
	w, err := New(WithClock(clock.Now))
	require.NoError(t, err)

	vm := goja.New()
	require.NoError(t, vm.Set(`__watchdog__`, w.Bind(vm)))

	_, err = vm.RunString(`
		__watchdog__.reset();
		while (true) {
			__watchdog__.check();
		}
	`)
	require.Error(t, err)
	var exc *goja.Exception
	require.ErrorAs(t, err, &exc)
	assert.Contains(t, exc.Error(), `infinite loop`)
}

func TestWatchdog_BindInterrupt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 50 * time.Millisecond}
	w, err := New(WithClock(clock.Now))
	require.NoError(t, err)

	vm := goja.New()
	require.NoError(t, vm.Set(`__watchdog__`, w.BindInterrupt(vm)))

	_, err = vm.RunString(`
		__watchdog__.reset();
		for (;;) {
			try {
				while (true) {
					__watchdog__.check();
				}
			} catch (e) {
			}
		}
	`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfiniteLoop)
	vm.ClearInterrupt()

	v, err := vm.RunString(`1 + 1`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Export())
}
