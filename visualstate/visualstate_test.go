package visualstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeLibrary mimics the style setters of a drawing library.
type fakeLibrary struct {
	s     *Snapshotter
	calls []string
}

func (f *fakeLibrary) set(name string, args ...any) {
	f.calls = append(f.calls, name)
	f.s.Record(name, args)
	if name == `stroke` {
		f.s.Toggle(`isStroked`, true)
	}
}

func (f *fakeLibrary) noStroke() {
	f.calls = append(f.calls, `noStroke`)
	f.s.Toggle(`isStroked`, false)
}

func (f *fakeLibrary) ApplyProperty(name string, args Args) { f.set(name, args...) }

func (f *fakeLibrary) ApplyToggle(name string, on bool) {
	if name != `isStroked` {
		panic(name)
	}
	if on {
		f.set(`stroke`, f.s.Property(`stroke`)...)
	} else {
		f.noStroke()
	}
}

func newFake() *fakeLibrary {
	f := new(fakeLibrary)
	f.s = New(f, State{
		`fill`:         {255.0, 255.0, 255.0},
		`stroke`:       {0.0, 0.0, 0.0},
		`strokeWeight`: {1.0},
	}, map[string]bool{`isStroked`: true})
	return f
}

// run brackets main like the engine does.
func (f *fakeLibrary) run(main func()) {
	f.s.BeforeMain()
	main()
	f.s.AfterMain()
}

func TestSnapshotter_updatesState(t *testing.T) {
	f := newFake()
	f.run(func() { f.set(`fill`, 0.0, 0.0, 255.0) })
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Property(`fill`))
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Snapshot()[`fill`])
}

func TestSnapshotter_keepsOutOfBandChangeWhenUnchanged(t *testing.T) {
	f := newFake()
	f.run(func() { f.set(`fill`, 0.0, 0.0, 255.0) })

	// e.g. a mouse handler
	f.set(`fill`, 0.0, 255.0, 0.0)

	f.run(func() { f.set(`fill`, 0.0, 0.0, 255.0) })
	assert.Equal(t, Args{0.0, 255.0, 0.0}, f.s.Property(`fill`))
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Snapshot()[`fill`])
}

func TestSnapshotter_takesEndOfRunValueWhenChanged(t *testing.T) {
	f := newFake()
	f.run(func() { f.set(`fill`, 0.0, 0.0, 255.0) })
	f.set(`fill`, 0.0, 255.0, 0.0)
	f.run(func() { f.set(`fill`, 0.0, 255.0, 255.0) })
	assert.Equal(t, Args{0.0, 255.0, 255.0}, f.s.Property(`fill`))
	assert.Equal(t, Args{0.0, 255.0, 255.0}, f.s.Snapshot()[`fill`])
}

func TestSnapshotter_resetsRemovedStatement(t *testing.T) {
	f := newFake()
	f.run(func() { f.set(`fill`, 0.0, 0.0, 255.0) })
	f.run(func() {})
	assert.Equal(t, Args{255.0, 255.0, 255.0}, f.s.Property(`fill`))
}

func TestSnapshotter_defaultsVisibleDuringRun(t *testing.T) {
	f := newFake()
	f.run(func() { f.set(`strokeWeight`, 4.0) })
	var during Args
	f.run(func() { during = f.s.Property(`strokeWeight`) })
	assert.Equal(t, Args{1.0}, during)
	assert.Equal(t, Args{1.0}, f.s.Property(`strokeWeight`))
}

func TestSnapshotter_isStroked(t *testing.T) {
	f := newFake()
	f.run(func() {
		f.set(`stroke`, 0.0, 0.0, 255.0)
		f.noStroke()
	})
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Property(`stroke`))
	assert.False(t, f.s.ToggleValue(`isStroked`))

	f.run(func() {
		f.noStroke()
		f.set(`stroke`, 0.0, 0.0, 255.0)
	})
	assert.True(t, f.s.ToggleValue(`isStroked`))
}

func TestSnapshotter_isStrokedOutOfBandKept(t *testing.T) {
	f := newFake()
	f.run(func() {
		f.set(`stroke`, 0.0, 0.0, 255.0)
		f.noStroke()
	})

	f.set(`stroke`, 255.0, 0.0, 0.0)

	f.run(func() {
		f.set(`stroke`, 0.0, 0.0, 255.0)
		f.noStroke()
	})
	assert.Equal(t, Args{255.0, 0.0, 0.0}, f.s.Property(`stroke`))
	assert.True(t, f.s.ToggleValue(`isStroked`))
}

func TestSnapshotter_isStrokedFromSecondRun(t *testing.T) {
	f := newFake()
	f.run(func() {
		f.set(`stroke`, 0.0, 0.0, 255.0)
		f.noStroke()
	})

	f.set(`stroke`, 255.0, 0.0, 0.0)
	f.noStroke()

	f.run(func() { f.set(`stroke`, 0.0, 255.0, 0.0) })
	assert.Equal(t, Args{0.0, 255.0, 0.0}, f.s.Property(`stroke`))
	assert.True(t, f.s.ToggleValue(`isStroked`))
	assert.True(t, f.s.SnapshotToggle(`isStroked`))
}

func TestSnapshotter_untrackedIgnored(t *testing.T) {
	f := newFake()
	f.s.Record(`rect`, Args{1.0, 2.0})
	_, ok := f.s.State()[`rect`]
	assert.False(t, ok)
	f.s.Toggle(`unknown`, false)
	assert.False(t, f.s.ToggleValue(`unknown`))
}

func TestSnapshotter_emptyArgsEqualNil(t *testing.T) {
	f := new(fakeLibrary)
	f.s = New(f, State{`smooth`: nil}, nil)
	f.run(func() { f.set(`smooth`) })
	assert.Empty(t, f.s.Snapshot()[`smooth`])
}

func TestState_Clone(t *testing.T) {
	a := State{`fill`: {1.0}}
	b := a.Clone()
	b[`fill`][0] = 2.0
	assert.Equal(t, 1.0, a[`fill`][0])
}

func TestSnapshotter_Restore(t *testing.T) {
	f := newFake()
	f.run(func() {
		f.set(`fill`, 0.0, 0.0, 255.0)
		f.noStroke()
	})
	f.set(`strokeWeight`, 3.0)

	m := f.s.Save()
	f.s.BeforeMain()
	f.set(`fill`, 255.0, 0.0, 0.0)
	f.set(`stroke`, 1.0, 1.0, 1.0)
	// the run fails here, AfterMain is never called
	f.s.Restore(m)

	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Property(`fill`))
	assert.Equal(t, Args{0.0, 0.0, 0.0}, f.s.Property(`stroke`))
	assert.Equal(t, Args{3.0}, f.s.Property(`strokeWeight`))
	assert.False(t, f.s.ToggleValue(`isStroked`))
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Snapshot()[`fill`])
	assert.True(t, f.s.Tracking())

	// the next run merges against the state from before the failed run
	f.run(func() {
		f.set(`fill`, 0.0, 0.0, 255.0)
		f.noStroke()
	})
	assert.Equal(t, Args{3.0}, f.s.Property(`strokeWeight`))
	assert.False(t, f.s.ToggleValue(`isStroked`))

	// a zero Memento is ignored
	f.s.Restore(Memento{})
	assert.Equal(t, Args{0.0, 0.0, 255.0}, f.s.Property(`fill`))
}
