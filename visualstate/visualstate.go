// Package visualstate decides, per style property, whether a script run
// changed the drawing state it declares.
//
// Each run is bracketed by [Snapshotter.BeforeMain] and
// [Snapshotter.AfterMain]. Before the run every tracked property is forced to
// its default, so that deleting a style statement from the script is
// observable. After the run, a property whose end-of-run value equals the
// snapshot (the end-of-run value of the previous run) was not changed by the
// edit, and is restored to the value in effect just before the run, which
// preserves out-of-band changes made e.g. by event handlers. Otherwise the
// script changed it, and the new value is committed to the snapshot.
//
// The invariant maintained between runs is that the snapshot equals the value
// the next BeforeMain will observe as the script's declared state.
package visualstate

import (
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Args is the argument list last passed to a style setter.
type Args []any

// State maps setter name to its last arguments.
type State map[string]Args

// Applier performs library-level state changes on behalf of the snapshotter.
// ApplyProperty must end up calling [Snapshotter.Record] for name.
type Applier interface {
	ApplyProperty(name string, args Args)
	ApplyToggle(name string, on bool)
}

// Snapshotter tracks style state across runs. It is not safe for concurrent
// use.
type Snapshotter struct {
	applier         Applier
	defaults        State
	state           State
	snapshot        State
	before          State
	after           State
	defaultToggles  map[string]bool
	toggles         map[string]bool
	snapshotToggles map[string]bool
	properties      []string
	toggleNames     []string
	tracking        bool
}

// New constructs a Snapshotter. Every key of defaults is a tracked property,
// toggles are boolean pseudo-properties (e.g. whether stroking is enabled)
// with their defaults.
func New(applier Applier, defaults State, toggles map[string]bool) *Snapshotter {
	s := &Snapshotter{
		applier:         applier,
		defaults:        defaults.Clone(),
		state:           defaults.Clone(),
		snapshot:        defaults.Clone(),
		before:          State{},
		after:           State{},
		defaultToggles:  cloneToggles(toggles),
		toggles:         cloneToggles(toggles),
		snapshotToggles: cloneToggles(toggles),
		tracking:        true,
	}
	for name := range defaults {
		s.properties = append(s.properties, name)
	}
	slices.Sort(s.properties)
	for name := range toggles {
		s.toggleNames = append(s.toggleNames, name)
	}
	slices.Sort(s.toggleNames)
	return s
}

// Record notes that the setter name was called with args. It is called for
// every setter call, tracked or not.
func (s *Snapshotter) Record(name string, args Args) {
	if _, ok := s.defaults[name]; !ok {
		return
	}
	s.state[name] = slices.Clone(args)
}

// Toggle notes a change of a toggle, ignored while tracking is suspended.
func (s *Snapshotter) Toggle(name string, on bool) {
	if !s.tracking {
		return
	}
	if _, ok := s.defaultToggles[name]; ok {
		s.toggles[name] = on
	}
}

// BeforeMain captures the current state, then forces defaults.
func (s *Snapshotter) BeforeMain() {
	s.tracking = false

	s.before = s.state.Clone()
	beforeToggles := cloneToggles(s.toggles)

	for _, name := range s.properties {
		s.applier.ApplyProperty(name, slices.Clone(s.defaults[name]))
	}
	s.toggles = cloneToggles(s.defaultToggles)

	// the toggles in effect before the run are needed by AfterMain
	for name, on := range beforeToggles {
		s.before[toggleKey(name)] = Args{on}
	}

	s.tracking = true
}

// AfterMain performs the three-way merge of before, after and snapshot.
func (s *Snapshotter) AfterMain() {
	s.tracking = false

	s.after = s.state.Clone()
	afterToggles := cloneToggles(s.toggles)

	for _, name := range s.properties {
		if equal(s.snapshot[name], s.after[name]) {
			s.applier.ApplyProperty(name, slices.Clone(s.before[name]))
		} else {
			s.snapshot[name] = slices.Clone(s.after[name])
		}
	}

	for _, name := range s.toggleNames {
		if s.snapshotToggles[name] == afterToggles[name] {
			if args, ok := s.before[toggleKey(name)]; ok && len(args) == 1 {
				s.toggles[name], _ = args[0].(bool)
			}
		} else {
			s.snapshotToggles[name] = afterToggles[name]
		}
		s.applier.ApplyToggle(name, s.toggles[name])
	}

	s.tracking = true
}

// Memento is a copy of a Snapshotter's state, see [Snapshotter.Save].
type Memento struct {
	state           State
	snapshot        State
	toggles         map[string]bool
	snapshotToggles map[string]bool
}

// Save captures the current state, toggles and snapshot.
func (s *Snapshotter) Save() Memento {
	return Memento{
		state:           s.state.Clone(),
		snapshot:        s.snapshot.Clone(),
		toggles:         cloneToggles(s.toggles),
		snapshotToggles: cloneToggles(s.snapshotToggles),
	}
}

// Restore returns to a state captured by [Snapshotter.Save], applying every
// tracked property and toggle through the applier. It is used to abandon a
// run that failed between BeforeMain and AfterMain.
func (s *Snapshotter) Restore(m Memento) {
	if m.state == nil {
		return
	}
	s.tracking = false
	for _, name := range s.properties {
		s.applier.ApplyProperty(name, slices.Clone(m.state[name]))
	}
	s.snapshot = m.snapshot.Clone()
	s.toggles = cloneToggles(m.toggles)
	s.snapshotToggles = cloneToggles(m.snapshotToggles)
	for _, name := range s.toggleNames {
		s.applier.ApplyToggle(name, s.toggles[name])
	}
	s.tracking = true
}

// Tracking reports whether toggle changes are currently being recorded.
func (s *Snapshotter) Tracking() bool { return s.tracking }

// Property returns the current arguments for a tracked setter.
func (s *Snapshotter) Property(name string) Args { return slices.Clone(s.state[name]) }

// ToggleValue returns the current value of a toggle.
func (s *Snapshotter) ToggleValue(name string) bool { return s.toggles[name] }

// State returns a copy of the current state.
func (s *Snapshotter) State() State { return s.state.Clone() }

// Snapshot returns a copy of the snapshot, the end-of-run state of the
// previous run.
func (s *Snapshotter) Snapshot() State { return s.snapshot.Clone() }

// SnapshotToggle returns the snapshot value of a toggle.
func (s *Snapshotter) SnapshotToggle(name string) bool { return s.snapshotToggles[name] }

// Defaults returns a copy of the defaults.
func (s *Snapshotter) Defaults() State { return s.defaults.Clone() }

// Clone returns a deep copy of the state's argument lists.
func (x State) Clone() State {
	out := make(State, len(x))
	for k, v := range x {
		out[k] = slices.Clone(v)
	}
	return out
}

func cloneToggles(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toggleKey(name string) string { return "\x00" + name }

var equalOpts = cmp.Options{cmpopts.EquateEmpty()}

func equal(a, b Args) bool { return cmp.Equal(a, b, equalOpts) }
