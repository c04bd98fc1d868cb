package livecode

import (
	"maps"
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-livecode/fingerprint"
	"github.com/joeycumines/go-livecode/internal/jsutil"
)

// windowSentinel is the fingerprint of the custom window object, which is
// shared between runs rather than re-created.
var windowSentinel = fingerprint.Sentinel(`window`)

// store is the persistent store and its fingerprint table.
type store struct {
	values       map[string]goja.Value
	fingerprints map[string]fingerprint.Fingerprint
}

func newStore() *store {
	return &store{
		values:       make(map[string]goja.Value),
		fingerprints: make(map[string]fingerprint.Fingerprint),
	}
}

func (s *store) reset() {
	clear(s.values)
	clear(s.fingerprints)
}

func (s *store) names() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// carryOver captures the values of a previous environment that callbacks may
// have replaced since it was folded. Callables and undefined values are not
// carried.
func carryOver(env *Environment) map[string]goja.Value {
	if env == nil {
		return nil
	}
	carry := make(map[string]goja.Value)
	for name, v := range env.values {
		if carried(v) {
			carry[name] = v
		}
	}
	return carry
}

func carried(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) && !isCallable(v)
}

// foldPlan is the outcome of comparing a fresh environment against the store,
// computed before anything is mutated.
type foldPlan struct {
	keep    []string
	adopt   map[string]fingerprint.Fingerprint
	remove  []string
	fresh   *Environment
	carried map[string]goja.Value
}

// planFold fingerprints the fresh environment. Values whose content matches
// the stored fingerprint are kept, others adopted. Callables are adopted when
// the run defined them, and removed from the store when it did not.
func planFold(vm *goja.Runtime, s *store, env *Environment, carry map[string]goja.Value, window *goja.Object) *foldPlan {
	p := &foldPlan{
		adopt:   make(map[string]fingerprint.Fingerprint),
		fresh:   env,
		carried: carry,
	}

	for _, name := range env.Names() {
		v := env.values[name]

		if isCallable(v) {
			if env.Defined(name) {
				p.adopt[name] = fingerprint.FunctionMarker()
			} else if _, ok := s.values[name]; ok {
				p.remove = append(p.remove, name)
			}
			continue
		}

		var fp fingerprint.Fingerprint
		if obj, ok := v.(*goja.Object); ok && window != nil && obj == window {
			fp = windowSentinel
		} else if err := jsutil.Catch(vm, func() { fp = fingerprint.OfGoja(v) }); err != nil {
			// a throwing getter makes the value incomparable
			fp = fingerprint.Fingerprint{}
		}

		if old, ok := s.fingerprints[name]; ok && !fp.IsZero() && old == fp {
			p.keep = append(p.keep, name)
			continue
		}
		p.adopt[name] = fp
	}

	// callables whose declaration was removed entirely
	for name, fp := range s.fingerprints {
		if fp.IsFunction() && !env.Has(name) {
			p.remove = append(p.remove, name)
		}
	}
	slices.Sort(p.remove)

	return p
}

// apply commits the plan to the store, and writes kept values back into the
// environment, so that the scripts' closures see the persisted identities.
func (p *foldPlan) apply(s *store) {
	for name, v := range p.carried {
		s.values[name] = v
	}
	for _, name := range p.keep {
		p.fresh.store(name, s.values[name])
	}
	for name, fp := range p.adopt {
		s.values[name] = p.fresh.values[name]
		if fp.IsZero() {
			delete(s.fingerprints, name)
		} else {
			s.fingerprints[name] = fp
		}
	}
	for _, name := range p.remove {
		delete(s.values, name)
		delete(s.fingerprints, name)
	}
}
