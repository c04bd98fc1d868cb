package livecode

import (
	"errors"
	"maps"
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-livecode/behavior"
	"github.com/joeycumines/go-livecode/fingerprint"
	"github.com/joeycumines/go-livecode/lint"
	"github.com/joeycumines/go-livecode/rewrite"
	"github.com/joeycumines/go-livecode/watchdog"
	"github.com/joeycumines/logiface"
)

// Engine is the context reconciler. It owns the persistent store, the
// fingerprint table and the proxy registry, and runs one cycle per edit.
//
// An Engine is bound to a single goja runtime, and like the runtime it must
// only be used from one goroutine at a time, see [Session].
type Engine struct {
	vm          *goja.Runtime
	logger      *logiface.Logger[logiface.Event]
	library     Library
	window      Window
	watchdog    *watchdog.Watchdog
	watchdogObj *goja.Object
	linter      lint.Linter
	delegate    Delegate
	registry    *behavior.Registry
	store       *store
	resolver    rewrite.Resolver
	rewriteOpts []rewrite.Option
	last        *Context
	lastRewrite *rewrite.Result
	cycles      int
	running     bool
}

// NewEngine constructs an Engine for vm.
func NewEngine(vm *goja.Runtime, opts ...Option) (*Engine, error) {
	if vm == nil {
		return nil, ErrNilRuntime
	}
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		vm:       vm,
		logger:   cfg.logger,
		library:  cfg.library,
		window:   cfg.window,
		watchdog: cfg.watchdog,
		linter:   cfg.linter,
		delegate: cfg.delegate,
		store:    newStore(),
	}
	if e.library == nil {
		e.library = &emptyLibrary{object: vm.NewObject()}
	}
	if e.window == nil {
		e.window = &plainWindow{object: vm.NewObject()}
	}
	if e.watchdog == nil {
		if e.watchdog, err = newWatchdog(cfg); err != nil {
			return nil, err
		}
	}
	e.watchdogObj = e.watchdog.BindInterrupt(vm)

	if e.registry, err = behavior.NewRegistry(vm); err != nil {
		return nil, err
	}

	libraryMembers := memberSet(e.library.Globals())
	windowMembers := memberSet(e.window.Globals())
	e.resolver = rewrite.ResolverFuncs{
		Library: func(name string) bool {
			_, ok := libraryMembers[name]
			return ok
		},
		Window: func(name string) bool {
			_, ok := windowMembers[name]
			return ok
		},
	}
	e.rewriteOpts = []rewrite.Option{
		rewrite.WithLibraryName(e.library.Name()),
		rewrite.WithResolver(e.resolver),
	}
	if cfg.entryPoints != nil {
		e.rewriteOpts = append(e.rewriteOpts, rewrite.WithEntryPoints(cfg.entryPoints...))
	}
	e.rewriteOpts = append(e.rewriteOpts, cfg.rewriteOptions...)

	vm.SetMaxCallStackSize(cfg.maxCallStackSize)

	return e, nil
}

func newWatchdog(cfg *engineOptions) (*watchdog.Watchdog, error) {
	return watchdog.New(append([]watchdog.Option{watchdog.WithLogger(cfg.logger)}, cfg.watchdogOptions...)...)
}

func memberSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, name := range names {
		m[name] = struct{}{}
	}
	return m
}

// Runtime returns the goja runtime.
func (e *Engine) Runtime() *goja.Runtime { return e.vm }

// Library returns the host library.
func (e *Engine) Library() Library { return e.library }

// Window returns the custom window.
func (e *Engine) Window() Window { return e.window }

// Watchdog returns the loop watchdog.
func (e *Engine) Watchdog() *watchdog.Watchdog { return e.watchdog }

// Registry returns the behavior proxy registry.
func (e *Engine) Registry() *behavior.Registry { return e.registry }

// Globals returns the names the host declares to scripts: the library
// members, then the window members.
func (e *Engine) Globals() []string {
	return slices.Concat(e.library.Globals(), e.window.Globals())
}

// HandleUpdate lints and runs source, reporting the outcome to the delegate.
// It returns the new context, or nil if the cycle did not succeed. No error
// escapes.
func (e *Engine) HandleUpdate(source string) *Context {
	var lintErr *LintError
	if err := e.Lint(source); errors.As(err, &lintErr) {
		e.logger.Debug().
			Int(`messages`, len(lintErr.Messages)).
			Err(err).
			Log(`lint failed`)
		e.delegate.DisplayLint(lintErr.Messages)
		return nil
	}

	ctx, err := e.Run(source)
	if err != nil {
		e.delegate.DisplayException(err)
		return nil
	}

	e.delegate.SuccessfulRun(ctx)
	return ctx
}

// Lint checks source against the configured linter and the engine's
// globals. It returns a [*LintError] if anything was reported, and nil if no
// linter is configured.
func (e *Engine) Lint(source string) error {
	if e.linter == nil {
		return nil
	}
	if messages := e.linter.Lint(e.Globals(), source); len(messages) != 0 {
		return &LintError{Messages: messages}
	}
	return nil
}

// Run performs one reconciliation cycle. Only a clean run commits to the
// persistent store; any failure leaves the store, the fingerprint table and
// the proxy registry as they were, and is returned as one of
// [*rewrite.ParseError], [*CompileError] or [*RuntimeError].
func (e *Engine) Run(source string) (*Context, error) {
	if e.running {
		return nil, ErrCycleInProgress
	}
	e.running = true
	defer func() { e.running = false }()

	e.cycles++
	cycle := e.cycles

	result, err := rewrite.Rewrite(source, e.rewriteOpts...)
	if err != nil {
		e.logger.Debug().
			Int(`cycle`, cycle).
			Err(err).
			Log(`parse failed`)
		return nil, err
	}

	var carry map[string]goja.Value
	if e.last != nil {
		carry = carryOver(e.last.env)
	}

	unit, err := Compile(e.vm, result)
	if err != nil {
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			e.logger.Err().
				Int(`cycle`, cycle).
				Err(err).
				Str(`source`, compileErr.Source).
				Log(`rewrite produced an invalid program`)
		}
		return nil, err
	}

	env, err := newEnvironment(e.vm, e.registry, result.Globals)
	if err != nil {
		return nil, err
	}

	proxies := e.registry.Snapshot()
	e.begin()
	e.library.BeforeMain()

	if err := unit.Call(env.Object(), e.window.Object(), e.library.Object(), unit.SourceFunc(), e.watchdogObj); err != nil {
		if rollbackErr := e.registry.Restore(proxies); rollbackErr != nil {
			e.logger.Err().
				Int(`cycle`, cycle).
				Err(rollbackErr).
				Log(`proxy rollback failed`)
		}
		e.end(false)
		e.logger.Debug().
			Int(`cycle`, cycle).
			Bool(`infinite_loop`, errors.Is(err, watchdog.ErrInfiniteLoop)).
			Err(err).
			Log(`run failed`)
		return nil, err
	}

	e.library.AfterMain()

	plan := planFold(e.vm, e.store, env, carry, e.window.Object())
	plan.apply(e.store)
	e.end(true)

	ctx := &Context{
		vm:     e.vm,
		env:    env,
		result: result,
		window: e.window.Object(),
		cycle:  cycle,
	}
	e.last = ctx
	e.lastRewrite = result

	e.logger.Debug().
		Int(`cycle`, cycle).
		Int(`kept`, len(plan.keep)).
		Int(`adopted`, len(plan.adopt)).
		Int(`removed`, len(plan.remove)).
		Int(`proxies`, e.registry.Len()).
		Log(`run committed`)

	return ctx, nil
}

func (e *Engine) begin() {
	if tx, ok := e.library.(Transactional); ok {
		tx.Begin()
	}
	if tx, ok := e.window.(Transactional); ok {
		tx.Begin()
	}
}

func (e *Engine) end(commit bool) {
	if tx, ok := e.window.(Transactional); ok {
		tx.End(commit)
	}
	if tx, ok := e.library.(Transactional); ok {
		tx.End(commit)
	}
}

// LastContext returns the context of the last successful cycle, or nil.
func (e *Engine) LastContext() *Context { return e.last }

// LastRewrite returns the rewrite of the last successful cycle, or nil.
func (e *Engine) LastRewrite() *rewrite.Result { return e.lastRewrite }

// Persistent returns a copy of the persistent store.
func (e *Engine) Persistent() map[string]goja.Value {
	return maps.Clone(e.store.values)
}

// PersistentNames returns the names in the persistent store, sorted.
func (e *Engine) PersistentNames() []string { return e.store.names() }

// Fingerprint returns the stored fingerprint for name.
func (e *Engine) Fingerprint(name string) (fingerprint.Fingerprint, bool) {
	fp, ok := e.store.fingerprints[name]
	return fp, ok
}

// Reset forgets all persistent state: the store, the fingerprints, the
// proxies and the last context. The next cycle starts from scratch.
func (e *Engine) Reset() error {
	if e.running {
		return ErrCycleInProgress
	}
	e.store.reset()
	e.registry.Reset()
	e.last = nil
	e.lastRewrite = nil
	e.logger.Info().Log(`engine reset`)
	return nil
}

// Cycles returns the number of cycles started so far.
func (e *Engine) Cycles() int { return e.cycles }
