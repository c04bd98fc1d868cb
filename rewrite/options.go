package rewrite

import (
	"errors"
	"regexp"
)

// DefaultEntryPoints are the names of the callbacks a host invokes as fresh
// units of work: the drawing tick and the input handlers.
var DefaultEntryPoints = []string{
	`draw`,
	`mouseClicked`,
	`mouseDragged`,
	`mouseMoved`,
	`mousePressed`,
	`mouseReleased`,
	`mouseScrolled`,
	`mouseOver`,
	`mouseOut`,
	`touchStart`,
	`touchEnd`,
	`touchMove`,
	`touchCancel`,
	`keyPressed`,
	`keyReleased`,
	`keyTyped`,
}

// Names are the identifiers the rewritten source refers to. Env, Window,
// Library, Source and Watchdog are the five parameters of the compiled unit,
// Temp must be declared by it, and This is declared by the rewrite itself.
type Names struct {
	Env      string
	Window   string
	Library  string
	Source   string
	Watchdog string
	Temp     string
	This     string
}

// DefaultNames returns the default identifier names.
func DefaultNames() Names {
	return Names{
		Env:      `__env__`,
		Window:   `__window__`,
		Library:  `__library__`,
		Source:   `__source__`,
		Watchdog: `__watchdog__`,
		Temp:     `__fn__`,
		This:     `__this__`,
	}
}

// Params returns the parameter list of the compiled unit, in order.
func (x Names) Params() []string {
	return []string{x.Env, x.Window, x.Library, x.Source, x.Watchdog}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func (x Names) validate() error {
	seen := make(map[string]struct{}, 7)
	for _, name := range [...]string{x.Env, x.Window, x.Library, x.Source, x.Watchdog, x.Temp, x.This} {
		if !identifierPattern.MatchString(name) {
			return errors.New("rewrite: invalid identifier name: " + name)
		}
		if _, ok := seen[name]; ok {
			return errors.New("rewrite: duplicate identifier name: " + name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

type rewriteOptions struct {
	resolver    Resolver
	entryPoints map[string]struct{}
	names       Names
}

// Option configures [Rewrite].
type Option interface {
	applyRewrite(*rewriteOptions) error
}

type optionImpl struct {
	applyRewriteFunc func(*rewriteOptions) error
}

func (o *optionImpl) applyRewrite(opts *rewriteOptions) error {
	return o.applyRewriteFunc(opts)
}

// WithNames replaces every identifier name.
func WithNames(names Names) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names = names
		return nil
	}}
}

// WithEnvName sets the environment object identifier.
func WithEnvName(name string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names.Env = name
		return nil
	}}
}

// WithWindowName sets the custom window identifier.
func WithWindowName(name string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names.Window = name
		return nil
	}}
}

// WithLibraryName sets the host library identifier.
func WithLibraryName(name string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names.Library = name
		return nil
	}}
}

// WithSourceName sets the source lookup function identifier.
func WithSourceName(name string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names.Source = name
		return nil
	}}
}

// WithWatchdogName sets the watchdog handle identifier.
func WithWatchdogName(name string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.names.Watchdog = name
		return nil
	}}
}

// WithResolver supplies library and window membership. The default resolver
// knows no members.
func WithResolver(resolver Resolver) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.resolver = resolver
		return nil
	}}
}

// WithEntryPoints replaces [DefaultEntryPoints].
func WithEntryPoints(names ...string) Option {
	return &optionImpl{func(opts *rewriteOptions) error {
		opts.entryPoints = make(map[string]struct{}, len(names))
		for _, name := range names {
			opts.entryPoints[name] = struct{}{}
		}
		return nil
	}}
}

func resolveOptions(opts []Option) (*rewriteOptions, error) {
	cfg := &rewriteOptions{
		names: DefaultNames(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRewrite(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.names.validate(); err != nil {
		return nil, err
	}
	if cfg.resolver == nil {
		cfg.resolver = NewResolver(nil, nil)
	}
	if cfg.entryPoints == nil {
		cfg.entryPoints = make(map[string]struct{}, len(DefaultEntryPoints))
		for _, name := range DefaultEntryPoints {
			cfg.entryPoints[name] = struct{}{}
		}
	}
	return cfg, nil
}
