package rewrite

// Resolver reports membership of the host library and custom window objects,
// which decides how free identifiers are rewritten.
type Resolver interface {
	LibraryMember(name string) bool
	WindowMember(name string) bool
}

// ResolverFuncs adapts plain functions to [Resolver]. Nil functions report no
// members.
type ResolverFuncs struct {
	Library func(name string) bool
	Window  func(name string) bool
}

var _ Resolver = ResolverFuncs{}

// LibraryMember implements [Resolver].
func (x ResolverFuncs) LibraryMember(name string) bool {
	return x.Library != nil && x.Library(name)
}

// WindowMember implements [Resolver].
func (x ResolverFuncs) WindowMember(name string) bool {
	return x.Window != nil && x.Window(name)
}

type staticResolver struct {
	library map[string]struct{}
	window  map[string]struct{}
}

// NewResolver returns a [Resolver] over fixed member lists.
func NewResolver(library, window []string) Resolver {
	r := &staticResolver{
		library: make(map[string]struct{}, len(library)),
		window:  make(map[string]struct{}, len(window)),
	}
	for _, name := range library {
		r.library[name] = struct{}{}
	}
	for _, name := range window {
		r.window[name] = struct{}{}
	}
	return r
}

func (r *staticResolver) LibraryMember(name string) bool {
	_, ok := r.library[name]
	return ok
}

func (r *staticResolver) WindowMember(name string) bool {
	_, ok := r.window[name]
	return ok
}
