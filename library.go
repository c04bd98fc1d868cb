package livecode

import (
	"github.com/dop251/goja"
)

// Library is the host library adapter, e.g. a drawing library. Its members
// are reachable from scripts without qualification, and it brackets every
// run with BeforeMain and AfterMain.
type Library interface {
	// Name is the identifier the library object is bound to in the compiled
	// unit.
	Name() string
	Object() *goja.Object
	// Globals are the member names scripts may refer to.
	Globals() []string
	BeforeMain()
	AfterMain()
}

// Window is the custom window, the object scripts see as window, globalThis
// and self, which also holds the implicit globals they create.
type Window interface {
	Object() *goja.Object
	// Globals are the names resolved against the window.
	Globals() []string
}

// Transactional is implemented by a [Library] or [Window] that owns
// resources created while a script runs, e.g. timers. Begin is called before
// each run, and End after it, with commit reporting whether the run
// succeeded.
type Transactional interface {
	Begin()
	End(commit bool)
}

// emptyLibrary is used when no library is configured.
type emptyLibrary struct {
	object *goja.Object
}

func (x *emptyLibrary) Name() string          { return `__library__` }
func (x *emptyLibrary) Object() *goja.Object { return x.object }
func (x *emptyLibrary) Globals() []string    { return nil }
func (x *emptyLibrary) BeforeMain()          {}
func (x *emptyLibrary) AfterMain()           {}

// plainWindow is used when no window is configured.
type plainWindow struct {
	object *goja.Object
}

func (x *plainWindow) Object() *goja.Object { return x.object }
func (x *plainWindow) Globals() []string    { return nil }
