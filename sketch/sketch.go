package sketch

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-livecode/visualstate"
	"github.com/joeycumines/logiface"
)

// Name is the identifier the library object is bound to.
const Name = `__p__`

// Constants exposed to scripts.
const (
	RGB      = 1
	HSB      = 3
	CORNER   = 0
	CORNERS  = 1
	RADIUS   = 2
	CENTER   = 3
	LEFT     = 37
	RIGHT    = 39
	TOP      = 101
	BOTTOM   = 102
	BASELINE = 0
	ROUND    = `round`
	SQUARE   = `butt`
	PROJECT  = `square`
)

// Handlers are the event handler slots, in the order they are documented.
var Handlers = []string{
	`draw`,
	`mouseClicked`,
	`mousePressed`,
	`mouseReleased`,
	`mouseMoved`,
	`mouseDragged`,
	`mouseScrolled`,
	`mouseOver`,
	`mouseOut`,
	`keyPressed`,
	`keyReleased`,
	`keyTyped`,
}

// Stroked is the toggle tracking whether outlines are drawn.
const Stroked = `isStroked`

// Defaults are the tracked style setters and their initial arguments.
func Defaults() visualstate.State {
	return visualstate.State{
		`colorMode`:    {float64(RGB)},
		`ellipseMode`:  {float64(CENTER)},
		`fill`:         {255.0, 255.0, 255.0},
		`frameRate`:    {60.0},
		`imageMode`:    {float64(CORNER)},
		`rectMode`:     {float64(CORNER)},
		`stroke`:       {0.0, 0.0, 0.0},
		`strokeCap`:    {ROUND},
		`strokeWeight`: {1.0},
		`textAlign`:    {float64(LEFT), float64(BASELINE)},
		`textAscent`:   {9.0},
		`textDescent`:  {12.0},
		`textFont`:     {`Arial`, 12.0},
		`textLeading`:  {14.0},
		`textSize`:     {12.0},
	}
}

var (
	errUnknownEvent = errors.New("sketch: unknown event")
	errNoLoop       = errors.New("sketch: no event loop configured")
)

// Op is one entry of the display list. Shapes carry the style in effect when
// they were drawn, Fill and Stroke being nil if disabled.
type Op struct {
	Name         string
	Args         visualstate.Args
	Fill         visualstate.Args
	Stroke       visualstate.Args
	StrokeWeight float64
}

func (x Op) String() string {
	parts := make([]string, len(x.Args))
	for i, arg := range x.Args {
		parts[i] = fmt.Sprint(arg)
	}
	return x.Name + `(` + strings.Join(parts, `, `) + `)`
}

// Event is an input event. Type is the name of the handler it fires.
type Event struct {
	Type    string
	Key     string
	X       float64
	Y       float64
	KeyCode int
}

type handler struct {
	value goja.Value
	fn    goja.Callable
}

// Sketch is the drawing library. Like the runtime, it must only be used from
// the goroutine that owns it, i.e. the event loop's.
type Sketch struct {
	vm       *goja.Runtime
	object   *goja.Object
	cfg      *sketchOptions
	logger   *logiface.Logger[logiface.Event]
	snap     *visualstate.Snapshotter
	limiter  *catrate.Limiter
	rng      *rand.Rand
	dummy    goja.Value
	handlers map[string]*handler
	globals  []string
	ops      []Op
	stroked  bool
	filled   bool
	frames   int
	interval uint64
	rate     float64
	looping  bool
	mouseX   float64
	mouseY   float64
	// suppressed counts handler exceptions dropped by the limiter
	suppressed map[string]int
	// saved is the state at Begin, restored by a failed run's End
	saved *savedState
}

type savedState struct {
	handlers map[string]handler
	style    visualstate.Memento
	ops      []Op
	rng      *rand.Rand
	stroked  bool
	filled   bool
}

// New constructs a Sketch for vm.
func New(vm *goja.Runtime, opts ...Option) (*Sketch, error) {
	if vm == nil {
		return nil, errors.New("sketch: nil runtime")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Sketch{
		vm:         vm,
		object:     vm.NewObject(),
		cfg:        cfg,
		logger:     cfg.logger,
		limiter:    catrate.NewLimiter(cfg.errorRates),
		handlers:   make(map[string]*handler, len(Handlers)),
		stroked:    true,
		filled:     true,
		suppressed: make(map[string]int),
	}
	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	s.rng = rand.New(rand.NewPCG(cfg.seed, cfg.seed))
	s.dummy = vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	s.snap = visualstate.New(s, Defaults(), map[string]bool{Stroked: true})
	s.rate = Defaults()[`frameRate`][0].(float64)

	if err := s.install(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sketch) install() error {
	members := map[string]any{
		`RGB`:      RGB,
		`HSB`:      HSB,
		`CORNER`:   CORNER,
		`CORNERS`:  CORNERS,
		`RADIUS`:   RADIUS,
		`CENTER`:   CENTER,
		`LEFT`:     LEFT,
		`RIGHT`:    RIGHT,
		`TOP`:      TOP,
		`BOTTOM`:   BOTTOM,
		`BASELINE`: BASELINE,
		`ROUND`:    ROUND,
		`SQUARE`:   SQUARE,
		`PROJECT`:  PROJECT,
		`PI`:       math.Pi,
		`TWO_PI`:   2 * math.Pi,
		`HALF_PI`:  math.Pi / 2,
	}

	for _, name := range []string{
		`rect`, `ellipse`, `line`, `point`, `triangle`, `quad`, `arc`, `text`,
	} {
		members[name] = s.primitive(name, true)
	}
	for _, name := range []string{
		`translate`, `rotate`, `scale`, `pushMatrix`, `popMatrix`, `resetMatrix`,
	} {
		members[name] = s.primitive(name, false)
	}
	members[`background`] = func(call goja.FunctionCall) goja.Value {
		s.ops = s.ops[:0]
		s.push(Op{Name: `background`, Args: exportArgs(call.Arguments)})
		return goja.Undefined()
	}
	members[`noFill`] = func(goja.FunctionCall) goja.Value {
		s.filled = false
		return goja.Undefined()
	}
	members[`noStroke`] = func(goja.FunctionCall) goja.Value {
		s.stroked = false
		s.snap.Toggle(Stroked, false)
		return goja.Undefined()
	}

	for name := range Defaults() {
		members[name] = s.setter(name)
	}

	members[`random`] = s.random
	members[`randomSeed`] = func(seed int64) {
		s.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	}
	members[`dist`] = func(x1, y1, x2, y2 float64) float64 { return math.Hypot(x2-x1, y2-y1) }
	members[`constrain`] = func(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }
	members[`map`] = func(v, start1, stop1, start2, stop2 float64) float64 {
		return start2 + (stop2-start2)*((v-start1)/(stop1-start1))
	}
	members[`lerp`] = func(start, stop, amt float64) float64 { return start + (stop-start)*amt }
	members[`sq`] = func(v float64) float64 { return v * v }
	members[`radians`] = func(v float64) float64 { return v * math.Pi / 180 }
	members[`degrees`] = func(v float64) float64 { return v * 180 / math.Pi }
	members[`min`] = func(v ...float64) float64 { return reduce(v, math.Min) }
	members[`max`] = func(v ...float64) float64 { return reduce(v, math.Max) }
	for name, fn := range map[string]func(float64) float64{
		`abs`:   math.Abs,
		`sqrt`:  math.Sqrt,
		`floor`: math.Floor,
		`ceil`:  math.Ceil,
		`round`: math.Round,
		`sin`:   math.Sin,
		`cos`:   math.Cos,
		`tan`:   math.Tan,
	} {
		members[name] = fn
	}
	members[`atan2`] = math.Atan2
	members[`println`] = func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		s.logger.Info().
			Str(`sketch`, `println`).
			Log(strings.Join(parts, ` `))
		return goja.Undefined()
	}

	for _, name := range slices.Sorted(maps.Keys(members)) {
		if err := s.object.Set(name, members[name]); err != nil {
			return err
		}
		s.globals = append(s.globals, name)
	}

	for name, value := range map[string]any{
		`width`:          s.cfg.width,
		`height`:         s.cfg.height,
		`mouseX`:         0,
		`mouseY`:         0,
		`pmouseX`:        0,
		`pmouseY`:        0,
		`mouseIsPressed`: false,
		`mouseButton`:    LEFT,
		`keyIsPressed`:   false,
		`key`:            ``,
		`keyCode`:        0,
		`frameCount`:     0,
	} {
		if err := s.object.Set(name, value); err != nil {
			return err
		}
		s.globals = append(s.globals, name)
	}

	for _, name := range Handlers {
		h := &handler{value: s.dummy}
		s.handlers[name] = h
		getter := s.vm.ToValue(func(goja.FunctionCall) goja.Value { return h.value })
		setter := s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			v := call.Argument(0)
			h.value = v
			h.fn, _ = goja.AssertFunction(v)
			return goja.Undefined()
		})
		if err := s.object.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return err
		}
		s.globals = append(s.globals, name)
	}

	slices.Sort(s.globals)
	return nil
}

// Name implements the library contract, see [Name].
func (s *Sketch) Name() string { return Name }

// Object returns the library object.
func (s *Sketch) Object() *goja.Object { return s.object }

// Globals returns the member names scripts may refer to.
func (s *Sketch) Globals() []string { return slices.Clone(s.globals) }

// Snapshotter returns the style tracker.
func (s *Sketch) Snapshotter() *visualstate.Snapshotter { return s.snap }

// Frame returns a copy of the display list.
func (s *Sketch) Frame() []Op { return slices.Clone(s.ops) }

// FrameCount returns the number of frames drawn by the frame loop.
func (s *Sketch) FrameCount() int { return s.frames }

// IsStroked reports whether outlines are currently drawn.
func (s *Sketch) IsStroked() bool { return s.stroked }

// Handler returns the value assigned to an event handler slot, nil if name
// is not a slot.
func (s *Sketch) Handler(name string) goja.Value {
	if h := s.handlers[name]; h != nil {
		return h.value
	}
	return nil
}

// Suppressed returns the number of exceptions thrown by the named handler
// that were not reported, due to rate limiting.
func (s *Sketch) Suppressed(name string) int { return s.suppressed[name] }

// BeforeMain prepares for a run: random is reseeded, the canvas is cleared
// unless something is animating it, every handler is reset, and every
// tracked style is reset to its default.
func (s *Sketch) BeforeMain() {
	s.rng = rand.New(rand.NewPCG(s.cfg.seed, s.cfg.seed))
	if s.handlers[`draw`].fn == nil {
		s.ops = s.ops[:0]
	}
	for _, h := range s.handlers {
		h.value, h.fn = s.dummy, nil
	}
	s.snap.BeforeMain()
}

// Begin captures the state a run may change: the handler slots, the style
// state, the display list and the random source.
func (s *Sketch) Begin() {
	saved := &savedState{
		handlers: make(map[string]handler, len(s.handlers)),
		style:    s.snap.Save(),
		ops:      slices.Clone(s.ops),
		rng:      s.rng,
		stroked:  s.stroked,
		filled:   s.filled,
	}
	for name, h := range s.handlers {
		saved.handlers[name] = *h
	}
	s.saved = saved
}

// End finishes the run started by Begin. If commit is false, the sketch is
// put back the way Begin found it, so a failed run leaves the running
// sketch untouched.
func (s *Sketch) End(commit bool) {
	saved := s.saved
	s.saved = nil
	if saved == nil || commit {
		return
	}
	s.snap.Restore(saved.style)
	s.stroked, s.filled = saved.stroked, saved.filled
	for name, h := range saved.handlers {
		*s.handlers[name] = h
	}
	s.ops = saved.ops
	s.rng = saved.rng
	s.logger.Debug().
		Int(`ops`, len(s.ops)).
		Log(`sketch restored after failed run`)
}

// AfterMain merges the run's style changes, see visualstate.
func (s *Sketch) AfterMain() { s.snap.AfterMain() }

// ApplyProperty implements visualstate.Applier.
func (s *Sketch) ApplyProperty(name string, args visualstate.Args) { s.style(name, args) }

// ApplyToggle implements visualstate.Applier.
func (s *Sketch) ApplyToggle(name string, on bool) {
	if name == Stroked {
		s.stroked = on
	}
}

// Dispatch updates the input state for ev and fires its handler.
func (s *Sketch) Dispatch(ev Event) error {
	if _, ok := s.handlers[ev.Type]; !ok {
		return fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}
	switch {
	case strings.HasPrefix(ev.Type, `mouse`):
		s.set(`pmouseX`, s.mouseX)
		s.set(`pmouseY`, s.mouseY)
		s.mouseX, s.mouseY = ev.X, ev.Y
		s.set(`mouseX`, ev.X)
		s.set(`mouseY`, ev.Y)
		switch ev.Type {
		case `mousePressed`:
			s.set(`mouseIsPressed`, true)
		case `mouseReleased`:
			s.set(`mouseIsPressed`, false)
		}
	case strings.HasPrefix(ev.Type, `key`):
		s.set(`key`, ev.Key)
		s.set(`keyCode`, ev.KeyCode)
		switch ev.Type {
		case `keyPressed`:
			s.set(`keyIsPressed`, true)
		case `keyReleased`:
			s.set(`keyIsPressed`, false)
		}
	}
	s.fire(ev.Type)
	return nil
}

// Start runs draw at the current frame rate, using the event loop
// configured with WithJS. It is a no-op if already started.
func (s *Sketch) Start() error {
	if s.cfg.js == nil {
		return errNoLoop
	}
	if s.looping {
		return nil
	}
	delay := max(1, int(1000/s.rate))
	id, err := s.cfg.js.SetInterval(s.tick, delay)
	if err != nil {
		return err
	}
	s.interval, s.looping = id, true
	return nil
}

// Stop stops the frame loop.
func (s *Sketch) Stop() {
	if !s.looping {
		return
	}
	_ = s.cfg.js.ClearInterval(s.interval)
	s.looping = false
}

func (s *Sketch) tick() {
	s.frames++
	s.set(`frameCount`, s.frames)
	s.fire(`draw`)
}

// fire calls the named handler with the library object as this.
func (s *Sketch) fire(name string) {
	h := s.handlers[name]
	if h == nil || h.fn == nil {
		return
	}
	_, err := h.fn(s.object)
	s.vm.ClearInterrupt()
	if err != nil {
		s.report(name, err)
	}
}

func (s *Sketch) report(name string, err error) {
	if _, ok := s.limiter.Allow(name); !ok {
		s.suppressed[name]++
		return
	}
	s.logger.Warning().
		Str(`handler`, name).
		Int(`suppressed`, s.suppressed[name]).
		Err(err).
		Log(`event handler threw`)
	s.suppressed[name] = 0
	if s.cfg.onError != nil {
		s.cfg.onError(name, err)
	}
}

func (s *Sketch) set(name string, value any) { _ = s.object.Set(name, value) }

func (s *Sketch) push(op Op) {
	if len(s.ops) >= s.cfg.maxOps {
		n := copy(s.ops, s.ops[1:])
		s.ops = s.ops[:n]
	}
	s.ops = append(s.ops, op)
}

func (s *Sketch) primitive(name string, shape bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		op := Op{Name: name, Args: exportArgs(call.Arguments)}
		if shape {
			if s.filled {
				op.Fill = s.snap.Property(`fill`)
			}
			if s.stroked {
				op.Stroke = s.snap.Property(`stroke`)
			}
			if weight := s.snap.Property(`strokeWeight`); len(weight) != 0 {
				op.StrokeWeight, _ = weight[0].(float64)
			}
		}
		s.push(op)
		return goja.Undefined()
	}
}

func (s *Sketch) setter(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if name == `frameRate` && len(call.Arguments) == 0 {
			return s.vm.ToValue(s.rate)
		}
		s.style(name, exportArgs(call.Arguments))
		if name == `stroke` {
			s.snap.Toggle(Stroked, true)
		}
		return goja.Undefined()
	}
}

// style applies a tracked setter.
func (s *Sketch) style(name string, args visualstate.Args) {
	switch name {
	case `fill`:
		s.filled = true
	case `stroke`:
		s.stroked = true
	case `frameRate`:
		s.frameRate(args)
	}
	s.snap.Record(name, args)
}

// frameRate restarts the frame loop if the rate changed.
func (s *Sketch) frameRate(args visualstate.Args) {
	if len(args) == 0 {
		return
	}
	rate, ok := args[0].(float64)
	if !ok || !(rate > 0) || rate == s.rate {
		return
	}
	s.rate = rate
	if s.looping {
		s.Stop()
		if err := s.Start(); err != nil {
			s.logger.Err().
				Err(err).
				Log(`failed to restart frame loop`)
		}
	}
}

func (s *Sketch) random(call goja.FunctionCall) goja.Value {
	lo, hi := 0.0, 1.0
	switch len(call.Arguments) {
	case 0:
	case 1:
		hi = call.Argument(0).ToFloat()
	default:
		lo, hi = call.Argument(0).ToFloat(), call.Argument(1).ToFloat()
	}
	return s.vm.ToValue(lo + s.rng.Float64()*(hi-lo))
}

// exportArgs converts script arguments, with every number as float64 so
// that equal calls compare equal.
func exportArgs(args []goja.Value) visualstate.Args {
	if len(args) == 0 {
		return nil
	}
	out := make(visualstate.Args, len(args))
	for i, arg := range args {
		switch v := arg.Export().(type) {
		case int64:
			out[i] = float64(v)
		case float64, string, bool, nil:
			out[i] = v
		default:
			out[i] = arg.String()
		}
	}
	return out
}

func reduce(v []float64, fn func(a, b float64) float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	out := v[0]
	for _, x := range v[1:] {
		out = fn(out, x)
	}
	return out
}
