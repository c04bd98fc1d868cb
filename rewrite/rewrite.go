package rewrite

import (
	"slices"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Result is the output of [Rewrite].
type Result struct {
	// Source is the rewritten program. It must be compiled as the body of a
	// function taking [Names.Params], which declares [Names.Temp].
	Source string
	// Original is the input source. Function source offsets index into it.
	Original string
	// Globals is the Global Name Set: the names declared outside of any
	// function, excluding host library members. Sorted.
	Globals []string
	// EntryPoints are the entry points the script defines at the top level.
	// Sorted.
	EntryPoints []string
	// Implied are the undeclared names the script assigns to, which were
	// routed to the custom window. Sorted.
	Implied []string
	// Unresolved are the references to names that nothing declares, in
	// source order. Evaluating one throws a ReferenceError.
	Unresolved []Reference
	Names      Names
}

// Reference locates an identifier in the original source. Line and Column
// are 1-based.
type Reference struct {
	Name   string
	Offset int
	Line   int
	Column int
}

// Text returns Original[start:end], clamped to the bounds of the source, or
// the empty string for an invalid range.
func (x *Result) Text(start, end int) string {
	start = max(start, 0)
	end = min(end, len(x.Original))
	if start >= end {
		return ``
	}
	return x.Original[start:end]
}

// Rewrite parses source and applies the scope rewrite. A syntax error is
// returned as a [*ParseError].
func Rewrite(source string, opts ...Option) (*Result, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	program, err := parser.ParseFile(nil, ``, source, 0)
	if err != nil {
		return nil, newParseError(err)
	}

	globals := make(scope)
	for _, name := range globalNames(program) {
		if !cfg.resolver.LibraryMember(name) {
			globals.add(name)
		}
	}

	implied := make(map[string]struct{})
	var r *renderer
	// an assignment to an undeclared name turns that name into a window
	// member, which affects references rendered before the assignment
	for range 2 {
		r = newRenderer(cfg, source, program.File.Base(), globals, implied)
		r.program(program)
		if len(r.assigned) == 0 {
			break
		}
		for name := range r.assigned {
			implied[name] = struct{}{}
		}
	}

	slices.SortStableFunc(r.free, func(a, b Reference) int { return a.Offset - b.Offset })
	for i := range r.free {
		pos := program.File.Position(r.free[i].Offset)
		r.free[i].Line, r.free[i].Column = pos.Line, pos.Column
	}

	result := &Result{
		Source:      applyEdits(source, r.edits),
		Original:    source,
		Globals:     sortedKeys(globals),
		EntryPoints: sortedKeys(r.entries),
		Implied:     sortedKeys(implied),
		Unresolved:  r.free,
		Names:       cfg.names,
	}
	return result, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

type frameKind int

const (
	frameTop frameKind = iota
	frameFunction
	frameMethod
)

// frame tracks the receiver of the innermost non-arrow function.
type frame struct {
	kind     frameKind
	usesThis bool
}

// declMode is the syntactic position of a top-level declaration.
type declMode int

const (
	// declList is a statement directly in a statement list.
	declList declMode = iota
	// declSingle is a statement in a single statement position, e.g. the body
	// of an if.
	declSingle
	// declForHead is the initializer of a for statement.
	declForHead
)

type renderer struct {
	cfg      *rewriteOptions
	implied  map[string]struct{}
	assigned map[string]struct{}
	entries  map[string]struct{}
	free     []Reference
	src      string
	edits    []edit
	scopes   []scope
	frames   []*frame
	names    Names
	base     int
	// fnDepth counts the function-like nodes enclosing the current node.
	fnDepth int
}

func newRenderer(cfg *rewriteOptions, src string, base int, globals scope, implied map[string]struct{}) *renderer {
	return &renderer{
		cfg:      cfg,
		names:    cfg.names,
		src:      src,
		base:     base,
		implied:  implied,
		assigned: make(map[string]struct{}),
		entries:  make(map[string]struct{}),
		scopes:   []scope{globals},
		frames:   []*frame{{kind: frameTop}},
	}
}

// pos converts a parser index to a byte offset into the source.
func (r *renderer) pos(idx int) int { return idx - r.base }

func (r *renderer) start(n ast.Node) int { return r.pos(int(n.Idx0())) }

func (r *renderer) end(n ast.Node) int { return r.pos(int(n.Idx1())) }

func (r *renderer) replace(from, to int, text string) {
	r.edits = append(r.edits, edit{from: from, to: to, text: text})
}

// insert records an insertion, returning its index so the text may be filled
// in later.
func (r *renderer) insert(at int, text string) int {
	r.edits = append(r.edits, edit{from: at, to: at, text: text})
	return len(r.edits) - 1
}

func (r *renderer) pushScope(s scope) {
	r.scopes = append(r.scopes, s)
}

func (r *renderer) popScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *renderer) frame() *frame {
	return r.frames[len(r.frames)-1]
}

func (r *renderer) isEntryPoint(name string) bool {
	_, ok := r.cfg.entryPoints[name]
	return ok
}

func (r *renderer) watchdogCall(entry bool) string {
	if entry {
		return r.names.Watchdog + `.reset();`
	}
	return r.names.Watchdog + `.check();`
}

// sourceSuffix completes the three-part wrapper that overrides a function's
// string conversion to return its authored source.
func (r *renderer) sourceSuffix(start, end int) string {
	return `, ` + r.names.Temp + `.toString = function () { return ` + r.names.Source + `(` +
		strconv.Itoa(start) + `, ` + strconv.Itoa(end) + `); }, ` + r.names.Temp + `)`
}

func (r *renderer) wrapPrefix() string {
	return `(` + r.names.Temp + ` = `
}

// topLevelName is the assignment target for a top-level declaration.
func (r *renderer) topLevelName(name string) string {
	if r.cfg.resolver.LibraryMember(name) {
		return r.names.Library + `.` + name
	}
	return r.names.Env + `.` + name
}

func (r *renderer) isInjected(name string) bool {
	switch name {
	case r.names.Env, r.names.Window, r.names.Library, r.names.Source, r.names.Watchdog, r.names.Temp, r.names.This:
		return true
	}
	return false
}

// resolve applies the identifier reference rule, returning the replacement
// text for a reference to name, if it is to be rewritten. Targets of
// assignments that resolve nowhere are routed to the custom window.
func (r *renderer) resolve(name string, target bool) (string, bool) {
	switch name {
	case `arguments`, `undefined`, `Infinity`, `NaN`:
		return ``, false
	}
	if r.isInjected(name) {
		return ``, false
	}
	for i := len(r.scopes) - 1; i > 0; i-- {
		if r.scopes[i].has(name) {
			return ``, false
		}
	}
	if r.scopes[0].has(name) {
		return r.names.Env + `.` + name, true
	}
	switch name {
	case `window`, `globalThis`, `self`:
		return r.names.Window, true
	}
	if r.cfg.resolver.LibraryMember(name) {
		return r.names.Library + `.` + name, true
	}
	if _, ok := r.implied[name]; ok || r.cfg.resolver.WindowMember(name) {
		return r.names.Window + `.` + name, true
	}
	if target {
		r.assigned[name] = struct{}{}
		return r.names.Window + `.` + name, true
	}
	return ``, false
}

// unresolved reports whether a name that resolve left untouched is bound by
// nothing at all.
func (r *renderer) unresolved(name string) bool {
	switch name {
	case `arguments`, `undefined`, `Infinity`, `NaN`:
		return false
	}
	if r.isInjected(name) {
		return false
	}
	for _, s := range r.scopes {
		if s.has(name) {
			return false
		}
	}
	return true
}

func (r *renderer) reference(id *ast.Identifier, target bool) {
	name := id.Name.String()
	from := r.start(id)
	if text, ok := r.resolve(name, target); ok {
		r.replace(from, identifierEnd(r.src, from), text)
	} else if r.unresolved(name) {
		r.free = append(r.free, Reference{Name: name, Offset: from})
	}
}

func (r *renderer) program(program *ast.Program) {
	slot, hoisted := r.statementList(program.Body, 0)
	r.edits[slot].text = r.watchdogCall(true) + hoisted
}

// statementList renders list, reserving an insertion at the given offset (the
// start of the list) for injected statements. Function declarations stay in
// place, and the statements publishing them are returned, to be inserted at
// the start of the list, where the declarations are already hoisted.
func (r *renderer) statementList(list []ast.Statement, at int) (slot int, hoisted string) {
	slot = r.insert(at, ``)
	var b strings.Builder
	for _, stmt := range list {
		if decl, ok := stmt.(*ast.FunctionDeclaration); ok {
			b.WriteString(r.functionDeclaration(decl))
			continue
		}
		r.statement(stmt, declList)
	}
	return slot, b.String()
}

// block renders a block statement, with its own scope for lexical
// declarations within functions, returning the reserved insertion.
func (r *renderer) block(b *ast.BlockStatement) (slot int, hoisted string) {
	if r.fnDepth > 0 {
		s := make(scope)
		s.add(lexicalNames(b.List)...)
		r.pushScope(s)
		defer r.popScope()
	}
	return r.statementList(b.List, r.pos(int(b.LeftBrace))+1)
}

func (r *renderer) statement(stmt ast.Statement, mode declMode) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		r.expr(s.Expression)

	case *ast.VariableStatement:
		r.declaration(r.pos(int(s.Var)), s.List, mode)

	case *ast.LexicalDeclaration:
		r.declaration(r.pos(int(s.Idx)), s.List, mode)

	case *ast.FunctionDeclaration:
		// not in a statement list, e.g. labelled, so there is nowhere to
		// publish it
		r.functionBody(s.Function, false, frameFunction, false)

	case *ast.ClassDeclaration:
		r.classDeclaration(s.Class)

	case *ast.BlockStatement:
		slot, hoisted := r.block(s)
		r.edits[slot].text = hoisted

	case *ast.IfStatement:
		r.expr(s.Test)
		r.statement(s.Consequent, declSingle)
		if s.Alternate != nil {
			r.statement(s.Alternate, declSingle)
		}

	case *ast.ForStatement:
		if r.fnDepth > 0 {
			if init, ok := s.Initializer.(*ast.ForLoopInitializerLexicalDecl); ok {
				s := make(scope)
				s.add(bindingListNames(init.LexicalDeclaration.List, nil)...)
				r.pushScope(s)
				defer r.popScope()
			}
		}
		switch init := s.Initializer.(type) {
		case *ast.ForLoopInitializerExpression:
			r.expr(init.Expression)
		case *ast.ForLoopInitializerVarDeclList:
			// the parser leaves Var unset
			if len(init.List) != 0 {
				r.declaration(keywordBefore(r.src, r.start(init.List[0]), `var`), init.List, declForHead)
			}
		case *ast.ForLoopInitializerLexicalDecl:
			r.declaration(r.pos(int(init.LexicalDeclaration.Idx)), init.LexicalDeclaration.List, declForHead)
		}
		r.expr(s.Test)
		r.expr(s.Update)
		r.loopBody(s.Body)

	case *ast.ForInStatement:
		defer r.forInto(s.Into)()
		r.expr(s.Source)
		r.loopBody(s.Body)

	case *ast.ForOfStatement:
		defer r.forInto(s.Into)()
		r.expr(s.Source)
		r.loopBody(s.Body)

	case *ast.WhileStatement:
		r.expr(s.Test)
		r.loopBody(s.Body)

	case *ast.DoWhileStatement:
		r.loopBody(s.Body)
		r.expr(s.Test)

	case *ast.ReturnStatement:
		r.expr(s.Argument)

	case *ast.ThrowStatement:
		r.expr(s.Argument)

	case *ast.SwitchStatement:
		r.expr(s.Discriminant)
		if r.fnDepth > 0 {
			sc := make(scope)
			for _, clause := range s.Body {
				sc.add(lexicalNames(clause.Consequent)...)
			}
			r.pushScope(sc)
			defer r.popScope()
		}
		for _, clause := range s.Body {
			r.expr(clause.Test)
			if len(clause.Consequent) != 0 {
				slot, hoisted := r.statementList(clause.Consequent, r.openingStart(r.start(clause.Consequent[0])))
				r.edits[slot].text = hoisted
			}
		}

	case *ast.TryStatement:
		r.statement(s.Body, declSingle)
		if s.Catch != nil {
			sc := make(scope)
			sc.add(bindingNames(s.Catch.Parameter, nil)...)
			r.pushScope(sc)
			r.bindingTarget(s.Catch.Parameter)
			r.statement(s.Catch.Body, declSingle)
			r.popScope()
		}
		if s.Finally != nil {
			r.statement(s.Finally, declSingle)
		}

	case *ast.LabelledStatement:
		r.statement(s.Statement, declSingle)

	case *ast.WithStatement:
		r.expr(s.Object)
		r.statement(s.Body, declSingle)
	}
}

// forInto renders the head of a for-in or for-of statement, returning a
// function restoring the scope.
func (r *renderer) forInto(into ast.ForInto) func() {
	switch into := into.(type) {
	case *ast.ForIntoExpression:
		r.assignTarget(into.Expression)

	case *ast.ForIntoVar:
		if r.fnDepth > 0 {
			r.bindingTarget(into.Binding.Target)
			r.expr(into.Binding.Initializer)
			break
		}
		target := r.start(into.Binding.Target)
		if kw := keywordBefore(r.src, target, `var`); kw >= 0 {
			r.replace(kw, target, ``)
		}
		r.declTarget(into.Binding.Target, false)
		r.expr(into.Binding.Initializer)

	case *ast.ForDeclaration:
		if r.fnDepth > 0 {
			s := make(scope)
			s.add(bindingNames(into.Target, nil)...)
			r.pushScope(s)
			r.bindingTarget(into.Target)
			return r.popScope
		}
		r.replace(r.pos(int(into.Idx)), r.start(into.Target), ``)
		r.declTarget(into.Target, false)
	}
	return func() {}
}

// keywordBefore returns the offset of kw, if it immediately precedes pos,
// ignoring whitespace, or -1.
func keywordBefore(src string, pos int, kw string) int {
	i := pos
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	if i >= len(kw) && src[i-len(kw):i] == kw {
		return i - len(kw)
	}
	return -1
}

// loopBody renders the body of a loop, prepending a watchdog check. A body
// that is not a block is wrapped in one.
func (r *renderer) loopBody(body ast.Statement) {
	if b, ok := body.(*ast.BlockStatement); ok {
		slot, hoisted := r.block(b)
		r.edits[slot].text = r.watchdogCall(false) + hoisted
		return
	}
	r.insert(r.openingStart(r.start(body)), `{ `+r.watchdogCall(false)+` `)
	r.statement(body, declSingle)
	r.insert(r.statementEnd(body), ` }`)
}

// openingStart returns the start of the node at pos, including any
// parentheses opening it, which the parser leaves out of node ranges.
func (r *renderer) openingStart(pos int) int {
	i := pos
	for i > 0 && (isSpace(r.src[i-1]) || r.src[i-1] == '(') {
		i--
	}
	for i < len(r.src) && isSpace(r.src[i]) {
		i++
	}
	return i
}

// statementEnd returns the end of stmt, including any closing parentheses
// and the terminating semicolon, which the parser leaves out of node ranges.
// A statement is never followed by a parenthesis that is not its own.
func (r *renderer) statementEnd(stmt ast.Statement) int {
	end := r.end(stmt)
	for {
		next := skipTrivia(r.src, end)
		if next >= len(r.src) {
			return end
		}
		switch r.src[next] {
		case ')':
			end = next + 1
		case ';':
			return next + 1
		default:
			return end
		}
	}
}

func (r *renderer) followedBySemicolon(pos int) bool {
	next := skipTrivia(r.src, pos)
	return next < len(r.src) && r.src[next] == ';'
}

// commaBefore returns the offset of the comma separating the binding starting
// at pos from the previous one.
func (r *renderer) commaBefore(pos int) int {
	i := pos
	for i > 0 && isSpace(r.src[i-1]) {
		i--
	}
	if i > 0 && r.src[i-1] == ',' {
		return i - 1
	}
	return strings.LastIndexByte(r.src[:pos], ',')
}

// declaration renders a var, let or const declaration starting at kw.
func (r *renderer) declaration(kw int, list []*ast.Binding, mode declMode) {
	if len(list) == 0 {
		return
	}

	if r.fnDepth > 0 {
		for _, b := range list {
			r.bindingTarget(b.Target)
			r.initializer(b, false)
		}
		return
	}

	first := -1
	for i, b := range list {
		if b.Initializer != nil {
			first = i
			break
		}
	}

	if first < 0 {
		end := r.end(list[len(list)-1])
		text := ``
		if mode != declForHead && !r.followedBySemicolon(end) {
			text = `;`
		}
		r.replace(kw, end, text)
		return
	}

	r.replace(kw, r.start(list[first]), ``)
	for i := first; i < len(list); i++ {
		b := list[i]
		if b.Initializer == nil {
			r.replace(r.commaBefore(r.start(b)), r.end(b), ``)
			continue
		}
		if i > first && mode == declList {
			c := r.commaBefore(r.start(b))
			r.replace(c, c+1, `;`)
		}
		r.declTarget(b.Target, true)
		r.initializer(b, true)
	}
}

// initializer renders the initializer of a declarator, detecting entry points
// when declared at the top level.
func (r *renderer) initializer(b *ast.Binding, topLevel bool) {
	if b.Initializer == nil {
		return
	}
	entry := false
	if id, ok := b.Target.(*ast.Identifier); ok && topLevel {
		entry = r.isEntryPoint(id.Name.String())
		if entry && isFunction(b.Initializer) {
			r.entries[id.Name.String()] = struct{}{}
		}
	}
	r.exprEntry(b.Initializer, entry)
}

// declTarget rewrites a top-level declarator target into an assignment
// target. A pattern is prefixed so that the statement does not start with a
// brace.
func (r *renderer) declTarget(target ast.Expression, prefix bool) {
	switch t := target.(type) {
	case *ast.Identifier:
		from := r.start(t)
		r.replace(from, identifierEnd(r.src, from), r.topLevelName(t.Name.String()))
	case *ast.ObjectPattern, *ast.ArrayPattern:
		if prefix {
			r.insert(r.start(t), `0, `)
		}
		r.envPattern(t)
	}
}

// envPattern rewrites the names bound by a top-level pattern.
func (r *renderer) envPattern(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		from := r.start(t)
		r.replace(from, identifierEnd(r.src, from), r.topLevelName(t.Name.String()))
	case *ast.AssignExpression:
		r.envPattern(t.Left)
		r.expr(t.Right)
	case *ast.Binding:
		r.envPattern(t.Target)
		r.expr(t.Initializer)
	case *ast.ArrayPattern:
		for _, elem := range t.Elements {
			r.envPattern(elem)
		}
		r.envPattern(t.Rest)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch prop := prop.(type) {
			case *ast.PropertyShort:
				name := prop.Name.Name.String()
				from := r.start(&prop.Name)
				r.replace(from, identifierEnd(r.src, from), name+`: `+r.topLevelName(name))
				r.expr(prop.Initializer)
			case *ast.PropertyKeyed:
				if prop.Computed {
					r.expr(prop.Key)
				}
				r.envPattern(prop.Value)
			}
		}
		r.envPattern(t.Rest)
	}
}

// bindingTarget renders the parts of a local binding that are expressions:
// defaults and computed keys.
func (r *renderer) bindingTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.AssignExpression:
		r.bindingTarget(t.Left)
		r.expr(t.Right)
	case *ast.Binding:
		r.bindingTarget(t.Target)
		r.expr(t.Initializer)
	case *ast.ArrayPattern:
		for _, elem := range t.Elements {
			r.bindingTarget(elem)
		}
		r.bindingTarget(t.Rest)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch prop := prop.(type) {
			case *ast.PropertyShort:
				r.expr(prop.Initializer)
			case *ast.PropertyKeyed:
				if prop.Computed {
					r.expr(prop.Key)
				}
				r.bindingTarget(prop.Value)
			}
		}
		r.bindingTarget(t.Rest)
	}
}

func (r *renderer) parameters(params *ast.ParameterList) {
	if params == nil {
		return
	}
	for _, b := range params.List {
		r.bindingTarget(b.Target)
		r.expr(b.Initializer)
	}
	r.bindingTarget(params.Rest)
}

func isFunction(e ast.Expression) bool {
	switch e.(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
		return true
	}
	return false
}
