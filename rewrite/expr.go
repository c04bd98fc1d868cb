package rewrite

import (
	"strconv"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

func (r *renderer) expr(e ast.Expression) {
	r.exprEntry(e, false)
}

// exprEntry renders e. If entry is set and e is a function, it is an entry
// point, and resets the watchdog when called.
func (r *renderer) exprEntry(e ast.Expression, entry bool) {
	switch e := e.(type) {
	case nil:

	case *ast.Identifier:
		r.reference(e, false)

	case *ast.ThisExpression:
		r.this(e)

	case *ast.AssignExpression:
		entry := false
		if id, ok := e.Left.(*ast.Identifier); ok && e.Operator == token.ASSIGN && isFunction(e.Right) {
			name := id.Name.String()
			if r.isEntryPoint(name) && !r.boundLocally(name) {
				entry = true
				if r.fnDepth == 0 {
					r.entries[name] = struct{}{}
				}
			}
		}
		r.assignTarget(e.Left)
		r.exprEntry(e.Right, entry)

	case *ast.UnaryExpression:
		if e.Operator == token.INCREMENT || e.Operator == token.DECREMENT {
			r.assignTarget(e.Operand)
		} else {
			r.expr(e.Operand)
		}

	case *ast.BinaryExpression:
		r.expr(e.Left)
		r.expr(e.Right)

	case *ast.ConditionalExpression:
		r.expr(e.Test)
		r.expr(e.Consequent)
		r.expr(e.Alternate)

	case *ast.SequenceExpression:
		for _, v := range e.Sequence {
			r.expr(v)
		}

	case *ast.CallExpression:
		r.expr(e.Callee)
		for _, v := range e.ArgumentList {
			r.expr(v)
		}

	case *ast.NewExpression:
		r.expr(e.Callee)
		for _, v := range e.ArgumentList {
			r.expr(v)
		}

	case *ast.DotExpression:
		r.expr(e.Left)

	case *ast.PrivateDotExpression:
		r.expr(e.Left)

	case *ast.BracketExpression:
		r.expr(e.Left)
		r.expr(e.Member)

	case *ast.OptionalChain:
		r.expr(e.Expression)

	case *ast.Optional:
		r.expr(e.Expression)

	case *ast.SpreadElement:
		r.expr(e.Expression)

	case *ast.ArrayLiteral:
		for _, v := range e.Value {
			r.expr(v)
		}

	case *ast.ObjectLiteral:
		for _, prop := range e.Value {
			r.property(prop)
		}

	case *ast.ArrayPattern, *ast.ObjectPattern:
		r.assignPattern(e)

	case *ast.TemplateLiteral:
		r.expr(e.Tag)
		for _, v := range e.Expressions {
			r.expr(v)
		}

	case *ast.YieldExpression:
		r.expr(e.Argument)

	case *ast.AwaitExpression:
		r.expr(e.Argument)

	case *ast.FunctionLiteral:
		r.functionExpr(e, entry)

	case *ast.ArrowFunctionLiteral:
		r.arrow(e, entry)

	case *ast.ClassLiteral:
		r.classExpr(e)
	}
}

// boundLocally reports whether name is declared by an enclosing function or
// block.
func (r *renderer) boundLocally(name string) bool {
	for i := len(r.scopes) - 1; i > 0; i-- {
		if r.scopes[i].has(name) {
			return true
		}
	}
	return false
}

func (r *renderer) assignTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		r.reference(t, true)
	default:
		r.assignPattern(t)
	}
}

// assignPattern renders the target of a destructuring assignment.
func (r *renderer) assignPattern(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		r.reference(t, true)
	case *ast.AssignExpression:
		r.assignPattern(t.Left)
		r.expr(t.Right)
	case *ast.Binding:
		r.assignPattern(t.Target)
		r.expr(t.Initializer)
	case *ast.ArrayPattern:
		for _, elem := range t.Elements {
			r.assignPattern(elem)
		}
		r.assignPattern(t.Rest)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch prop := prop.(type) {
			case *ast.PropertyShort:
				r.shorthand(&prop.Name, true)
				r.expr(prop.Initializer)
			case *ast.PropertyKeyed:
				if prop.Computed {
					r.expr(prop.Key)
				}
				r.assignPattern(prop.Value)
			}
		}
		r.assignPattern(t.Rest)
	default:
		r.expr(t)
	}
}

// shorthand expands a shorthand property if its name is rewritten.
func (r *renderer) shorthand(id *ast.Identifier, target bool) {
	name := id.Name.String()
	from := r.start(id)
	if text, ok := r.resolve(name, target); ok {
		r.replace(from, identifierEnd(r.src, from), name+`: `+text)
	} else if r.unresolved(name) {
		r.free = append(r.free, Reference{Name: name, Offset: from})
	}
}

func (r *renderer) property(prop ast.Property) {
	switch p := prop.(type) {
	case *ast.PropertyShort:
		r.shorthand(&p.Name, false)
		r.expr(p.Initializer)
	case *ast.PropertyKeyed:
		if p.Computed {
			r.expr(p.Key)
		}
		if fn, ok := p.Value.(*ast.FunctionLiteral); ok && p.Kind != ast.PropertyKindValue {
			r.method(fn)
			return
		}
		r.expr(p.Value)
	case *ast.SpreadElement:
		r.expr(p.Expression)
	}
}

func (r *renderer) this(e *ast.ThisExpression) {
	from := r.start(e)
	switch f := r.frame(); f.kind {
	case frameTop:
		r.replace(from, from+4, r.names.Window)
	case frameFunction:
		f.usesThis = true
		r.replace(from, from+4, r.names.This)
	}
}

// thisPrologue normalizes the receiver of a function called without one, or
// called on the environment, to the custom window.
func (r *renderer) thisPrologue() string {
	return `var ` + r.names.This + ` = (this == null || this === globalThis || this === ` + r.names.Env + `) ? ` +
		r.names.Window + ` : this; `
}

// functionBody renders the parameters and body of fn, prepending the watchdog
// call.
func (r *renderer) functionBody(fn *ast.FunctionLiteral, entry bool, kind frameKind, named bool) {
	var body []ast.Statement
	if fn.Body != nil {
		body = fn.Body.List
	}
	s := functionScope(fn.ParameterList, body)
	if named && fn.Name != nil {
		s.add(fn.Name.Name.String())
	}
	r.pushScope(s)
	f := &frame{kind: kind}
	r.frames = append(r.frames, f)
	r.fnDepth++
	defer func() {
		r.fnDepth--
		r.frames = r.frames[:len(r.frames)-1]
		r.popScope()
	}()

	r.parameters(fn.ParameterList)
	if fn.Body == nil {
		return
	}
	slot, hoisted := r.statementList(body, r.pos(int(fn.Body.LeftBrace))+1)
	text := r.watchdogCall(entry) + hoisted
	if f.usesThis {
		text = r.thisPrologue() + text
	}
	r.edits[slot].text = text
}

// functionDeclaration renders a function declaration in a statement list,
// returning the statement publishing it.
func (r *renderer) functionDeclaration(decl *ast.FunctionDeclaration) string {
	fn := decl.Function
	if fn.Name == nil {
		r.functionBody(fn, false, frameFunction, false)
		return ``
	}
	name := fn.Name.Name.String()
	entry := r.fnDepth == 0 && r.isEntryPoint(name)
	if entry {
		r.entries[name] = struct{}{}
	}
	start, end := r.start(fn), r.end(fn)
	r.functionBody(fn, entry, frameFunction, false)
	if r.fnDepth == 0 {
		return r.topLevelName(name) + ` = ` + r.wrapPrefix() + name + r.sourceSuffix(start, end) + `;`
	}
	return name + `.toString = function () { return ` + r.names.Source + `(` + strconv.Itoa(start) + `, ` + strconv.Itoa(end) + `); };`
}

// functionExpr wraps a function expression so that its string conversion
// returns its authored source.
func (r *renderer) functionExpr(fn *ast.FunctionLiteral, entry bool) {
	start, end := r.start(fn), r.end(fn)
	r.insert(start, r.wrapPrefix())
	r.functionBody(fn, entry, frameFunction, true)
	r.insert(end, r.sourceSuffix(start, end))
}

// method renders an object or class method, which keeps its receiver.
func (r *renderer) method(fn *ast.FunctionLiteral) {
	r.functionBody(fn, false, frameMethod, false)
}

func (r *renderer) arrow(fn *ast.ArrowFunctionLiteral, entry bool) {
	start, end := r.start(fn), r.arrowEnd(fn)
	r.insert(start, r.wrapPrefix())

	var body []ast.Statement
	if b, ok := fn.Body.(*ast.BlockStatement); ok {
		body = b.List
	}
	r.pushScope(functionScope(fn.ParameterList, body))
	r.fnDepth++

	r.parameters(fn.ParameterList)
	switch b := fn.Body.(type) {
	case *ast.BlockStatement:
		slot, hoisted := r.statementList(b.List, r.pos(int(b.LeftBrace))+1)
		r.edits[slot].text = r.watchdogCall(entry) + hoisted
	case *ast.ExpressionBody:
		if entry {
			r.insert(r.openingStart(r.start(b.Expression)), `(`+r.names.Watchdog+`.reset(), `)
		}
		r.expr(b.Expression)
		if entry {
			r.insert(end, `)`)
		}
	}

	r.fnDepth--
	r.popScope()
	r.insert(end, r.sourceSuffix(start, end))
}

// arrowEnd returns the end of an arrow function. The range of an expression
// body excludes its closing parentheses, so candidate ends are tried until one
// parses.
func (r *renderer) arrowEnd(fn *ast.ArrowFunctionLiteral) int {
	start, end := r.start(fn), r.end(fn)
	if _, ok := fn.Body.(*ast.ExpressionBody); !ok {
		return end
	}
	for candidate := end; ; {
		next := skipTrivia(r.src, candidate)
		if next >= len(r.src) || r.src[next] != ')' {
			return candidate
		}
		if parses(`(` + r.src[start:candidate] + `)`) {
			return candidate
		}
		candidate = next + 1
	}
}

func parses(src string) bool {
	_, err := parser.ParseFile(nil, ``, src, 0)
	return err == nil
}

// classBody renders the heritage and elements of a class.
func (r *renderer) classBody(cls *ast.ClassLiteral) {
	r.expr(cls.SuperClass)
	for _, elem := range cls.Body {
		switch el := elem.(type) {
		case *ast.MethodDefinition:
			if el.Computed {
				r.expr(el.Key)
			}
			r.method(el.Body)
		case *ast.FieldDefinition:
			if el.Computed {
				r.expr(el.Key)
			}
			if el.Initializer != nil {
				r.memberScope(func() { r.expr(el.Initializer) })
			}
		case *ast.ClassStaticBlock:
			r.memberScope(func() {
				r.pushScope(functionScope(nil, el.Block.List))
				defer r.popScope()
				slot, hoisted := r.statementList(el.Block.List, r.pos(int(el.Block.LeftBrace))+1)
				r.edits[slot].text = hoisted
			})
		}
	}
}

// memberScope runs fn as code evaluated with the class or instance as its
// receiver.
func (r *renderer) memberScope(fn func()) {
	r.frames = append(r.frames, &frame{kind: frameMethod})
	r.fnDepth++
	defer func() {
		r.fnDepth--
		r.frames = r.frames[:len(r.frames)-1]
	}()
	fn()
}

// classDeclaration renders a class declaration. At the top level it is
// published to the environment after its definition.
func (r *renderer) classDeclaration(cls *ast.ClassLiteral) {
	r.classBody(cls)
	if r.fnDepth > 0 || cls.Name == nil {
		return
	}
	name := cls.Name.Name.String()
	start, end := r.start(cls), r.end(cls)
	r.insert(end, ` `+r.topLevelName(name)+` = `+r.wrapPrefix()+name+r.sourceSuffix(start, end)+`;`)
}

func (r *renderer) classExpr(cls *ast.ClassLiteral) {
	start, end := r.start(cls), r.end(cls)
	r.insert(start, r.wrapPrefix())
	if cls.Name != nil {
		s := make(scope)
		s.add(cls.Name.Name.String())
		r.pushScope(s)
		defer r.popScope()
	}
	r.classBody(cls)
	r.insert(end, r.sourceSuffix(start, end))
}
