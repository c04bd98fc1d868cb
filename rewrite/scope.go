package rewrite

import (
	"github.com/dop251/goja/ast"
)

// scope is one level of the lexical scope stack.
type scope map[string]struct{}

func (s scope) add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

func (s scope) has(name string) bool {
	_, ok := s[name]
	return ok
}

// bindingNames appends every identifier bound by target, which may be a
// pattern.
func bindingNames(target ast.Expression, out []string) []string {
	switch t := target.(type) {
	case *ast.Identifier:
		out = append(out, t.Name.String())
	case *ast.Binding:
		out = bindingNames(t.Target, out)
	case *ast.AssignExpression:
		out = bindingNames(t.Left, out)
	case *ast.ArrayPattern:
		for _, elem := range t.Elements {
			out = bindingNames(elem, out)
		}
		out = bindingNames(t.Rest, out)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch prop := prop.(type) {
			case *ast.PropertyShort:
				out = append(out, prop.Name.Name.String())
			case *ast.PropertyKeyed:
				out = bindingNames(prop.Value, out)
			}
		}
		out = bindingNames(t.Rest, out)
	}
	return out
}

func bindingListNames(list []*ast.Binding, out []string) []string {
	for _, b := range list {
		out = bindingNames(b.Target, out)
	}
	return out
}

func parameterNames(params *ast.ParameterList) []string {
	if params == nil {
		return nil
	}
	out := bindingListNames(params.List, nil)
	return bindingNames(params.Rest, out)
}

// declCollector gathers declared names from a statement tree, without
// descending into functions or classes.
type declCollector struct {
	names []string
	// lexical includes let, const and class declarations at any depth, which
	// is how the top level is treated.
	lexical bool
}

func (c *declCollector) statements(list []ast.Statement) {
	for _, stmt := range list {
		c.statement(stmt)
	}
}

func (c *declCollector) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VariableStatement:
		c.names = bindingListNames(s.List, c.names)
	case *ast.LexicalDeclaration:
		if c.lexical {
			c.names = bindingListNames(s.List, c.names)
		}
	case *ast.FunctionDeclaration:
		if s.Function.Name != nil {
			c.names = append(c.names, s.Function.Name.Name.String())
		}
	case *ast.ClassDeclaration:
		if c.lexical && s.Class.Name != nil {
			c.names = append(c.names, s.Class.Name.Name.String())
		}
	case *ast.BlockStatement:
		c.statements(s.List)
	case *ast.IfStatement:
		c.statement(s.Consequent)
		if s.Alternate != nil {
			c.statement(s.Alternate)
		}
	case *ast.ForStatement:
		switch init := s.Initializer.(type) {
		case *ast.ForLoopInitializerVarDeclList:
			c.names = bindingListNames(init.List, c.names)
		case *ast.ForLoopInitializerLexicalDecl:
			if c.lexical {
				c.names = bindingListNames(init.LexicalDeclaration.List, c.names)
			}
		}
		c.statement(s.Body)
	case *ast.ForInStatement:
		c.forInto(s.Into)
		c.statement(s.Body)
	case *ast.ForOfStatement:
		c.forInto(s.Into)
		c.statement(s.Body)
	case *ast.WhileStatement:
		c.statement(s.Body)
	case *ast.DoWhileStatement:
		c.statement(s.Body)
	case *ast.LabelledStatement:
		c.statement(s.Statement)
	case *ast.WithStatement:
		c.statement(s.Body)
	case *ast.SwitchStatement:
		for _, clause := range s.Body {
			c.statements(clause.Consequent)
		}
	case *ast.TryStatement:
		c.statement(s.Body)
		if s.Catch != nil {
			c.statement(s.Catch.Body)
		}
		if s.Finally != nil {
			c.statement(s.Finally)
		}
	}
}

func (c *declCollector) forInto(into ast.ForInto) {
	switch into := into.(type) {
	case *ast.ForIntoVar:
		c.names = bindingNames(into.Binding.Target, c.names)
	case *ast.ForDeclaration:
		if c.lexical {
			c.names = bindingNames(into.Target, c.names)
		}
	}
}

// lexicalNames returns the names declared by let, const, class and function
// declarations directly in list.
func lexicalNames(list []ast.Statement) []string {
	var out []string
	for _, stmt := range list {
		switch s := stmt.(type) {
		case *ast.LexicalDeclaration:
			out = bindingListNames(s.List, out)
		case *ast.ClassDeclaration:
			if s.Class.Name != nil {
				out = append(out, s.Class.Name.Name.String())
			}
		case *ast.FunctionDeclaration:
			if s.Function.Name != nil {
				out = append(out, s.Function.Name.Name.String())
			}
		}
	}
	return out
}

// globalNames returns every name declared outside of any function.
func globalNames(program *ast.Program) []string {
	c := declCollector{lexical: true}
	c.statements(program.Body)
	return c.names
}

// functionScope builds the scope of a function body: its parameters, its
// var-hoisted names, and the lexical names of its top-level statement list.
func functionScope(params *ast.ParameterList, body []ast.Statement) scope {
	s := make(scope)
	s.add(parameterNames(params)...)
	c := declCollector{}
	c.statements(body)
	s.add(c.names...)
	s.add(lexicalNames(body)...)
	return s
}
