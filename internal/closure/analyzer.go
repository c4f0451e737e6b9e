// Package closure computes, for every function and arrow node, the set of
// variables it references that are declared in a strictly enclosing
// function scope. Resolution walks an explicit chain of lexical scopes,
// the same walk upvalue resolution performs in a single-pass compiler, but
// runs as a standalone analysis pass so internal/emit can consult a
// finished CaptureMap instead of resolving captures lazily mid-emission.
package closure

import "github.com/sharpts/sharpts/internal/tast"

// builtins never count as captures, whatever scope mentions them.
var builtins = map[string]bool{
	"console": true, "Math": true, "Symbol": true,
	"undefined": true, "NaN": true, "Infinity": true,
}

// CaptureMap answers the ClosureAnalyzer's two queries.
type CaptureMap struct {
	capturesOf map[*tast.FunctionPlan][]*tast.VarDecl
	isCaptured map[*tast.VarDecl]bool
	usesThis   map[*tast.FunctionPlan]bool
	// order preserves first-seen order so DisplayClass field layout
	// (built by Synth in displayclass.go) is deterministic across runs.
	order map[*tast.FunctionPlan][]*tast.VarDecl
}

// CapturesOf returns the variables fn captures from an enclosing scope, in
// first-reference order.
func (m *CaptureMap) CapturesOf(fn *tast.FunctionPlan) []*tast.VarDecl {
	return m.capturesOf[fn]
}

// IsCaptured reports whether any inner function captures decl.
func (m *CaptureMap) IsCaptured(decl *tast.VarDecl) bool {
	return m.isCaptured[decl]
}

// UsesThis reports whether fn's body references `this` — directly, for an
// ordinary method, or lexically through an enclosing method for an arrow.
// Arrows never bind their own receiver, so the emitter needs this recorded
// separately from ordinary captures to know when to hoist `this`.
func (m *CaptureMap) UsesThis(fn *tast.FunctionPlan) bool {
	return m.usesThis[fn]
}

// scope is one lexical scope frame: a function's own locals, or a nested
// block/loop/catch scope within it.
type scope struct {
	fn     *tast.FunctionPlan // the enclosing function this scope belongs to
	locals map[string]*tast.VarDecl
	parent *scope
}

func (s *scope) declare(name string, decl *tast.VarDecl) {
	s.locals[name] = decl
}

// lookup walks from s outward (including past function boundaries) and
// returns the declaring scope and VarDecl, or (nil, nil).
func lookup(s *scope, name string) (*scope, *tast.VarDecl) {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.locals[name]; ok {
			return cur, d
		}
	}
	return nil, nil
}

type analyzer struct {
	m *CaptureMap
}

// Analyze walks every module's functions and classes and returns the
// completed CaptureMap. Functions are visited in any order: captures are a
// purely lexical, AST-local property, so no fixed point iteration is
// needed (unlike, say, type inference).
func Analyze(modules []*tast.Module) *CaptureMap {
	a := &analyzer{m: &CaptureMap{
		capturesOf: make(map[*tast.FunctionPlan][]*tast.VarDecl),
		isCaptured: make(map[*tast.VarDecl]bool),
		usesThis:   make(map[*tast.FunctionPlan]bool),
		order:      make(map[*tast.FunctionPlan][]*tast.VarDecl),
	}}
	for _, mod := range modules {
		root := &scope{locals: make(map[string]*tast.VarDecl)}
		// Module-scope bindings are visible to every function in the
		// module regardless of declaration order, so declare them all
		// before walking any function body.
		for _, st := range mod.Statements {
			switch n := st.(type) {
			case *tast.VarDecl:
				root.declare(n.Name, n)
			case *tast.ImportDecl:
				for _, spec := range n.Specifiers {
					if spec.Binding != nil {
						root.declare(spec.Binding.Name, spec.Binding)
					}
				}
			}
		}
		for _, fn := range mod.Functions {
			a.walkFunction(fn, root)
		}
		for _, cls := range mod.Classes {
			a.walkClass(cls, root)
		}
		a.walkStmts(mod.Statements, root)
	}
	return a.m
}

func (a *analyzer) walkClass(cls *tast.ClassPlan, outer *scope) {
	for _, f := range cls.Fields {
		if f.Init != nil {
			a.walkExpr(f.Init, outer, nil)
		}
	}
	for _, m := range cls.Methods {
		a.walkFunction(m, outer)
	}
	for _, m := range cls.StaticMethods {
		a.walkFunction(m, outer)
	}
	for _, acc := range cls.Accessors {
		a.walkFunction(acc.Getter, outer)
		if acc.Setter != nil {
			a.walkFunction(acc.Setter, outer)
		}
	}
}

// walkFunction pushes a new function scope whose outer set is the union of
// every enclosing scope. That snapshot is simply `outer` itself, since lookup already
// walks the whole parent chain.
func (a *analyzer) walkFunction(fn *tast.FunctionPlan, outer *scope) {
	if fn == nil {
		return
	}
	fnScope := &scope{fn: fn, locals: make(map[string]*tast.VarDecl), parent: outer}
	// Rest/default parameters are analyzed in the function's own scope.
	for _, p := range fn.Params {
		fnScope.declare(p.Name, p)
	}
	for i, def := range fn.Defaults {
		_ = i
		a.walkExpr(def, fnScope, fn)
	}
	a.walkStmts(fn.Body, fnScope)
	fn.UsesThis = a.m.usesThis[fn]
}

func (a *analyzer) walkStmts(stmts []tast.Stmt, s *scope) {
	for _, st := range stmts {
		a.walkStmt(st, s)
	}
}

func (a *analyzer) walkStmt(st tast.Stmt, s *scope) {
	fn := s.fn
	switch n := st.(type) {
	case *tast.VarDecl:
		if n.Init != nil {
			a.walkExpr(n.Init, s, fn)
		}
		s.declare(n.Name, n)
	case *tast.ExprStmt:
		a.walkExpr(n.X, s, fn)
	case *tast.Block:
		child := &scope{fn: fn, locals: make(map[string]*tast.VarDecl), parent: s}
		a.walkStmts(n.Stmts, child)
	case *tast.If:
		a.walkExpr(n.Cond, s, fn)
		a.walkStmt(n.Then, s)
		if n.Else != nil {
			a.walkStmt(n.Else, s)
		}
	case *tast.Loop:
		// Loop headers (`for (let x of …)`) declare a per-iteration binding
		//: give it its own one-name scope like a
		// catch binding.
		loopScope := &scope{fn: fn, locals: make(map[string]*tast.VarDecl), parent: s}
		if n.Binding != nil {
			loopScope.declare(n.Binding.Name, n.Binding)
		}
		if n.Init != nil {
			a.walkStmt(n.Init, loopScope)
		}
		if n.Cond != nil {
			a.walkExpr(n.Cond, loopScope, fn)
		}
		if n.Post != nil {
			a.walkExpr(n.Post, loopScope, fn)
		}
		if n.Iterable != nil {
			a.walkExpr(n.Iterable, s, fn)
		}
		a.walkStmt(n.Body, loopScope)
	case *tast.Break, *tast.Continue:
		// no references
	case *tast.Return:
		if n.Value != nil {
			a.walkExpr(n.Value, s, fn)
		}
	case *tast.Throw:
		a.walkExpr(n.Value, s, fn)
	case *tast.TryRegion:
		a.walkStmt(n.Body, s)
		if n.CatchBody != nil {
			// `catch` binding introduces a one-name scope.
			catchScope := &scope{fn: fn, locals: make(map[string]*tast.VarDecl), parent: s}
			if n.CatchParam != nil {
				catchScope.declare(n.CatchParam.Name, n.CatchParam)
			}
			a.walkStmt(n.CatchBody, catchScope)
		}
		if n.FinallyBody != nil {
			a.walkStmt(n.FinallyBody, s)
		}
	case *tast.FunctionDecl:
		a.walkFunction(n.Plan, s)
	case *tast.ClassDecl:
		a.walkClass(n.Plan, s)
	case *tast.ImportDecl:
		// Import bindings are module-scope declarations: functions below
		// them may capture them like any other module-level variable.
		for _, spec := range n.Specifiers {
			if spec.Binding != nil {
				s.declare(spec.Binding.Name, spec.Binding)
			}
		}
	case *tast.ExportDecl:
		// resolved entirely by the module planner; no variable references
	}
}

func (a *analyzer) walkExpr(e tast.Expr, s *scope, fn *tast.FunctionPlan) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *tast.Ident:
		a.reference(n.Name, s, fn)
	case *tast.ThisExpr:
		if fn != nil {
			a.m.usesThis[fn] = true
		}
	case *tast.Literal:
	case *tast.Binary:
		a.walkExpr(n.Left, s, fn)
		a.walkExpr(n.Right, s, fn)
	case *tast.Unary:
		a.walkExpr(n.Operand, s, fn)
	case *tast.InstanceOf:
		a.walkExpr(n.Value, s, fn)
	case *tast.Assign:
		a.walkExpr(n.Target, s, fn)
		a.walkExpr(n.Value, s, fn)
	case *tast.Call:
		a.walkExpr(n.Callee, s, fn)
		for _, arg := range n.Args {
			a.walkExpr(arg, s, fn)
		}
	case *tast.Member:
		a.walkExpr(n.Object, s, fn)
	case *tast.Index:
		a.walkExpr(n.Object, s, fn)
		a.walkExpr(n.Key, s, fn)
	case *tast.FunctionExpr:
		a.walkFunction(n.Plan, s)
		// An arrow's `this`-usage (direct or via a further-nested arrow)
		// propagates to its lexically enclosing function, since arrows
		// never bind their own `this`. An ordinary function expression
		// binds its own receiver, so its this-usage stays its own.
		if fn != nil && n.Plan.IsArrow && a.m.usesThis[n.Plan] {
			a.m.usesThis[fn] = true
		}
	case *tast.Await:
		a.walkExpr(n.Operand, s, fn)
	case *tast.Yield:
		if n.Operand != nil {
			a.walkExpr(n.Operand, s, fn)
		}
	case *tast.ArrayLit:
		for _, el := range n.Elements {
			a.walkExpr(el, s, fn)
		}
	case *tast.ObjectLit:
		for _, p := range n.Props {
			a.walkExpr(p.Value, s, fn)
		}
	case *tast.TemplateLit:
		for _, p := range n.Parts {
			a.walkExpr(p, s, fn)
		}
	}
}

// reference resolves an identifier and, if it names a variable declared in
// a strictly enclosing function's scope, records the capture.
func (a *analyzer) reference(name string, s *scope, fn *tast.FunctionPlan) {
	if builtins[name] {
		return
	}
	declScope, decl := lookup(s, name)
	if decl == nil {
		return // unresolved (global, or a checker-reported error elsewhere)
	}
	if declScope.fn == fn {
		return // declared in this function's own scope: not a capture
	}
	if fn == nil {
		return // module top level has no enclosing function to capture into
	}
	a.m.isCaptured[decl] = true
	if _, seen := find(a.m.order[fn], decl); !seen {
		a.m.order[fn] = append(a.m.order[fn], decl)
		a.m.capturesOf[fn] = a.m.order[fn]
	}
}

func find(list []*tast.VarDecl, d *tast.VarDecl) (int, bool) {
	for i, v := range list {
		if v == d {
			return i, true
		}
	}
	return -1, false
}
