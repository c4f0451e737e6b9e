// Package asyncx lowers a function whose body contains `await`/`yield`
// into an explicit state machine, reusing internal/emit's Emitter for
// every straight-line fragment between suspension points. A coroutine the
// compiler could park would make this trivial, but the target is an
// ahead-of-time image for a host runtime, so suspension is modeled the
// portable way: a state object whose move_next method dispatches on a
// state integer to the right resume label.
package asyncx

import "github.com/sharpts/sharpts/internal/tast"

// walkStmts visits every statement and (transitively) every expression
// reachable from a function body, without descending into a nested
// *tast.FunctionExpr's own Plan.Body — that's a separate function with its
// own suspension scope, analyzed on its own turn when the Linker reaches it.
func walkStmts(stmts []tast.Stmt, onStmt func(tast.Stmt), onExpr func(tast.Expr)) {
	for _, s := range stmts {
		walkStmt(s, onStmt, onExpr)
	}
}

func walkStmt(s tast.Stmt, onStmt func(tast.Stmt), onExpr func(tast.Expr)) {
	if s == nil {
		return
	}
	onStmt(s)
	switch n := s.(type) {
	case *tast.VarDecl:
		if n.Init != nil {
			walkExpr(n.Init, onExpr)
		}
	case *tast.ExprStmt:
		walkExpr(n.X, onExpr)
	case *tast.Block:
		walkStmts(n.Stmts, onStmt, onExpr)
	case *tast.If:
		walkExpr(n.Cond, onExpr)
		walkStmt(n.Then, onStmt, onExpr)
		walkStmt(n.Else, onStmt, onExpr)
	case *tast.Loop:
		if n.Init != nil {
			walkStmt(n.Init, onStmt, onExpr)
		}
		if n.Cond != nil {
			walkExpr(n.Cond, onExpr)
		}
		if n.Post != nil {
			walkExpr(n.Post, onExpr)
		}
		if n.Iterable != nil {
			walkExpr(n.Iterable, onExpr)
		}
		walkStmt(n.Body, onStmt, onExpr)
	case *tast.Return:
		if n.Value != nil {
			walkExpr(n.Value, onExpr)
		}
	case *tast.Throw:
		walkExpr(n.Value, onExpr)
	case *tast.TryRegion:
		walkStmt(n.Body, onStmt, onExpr)
		walkStmt(n.CatchBody, onStmt, onExpr)
		walkStmt(n.FinallyBody, onStmt, onExpr)
	}
}

func walkExpr(x tast.Expr, onExpr func(tast.Expr)) {
	if x == nil {
		return
	}
	onExpr(x)
	switch n := x.(type) {
	case *tast.Binary:
		walkExpr(n.Left, onExpr)
		walkExpr(n.Right, onExpr)
	case *tast.Unary:
		walkExpr(n.Operand, onExpr)
	case *tast.InstanceOf:
		walkExpr(n.Value, onExpr)
	case *tast.Assign:
		walkExpr(n.Target, onExpr)
		walkExpr(n.Value, onExpr)
	case *tast.Call:
		walkExpr(n.Callee, onExpr)
		for _, a := range n.Args {
			walkExpr(a, onExpr)
		}
	case *tast.Member:
		walkExpr(n.Object, onExpr)
	case *tast.Index:
		walkExpr(n.Object, onExpr)
		walkExpr(n.Key, onExpr)
	case *tast.Await:
		walkExpr(n.Operand, onExpr)
	case *tast.Yield:
		if n.Operand != nil {
			walkExpr(n.Operand, onExpr)
		}
	case *tast.ArrayLit:
		for _, el := range n.Elements {
			walkExpr(el, onExpr)
		}
	case *tast.ObjectLit:
		for _, p := range n.Props {
			walkExpr(p.Value, onExpr)
		}
	case *tast.TemplateLit:
		for _, p := range n.Parts {
			walkExpr(p, onExpr)
		}
	}
}
