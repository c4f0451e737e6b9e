package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/tast"
)

func (e *Emitter) emitStmts(stmts []tast.Stmt) {
	for _, s := range stmts {
		e.emitStmt(s)
	}
}

func (e *Emitter) emitStmt(s tast.Stmt) {
	switch n := s.(type) {
	case *tast.VarDecl:
		e.emitVarDecl(n)
	case *tast.ExprStmt:
		e.EmitExpr(n.X)
		e.emitPop(n.Span())
	case *tast.Block:
		e.beginScope()
		e.emitStmts(n.Stmts)
		e.endScope(n.Span())
	case *tast.If:
		e.emitIf(n)
	case *tast.Loop:
		e.emitLoop(n)
	case *tast.Break:
		e.emitBreak(n)
	case *tast.Continue:
		e.emitContinue(n)
	case *tast.Return:
		e.emitReturn(n)
	case *tast.Throw:
		e.EmitExpr(n.Value)
		e.emitOp(bytecode.OpThrow, n.Span())
	case *tast.TryRegion:
		if e.TryHandler != nil && e.TryHandler(e, n) {
			return
		}
		e.emitTryNative(n)
	case *tast.FunctionDecl, *tast.ClassDecl, *tast.ExportDecl, *tast.ImportDecl:
		// Nested function/class bodies are emitted as their own
		// CompiledFunction by the Linker's per-plan emission loop;
		// export/import declarations are resolved
		// entirely in internal/modplan before any code reaches this
		// package. Nothing to emit inline at this statement position.
	}
}

func (e *Emitter) emitVarDecl(n *tast.VarDecl) {
	if n.Init != nil {
		e.EmitExpr(n.Init)
		e.coerce(n.Init.Type(), n.Type, n.Span())
		e.ensureBoxed(e.lastRepr)
	} else {
		e.emitOp(bytecode.OpNil, n.Span())
	}
	e.addLocal(n)
}

func (e *Emitter) emitIf(n *tast.If) {
	e.EmitExpr(n.Cond)
	e.ensureBoolean(e.lastRepr)
	line, col := spanLineCol(n.Span())
	thenJump := e.chunk.WriteJump(bytecode.OpJumpIfFalsy, line, col)
	e.emitPop(n.Span())
	e.emitStmt(n.Then)
	elseJump := e.chunk.WriteJump(bytecode.OpJump, line, col)
	e.chunk.PatchJump(thenJump)
	e.emitPop(n.Span())
	if n.Else != nil {
		e.emitStmt(n.Else)
	}
	e.chunk.PatchJump(elseJump)
}

func (e *Emitter) emitLoop(n *tast.Loop) {
	e.beginScope()
	if n.Kind == tast.ForLoop && n.Init != nil {
		e.emitStmt(n.Init)
	}
	if (n.Kind == tast.ForOfLoop || n.Kind == tast.ForInLoop) && n.Binding != nil {
		// The iterable is evaluated once and its value occupies
		// n.Binding's own local slot; no per-iteration rebinding of
		// n.Binding is emitted here.
		e.EmitExpr(n.Iterable)
		e.addLocal(n.Binding)
	}

	loopStart := e.chunk.Len()
	e.loopStack = append(e.loopStack, loopCtx{label: n.Label, loopStart: loopStart, depth: e.depth})

	var exitJump int
	hasExit := false
	if n.Cond != nil {
		e.EmitExpr(n.Cond)
		e.ensureBoolean(e.lastRepr)
		line, col := spanLineCol(n.Span())
		exitJump = e.chunk.WriteJump(bytecode.OpJumpIfFalsy, line, col)
		hasExit = true
		e.emitPop(n.Span())
	}

	e.emitStmt(n.Body)

	if n.Kind == tast.ForLoop && n.Post != nil {
		e.EmitExpr(n.Post)
		e.emitPop(n.Span())
	}

	line, col := spanLineCol(n.Span())
	e.chunk.WriteLoop(loopStart, line, col)
	if hasExit {
		e.chunk.PatchJump(exitJump)
		e.emitPop(n.Span())
	}

	ctx := e.loopStack[len(e.loopStack)-1]
	for _, j := range ctx.breakJumps {
		e.chunk.PatchJump(j)
	}
	e.loopStack = e.loopStack[:len(e.loopStack)-1]
	e.endScope(n.Span())
}

func (e *Emitter) currentLoop(label string) *loopCtx {
	for i := len(e.loopStack) - 1; i >= 0; i-- {
		if label == "" || e.loopStack[i].label == label {
			return &e.loopStack[i]
		}
	}
	return nil
}

func (e *Emitter) emitBreak(n *tast.Break) {
	lc := e.currentLoop(n.Label)
	if lc == nil {
		panic("emit: break outside a loop (checker should have rejected this)")
	}
	line, col := spanLineCol(n.Span())
	j := e.chunk.WriteJump(bytecode.OpJump, line, col)
	lc.breakJumps = append(lc.breakJumps, j)
}

func (e *Emitter) emitContinue(n *tast.Continue) {
	lc := e.currentLoop(n.Label)
	if lc == nil {
		panic("emit: continue outside a loop (checker should have rejected this)")
	}
	line, col := spanLineCol(n.Span())
	e.chunk.WriteLoop(lc.loopStart, line, col)
}

func (e *Emitter) emitReturn(n *tast.Return) {
	if n.Value != nil {
		e.EmitExpr(n.Value)
		e.coerce(n.Value.Type(), e.fn.Return, n.Span())
		e.ensureBoxed(e.lastRepr)
	} else {
		e.emitOp(bytecode.OpNil, n.Span())
	}
	e.emitOp(bytecode.OpReturn, n.Span())
}

// emitTryNative handles a TryRegion with no suspension point inside it,
// which keeps native exception-region semantics. The async transformer
// intercepts any TryRegion that does contain one before this package ever
// sees it (see internal/asyncx).
func (e *Emitter) emitTryNative(n *tast.TryRegion) {
	e.emitOp(bytecode.OpEnterTry, n.Span())
	e.emitStmt(n.Body)
	e.emitOp(bytecode.OpLeaveTry, n.Span())
	if n.CatchBody != nil {
		e.beginScope()
		if n.CatchParam != nil {
			e.addLocal(n.CatchParam)
		}
		e.emitStmt(n.CatchBody)
		e.endScope(n.Span())
	}
	if n.FinallyBody != nil {
		e.emitStmt(n.FinallyBody)
	}
}
