package emit

import (
	"fmt"

	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// EmitExpr lowers e, leaving exactly one value on the stack, and records its
// resulting Repr in e.lastRepr for the caller to act on.
func (e *Emitter) EmitExpr(x tast.Expr) {
	switch n := x.(type) {
	case *tast.Literal:
		e.emitLiteral(n)
	case *tast.Ident:
		e.emitIdent(n)
	case *tast.ThisExpr:
		e.emitThis(n)
	case *tast.Binary:
		e.emitBinary(n)
	case *tast.Unary:
		e.emitUnary(n)
	case *tast.InstanceOf:
		e.EmitExpr(n.Value)
		e.ensureBoxed(e.lastRepr)
		e.emitCallRuntime("InstanceOf", n.Span())
		e.lastRepr = ReprBoolean
	case *tast.Assign:
		e.emitAssign(n)
	case *tast.Call:
		e.emitCall(n)
	case *tast.Member:
		e.emitMember(n)
	case *tast.Index:
		e.emitIndex(n)
	case *tast.FunctionExpr:
		e.emitFunctionExpr(n)
	case *tast.ArrayLit:
		e.emitArrayLit(n)
	case *tast.ObjectLit:
		e.emitObjectLit(n)
	case *tast.TemplateLit:
		e.emitTemplateLit(n)
	case *tast.Await, *tast.Yield:
		// A plain SyncEmitter (Suspend unset) never receives a suspension
		// point; internal/asyncx's state-machine emission installs Suspend
		// for fn.IsAsync/IsGenerator bodies, and the linker's module-init
		// emission installs it for top-level await.
		if e.Suspend == nil {
			panic("emit: suspension point reached SyncEmitter; AsyncXformer should have split this fragment")
		}
		e.Suspend(e, n)
	default:
		panic("emit: unhandled expression node")
	}
}

func (e *Emitter) emitLiteral(n *tast.Literal) {
	span := n.Span()
	switch v := n.Value.(type) {
	case float64:
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: v}, span.Line, span.Col)
		e.lastRepr = ReprDouble
	case string:
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: v}, span.Line, span.Col)
		e.lastRepr = ReprString
	case bool:
		if v {
			e.emitOp(bytecode.OpTrue, span)
		} else {
			e.emitOp(bytecode.OpFalse, span)
		}
		e.lastRepr = ReprBoolean
	case nil:
		e.emitOp(bytecode.OpNil, span)
		e.lastRepr = ReprNull
	default:
		// bigint and any other boxed literal kinds are materialized by the
		// runtime from a string constant.
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstBigInt, Str: fmt.Sprintf("%v", v)}, span.Line, span.Col)
		e.lastRepr = ReprUnknown
	}
}

// emitThis reads the receiver. An ordinary method finds it in its reserved
// slot 0; an arrow (or a state-machine body, whose display always hoists
// the receiver) reads it out of the nearest display class carrying a
// `this` field, since arrows never bind their own receiver. Only those two
// display shapes ever have a this slot — a plain method's display, when it
// has one at all, holds captured locals only.
func (e *Emitter) emitThis(n *tast.ThisExpr) {
	span := n.Span()
	switch {
	case e.display != nil && e.display.HasThisSlot:
		e.emitOp(bytecode.OpGetDisplayField, span)
		e.chunk.Write(byte(e.display.ThisFieldIndex()), span.Line, span.Col)
	case e.outerDisplay != nil && e.outerDisplay.ThisFieldIndex() >= 0:
		e.emitOp(bytecode.OpGetUpvalue, span)
		e.chunk.Write(1, span.Line, span.Col)
		e.chunk.Write(byte(e.outerDisplay.ThisFieldIndex()), span.Line, span.Col)
	case e.fn.IsMethod:
		e.emitOp(bytecode.OpGetLocal, span)
		e.chunk.Write(0, span.Line, span.Col) // the reserved receiver slot
	default:
		// `this` outside any method is undefined
		e.emitOp(bytecode.OpNil, span)
	}
	e.lastRepr = ReprUnknown
}

// emitIdent resolves n through, in order: this function's own locals, this
// function's own DisplayClass (if it captures the variable as a field of its
// own scope), then the enclosing chain of DisplayClasses the closure was
// synthesized over (internal/closure.DisplayClass.Resolve). A nil Decl names
// a builtin, read straight off the well-known-symbol table.
func (e *Emitter) emitIdent(n *tast.Ident) {
	span := n.Span()
	if n.Decl == nil {
		e.emitOp(bytecode.OpGetWellKnownSymbol, span)
		idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: n.Name})
		e.chunk.Write(byte(idx>>8), span.Line, span.Col)
		e.chunk.Write(byte(idx), span.Line, span.Col)
		e.lastRepr = ReprUnknown
		return
	}
	if slot := e.resolveLocalSlot(n.Decl); slot >= 0 {
		e.emitOp(bytecode.OpGetLocal, span)
		e.chunk.Write(byte(slot), span.Line, span.Col)
		e.lastRepr = ReprUnknown
		return
	}
	found, depth, fieldSlot := e.resolveDisplayChain(n.Decl)
	if !found {
		panic("emit: identifier " + n.Name + " resolves to neither a local slot nor a display field")
	}
	if depth == 0 {
		e.emitOp(bytecode.OpGetDisplayField, span)
	} else {
		e.emitOp(bytecode.OpGetUpvalue, span)
		e.chunk.Write(byte(depth), span.Line, span.Col)
	}
	e.chunk.Write(byte(fieldSlot), span.Line, span.Col)
	e.lastRepr = ReprUnknown
}

// resolveDisplayChain walks this function's own DisplayClass, then its
// outerDisplay chain, to find the scope owning decl. depth 0 means dc's own
// field; depth > 0 is how many OpGetUpvalue hops to chase first.
func (e *Emitter) resolveDisplayChain(decl *tast.VarDecl) (found bool, depth, slot int) {
	if e.display != nil {
		if idx := e.display.FieldIndex(decl); idx >= 0 {
			return true, 0, idx
		}
	}
	if e.outerDisplay != nil {
		owner, d, s := e.outerDisplay.Resolve(decl)
		if owner != nil {
			return true, d + 1, s
		}
	}
	return false, -1, -1
}

// ensureBoxed/ensureDouble/ensureBoolean insert exactly one conversion op
// when the top-of-stack Repr differs from what's needed.
func (e *Emitter) ensureBoxed(have Repr) {
	if have == ReprUnknown {
		return
	}
	e.emitOp(bytecode.OpEnsureBoxed, diag.Span{})
	e.lastRepr = ReprUnknown
}

func (e *Emitter) ensureDouble(have Repr) {
	if have == ReprDouble {
		return
	}
	e.emitOp(bytecode.OpEnsureDouble, diag.Span{})
	e.lastRepr = ReprDouble
}

func (e *Emitter) ensureBoolean(have Repr) {
	if have == ReprBoolean {
		return
	}
	e.emitOp(bytecode.OpEnsureBoolean, diag.Span{})
	e.lastRepr = ReprBoolean
}

// emitCallRuntime calls a fixed-arity Catalog entry: the caller has already
// pushed exactly sig.In.Fixed operands. The operand count is written even
// for fixed-arity entries so every OpCallRuntime has the same operand
// width.
func (e *Emitter) emitCallRuntime(name string, span diag.Span) {
	sig := e.Catalog.MustLookup(name)
	if sig.In.Variadic {
		panic("emit: " + name + " is variadic; use emitCallRuntimeN")
	}
	e.emitOp(bytecode.OpCallRuntime, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstEntryPoint, Str: sig.Name})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.chunk.Write(byte(sig.In.Fixed), span.Line, span.Col)
}

// EmitCallRuntime calls a fixed-arity catalog entry by name, for callers
// outside this package (the Linker's module-init and entry emission).
// Operands must already be on the stack, boxed.
func (e *Emitter) EmitCallRuntime(name string, span diag.Span) {
	e.emitCallRuntime(name, span)
	e.lastRepr = ReprUnknown
}

// emitCallRuntimeN calls a variadic Catalog entry with argCount operands
// already pushed, writing the count as a trailing operand byte.
func (e *Emitter) emitCallRuntimeN(name string, argCount int, span diag.Span) {
	sig := e.Catalog.MustLookup(name)
	if !sig.In.Variadic {
		panic("emit: " + name + " is fixed-arity; use emitCallRuntime")
	}
	e.emitOp(bytecode.OpCallRuntime, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstEntryPoint, Str: sig.Name})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.chunk.Write(byte(argCount), span.Line, span.Col)
}
