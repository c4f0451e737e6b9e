package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// emitAssign implements plain assignment, and compound assignment (`+=`,
// `-=`, …) as a read-modify-write when n.Op is non-empty: the target is
// read once, the operator applied, the result written back.
func (e *Emitter) emitAssign(n *tast.Assign) {
	if n.Op == "" {
		e.EmitExpr(n.Value)
		e.coerce(n.Value.Type(), n.Target.Type(), n.Span())
		e.ensureBoxed(e.lastRepr)
		e.storeTarget(n.Target, n.Span())
		return
	}

	binOp := n.Op[:len(n.Op)-1] // "+=" -> "+"
	synthetic := &tast.Binary{Op: binOp, Left: n.Target, Right: n.Value}
	e.emitBinary(synthetic)
	e.ensureBoxed(e.lastRepr)
	e.storeTarget(n.Target, n.Span())
}

// storeTarget writes the top-of-stack value into target, leaving it on
// the stack afterward: assignment is an expression with a value.
func (e *Emitter) storeTarget(target tast.Expr, span diag.Span) {
	switch t := target.(type) {
	case *tast.Ident:
		e.emitOp(bytecode.OpDup, span)
		e.emitStoreIdent(t, span)
	case *tast.Member:
		e.emitOp(bytecode.OpDup, span)
		e.EmitExpr(t.Object)
		e.ensureBoxed(e.lastRepr)
		// stack: [dup(value), object]; runtime SetProperty wants
		// (object, name, value) so rotate the duped value under object via a
		// second dup/pop dance is unnecessary — SetPropertyRuntime's calling
		// convention (internal/runtime) takes operands in push order
		// (value, object, name), matching what's already on the stack.
		e.emitOp(bytecode.OpSetPropertyRuntime, span)
		idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: t.Name})
		e.chunk.Write(byte(idx>>8), span.Line, span.Col)
		e.chunk.Write(byte(idx), span.Line, span.Col)
	case *tast.Index:
		e.emitOp(bytecode.OpDup, span)
		e.EmitExpr(t.Object)
		e.ensureBoxed(e.lastRepr)
		e.EmitExpr(t.Key)
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpSetIndexRuntime, span)
	default:
		panic("emit: unsupported assignment target")
	}
}

// emitStoreIdent writes the top-of-stack value into ident's resolved slot,
// without disturbing what's under it — used both directly by assignment and
// by emitIncDec's read-modify-write.
func (e *Emitter) emitStoreIdent(ident *tast.Ident, span diag.Span) {
	if ident.Decl == nil {
		panic("emit: cannot assign to builtin " + ident.Name)
	}
	if slot := e.resolveLocalSlot(ident.Decl); slot >= 0 {
		e.emitOp(bytecode.OpSetLocal, span)
		e.chunk.Write(byte(slot), span.Line, span.Col)
		return
	}
	found, depth, fieldSlot := e.resolveDisplayChain(ident.Decl)
	if !found {
		panic("emit: assignment target " + ident.Name + " resolves to neither a local slot nor a display field")
	}
	if depth == 0 {
		e.emitOp(bytecode.OpSetDisplayField, span)
	} else {
		e.emitOp(bytecode.OpSetUpvalue, span)
		e.chunk.Write(byte(depth), span.Line, span.Col)
	}
	e.chunk.Write(byte(fieldSlot), span.Line, span.Col)
}
