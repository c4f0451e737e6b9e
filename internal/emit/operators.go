package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/tast"
)

// emitBinary lowers one binary operator application.
func (e *Emitter) emitBinary(n *tast.Binary) {
	switch n.Op {
	case "&&":
		e.emitShortCircuitKeep(n, bytecode.OpJumpIfFalsy)
		return
	case "||":
		e.emitShortCircuitKeep(n, bytecode.OpJumpIfTruthy)
		return
	case "??":
		e.emitShortCircuitEval(n, bytecode.OpJumpIfNullish)
		return
	}

	e.EmitExpr(n.Left)
	leftRepr := e.lastRepr

	switch n.Op {
	case "+":
		e.emitAdd(n, leftRepr)
	case "-", "*", "/", "%":
		e.ensureDouble(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureDouble(e.lastRepr)
		e.emitOp(arithOp(n.Op), n.Span())
		e.lastRepr = ReprDouble
	case "==", "!=":
		e.ensureBoxed(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureBoxed(e.lastRepr)
		e.emitCallRuntime("Equals", n.Span())
		if n.Op == "!=" {
			e.emitOp(bytecode.OpNot, n.Span())
		}
		e.lastRepr = ReprBoolean
	case "===", "!==":
		e.ensureBoxed(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpEqStrict, n.Span())
		if n.Op == "!==" {
			e.emitOp(bytecode.OpNot, n.Span())
		}
		e.lastRepr = ReprBoolean
	case "<", "<=", ">", ">=":
		e.ensureDouble(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureDouble(e.lastRepr)
		e.emitOp(compareOp(n.Op), n.Span())
		e.lastRepr = ReprBoolean
	case "&", "|", "^", "<<", ">>", ">>>":
		// Bitwise operands coerce through ECMA ToInt32/ToUint32 semantics,
		// modeled here as a double round-trip through the 32-bit ops.
		e.ensureDouble(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureDouble(e.lastRepr)
		e.emitOp(bitwiseOp(n.Op), n.Span())
		e.lastRepr = ReprDouble
	default:
		panic("emit: unhandled binary operator " + n.Op)
	}
}

// emitAdd implements `+`'s split personality: string concatenation when
// either static operand type is string, otherwise a runtime-resolved Add.
func (e *Emitter) emitAdd(n *tast.Binary, leftRepr Repr) {
	leftIsString := isStringType(n.Left.Type())
	rightIsString := isStringType(n.Right.Type())
	leftIsNumeric := isNumericType(n.Left.Type())
	rightIsNumeric := isNumericType(n.Right.Type())

	switch {
	case leftIsString || rightIsString:
		e.ensureBoxed(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpConcatString, n.Span())
		e.lastRepr = ReprString
	case leftIsNumeric && rightIsNumeric:
		e.ensureDouble(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureDouble(e.lastRepr)
		e.emitOp(bytecode.OpAddNumeric, n.Span())
		e.lastRepr = ReprDouble
	default:
		e.ensureBoxed(leftRepr)
		e.EmitExpr(n.Right)
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpAddRuntime, n.Span())
		e.lastRepr = ReprUnknown
	}
}

func isStringType(t tast.TypeDescriptor) bool {
	p, ok := t.(tast.Primitive)
	return ok && p.Kind == tast.StringKind
}

func isNumericType(t tast.TypeDescriptor) bool {
	p, ok := t.(tast.Primitive)
	return ok && p.Kind == tast.Number
}

func arithOp(op string) bytecode.Opcode {
	switch op {
	case "-":
		return bytecode.OpSub
	case "*":
		return bytecode.OpMul
	case "/":
		return bytecode.OpDiv
	case "%":
		return bytecode.OpMod
	}
	panic("emit: unhandled arithmetic operator " + op)
}

func compareOp(op string) bytecode.Opcode {
	switch op {
	case "<":
		return bytecode.OpLt
	case "<=":
		return bytecode.OpLe
	case ">":
		return bytecode.OpGt
	case ">=":
		return bytecode.OpGe
	}
	panic("emit: unhandled comparison operator " + op)
}

func bitwiseOp(op string) bytecode.Opcode {
	switch op {
	case "&":
		return bytecode.OpBAnd32
	case "|":
		return bytecode.OpBOr32
	case "^":
		return bytecode.OpBXor32
	case "<<":
		return bytecode.OpLShift32
	case ">>":
		return bytecode.OpRShift32
	case ">>>":
		return bytecode.OpURShift32
	}
	panic("emit: unhandled bitwise operator " + op)
}

// emitShortCircuitKeep implements && (testOp = JumpIfFalsy) and ||
// (testOp = JumpIfTruthy): testOp peeks the left operand without popping
// it, so taking the jump leaves left itself as the final value; the
// fallthrough path pops left and evaluates right instead. Neither path
// coerces the kept operand to boolean.
func (e *Emitter) emitShortCircuitKeep(n *tast.Binary, testOp bytecode.Opcode) {
	e.EmitExpr(n.Left)
	e.ensureBoxed(e.lastRepr)
	line, col := spanLineCol(n.Span())
	testJump := e.chunk.WriteJump(testOp, line, col)
	e.emitPop(n.Span())
	e.EmitExpr(n.Right)
	e.ensureBoxed(e.lastRepr)
	e.chunk.PatchJump(testJump)
	e.lastRepr = ReprUnknown
}

// emitShortCircuitEval implements ?? (testOp = JumpIfNullish): taking the
// jump means left *is* nullish, so that path pops it and evaluates right;
// the fallthrough path keeps left and jumps past the right-evaluation.
func (e *Emitter) emitShortCircuitEval(n *tast.Binary, testOp bytecode.Opcode) {
	e.EmitExpr(n.Left)
	e.ensureBoxed(e.lastRepr)
	line, col := spanLineCol(n.Span())
	testJump := e.chunk.WriteJump(testOp, line, col)
	endJump := e.chunk.WriteJump(bytecode.OpJump, line, col)
	e.chunk.PatchJump(testJump)
	e.emitPop(n.Span())
	e.EmitExpr(n.Right)
	e.ensureBoxed(e.lastRepr)
	e.chunk.PatchJump(endJump)
	e.lastRepr = ReprUnknown
}

func (e *Emitter) emitUnary(n *tast.Unary) {
	switch n.Op {
	case "typeof":
		e.EmitExpr(n.Operand)
		e.ensureBoxed(e.lastRepr)
		e.emitCallRuntime("TypeOf", n.Span())
		e.lastRepr = ReprString
	case "!":
		e.EmitExpr(n.Operand)
		e.ensureBoolean(e.lastRepr)
		e.emitOp(bytecode.OpNot, n.Span())
		e.lastRepr = ReprBoolean
	case "-":
		e.EmitExpr(n.Operand)
		e.ensureDouble(e.lastRepr)
		e.emitOp(bytecode.OpNeg, n.Span())
		e.lastRepr = ReprDouble
	case "~":
		e.EmitExpr(n.Operand)
		e.ensureDouble(e.lastRepr)
		span := n.Span()
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: -1}, span.Line, span.Col)
		e.emitOp(bytecode.OpBXor32, span) // ~x lowers as x ^ -1
		e.lastRepr = ReprDouble
	case "++", "--":
		e.emitIncDec(n)
	default:
		panic("emit: unhandled unary operator " + n.Op)
	}
}

// emitIncDec implements prefix/postfix ++/-- as a read-modify-write over
// whatever slot n.Operand resolves to, leaving the pre- or post-update value
// on the stack depending on n.Postfix.
func (e *Emitter) emitIncDec(n *tast.Unary) {
	delta := 1.0
	if n.Op == "--" {
		delta = -1.0
	}
	ident, ok := n.Operand.(*tast.Ident)
	if !ok {
		panic("emit: ++/-- operand must be an identifier (checker should have rejected otherwise)")
	}
	e.EmitExpr(ident)
	e.ensureDouble(e.lastRepr)
	if n.Postfix {
		e.emitOp(bytecode.OpDup, n.Span())
	}
	span := n.Span()
	e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: delta}, span.Line, span.Col)
	e.emitOp(bytecode.OpAddNumeric, span)
	if !n.Postfix {
		e.emitOp(bytecode.OpDup, span)
	}
	// box only the store copy; the value kept as the expression result
	// stays a native double
	e.emitOp(bytecode.OpEnsureBoxed, span)
	e.emitStoreIdent(ident, span)
	e.lastRepr = ReprDouble
}
