package emit

import (
	"testing"

	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/modplan"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
	"github.com/sharpts/sharpts/internal/unions"
)

func typed(ty tast.TypeDescriptor) tast.Info { return tast.Info{Ty: ty} }

func num(v float64) *tast.Literal {
	return &tast.Literal{Info: typed(tast.Primitive{Kind: tast.Number}), Value: v}
}

func str(v string) *tast.Literal {
	return &tast.Literal{Info: typed(tast.Primitive{Kind: tast.StringKind}), Value: v}
}

func compile(t *testing.T, fn *tast.FunctionPlan) (*bytecode.CompiledFunction, *Emitter) {
	t.Helper()
	mod := &tast.Module{ID: "t", Functions: []*tast.FunctionPlan{fn}}
	cm := closure.Analyze([]*tast.Module{mod})
	e := New(runtime.Default(), unions.New(), cm, &modplan.Result{}, &diag.Bag{}, fn, closure.Synth(fn, cm, nil), nil)
	return e.EmitFunction(), e
}

func compileExpr(t *testing.T, x tast.Expr) []bytecode.Opcode {
	t.Helper()
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: x}}
	cf, _ := compile(t, fn)
	return bytecode.Opcodes(cf.Chunk)
}

func hasOp(ops []bytecode.Opcode, want bytecode.Opcode) bool {
	for _, op := range ops {
		if op == want {
			return true
		}
	}
	return false
}

func countOp(ops []bytecode.Opcode, want bytecode.Opcode) int {
	n := 0
	for _, op := range ops {
		if op == want {
			n++
		}
	}
	return n
}

func TestNumericAddElidesBoxing(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Primitive{Kind: tast.Number}), Op: "+", Left: num(1), Right: num(2)})
	if !hasOp(ops, bytecode.OpAddNumeric) {
		t.Fatalf("statically numeric + must use native double add, got %v", ops)
	}
	if hasOp(ops, bytecode.OpEnsureDouble) {
		t.Fatalf("both operands are already doubles; no conversion may be inserted, got %v", ops)
	}
	// the return position needs a boxed value, so exactly one box happens
	// at the end, not one per operand
	if countOp(ops, bytecode.OpEnsureBoxed) != 1 {
		t.Fatalf("expected exactly one boxing conversion at the return, got %v", ops)
	}
}

func TestAddWithStringOperandConcatenates(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Primitive{Kind: tast.StringKind}), Op: "+", Left: str("a"), Right: num(1)})
	if !hasOp(ops, bytecode.OpConcatString) {
		t.Fatalf("string + anything is concatenation, got %v", ops)
	}
}

func TestAddWithUnknownOperandsFallsBackToRuntime(t *testing.T) {
	a := &tast.VarDecl{Name: "a", Type: tast.Any{}}
	b := &tast.VarDecl{Name: "b", Type: tast.Any{}}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{a, b}, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Binary{
		Info:  typed(tast.Any{}),
		Op:    "+",
		Left:  &tast.Ident{Info: typed(tast.Any{}), Name: "a", Decl: a},
		Right: &tast.Ident{Info: typed(tast.Any{}), Name: "b", Decl: b},
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpAddRuntime) {
		t.Fatalf("mixed/unknown + must defer to the runtime Add, got %v", ops)
	}
}

func TestLooseInequalityNegatesRuntimeEquals(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Primitive{Kind: tast.Boolean}), Op: "!=", Left: num(1), Right: str("1")})
	if !hasOp(ops, bytecode.OpCallRuntime) || !hasOp(ops, bytecode.OpNot) {
		t.Fatalf("!= lowers as runtime Equals plus negation, got %v", ops)
	}
}

func TestStrictEqualityUsesIdentityAwareOp(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Primitive{Kind: tast.Boolean}), Op: "===", Left: num(1), Right: num(1)})
	if !hasOp(ops, bytecode.OpEqStrict) {
		t.Fatalf("=== must use the identity-aware comparison, got %v", ops)
	}
}

func TestLogicalAndKeepsOperandWithoutCoercion(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Any{}), Op: "&&", Left: num(1), Right: str("x")})
	if !hasOp(ops, bytecode.OpJumpIfFalsy) {
		t.Fatalf("&& short-circuits on falsiness, got %v", ops)
	}
	if hasOp(ops, bytecode.OpEnsureBoolean) {
		t.Fatalf("the result of && is the selected operand, never a coerced boolean, got %v", ops)
	}
}

func TestNullishCoalescingShortCircuits(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Any{}), Op: "??", Left: str("l"), Right: str("r")})
	if !hasOp(ops, bytecode.OpJumpIfNullish) {
		t.Fatalf("?? tests nullishness, not truthiness, got %v", ops)
	}
}

func TestUnsignedRightShiftHasItsOwnOp(t *testing.T) {
	ops := compileExpr(t, &tast.Binary{Info: typed(tast.Primitive{Kind: tast.Number}), Op: ">>>", Left: num(1), Right: num(2)})
	if !hasOp(ops, bytecode.OpURShift32) {
		t.Fatalf(">>> must not share the signed shift lowering, got %v", ops)
	}
}

func TestPostfixIncrementBoxesOnlyTheStoredCopy(t *testing.T) {
	v := &tast.VarDecl{Name: "n", Type: tast.Primitive{Kind: tast.Number}}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{v}, Return: tast.Primitive{Kind: tast.Number}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Unary{
		Info:    typed(tast.Primitive{Kind: tast.Number}),
		Op:      "++",
		Operand: &tast.Ident{Info: typed(tast.Primitive{Kind: tast.Number}), Name: "n", Decl: v},
		Postfix: true,
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpDup) || !hasOp(ops, bytecode.OpAddNumeric) || !hasOp(ops, bytecode.OpSetLocal) {
		t.Fatalf("postfix ++ is a dup/add/store sequence, got %v", ops)
	}
}

func TestDefaultParameterEntrySequence(t *testing.T) {
	p0 := &tast.VarDecl{Name: "a", Type: tast.Primitive{Kind: tast.Number}}
	p1 := &tast.VarDecl{Name: "b", Type: tast.Primitive{Kind: tast.Number}}
	fn := &tast.FunctionPlan{
		QualifiedName: "t.f",
		Params:        []*tast.VarDecl{p0, p1},
		Defaults:      map[int]tast.Expr{1: num(5)},
		Return:        tast.Void{},
	}
	cf, e := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpEqStrict) || !hasOp(ops, bytecode.OpJumpIfFalsy) {
		t.Fatalf("defaulted parameter needs the null-test entry sequence, got %v", ops)
	}

	extras := e.ExtraFunctions()
	if len(extras) != 1 || extras[0].QualifiedName != "t.f#1" || extras[0].Arity != 1 {
		t.Fatalf("expected one forwarding overload t.f#1, got %+v", extras)
	}
	overloadOps := bytecode.Opcodes(extras[0].Chunk)
	if !hasOp(overloadOps, bytecode.OpCall) {
		t.Fatalf("the overload forwards to the full arity, got %v", overloadOps)
	}
}

func TestLockDecoratorWrapsBodyInTrampoline(t *testing.T) {
	fn := &tast.FunctionPlan{
		QualifiedName: "t.C#work",
		IsMethod:      true,
		Decorators:    []string{"lock"},
		Return:        tast.Void{},
	}
	cf, e := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpLockEnter) || !hasOp(ops, bytecode.OpLockExit) {
		t.Fatalf("@lock methods bracket the body call with monitor enter/exit, got %v", ops)
	}

	var impl *bytecode.CompiledFunction
	for _, x := range e.ExtraFunctions() {
		if x.QualifiedName == "t.C#work$locked_impl" {
			impl = x
		}
	}
	if impl == nil {
		t.Fatalf("the original body must survive under the $locked_impl name")
	}
	if hasOp(bytecode.Opcodes(impl.Chunk), bytecode.OpLockEnter) {
		t.Fatalf("the inner body must not re-acquire the lock")
	}
}

func TestMemberValueIntoUnionPositionWraps(t *testing.T) {
	union := tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.Number},
		tast.Primitive{Kind: tast.StringKind},
	}}
	decl := &tast.VarDecl{Name: "u", Type: union, Init: str("hello")}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Return: tast.Void{}}
	fn.Body = []tast.Stmt{decl}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpMakeUnion) {
		t.Fatalf("a member value bound to a union-typed slot needs the implicit conversion, got %v", ops)
	}
}

func TestUnionIntoMemberPositionProjects(t *testing.T) {
	union := tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.Number},
		tast.Primitive{Kind: tast.StringKind},
	}}
	u := &tast.VarDecl{Name: "u", Type: union}
	decl := &tast.VarDecl{
		Name: "s",
		Type: tast.Primitive{Kind: tast.StringKind},
		Init: &tast.Ident{Info: typed(union), Name: "u", Decl: u},
	}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{u}, Return: tast.Void{}}
	fn.Body = []tast.Stmt{decl}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpUnionAs) {
		t.Fatalf("a union consumed as a specific member projects through As, got %v", ops)
	}
}

func TestUnionIntoPolymorphicPositionBoxes(t *testing.T) {
	union := tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.Number},
		tast.Primitive{Kind: tast.StringKind},
	}}
	u := &tast.VarDecl{Name: "u", Type: union}
	decl := &tast.VarDecl{
		Name: "x",
		Type: tast.Any{},
		Init: &tast.Ident{Info: typed(union), Name: "u", Decl: u},
	}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{u}, Return: tast.Void{}}
	fn.Body = []tast.Stmt{decl}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpUnionBox) {
		t.Fatalf("a union consumed polymorphically projects through the erased value accessor, got %v", ops)
	}
}

func TestConsoleLogIsASpecialForm(t *testing.T) {
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Return: tast.Void{}}
	fn.Body = []tast.Stmt{&tast.ExprStmt{X: &tast.Call{
		Info:   typed(tast.Void{}),
		Callee: &tast.Member{Info: typed(tast.Any{}), Object: &tast.Ident{Info: typed(tast.Any{}), Name: "console"}, Name: "log"},
		Args:   []tast.Expr{str("hi")},
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpCallRuntime) {
		t.Fatalf("console.log routes straight to the runtime entry, got %v", ops)
	}
	if hasOp(ops, bytecode.OpGetPropertyRuntime) {
		t.Fatalf("console.log must not be resolved as a dynamic property read, got %v", ops)
	}
}

func TestPromiseThenPadsMissingCallback(t *testing.T) {
	p := &tast.VarDecl{Name: "p", Type: tast.Promise{Elem: tast.Primitive{Kind: tast.Number}}}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{p}, Return: tast.Void{}}
	cb := &tast.FunctionPlan{QualifiedName: "t.f$arrow0", IsArrow: true, Enclosing: fn}
	fn.Body = []tast.Stmt{&tast.ExprStmt{X: &tast.Call{
		Info: typed(tast.Promise{Elem: tast.Any{}}),
		Callee: &tast.Member{
			Info:   typed(tast.Any{}),
			Object: &tast.Ident{Info: typed(p.Type), Name: "p", Decl: p},
			Name:   "then",
		},
		Args: []tast.Expr{&tast.FunctionExpr{Info: typed(tast.Function{Return: tast.Any{}}), Plan: cb}},
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	// receiver + onFulfilled + padded onRejected
	if !hasOp(ops, bytecode.OpNil) {
		t.Fatalf("a bare .then(cb) pads the missing onRejected with null, got %v", ops)
	}
	if !hasOp(ops, bytecode.OpCallRuntime) {
		t.Fatalf(".then on a statically known Promise dispatches to the runtime helper, got %v", ops)
	}
}

func TestAmbiguousMethodNameUsesRuntimeTypeSwitch(t *testing.T) {
	v := &tast.VarDecl{Name: "x", Type: tast.Any{}}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{v}, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Call{
		Info: typed(tast.Any{}),
		Callee: &tast.Member{
			Info:   typed(tast.Any{}),
			Object: &tast.Ident{Info: typed(tast.Any{}), Name: "x", Decl: v},
			Name:   "slice",
		},
		Args: []tast.Expr{num(1)},
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpCallAmbiguous) {
		t.Fatalf("slice on an untyped receiver needs the runtime type-switch, got %v", ops)
	}
}

func TestUnionReceiverPrefersStringStrategy(t *testing.T) {
	union := tast.Union{Members: []tast.TypeDescriptor{
		tast.Array{Elem: tast.Any{}},
		tast.Primitive{Kind: tast.StringKind},
	}}
	v := &tast.VarDecl{Name: "u", Type: union}
	fn := &tast.FunctionPlan{QualifiedName: "t.f", Params: []*tast.VarDecl{v}, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Call{
		Info: typed(tast.Any{}),
		Callee: &tast.Member{
			Info:   typed(tast.Any{}),
			Object: &tast.Ident{Info: typed(union), Name: "u", Decl: v},
			Name:   "includes",
		},
		Args: []tast.Expr{str("a")},
	}}}
	cf, _ := compile(t, fn)
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpUnionAs) {
		t.Fatalf("a union receiver projects to the preferred member before dispatch, got %v", ops)
	}
}

func TestCapturedVariableGoesThroughDisplayClass(t *testing.T) {
	n := &tast.VarDecl{Name: "n", Type: tast.Primitive{Kind: tast.Number}, Init: num(0), Mutable: true}
	arrow := &tast.FunctionPlan{QualifiedName: "t.make$arrow0", IsArrow: true, Return: tast.Primitive{Kind: tast.Number}}
	arrow.Body = []tast.Stmt{&tast.Return{Value: &tast.Unary{
		Info:    typed(tast.Primitive{Kind: tast.Number}),
		Op:      "++",
		Operand: &tast.Ident{Info: typed(tast.Primitive{Kind: tast.Number}), Name: "n", Decl: n},
	}}}
	makeFn := &tast.FunctionPlan{QualifiedName: "t.make", Return: tast.Any{}}
	makeFn.Body = []tast.Stmt{
		n,
		&tast.Return{Value: &tast.FunctionExpr{Info: typed(tast.Function{Return: tast.Any{}}), Plan: arrow}},
	}
	arrow.Enclosing = makeFn

	mod := &tast.Module{ID: "t", Functions: []*tast.FunctionPlan{makeFn}}
	cm := closure.Analyze([]*tast.Module{mod})

	arrowDisplay := closure.Synth(arrow, cm, nil)
	e := New(runtime.Default(), unions.New(), cm, &modplan.Result{}, &diag.Bag{}, arrow, arrowDisplay, nil)
	cf := e.EmitFunction()
	ops := bytecode.Opcodes(cf.Chunk)
	if !hasOp(ops, bytecode.OpGetDisplayField) || !hasOp(ops, bytecode.OpSetDisplayField) {
		t.Fatalf("a captured variable is addressed through its display-class slot, got %v", ops)
	}
	if hasOp(ops, bytecode.OpGetLocal) {
		t.Fatalf("n is not a local of the arrow, got %v", ops)
	}
}

func TestMethodThisReadsReceiverSlot(t *testing.T) {
	fn := &tast.FunctionPlan{QualifiedName: "t.C#getX", IsMethod: true, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Member{
		Info:   typed(tast.Any{}),
		Object: &tast.ThisExpr{Info: typed(tast.Instance{Class: "t.C"})},
		Name:   "x",
	}}}
	cf, _ := compile(t, fn)
	if op := bytecode.Opcode(cf.Chunk.Code[0]); op != bytecode.OpGetLocal {
		t.Fatalf("a method reads this from its receiver slot, got %v", op)
	}
	if cf.Chunk.Code[1] != 0 {
		t.Fatalf("the receiver lives in slot 0, got %d", cf.Chunk.Code[1])
	}
	ops := bytecode.Opcodes(cf.Chunk)
	if hasOp(ops, bytecode.OpGetDisplayField) || hasOp(ops, bytecode.OpMakeDisplayClass) {
		t.Fatalf("a method using this must not synthesize or read a display class, got %v", ops)
	}
}

func TestMethodParametersFollowReceiverSlot(t *testing.T) {
	v := &tast.VarDecl{Name: "v", Type: tast.Any{}}
	fn := &tast.FunctionPlan{QualifiedName: "t.C#setX", IsMethod: true, Params: []*tast.VarDecl{v}, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Ident{Info: typed(tast.Any{}), Name: "v", Decl: v}}}
	cf, _ := compile(t, fn)
	if op := bytecode.Opcode(cf.Chunk.Code[0]); op != bytecode.OpGetLocal {
		t.Fatalf("expected a parameter load, got %v", op)
	}
	if cf.Chunk.Code[1] != 1 {
		t.Fatalf("a method parameter starts one past the receiver slot, got slot %d", cf.Chunk.Code[1])
	}
}

func TestPlainFunctionParametersStartAtSlotZero(t *testing.T) {
	v := &tast.VarDecl{Name: "v", Type: tast.Any{}}
	fn := &tast.FunctionPlan{QualifiedName: "t.id", Params: []*tast.VarDecl{v}, Return: tast.Any{}}
	fn.Body = []tast.Stmt{&tast.Return{Value: &tast.Ident{Info: typed(tast.Any{}), Name: "v", Decl: v}}}
	cf, _ := compile(t, fn)
	if cf.Chunk.Code[1] != 0 {
		t.Fatalf("a plain function has no receiver; its first parameter is slot 0, got %d", cf.Chunk.Code[1])
	}
}

func TestLockTrampolineForwardsReceiverAndArguments(t *testing.T) {
	v := &tast.VarDecl{Name: "v", Type: tast.Any{}}
	fn := &tast.FunctionPlan{
		QualifiedName: "t.C#put",
		IsMethod:      true,
		Params:        []*tast.VarDecl{v},
		Decorators:    []string{"lock"},
		Return:        tast.Void{},
	}
	cf, _ := compile(t, fn)
	c := cf.Chunk
	// [GetLocal 0] [LockEnter] [GetLocal 0] [GetLocal 1] [Call idx idx argc] ...
	if bytecode.Opcode(c.Code[0]) != bytecode.OpGetLocal || c.Code[1] != 0 {
		t.Fatalf("trampoline must read the receiver for the lock, got %v %d", bytecode.Opcode(c.Code[0]), c.Code[1])
	}
	if bytecode.Opcode(c.Code[3]) != bytecode.OpGetLocal || c.Code[4] != 0 {
		t.Fatalf("the inner call needs the receiver again, got %v %d", bytecode.Opcode(c.Code[3]), c.Code[4])
	}
	if bytecode.Opcode(c.Code[5]) != bytecode.OpGetLocal || c.Code[6] != 1 {
		t.Fatalf("argument 0 lives in slot 1, past the receiver, got %v %d", bytecode.Opcode(c.Code[5]), c.Code[6])
	}
	if c.Code[10] != 1 {
		t.Fatalf("the inner call forwards one declared argument, got argc %d", c.Code[10])
	}
}
