package emit

import (
	"fmt"

	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/modplan"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
	"github.com/sharpts/sharpts/internal/unions"
)

// local is one tracked local variable slot. Capture decisions are already
// final by the time the emitter runs (internal/closure ran first), so a
// variable captured across a function boundary is addressed through a
// DisplayClass field, never through a local slot of the inner function.
type local struct {
	decl  *tast.VarDecl
	depth int
	slot  int
}

// loopCtx tracks break/continue jump targets for the enclosing loop.
type loopCtx struct {
	label      string
	loopStart  int
	breakJumps []int
	depth      int
}

// Emitter lowers one FunctionPlan's body to a Chunk. A fresh Emitter
// (internal/asyncx also creates its own through New) is used per function; state is not
// shared across functions except through the read-only Catalog/Unions/
// Captures/Exports inputs.
type Emitter struct {
	Catalog  *runtime.Catalog
	Unions   *unions.Synth
	Captures *closure.CaptureMap
	Exports  *modplan.Result
	Bag      *diag.Bag

	fn    *tast.FunctionPlan
	chunk *bytecode.Chunk

	locals    []local
	depth     int
	slotCount int

	loopStack []loopCtx

	// display is the DisplayClass synthesized for fn, or nil if fn
	// captures nothing and doesn't use `this` (internal/closure.Synth).
	display *closure.DisplayClass

	// outerDisplay is the enclosing function's DisplayClass, used to walk
	// past fn's own scope when resolving a capture fn reads but doesn't
	// own (see resolveDisplayChain in expr.go).
	outerDisplay *closure.DisplayClass

	// lastRepr is the typed-stack Repr of the value EmitExpr most recently
	// left on top of the stack. Every EmitExpr case sets it before
	// returning, so callers (ensureBoxed/ensureDouble/ensureBoolean, and
	// statement lowering in stmt.go) know whether a conversion is needed.
	lastRepr Repr

	// extra holds additional CompiledFunctions wrapLock synthesizes
	// alongside the primary one (see lock.go); the Linker collects these
	// through ExtraFunctions and registers them in the Image too.
	extra []*bytecode.CompiledFunction

	// InAsyncFragment marks that this Emitter is compiling a straight-line
	// fragment inside an async function's state machine (internal/asyncx
	// sets this before reusing SyncEmitter for code between suspension
	// points). Argument evaluation changes under it: every argument
	// expression is materialized to a temporary before the call is issued,
	// because any argument may suspend and clear the evaluation stack.
	InAsyncFragment bool

	// Suspend, when set, takes over emission of an *tast.Await or
	// *tast.Yield node reaching EmitExpr instead of the default panic.
	// internal/asyncx installs this so it can reuse this same Emitter (and
	// chunk, locals, and display) for the straight-line fragments around
	// each suspension point while still owning the suspend/resume bytecode
	// itself.
	Suspend func(e *Emitter, x tast.Expr)

	// TryHandler, when set and returning true, takes over emission of a
	// *tast.TryRegion instead of emitTryNative. internal/asyncx installs
	// this for regions that contain a suspension point, since those can't
	// rely on a native exception-region frame spanning a resumption.
	TryHandler func(e *Emitter, n *tast.TryRegion) bool
}

// New builds an Emitter for fn. display is the result of closure.Synth for
// fn (nil if fn needs none); outerDisplay, if non-nil, is the enclosing
// function's DisplayClass, used to resolve captures this function reads
// through nested scopes but doesn't itself own.
func New(catalog *runtime.Catalog, us *unions.Synth, cm *closure.CaptureMap, exports *modplan.Result, bag *diag.Bag, fn *tast.FunctionPlan, display, outerDisplay *closure.DisplayClass) *Emitter {
	return &Emitter{
		Catalog:      catalog,
		Unions:       us,
		Captures:     cm,
		Exports:      exports,
		Bag:          bag,
		fn:           fn,
		chunk:        bytecode.NewChunk(),
		display:      display,
		outerDisplay: outerDisplay,
	}
}

// Chunk exposes the in-progress chunk, mainly for internal/asyncx to
// interleave hand-emitted state-dispatch code around SyncEmitter fragments.
func (e *Emitter) Chunk() *bytecode.Chunk { return e.chunk }

// EmitStateMachineBody is internal/asyncx's entry point into this package:
// it lowers fn's body exactly like EmitFunction's statement-emission loop,
// but skips the ordinary parameter-entry sequence (a state machine's
// move_next takes no parameters — the starter function populates the
// state object's fields before the first call) and leaves the trailing
// completion/return sequence to the caller, which needs to interleave its
// own state-field bookkeeping first.
func (e *Emitter) EmitStateMachineBody() {
	e.beginScope()
	e.emitStmts(e.fn.Body)
	e.endScope(diag.Span{})
}

// EnsureTopBoxed boxes the top-of-stack value if it isn't already, per the
// typed-stack discipline. Exported for internal/asyncx,
// which needs to box an awaited/yielded operand the same way ordinary
// expression emission does before writing it into a state-object field.
func (e *Emitter) EnsureTopBoxed() { e.ensureBoxed(e.lastRepr) }

// MarkRepr overrides the tracked Repr of the value EmitExpr last left on
// the stack. internal/asyncx calls this after splicing in suspend/resume
// bytecode of its own, since that bytecode doesn't run through EmitExpr
// and so never sets lastRepr itself.
func (e *Emitter) MarkRepr(r Repr) { e.lastRepr = r }

// EmitStmt lowers a single statement. The AsyncXformer's simulated
// try-region lowering calls back into ordinary statement emission for the
// body, catch, and finally blocks it rearranges.
func (e *Emitter) EmitStmt(s tast.Stmt) { e.emitStmt(s) }

// BeginScope/EndScope bracket a lexical scope opened by a caller outside
// this package (the simulated catch block's one-name scope).
func (e *Emitter) BeginScope() { e.beginScope() }
func (e *Emitter) EndScope()   { e.endScope(diag.Span{}) }

// BindLocal registers decl as owning the value currently on top of the
// stack, exactly like a VarDecl initializer would.
func (e *Emitter) BindLocal(decl *tast.VarDecl) { e.addLocal(decl) }

// LocalSlot returns decl's stack slot within the function being emitted,
// or -1 when decl isn't one of its locals. Module-init emission uses this
// to read a top-level binding when writing its export slot.
func (e *Emitter) LocalSlot(decl *tast.VarDecl) int { return e.resolveLocalSlot(decl) }

// ExtraFunctions returns any additional CompiledFunctions synthesized while
// emitting fn (currently only the @lock trampoline, see lock.go). The
// Linker registers these in the Image alongside EmitFunction's own return
// value.
func (e *Emitter) ExtraFunctions() []*bytecode.CompiledFunction { return e.extra }

// EmitFunction lowers fn's parameter entry sequence and body, and returns the finished
// CompiledFunction. fn must have no suspension points; AsyncXformer handles
// those and calls into this package only for the
// straight-line fragments between them.
func (e *Emitter) EmitFunction() *bytecode.CompiledFunction {
	e.beginScope()
	// For an instance method the caller pushes the receiver before the
	// declared arguments, so slot 0 must be allocated before any parameter
	// claims it.
	if e.fn.IsMethod {
		e.addLocal(&tast.VarDecl{Name: "this", Kind: tast.Param})
	}
	for i, p := range e.fn.Params {
		e.addLocal(p)
		if def, ok := e.fn.Defaults[i]; ok {
			e.emitDefaultParam(p, def)
		}
	}
	e.emitStmts(e.fn.Body)
	e.emitOp(bytecode.OpNil, diag.Span{})
	e.emitOp(bytecode.OpReturn, diag.Span{})
	e.endScope(diag.Span{})

	cf := &bytecode.CompiledFunction{
		QualifiedName: e.fn.QualifiedName,
		Chunk:         e.chunk,
		Arity:         len(e.fn.Params),
	}
	if e.display != nil {
		cf.UpvalueCount = len(e.display.Fields)
	}
	e.emitOverloads()
	return e.wrapLock(cf)
}

// emitOverloads synthesizes one forwarding entry point per legal arity
// below the full parameter count, for functions with default parameters.
// Each overload evaluates the missing defaults and calls the full-arity
// body, so external callers can bind any legal arity by name
// (QualifiedName#arity).
func (e *Emitter) emitOverloads() {
	if len(e.fn.Defaults) == 0 {
		return
	}
	firstDefault := len(e.fn.Params)
	for i := range e.fn.Params {
		if _, ok := e.fn.Defaults[i]; ok {
			firstDefault = i
			break
		}
	}
	for arity := firstDefault; arity < len(e.fn.Params); arity++ {
		e.extra = append(e.extra, e.emitOverload(arity))
	}
}

func (e *Emitter) emitOverload(arity int) *bytecode.CompiledFunction {
	o := &Emitter{
		Catalog:  e.Catalog,
		Unions:   e.Unions,
		Captures: e.Captures,
		Exports:  e.Exports,
		Bag:      e.Bag,
		fn:       e.fn,
		chunk:    bytecode.NewChunk(),
	}
	o.beginScope()
	argBase := 0
	if e.fn.IsMethod {
		o.addLocal(&tast.VarDecl{Name: "this", Kind: tast.Param})
		argBase = 1
	}
	for i := 0; i < arity; i++ {
		o.addLocal(e.fn.Params[i])
	}
	c := o.chunk
	if e.fn.IsMethod {
		c.WriteOp(bytecode.OpGetLocal, 0, 0)
		c.Write(0, 0, 0)
	}
	for i := 0; i < arity; i++ {
		c.WriteOp(bytecode.OpGetLocal, 0, 0)
		c.Write(byte(argBase+i), 0, 0)
	}
	for i := arity; i < len(e.fn.Params); i++ {
		if def, ok := e.fn.Defaults[i]; ok {
			o.EmitExpr(def)
			o.ensureBoxed(o.lastRepr)
		} else {
			c.WriteOp(bytecode.OpNil, 0, 0)
		}
	}
	c.WriteOp(bytecode.OpCall, 0, 0)
	idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: e.fn.QualifiedName})
	c.Write(byte(idx>>8), 0, 0)
	c.Write(byte(idx), 0, 0)
	c.Write(byte(len(e.fn.Params)), 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	return &bytecode.CompiledFunction{
		QualifiedName: fmt.Sprintf("%s#%d", e.fn.QualifiedName, arity),
		Chunk:         c,
		Arity:         arity,
	}
}

// emitDefaultParam inserts, at function entry, `if arg == null { arg =
// <default> }` for a parameter with a default value.
func (e *Emitter) emitDefaultParam(p *tast.VarDecl, def tast.Expr) {
	slot := e.resolveLocalSlot(p)
	line, col := spanLineCol(p.Span())
	e.emitOp(bytecode.OpGetLocal, p.Span())
	e.chunk.Write(byte(slot), line, col)
	e.chunk.WriteOp(bytecode.OpNil, line, col)
	e.chunk.WriteOp(bytecode.OpEqStrict, line, col)
	jump := e.chunk.WriteJump(bytecode.OpJumpIfFalsy, line, col)
	e.EmitExpr(def)
	e.emitOp(bytecode.OpSetLocal, p.Span())
	e.chunk.Write(byte(slot), line, col)
	e.chunk.PatchJump(jump)
}

func spanLineCol(s diag.Span) (int, int) { return s.Line, s.Col }

func (e *Emitter) emitOp(op bytecode.Opcode, span diag.Span) {
	line, col := spanLineCol(span)
	e.chunk.WriteOp(op, line, col)
}
