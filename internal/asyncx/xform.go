package asyncx

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/emit"
	"github.com/sharpts/sharpts/internal/modplan"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
	"github.com/sharpts/sharpts/internal/unions"
)

// noExcSlot is the operand value marking an await that sits in no
// simulated try region: a fault at the result read propagates natively.
const noExcSlot = 0xff

// stateLayout records where each synthetic (non-user) field sits in the
// state object, past the hoisted user locals and the `this` slot the
// display class reserves at len(Fields).
type stateLayout struct {
	display      *closure.DisplayClass
	paramCount   int // how many of display.Fields are fn's own parameters
	stateField   int // current-state integer
	awaiterBase  int // first of suspendCount one-per-site awaiter/result fields
	suspendCount int
	yieldSlot    int // shared produced/sent-value slot for yield
	excBase      int // first of tryCount per-region exception slots
	tryCount     int
}

func newStateLayout(fn *tast.FunctionPlan, plan *bodyPlan, outer *closure.DisplayClass) *stateLayout {
	dc := &closure.DisplayClass{
		Name:        fn.QualifiedName + "$State",
		Fields:      plan.hoisted,
		HasThisSlot: true,
		Outer:       outer,
	}
	base := len(plan.hoisted) + 1 // +1 for the always-reserved `this` slot
	l := &stateLayout{
		display:      dc,
		paramCount:   len(fn.Params),
		stateField:   base,
		awaiterBase:  base + 1,
		suspendCount: plan.suspendCount,
		tryCount:     plan.tryCount(),
	}
	l.yieldSlot = l.awaiterBase + l.suspendCount
	l.excBase = l.yieldSlot + 1
	return l
}

// fieldCount is the total field count: hoisted locals, the `this` slot,
// the state integer, one awaiter slot per suspension site, the shared
// yield value slot, and one exception slot per suspending try region.
func (l *stateLayout) fieldCount() int { return l.excBase + l.tryCount }

// Transform lowers fn (fn.IsAsync or fn.IsGenerator) into a move_next
// CompiledFunction plus a small starter CompiledFunction under fn's own
// QualifiedName: callers keep calling fn.QualifiedName exactly as before,
// and the starter is the only piece that needs to know a state machine
// sits behind it.
func Transform(fn *tast.FunctionPlan, outerDisplay *closure.DisplayClass, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, exports *modplan.Result, bag *diag.Bag) (moveNext, starter *bytecode.CompiledFunction) {
	plan := analyzeBody(fn)
	layout := newStateLayout(fn, plan, outerDisplay)

	moveNext = emitMoveNext(fn, plan, layout, outerDisplay, catalog, us, captures, exports, bag)
	starter = emitStarter(fn, layout)
	return moveNext, starter
}

// emitMoveNext builds the single method that implements the whole body: a
// dispatch on the state field to the correct resume label, then the body
// itself via the ordinary Emitter with Suspend/TryHandler hooks installed.
func emitMoveNext(fn *tast.FunctionPlan, plan *bodyPlan, layout *stateLayout, outerDisplay *closure.DisplayClass, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, exports *modplan.Result, bag *diag.Bag) *bytecode.CompiledFunction {
	e := emit.New(catalog, us, captures, exports, bag, fn, layout.display, outerDisplay)
	e.InAsyncFragment = true
	c := e.Chunk()

	c.WriteOp(bytecode.OpStateDispatch, 0, 0)
	c.Write(byte(layout.stateField), 0, 0)
	c.Write(byte(layout.suspendCount), 0, 0)
	tableSlots := make([]int, layout.suspendCount)
	for i := range tableSlots {
		tableSlots[i] = c.Len()
		c.Write(0xff, 0, 0)
		c.Write(0xff, 0, 0)
	}

	// excStack tracks the innermost enclosing simulated try region during
	// emission, so each await's result read knows which exception slot a
	// fault routes into.
	var excStack []int
	currentExcSlot := func() byte {
		if len(excStack) == 0 {
			return noExcSlot
		}
		return byte(excStack[len(excStack)-1])
	}

	suspendIdx := 0
	e.Suspend = func(em *emit.Emitter, x tast.Expr) {
		switch n := x.(type) {
		case *tast.Await:
			emitAwait(em, n, layout, &suspendIdx, tableSlots, currentExcSlot())
		case *tast.Yield:
			emitYield(em, n, layout, &suspendIdx, tableSlots)
		}
	}
	e.TryHandler = func(em *emit.Emitter, n *tast.TryRegion) bool {
		ord, suspending := plan.trySlots[n.ID]
		if !suspending {
			return false // native exception-region semantics apply
		}
		slot := layout.excBase + ord
		excStack = append(excStack, slot)
		emitSimulatedTry(em, n, slot)
		excStack = excStack[:len(excStack)-1]
		return true
	}

	e.EmitStateMachineBody()

	c.WriteConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: -2}, 0, 0)
	c.WriteOp(bytecode.OpSetDisplayField, 0, 0)
	c.Write(byte(layout.stateField), 0, 0)
	c.WriteOp(bytecode.OpNil, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	return &bytecode.CompiledFunction{
		QualifiedName:  fn.QualifiedName + "$move_next",
		Chunk:          c,
		Arity:          0,
		UpvalueCount:   layout.fieldCount(),
		IsStateMachine: true,
	}
}

// emitAwait lowers `await e`: evaluate into the designated awaiter field,
// skip the suspension entirely when the awaiter reports synchronous
// completion, otherwise store the resume state and leave move_next. The
// resume label resets the state to running and reads the result: OpAwaitResume carries
// the enclosing simulated region's exception slot so a faulted awaiter
// routes into the region's catch instead of unwinding move_next natively.
func emitAwait(em *emit.Emitter, n *tast.Await, layout *stateLayout, suspendIdx *int, tableSlots []int, excSlot byte) {
	c := em.Chunk()
	slot := layout.awaiterBase + *suspendIdx

	em.EmitExpr(n.Operand)
	em.EnsureTopBoxed()
	c.WriteOp(bytecode.OpSetDisplayField, 0, 0)
	c.Write(byte(slot), 0, 0)

	// A truthy OpAwaitBegin result means the awaiter already completed;
	// branch straight past the suspension so no code path depends on the
	// suspension actually suspending.
	c.WriteOp(bytecode.OpAwaitBegin, 0, 0)
	c.Write(byte(slot), 0, 0)
	completeJump := c.WriteJump(bytecode.OpJumpIfTruthy, 0, 0)
	c.WriteOp(bytecode.OpPop, 0, 0)

	state := *suspendIdx
	c.WriteOp(bytecode.OpAwaitSuspend, 0, 0)
	c.Write(byte(state), 0, 0)
	c.Write(byte(slot), 0, 0)
	c.WriteOp(bytecode.OpNil, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	c.PatchJump(completeJump)
	c.WriteOp(bytecode.OpPop, 0, 0)

	c.PatchJump(tableSlots[state])
	c.WriteOp(bytecode.OpAwaitResume, 0, 0)
	c.Write(byte(slot), 0, 0)
	c.Write(excSlot, 0, 0)
	em.MarkRepr(emit.ReprUnknown)

	*suspendIdx++
}

// emitYield lowers `yield e`: write the produced value into the shared
// result slot, store the resume state, and return true from move_next.
// Delegating yield hands the whole inner iterable to OpYieldDelegate,
// which relays each inner value as a suspension of this same site until
// the inner iterator completes.
func emitYield(em *emit.Emitter, n *tast.Yield, layout *stateLayout, suspendIdx *int, tableSlots []int) {
	c := em.Chunk()

	if n.Operand != nil {
		em.EmitExpr(n.Operand)
		em.EnsureTopBoxed()
	} else {
		c.WriteOp(bytecode.OpNil, 0, 0)
	}
	c.WriteOp(bytecode.OpSetDisplayField, 0, 0)
	c.Write(byte(layout.yieldSlot), 0, 0)

	state := *suspendIdx
	op := bytecode.OpYieldValue
	if n.Delegate {
		op = bytecode.OpYieldDelegate
	}
	c.WriteOp(op, 0, 0)
	c.Write(byte(state), 0, 0)
	c.Write(byte(layout.yieldSlot), 0, 0)
	c.WriteOp(bytecode.OpTrue, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	c.PatchJump(tableSlots[state])
	c.WriteOp(bytecode.OpAwaitResume, 0, 0)
	c.Write(byte(layout.yieldSlot), 0, 0)
	c.Write(noExcSlot, 0, 0)
	em.MarkRepr(emit.ReprUnknown)

	*suspendIdx++
}

// emitSimulatedTry lowers a try region that contains at least one
// suspension point. Control leaves move_next between states, so the region
// cannot rely on a native exception-region frame spanning a resumption;
// instead OpEnterTrySim routes any fault in the region's dynamic extent
// into the given state-object exception slot, and catch/finally become
// ordinary control-flow blocks selected by inspecting that slot.
func emitSimulatedTry(em *emit.Emitter, n *tast.TryRegion, slot int) {
	c := em.Chunk()

	c.WriteOp(bytecode.OpEnterTrySim, 0, 0)
	c.Write(byte(slot), 0, 0)
	em.EmitStmt(n.Body)
	c.WriteOp(bytecode.OpLeaveTry, 0, 0)

	c.WriteOp(bytecode.OpCheckExceptionSlot, 0, 0)
	c.Write(byte(slot), 0, 0)
	noPending := c.WriteJump(bytecode.OpJumpIfFalsy, 0, 0)
	c.WriteOp(bytecode.OpPop, 0, 0)

	var catchEnd int
	if n.CatchBody != nil {
		em.BeginScope()
		if n.CatchParam != nil {
			c.WriteOp(bytecode.OpGetDisplayField, 0, 0)
			c.Write(byte(slot), 0, 0)
			em.BindLocal(n.CatchParam)
		}
		c.WriteOp(bytecode.OpNil, 0, 0)
		c.WriteOp(bytecode.OpSetDisplayField, 0, 0)
		c.Write(byte(slot), 0, 0)
		em.EmitStmt(n.CatchBody)
		em.EndScope()
	}
	catchEnd = c.WriteJump(bytecode.OpJump, 0, 0)

	c.PatchJump(noPending)
	c.WriteOp(bytecode.OpPop, 0, 0)
	c.PatchJump(catchEnd)

	if n.FinallyBody != nil {
		em.EmitStmt(n.FinallyBody)
	}

	// With no catch clause the region only delays propagation until the
	// finally block ran: re-raise explicitly at region exit.
	if n.CatchBody == nil {
		c.WriteOp(bytecode.OpCheckExceptionSlot, 0, 0)
		c.Write(byte(slot), 0, 0)
		clean := c.WriteJump(bytecode.OpJumpIfFalsy, 0, 0)
		c.WriteOp(bytecode.OpPop, 0, 0)
		c.WriteOp(bytecode.OpGetDisplayField, 0, 0)
		c.Write(byte(slot), 0, 0)
		c.WriteOp(bytecode.OpThrow, 0, 0)
		c.PatchJump(clean)
		c.WriteOp(bytecode.OpPop, 0, 0)
	}
}
