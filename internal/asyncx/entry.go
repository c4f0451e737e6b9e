package asyncx

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/tast"
)

// emitStarter builds the small CompiledFunction kept under fn's own
// QualifiedName: it takes fn's real parameters, allocates the state object
// (OpMakeDisplayClass, the same construction idiom closure instantiation
// uses), seeds it from the incoming arguments and the receiver, sets the
// initial state to running, and hands the object to the runtime's async or
// generator starter entry point — the same trampoline shape the @lock
// lowering uses.
func emitStarter(fn *tast.FunctionPlan, layout *stateLayout) *bytecode.CompiledFunction {
	c := bytecode.NewChunk()

	// An async method's caller pushes the receiver before the declared
	// arguments, so its parameters sit one slot higher than a plain
	// function's.
	argBase := 0
	if fn.IsMethod {
		argBase = 1
	}
	for i := 0; i < layout.paramCount; i++ {
		c.WriteOp(bytecode.OpGetLocal, 0, 0)
		c.Write(byte(argBase+i), 0, 0)
	}
	// Hoisted locals the body declares but the caller doesn't supply start
	// out nil; move_next's first pass through their declaration overwrites
	// them exactly as an ordinary local would be initialized.
	for i := layout.paramCount; i < len(layout.display.Fields); i++ {
		c.WriteOp(bytecode.OpNil, 0, 0)
	}
	if fn.IsMethod {
		c.WriteOp(bytecode.OpGetLocal, 0, 0) // the reserved receiver slot
		c.Write(0, 0, 0)
	} else {
		c.WriteOp(bytecode.OpNil, 0, 0) // no receiver to hoist
	}
	c.WriteConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: -1}, 0, 0)
	for i := 0; i < layout.suspendCount; i++ {
		c.WriteOp(bytecode.OpNil, 0, 0) // awaiter slots
	}
	c.WriteOp(bytecode.OpNil, 0, 0) // shared yield produced/sent-value slot
	for i := 0; i < layout.tryCount; i++ {
		c.WriteOp(bytecode.OpNil, 0, 0) // per-region exception slots
	}

	idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: layout.display.Name})
	c.WriteOp(bytecode.OpMakeDisplayClass, 0, 0)
	c.Write(byte(idx>>8), 0, 0)
	c.Write(byte(idx), 0, 0)

	entry := "StartGeneratorStateMachine"
	if fn.IsAsync {
		entry = "StartAsyncStateMachine"
	}
	entryIdx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstEntryPoint, Str: entry})
	c.WriteOp(bytecode.OpCallRuntime, 0, 0)
	c.Write(byte(entryIdx>>8), 0, 0)
	c.Write(byte(entryIdx), 0, 0)
	c.Write(1, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	return &bytecode.CompiledFunction{
		QualifiedName: fn.QualifiedName,
		Chunk:         c,
		Arity:         layout.paramCount,
	}
}
