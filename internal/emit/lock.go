package emit

import "github.com/sharpts/sharpts/internal/bytecode"

// wrapLock implements the `@lock` decorator: the method body
// itself is emitted unchanged, and a small trampoline function takes its
// place under the method's original qualified name, bracketing a call to
// the renamed body with OpLockEnter/OpLockExit. Routing every return
// through a shared exit is therefore the trampoline's job, not something
// the body's own statement lowering needs to know about — every `return`
// inside cf already exits cleanly into the trampoline's own OpCall/
// OpLockExit/OpReturn sequence, so stmt.go's emitReturn needs no special
// case for locked methods.
//
// OpLockEnter/OpLockExit are themselves the reentrancy-aware primitive
// (per-instance lock slot, per-flow reentrancy counter): the runtime
// library backs them, the emitter only has to bracket the
// call correctly.
func (e *Emitter) wrapLock(cf *bytecode.CompiledFunction) *bytecode.CompiledFunction {
	locked := false
	for _, d := range e.fn.Decorators {
		if d == "lock" {
			locked = true
			break
		}
	}
	if !locked {
		return cf
	}

	inner := *cf
	inner.QualifiedName = cf.QualifiedName + "$locked_impl"

	// @lock is accepted only on instance methods (the lock is keyed by a
	// per-instance slot), so the trampoline shares the method calling
	// convention: receiver in slot 0, declared arguments in 1..Arity.
	tramp := bytecode.NewChunk()
	tramp.WriteOp(bytecode.OpGetLocal, 0, 0)
	tramp.Write(0, 0, 0) // the receiver instance owning the lock
	tramp.WriteOp(bytecode.OpLockEnter, 0, 0)

	tramp.WriteOp(bytecode.OpGetLocal, 0, 0)
	tramp.Write(0, 0, 0) // receiver for the inner call
	for i := 1; i <= cf.Arity; i++ {
		tramp.WriteOp(bytecode.OpGetLocal, 0, 0)
		tramp.Write(byte(i), 0, 0)
	}
	tramp.WriteOp(bytecode.OpCall, 0, 0)
	nameIdx := tramp.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: inner.QualifiedName})
	tramp.Write(byte(nameIdx>>8), 0, 0)
	tramp.Write(byte(nameIdx), 0, 0)
	tramp.Write(byte(cf.Arity), 0, 0)

	tramp.WriteOp(bytecode.OpGetLocal, 0, 0)
	tramp.Write(0, 0, 0)
	tramp.WriteOp(bytecode.OpLockExit, 0, 0)
	tramp.WriteOp(bytecode.OpReturn, 0, 0)

	e.extra = append(e.extra, &inner)

	return &bytecode.CompiledFunction{
		QualifiedName: cf.QualifiedName,
		Chunk:         tramp,
		Arity:         cf.Arity,
		UpvalueCount:  cf.UpvalueCount,
	}
}
