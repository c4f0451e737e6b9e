// Package bytecode defines the stack-based instruction set the sync
// emitter and the async transformer lower typed expressions and statements
// into, and the binary image container the linker assembles them into. The
// instruction set follows the classic stack-VM shape (Code/Constants/Lines
// arrays) extended with typed-stack conversions for boxing elision, union
// tag dispatch, export-slot access, and state-machine suspension support.
package bytecode

// Opcode is a single instruction. The set realizes the typed-stack
// discipline (Unknown/Double/Boolean/String/Null representations and the
// conversions between them) and the async state-machine dispatch.
type Opcode byte

const (
	OpConst Opcode = iota
	OpPop
	OpDup

	// Typed-stack conversions: inserted only when the
	// current tracked representation differs from the one an operation
	// needs.
	OpEnsureBoxed
	OpEnsureDouble
	OpEnsureBoolean

	OpAddNumeric // both operands statically double: native double add
	OpAddRuntime // mixed/unknown: calls RuntimeCatalog "Add"
	OpConcatString
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpBAnd32
	OpBOr32
	OpBXor32
	OpLShift32
	OpRShift32
	OpURShift32 // >>> : widens via unsigned 64-bit before converting to double

	OpEqRuntime     // == / != via runtime Equals (negated by caller for !=)
	OpEqStrict      // === / !== via identity-aware Equals
	OpLt
	OpLe
	OpGt
	OpGe

	OpNot
	// OpJumpIfFalsy/OpJumpIfTruthy implement short-circuit && / || and ??
	// without first coercing the kept operand to boolean.
	OpJumpIfFalsy
	OpJumpIfTruthy
	OpJumpIfNullish
	OpJump
	OpLoop

	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetDisplayField // load a captured variable's slot through a DisplayClass reference
	OpSetDisplayField
	OpGetStaticField // known-class static field direct slot load
	OpSetStaticField
	OpGetExportSlot // process-wide export slot read
	OpSetExportSlot
	OpGetWellKnownSymbol

	OpGetPropertyRuntime // RuntimeCatalog GetProperty fallback
	OpSetPropertyRuntime
	OpGetIndexRuntime
	OpSetIndexRuntime

	OpCall           // direct dispatch, known class instance method or function
	OpCallStrategy   // inlined type-strategy-registry call on a Math/JSON/Object/Array/Number/Promise/Symbol namespace receiver
	OpCallRuntime    // call a named RuntimeCatalog entry point (InvokeValue for indirect calls)
	OpCallAmbiguous  // runtime type-switch for slice/concat/includes/indexOf
	OpTailCall
	OpReturn

	OpMakeClosure      // instantiate a closure over the function's DisplayClass chain
	OpMakeDisplayClass // allocate a new heap environment for a lexical scope
	OpMakeArray
	OpMakeUnion // construct a union value with a given member tag

	OpUnionIs  // union "is T" predicate by tag
	OpUnionAs  // union "as T" projection; throws InvalidCast on tag mismatch
	OpUnionBox // union "value" projection, boxing value-typed members

	OpThrow
	OpEnterTry  // native try-region entry (no suspension inside)
	OpLeaveTry
	OpEnterTrySim // simulated try-region entry for a region containing a suspension point
	OpCheckExceptionSlot

	OpLockEnter // @lock decorator: reentrancy-checked monitor enter
	OpLockExit

	// Async/generator state machine support.
	OpAwaitBegin    // evaluate into the awaiter field, branch to post-await label if already complete
	OpAwaitSuspend  // write resume state, register with builder, leave move_next
	OpAwaitResume   // reset state to running, read the awaited result
	OpYieldValue    // write produced value into result slot, store resume state, return true
	OpYieldDelegate // drive an inner iterable, relaying each of its yields as an outer suspension
	OpStateDispatch // dispatch on the state field to the correct resume label

	OpNil
	OpTrue
	OpFalse
	OpHalt
)

var names = map[Opcode]string{
	OpConst: "CONST", OpPop: "POP", OpDup: "DUP",
	OpEnsureBoxed: "ENSURE_BOXED", OpEnsureDouble: "ENSURE_DOUBLE", OpEnsureBoolean: "ENSURE_BOOLEAN",
	OpAddNumeric: "ADD_NUMERIC", OpAddRuntime: "ADD_RUNTIME", OpConcatString: "CONCAT_STRING",
	OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNeg: "NEG",
	OpBAnd32: "BAND32", OpBOr32: "BOR32", OpBXor32: "BXOR32",
	OpLShift32: "LSHIFT32", OpRShift32: "RSHIFT32", OpURShift32: "URSHIFT32",
	OpEqRuntime: "EQ_RUNTIME", OpEqStrict: "EQ_STRICT",
	OpLt: "LT", OpLe: "LE", OpGt: "GT", OpGe: "GE",
	OpNot: "NOT", OpJumpIfFalsy: "JUMP_IF_FALSY", OpJumpIfTruthy: "JUMP_IF_TRUTHY",
	OpJumpIfNullish: "JUMP_IF_NULLISH", OpJump: "JUMP", OpLoop: "LOOP",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE",
	OpGetDisplayField: "GET_DISPLAY_FIELD", OpSetDisplayField: "SET_DISPLAY_FIELD",
	OpGetStaticField: "GET_STATIC_FIELD", OpSetStaticField: "SET_STATIC_FIELD",
	OpGetExportSlot: "GET_EXPORT_SLOT", OpSetExportSlot: "SET_EXPORT_SLOT",
	OpGetWellKnownSymbol: "GET_WELL_KNOWN_SYMBOL",
	OpGetPropertyRuntime: "GET_PROPERTY_RUNTIME", OpSetPropertyRuntime: "SET_PROPERTY_RUNTIME",
	OpGetIndexRuntime: "GET_INDEX_RUNTIME", OpSetIndexRuntime: "SET_INDEX_RUNTIME",
	OpCall: "CALL", OpCallStrategy: "CALL_STRATEGY", OpCallRuntime: "CALL_RUNTIME",
	OpCallAmbiguous: "CALL_AMBIGUOUS", OpTailCall: "TAIL_CALL", OpReturn: "RETURN",
	OpMakeClosure: "MAKE_CLOSURE", OpMakeDisplayClass: "MAKE_DISPLAY_CLASS",
	OpMakeArray: "MAKE_ARRAY", OpMakeUnion: "MAKE_UNION",
	OpUnionIs: "UNION_IS", OpUnionAs: "UNION_AS", OpUnionBox: "UNION_BOX",
	OpThrow: "THROW", OpEnterTry: "ENTER_TRY", OpLeaveTry: "LEAVE_TRY",
	OpEnterTrySim: "ENTER_TRY_SIM", OpCheckExceptionSlot: "CHECK_EXCEPTION_SLOT",
	OpLockEnter: "LOCK_ENTER", OpLockExit: "LOCK_EXIT",
	OpAwaitBegin: "AWAIT_BEGIN", OpAwaitSuspend: "AWAIT_SUSPEND", OpAwaitResume: "AWAIT_RESUME",
	OpYieldValue: "YIELD_VALUE", OpYieldDelegate: "YIELD_DELEGATE", OpStateDispatch: "STATE_DISPATCH",
	OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE", OpHalt: "HALT",
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}
