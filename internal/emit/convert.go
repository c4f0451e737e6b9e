package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// coerce bridges the static type of the value just emitted and the type
// its consuming position expects. Two conversions exist, both involving
// unions:
//
//   - a member-typed value flowing into a union-typed position is wrapped
//     via the union's implicit conversion (OpMakeUnion with the member's
//     tag);
//   - a union-typed value consumed where a specific member is expected is
//     projected through the member accessor (OpUnionAs, which faults with
//     InvalidCast when the tag disagrees at runtime), and a union consumed
//     in a polymorphic position is projected through the erased `value`
//     accessor (OpUnionBox), boxing value-typed members.
//
// Everything else is representation-level and already covered by
// ensureBoxed/ensureDouble/ensureBoolean.
func (e *Emitter) coerce(from, to tast.TypeDescriptor, span diag.Span) {
	if from == nil || to == nil {
		return
	}
	fromU, fromIsUnion := from.(tast.Union)
	toU, toIsUnion := to.(tast.Union)

	switch {
	case toIsUnion && !fromIsUnion:
		d := e.Unions.GetOrCreate(toU)
		tag := d.TagFor(from)
		if tag < 0 {
			return // not a member of the target union; the checker reports this
		}
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpMakeUnion, span)
		e.chunk.Write(byte(tag), span.Line, span.Col)
		e.lastRepr = ReprUnknown
	case fromIsUnion && !toIsUnion:
		d := e.Unions.GetOrCreate(fromU)
		e.ensureBoxed(e.lastRepr)
		if tag := d.TagFor(to); tag >= 0 {
			e.emitOp(bytecode.OpUnionAs, span)
			e.chunk.Write(byte(tag), span.Line, span.Col)
		} else {
			e.emitOp(bytecode.OpUnionBox, span)
		}
		e.lastRepr = ReprUnknown
	}
}
