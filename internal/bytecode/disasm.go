package bytecode

import (
	"fmt"
	"strings"
)

// operandWidths declares, per opcode, how many immediate-operand bytes
// follow the opcode byte. OpStateDispatch is the one variable-width
// instruction (its resume table length depends on the suspension count)
// and is handled separately.
var operandWidths = map[Opcode]int{
	OpConst: 2,

	OpGetLocal:        1,
	OpSetLocal:        1,
	OpGetUpvalue:      2, // chain depth, field slot
	OpSetUpvalue:      2,
	OpGetDisplayField: 1,
	OpSetDisplayField: 1,
	OpGetStaticField:  2,
	OpSetStaticField:  2,
	OpGetExportSlot:   2,
	OpSetExportSlot:   2,
	OpGetWellKnownSymbol: 2,

	OpGetPropertyRuntime: 2,
	OpSetPropertyRuntime: 2,

	OpJumpIfFalsy:   2,
	OpJumpIfTruthy:  2,
	OpJumpIfNullish: 2,
	OpJump:          2,
	OpLoop:          2,

	OpCall:          3, // name constant, argument count
	OpCallStrategy:  3,
	OpCallRuntime:   3,
	OpCallAmbiguous: 3,
	OpTailCall:      1,

	OpMakeClosure:      2,
	OpMakeDisplayClass: 2,
	OpMakeArray:        2,
	OpMakeUnion:        1, // member tag
	OpUnionIs:          1,
	OpUnionAs:          1,

	OpEnterTrySim:        1, // exception-slot index
	OpCheckExceptionSlot: 1,

	OpAwaitBegin:   1,
	OpAwaitSuspend: 2, // resume state, awaiter slot
	OpAwaitResume:  2, // awaiter slot, exception slot (0xff = none)
	OpYieldValue:   2,
	OpYieldDelegate: 2,
}

// constantOperand marks opcodes whose first two operand bytes index the
// constant pool, so the disassembly can print the referenced value.
var constantOperand = map[Opcode]bool{
	OpConst: true, OpGetStaticField: true, OpSetStaticField: true,
	OpGetExportSlot: true, OpSetExportSlot: true, OpGetWellKnownSymbol: true,
	OpGetPropertyRuntime: true, OpSetPropertyRuntime: true,
	OpMakeClosure: true, OpMakeDisplayClass: true,
	OpCall: true, OpCallStrategy: true, OpCallRuntime: true, OpCallAmbiguous: true,
}

// Opcodes returns the chunk's instruction stream as a flat opcode list,
// skipping operand bytes. Tests assert on lowering shapes with this.
func Opcodes(chunk *Chunk) []Opcode {
	var ops []Opcode
	offset := 0
	for offset < len(chunk.Code) {
		op := Opcode(chunk.Code[offset])
		ops = append(ops, op)
		if op == OpStateDispatch {
			count := int(chunk.Code[offset+2])
			offset += 3 + count*2
			continue
		}
		offset += 1 + operandWidths[op]
	}
	return ops
}

// Disassemble renders a Chunk as human-readable text, one instruction per
// line in "offset line NAME operands" form.
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleOne(&sb, chunk, offset)
	}
	return sb.String()
}

func disassembleOne(sb *strings.Builder, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", chunk.Lines[offset])
	}

	op := Opcode(chunk.Code[offset])

	if op == OpStateDispatch {
		stateField := chunk.Code[offset+1]
		count := int(chunk.Code[offset+2])
		fmt.Fprintf(sb, "%-20s %4d states=%d\n", op, stateField, count)
		return offset + 3 + count*2
	}

	width := operandWidths[op]
	switch {
	case op == OpJump || op == OpJumpIfFalsy || op == OpJumpIfTruthy || op == OpJumpIfNullish:
		delta := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		fmt.Fprintf(sb, "%-20s %4d -> %d\n", op, delta, offset+3+delta)
	case op == OpLoop:
		delta := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		fmt.Fprintf(sb, "%-20s %4d -> %d\n", op, delta, offset+3-delta)
	case constantOperand[op]:
		idx := chunk.ReadConstantIndex(offset + 1)
		if width == 3 {
			fmt.Fprintf(sb, "%-20s %4d '%v' argc=%d\n", op, idx, constantString(chunk.Constants[idx]), chunk.Code[offset+3])
		} else {
			fmt.Fprintf(sb, "%-20s %4d '%v'\n", op, idx, constantString(chunk.Constants[idx]))
		}
	case width == 1:
		fmt.Fprintf(sb, "%-20s %4d\n", op, chunk.Code[offset+1])
	case width == 2:
		fmt.Fprintf(sb, "%-20s %4d %4d\n", op, chunk.Code[offset+1], chunk.Code[offset+2])
	default:
		fmt.Fprintf(sb, "%s\n", op)
	}
	return offset + 1 + width
}

func constantString(c Constant) string {
	switch c.Kind {
	case ConstNumber:
		return fmt.Sprintf("%g", c.Number)
	case ConstString, ConstEntryPoint:
		return c.Str
	case ConstExportSlot:
		return strings.ReplaceAll(c.Str, "\x00", ":")
	case ConstBigInt:
		return c.Str + "n"
	default:
		return "?"
	}
}
