package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

func (e *Emitter) beginScope() { e.depth++ }

// endScope pops every local declared at a deeper scope than the one we're
// returning to.
func (e *Emitter) endScope(span diag.Span) {
	e.depth--
	for len(e.locals) > 0 && e.locals[len(e.locals)-1].depth > e.depth {
		e.emitPop(span)
		e.slotCount--
		e.locals = e.locals[:len(e.locals)-1]
	}
}

func (e *Emitter) emitPop(span diag.Span) {
	e.emitOp(bytecode.OpPop, span)
}

// addLocal registers decl as owning the next stack slot. A VarDecl that is
// also captured by a nested closure (internal/closure.CaptureMap.
// IsCaptured) still gets an ordinary local slot here in its *own*
// function — it's read through that slot directly by this function, and
// only a nested closure reaching across a function boundary goes through a
// DisplayClass field instead (see emitIdent and resolveDisplayChain in
// expr.go).
func (e *Emitter) addLocal(decl *tast.VarDecl) {
	slot := e.slotCount
	e.locals = append(e.locals, local{decl: decl, depth: e.depth, slot: slot})
	e.slotCount++
}

// resolveLocalSlot returns decl's slot within this function, or -1 if decl
// isn't a local of this function (it's then resolved through the display
// class chain instead).
func (e *Emitter) resolveLocalSlot(decl *tast.VarDecl) int {
	for i := len(e.locals) - 1; i >= 0; i-- {
		if e.locals[i].decl == decl {
			return e.locals[i].slot
		}
	}
	return -1
}
