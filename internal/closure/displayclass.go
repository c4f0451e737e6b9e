package closure

import "github.com/sharpts/sharpts/internal/tast"

// DisplayClass is a synthetic heap record holding the variables one
// function captures from its enclosing scopes. One is synthesized, lazily,
// for a function that captures at least one variable or for an arrow that
// uses `this`; any other function needs no DisplayClass at all.
type DisplayClass struct {
	Name string // synthesized type name, qualified by the owning function
	// Fields are the VarDecls the owning function captures, in
	// CaptureMap.CapturesOf order.
	Fields []*tast.VarDecl
	// HasThisSlot is set when the owning function is an arrow whose
	// captures.UsesThis is true (and on every async state-machine layout):
	// the display class carries a `this` field so the arrow can reach the
	// outer method's receiver.
	HasThisSlot bool
	// Outer is the lexically enclosing DisplayClass, or nil. The references
	// form a DAG by construction: inner scopes reference outer
	// environments, never the other way, so plain strong references are
	// safe. Only a captured self-referential callback can reintroduce a
	// cycle, and collecting that is the host runtime's job.
	Outer *DisplayClass
}

// Synth builds (or reuses) the DisplayClass for fn, given fn's own capture
// set and whichever enclosing function's DisplayClass (if any) already
// exists. It's a pure function of the CaptureMap, not a side-effecting
// registry, because SyncEmitter decides when to call it (lazily, the first
// time it discovers fn needs one) rather than eagerly for every function.
//
// Only arrows get a `this` slot: an arrow's receiver is the enclosing
// method's, reachable solely through the heap environment once the method
// frame is gone. An ordinary function or method reading `this` reads its
// own receiver slot and needs no display for it — a method with no
// captured locals therefore gets no DisplayClass at all.
func Synth(fn *tast.FunctionPlan, captures *CaptureMap, outer *DisplayClass) *DisplayClass {
	fields := captures.CapturesOf(fn)
	hoistThis := fn.IsArrow && captures.UsesThis(fn)
	if len(fields) == 0 && !hoistThis {
		return nil
	}
	return &DisplayClass{
		Name:        fn.QualifiedName + "$Display",
		Fields:      fields,
		HasThisSlot: hoistThis,
		Outer:       outer,
	}
}

// ThisFieldIndex returns the slot `this` occupies within dc (always the
// field index immediately past the last captured local), or -1 if dc
// carries no `this` slot.
func (dc *DisplayClass) ThisFieldIndex() int {
	if !dc.HasThisSlot {
		return -1
	}
	return len(dc.Fields)
}

// FieldIndex returns the slot index of decl within dc's own Fields, or -1
// if dc doesn't directly own it (the caller should then walk dc.Outer).
func (dc *DisplayClass) FieldIndex(decl *tast.VarDecl) int {
	for i, f := range dc.Fields {
		if f == decl {
			return i
		}
	}
	return -1
}

// Resolve walks dc and its Outer chain to find which display class (and at
// what depth, 0 = dc itself) owns decl. depth is how many Outer hops the
// emitter needs to chase before indexing FieldIndex.
func (dc *DisplayClass) Resolve(decl *tast.VarDecl) (owner *DisplayClass, depth int, slot int) {
	depth = 0
	for cur := dc; cur != nil; cur = cur.Outer {
		if idx := cur.FieldIndex(decl); idx >= 0 {
			return cur, depth, idx
		}
		depth++
	}
	return nil, -1, -1
}
