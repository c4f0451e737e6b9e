package closure

import (
	"testing"

	"github.com/sharpts/sharpts/internal/tast"
)

// buildMakeCounter constructs the typed AST for the classic counter
// scenario 3:
//
//	function make() { let n = 0; return () => ++n; }
func buildMakeCounter() (*tast.FunctionPlan, *tast.VarDecl, *tast.FunctionPlan) {
	nDecl := &tast.VarDecl{
		Name:    "n",
		Mutable: true,
		Init:    &tast.Literal{Value: float64(0)},
	}

	arrow := &tast.FunctionPlan{QualifiedName: "make$arrow0", IsArrow: true}
	arrowBody := []tast.Stmt{
		&tast.Return{Value: &tast.Unary{Op: "++", Operand: &tast.Ident{Name: "n", Decl: nDecl}}},
	}
	arrow.Body = arrowBody

	makeFn := &tast.FunctionPlan{QualifiedName: "make"}
	makeFn.Body = []tast.Stmt{
		nDecl,
		&tast.Return{Value: &tast.FunctionExpr{Plan: arrow}},
	}
	arrow.Enclosing = makeFn

	return makeFn, nDecl, arrow
}

func TestClosureCaptureSoundness(t *testing.T) {
	makeFn, nDecl, arrow := buildMakeCounter()
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{makeFn}}

	cm := Analyze([]*tast.Module{mod})

	if !cm.IsCaptured(nDecl) {
		t.Fatalf("expected n to be captured")
	}
	caps := cm.CapturesOf(arrow)
	if len(caps) != 1 || caps[0] != nDecl {
		t.Fatalf("expected arrow to capture exactly [n], got %v", caps)
	}
	if len(cm.CapturesOf(makeFn)) != 0 {
		t.Fatalf("make() itself should capture nothing, declares its own n")
	}
}

func TestClosureOwnLocalIsNotACapture(t *testing.T) {
	fn := &tast.FunctionPlan{QualifiedName: "f"}
	decl := &tast.VarDecl{Name: "x"}
	fn.Body = []tast.Stmt{
		decl,
		&tast.Return{Value: &tast.Ident{Name: "x", Decl: decl}},
	}
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{fn}}

	cm := Analyze([]*tast.Module{mod})

	if cm.IsCaptured(decl) {
		t.Fatalf("x is declared and used in the same function; must not be a capture")
	}
}

func TestClosureBuiltinsExcluded(t *testing.T) {
	fn := &tast.FunctionPlan{QualifiedName: "f"}
	fn.Body = []tast.Stmt{
		&tast.ExprStmt{X: &tast.Call{
			Callee: &tast.Member{Object: &tast.Ident{Name: "console"}, Name: "log"},
		}},
	}
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{fn}}

	cm := Analyze([]*tast.Module{mod})
	if len(cm.CapturesOf(fn)) != 0 {
		t.Fatalf("console is a builtin and must never be treated as a capture")
	}
}

func TestArrowUsesThisPropagatesToEnclosingMethod(t *testing.T) {
	arrow := &tast.FunctionPlan{QualifiedName: "method$arrow0", IsArrow: true}
	arrow.Body = []tast.Stmt{&tast.ExprStmt{X: &tast.ThisExpr{}}}

	method := &tast.FunctionPlan{QualifiedName: "C.method"}
	method.Body = []tast.Stmt{
		&tast.ExprStmt{X: &tast.FunctionExpr{Plan: arrow}},
	}
	arrow.Enclosing = method

	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{method}}
	cm := Analyze([]*tast.Module{mod})

	if !cm.UsesThis(arrow) {
		t.Fatalf("arrow directly references this")
	}
	if !cm.UsesThis(method) {
		t.Fatalf("this-usage inside an arrow must propagate to the lexically enclosing method, since arrows never bind their own this")
	}
}

func TestDisplayClassSynthIsLazy(t *testing.T) {
	makeFn, nDecl, arrow := buildMakeCounter()
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{makeFn}}
	cm := Analyze([]*tast.Module{mod})

	if dc := Synth(makeFn, cm, nil); dc != nil {
		t.Fatalf("make() captures nothing and uses no this; it needs no DisplayClass")
	}
	dc := Synth(arrow, cm, nil)
	if dc == nil {
		t.Fatalf("arrow captures n; it needs a DisplayClass")
	}
	if len(dc.Fields) != 1 || dc.Fields[0] != nDecl {
		t.Fatalf("expected display class to hold exactly [n], got %v", dc.Fields)
	}
	owner, depth, slot := dc.Resolve(nDecl)
	if owner != dc || depth != 0 || slot != 0 {
		t.Fatalf("expected n to resolve to this display class at depth 0 slot 0, got owner=%v depth=%d slot=%d", owner, depth, slot)
	}
}

func TestOrdinaryMethodGetsNoDisplayForThis(t *testing.T) {
	method := &tast.FunctionPlan{QualifiedName: "C.method", IsMethod: true}
	method.Body = []tast.Stmt{&tast.ExprStmt{X: &tast.ThisExpr{}}}
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{method}}
	cm := Analyze([]*tast.Module{mod})

	if !cm.UsesThis(method) {
		t.Fatalf("the method plainly reads this")
	}
	if dc := Synth(method, cm, nil); dc != nil {
		t.Fatalf("an ordinary method reads its own receiver slot; it must not get a display class for this")
	}
}

func TestArrowUsingThisGetsAThisSlot(t *testing.T) {
	arrow := &tast.FunctionPlan{QualifiedName: "C.method$arrow0", IsArrow: true}
	arrow.Body = []tast.Stmt{&tast.ExprStmt{X: &tast.ThisExpr{}}}
	mod := &tast.Module{ID: "m", Functions: []*tast.FunctionPlan{arrow}}
	cm := Analyze([]*tast.Module{mod})

	dc := Synth(arrow, cm, nil)
	if dc == nil || !dc.HasThisSlot {
		t.Fatalf("an arrow's this lives in its display class; got %+v", dc)
	}
}
