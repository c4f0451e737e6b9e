package modplan

import (
	"testing"

	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// TestMutualModuleCycle checks the mutual-cycle case: module m1
// exports `a = () => m2.b()`; module m2 exports `b = () => 7`.
func TestMutualModuleCycle(t *testing.T) {
	m1 := &tast.Module{ID: "m1", Statements: []tast.Stmt{
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "a"},
		&tast.ImportDecl{Path: "m2", Specifiers: []tast.ImportSpecifier{{Kind: tast.ImportNamed, Remote: "b", Local: "b"}}},
	}}
	m2 := &tast.Module{ID: "m2", Statements: []tast.Stmt{
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "b"},
		&tast.ImportDecl{Path: "m1", Specifiers: []tast.ImportSpecifier{{Kind: tast.ImportNamed, Remote: "a", Local: "a"}}},
	}}

	var bag diag.Bag
	res := Plan([]*tast.Module{m1, m2}, &bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}

	if res.Exports["m1"].Local["a"] != "a" {
		t.Fatalf("m1 should export local binding a as a")
	}
	if res.Exports["m2"].Local["b"] != "b" {
		t.Fatalf("m2 should export local binding b as b")
	}
	if len(res.InitOrder) != 2 {
		t.Fatalf("cyclic graph must still produce a full init order; got %v", res.InitOrder)
	}
}

func TestUnresolvedImportIsDiagnosedNotFatal(t *testing.T) {
	m1 := &tast.Module{ID: "m1", Statements: []tast.Stmt{
		&tast.ImportDecl{Path: "missing", Specifiers: []tast.ImportSpecifier{{Kind: tast.ImportNamed, Remote: "x", Local: "x"}}},
	}}
	var bag diag.Bag
	res := Plan([]*tast.Module{m1}, &bag)
	if !bag.HasErrors() {
		t.Fatalf("expected an UnresolvedImport diagnostic")
	}
	if bag.Items()[0].Kind != diag.UnresolvedImport {
		t.Fatalf("expected UnresolvedImport, got %v", bag.Items()[0].Kind)
	}
	// Plan must still return a usable (if incomplete) result, per the
	// continue-on-error policy.
	if res.Imports["m1"] != nil {
		t.Fatalf("expected no bindings for the unresolved import")
	}
}

func TestDuplicateExportIsDiagnosed(t *testing.T) {
	m1 := &tast.Module{ID: "m1", Statements: []tast.Stmt{
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "x"},
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "x"},
	}}
	var bag diag.Bag
	Plan([]*tast.Module{m1}, &bag)
	if !bag.HasErrors() || bag.Items()[0].Kind != diag.DuplicateExport {
		t.Fatalf("expected a DuplicateExport diagnostic, got %v", bag.Items())
	}
}

func TestExportAllCopiesEveryNonDefaultSlot(t *testing.T) {
	lib := &tast.Module{ID: "lib", Statements: []tast.Stmt{
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "x"},
		&tast.ExportDecl{Kind: tast.ExportNamed, Name: "y"},
		&tast.ExportDecl{Kind: tast.ExportDefault, Name: "z"},
	}}
	reexporter := &tast.Module{ID: "reexp", Statements: []tast.Stmt{
		&tast.ExportDecl{Kind: tast.ExportAll, FromPath: "lib"},
	}}

	var bag diag.Bag
	res := Plan([]*tast.Module{lib, reexporter}, &bag)
	ExpandStarExports(res)

	table := res.Exports["reexp"]
	if _, ok := table.Local["x"]; !ok {
		t.Fatalf("export * must copy named export x")
	}
	if _, ok := table.Local["y"]; !ok {
		t.Fatalf("export * must copy named export y")
	}
	if _, ok := table.Local[DefaultExportName]; ok {
		t.Fatalf("export * must never re-export the default")
	}
}
