// Package modplan builds the ExportTable and ImportBindings for every
// module in the compilation unit before any body emission. Modules are
// loaded and cross-linked up front, the way an in-process module loader
// cross-links its graph, but the product is slot-keyed: the emitted
// output is a single linked binary, so every export becomes a
// process-wide storage cell keyed by (module, name).
package modplan

import (
	"sort"

	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// Slot identifies an ExportTable entry: a process-wide storage cell keyed
// by (module, name). The default export uses the reserved name
// "$default".
type Slot struct {
	Module string
	Name   string
}

const DefaultExportName = "$default"

// ExportTable maps a module's export names to process-wide slots, in
// source declaration order.
type ExportTable struct {
	Module string
	// Order lists export names in declaration order.
	Order []string
	// Local maps an export name to the local name it aliases within the
	// module.
	Local map[string]string
	// ReexportFrom records, for re-exports (`export { x } from 'm'`), the
	// (module, name) slot this export's init-time copy reads from.
	ReexportFrom map[string]Slot
	// starImports lists source module paths this module re-exports
	// wholesale (`export *`), expanded later by ExpandStarExports.
	starImports []string
}

// ImportBinding is a local→remote-module-slot resolution.
type ImportBinding struct {
	Local    string
	Source   Slot
	Kind     tast.ImportKind
}

// Result is what Plan produces: one ExportTable and one []ImportBinding
// per module, keyed by module ID.
type Result struct {
	Exports map[string]*ExportTable
	Imports map[string][]ImportBinding
	// InitOrder is a topological-best-effort module initialization order.
	InitOrder []string
}

// Plan computes every module's export table and import bindings.
func Plan(modules []*tast.Module, bag *diag.Bag) *Result {
	res := &Result{
		Exports: make(map[string]*ExportTable),
		Imports: make(map[string][]ImportBinding),
	}
	byID := make(map[string]*tast.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
		res.Exports[m.ID] = collectExports(m, bag)
	}
	for _, m := range modules {
		res.Imports[m.ID] = resolveImports(m, byID, res.Exports, bag)
	}
	res.InitOrder = topoOrder(modules)
	return res
}

// collectExports implements step 1: collect every export (named, default,
// re-export) and assign a slot keyed by (module, export_name).
func collectExports(m *tast.Module, bag *diag.Bag) *ExportTable {
	table := &ExportTable{
		Module:       m.ID,
		Local:        make(map[string]string),
		ReexportFrom: make(map[string]Slot),
	}
	declare := func(span diag.Span, exportName, localName string) {
		if _, dup := table.Local[exportName]; dup {
			bag.Addf(diag.DuplicateExport, span, "module %q already exports %q", m.ID, exportName)
			return
		}
		table.Order = append(table.Order, exportName)
		table.Local[exportName] = localName
	}
	for _, st := range m.Statements {
		ed, ok := st.(*tast.ExportDecl)
		if !ok {
			continue
		}
		switch ed.Kind {
		case tast.ExportDefault:
			declare(ed.Span(), DefaultExportName, ed.Name)
		case tast.ExportNamed:
			as := ed.As
			if as == "" {
				as = ed.Name
			}
			declare(ed.Span(), as, ed.Name)
		case tast.ExportFrom:
			as := ed.As
			if as == "" {
				as = ed.Name
			}
			declare(ed.Span(), as, ed.Name)
			table.ReexportFrom[as] = Slot{Module: ed.FromPath, Name: ed.Name}
		case tast.ExportAll:
			// `export *` copies every non-default slot; the actual member list isn't known until the
			// source module's own ExportTable exists, so it's recorded as
			// a deferred wildcard and expanded by ExpandStarExports once
			// every module's own exports have been collected.
			table.starImports = append(table.starImports, ed.FromPath)
		}
	}
	return table
}

// resolveImports implements step 2: for each import, resolve the source
// module, verify the remote exports exist, and record the binding.
func resolveImports(m *tast.Module, byID map[string]*tast.Module, exports map[string]*ExportTable, bag *diag.Bag) []ImportBinding {
	var bindings []ImportBinding
	for _, st := range m.Statements {
		imp, ok := st.(*tast.ImportDecl)
		if !ok {
			continue
		}
		remote, ok := byID[imp.Path]
		if !ok {
			bag.Addf(diag.UnresolvedImport, imp.Span(), "cannot resolve module %q", imp.Path)
			continue
		}
		remoteExports := exports[remote.ID]
		for _, spec := range imp.Specifiers {
			remoteName := spec.Remote
			if spec.Kind == tast.ImportNamespace {
				// a namespace import binds every export; no single-name
				// existence check applies.
				bindings = append(bindings, ImportBinding{Local: spec.Local, Source: Slot{Module: remote.ID}, Kind: spec.Kind})
				continue
			}
			if _, exists := remoteExports.Local[remoteName]; !exists {
				bag.Addf(diag.UnknownExportedName, imp.Span(), "module %q has no export %q", imp.Path, remoteName)
				continue
			}
			bindings = append(bindings, ImportBinding{
				Local:  spec.Local,
				Source: Slot{Module: remote.ID, Name: remoteName},
				Kind:   spec.Kind,
			})
		}
	}
	return bindings
}

// ExpandStarExports resolves every `export *` wildcard recorded during
// collectExports, once every module's own (non-star) exports are known.
// Called once by the Linker after Plan returns.
func ExpandStarExports(res *Result) {
	for _, table := range res.Exports {
		for _, fromPath := range table.starImports {
			src, ok := res.Exports[fromPath]
			if !ok {
				continue
			}
			for _, name := range src.Order {
				if name == DefaultExportName {
					continue // export * never re-exports the default
				}
				if _, dup := table.Local[name]; dup {
					continue
				}
				table.Order = append(table.Order, name)
				table.Local[name] = name
				table.ReexportFrom[name] = Slot{Module: fromPath, Name: name}
			}
		}
	}
}

// topoOrder computes a best-effort topological module order: a depth-first
// walk in input order that places each module after its imports. An import
// that closes a cycle is skipped, so within a cycle the module the walk
// reaches last is placed first.
func topoOrder(modules []*tast.Module) []string {
	inputOrder := make([]string, len(modules))
	deps := make(map[string][]string, len(modules))
	for i, m := range modules {
		inputOrder[i] = m.ID
		for _, st := range m.Statements {
			if imp, ok := st.(*tast.ImportDecl); ok {
				deps[m.ID] = append(deps[m.ID], imp.Path)
			}
		}
	}

	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	var order []string
	var visit func(id string)
	visit = func(id string) {
		if visited[id] || inStack[id] {
			return // already placed, or a cycle: leave it to be placed by its own turn
		}
		inStack[id] = true
		deplist := append([]string(nil), deps[id]...)
		sort.Strings(deplist)
		for _, d := range deplist {
			visit(d)
		}
		inStack[id] = false
		if !visited[id] {
			visited[id] = true
			order = append(order, id)
		}
	}
	for _, id := range inputOrder {
		visit(id)
	}
	return order
}
