package linker

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/emit"
	"github.com/sharpts/sharpts/internal/modplan"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
	"github.com/sharpts/sharpts/internal/unions"
)

// slotKey is the constant-pool encoding of a process-wide export slot.
func slotKey(s modplan.Slot) string { return s.Module + "\x00" + s.Name }

// emitModuleInit builds mod's static constructor: seed import bindings from
// their remote export slots, run the module's top-level statements, then
// write the module's own export slots — all in source order, so observable
// initialization matches the source text. A cyclic import reads whatever
// the remote slot holds at that moment, which before the remote module's
// own init ran is null, never a partially constructed object.
//
// Top-level awaits are waited on synchronously through AwaitTaskSync; no
// state machine is built for module init.
func emitModuleInit(mod *tast.Module, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, plan *modplan.Result, bag *diag.Bag, img *bytecode.Image) string {
	initName := mod.ID + "$init"
	fn := &tast.FunctionPlan{QualifiedName: initName, Return: tast.Void{}, Module: mod.ID}
	e := emit.New(catalog, us, captures, plan, bag, fn, nil, nil)
	e.Suspend = emitTopLevelAwait
	c := e.Chunk()

	bindImports(mod, e, plan)

	for _, st := range mod.Statements {
		switch st.(type) {
		case *tast.ImportDecl, *tast.ExportDecl:
			// handled by bindImports / writeExportSlots
		case *tast.FunctionDecl, *tast.ClassDecl:
			// linked as their own compiled functions / class metadata
		default:
			e.EmitStmt(st)
		}
	}

	writeExportSlots(mod, e, plan)

	c.WriteOp(bytecode.OpNil, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	img.Functions[initName] = &bytecode.CompiledFunction{QualifiedName: initName, Chunk: c}
	return initName
}

// emitTopLevelAwait is the Suspend hook for module-init emission: an await
// outside any function body blocks the startup phase until the task
// completes instead of suspending a state machine.
func emitTopLevelAwait(e *emit.Emitter, x tast.Expr) {
	aw, ok := x.(*tast.Await)
	if !ok {
		// a top-level yield is a checker error; produce undefined so
		// emission can continue collecting diagnostics
		e.Chunk().WriteOp(bytecode.OpNil, 0, 0)
		e.MarkRepr(emit.ReprNull)
		return
	}
	e.EmitExpr(aw.Operand)
	e.EnsureTopBoxed()
	e.EmitCallRuntime("AwaitTaskSync", aw.Span())
}

// bindImports declares one init-scope local per import specifier, seeded
// from the remote module's export slot. A namespace import reads the
// reserved "*" slot, which the host populates with the module's namespace
// object once that module's init completes.
func bindImports(mod *tast.Module, e *emit.Emitter, plan *modplan.Result) {
	c := e.Chunk()
	bySpec := make(map[string]modplan.Slot)
	for _, b := range plan.Imports[mod.ID] {
		bySpec[b.Local] = b.Source
	}
	for _, st := range mod.Statements {
		imp, ok := st.(*tast.ImportDecl)
		if !ok {
			continue
		}
		for _, spec := range imp.Specifiers {
			if spec.Binding == nil {
				continue
			}
			src, resolved := bySpec[spec.Local]
			if !resolved {
				// the planner already diagnosed this import; bind null so
				// later statements still emit
				c.WriteOp(bytecode.OpNil, 0, 0)
				e.BindLocal(spec.Binding)
				continue
			}
			if spec.Kind == tast.ImportNamespace {
				src.Name = "*"
			}
			idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstExportSlot, Str: slotKey(src)})
			c.WriteOp(bytecode.OpGetExportSlot, 0, 0)
			c.Write(byte(idx>>8), 0, 0)
			c.Write(byte(idx), 0, 0)
			e.BindLocal(spec.Binding)
		}
	}
}

// writeExportSlots writes every export slot of mod, in declaration order.
// Re-exports copy from the source module's slot; ordinary exports read the
// top-level binding (a local of the init function, a compiled function, or
// a class constructor) they alias.
func writeExportSlots(mod *tast.Module, e *emit.Emitter, plan *modplan.Result) {
	table := plan.Exports[mod.ID]
	if table == nil {
		return
	}
	c := e.Chunk()

	topDecls := make(map[string]*tast.VarDecl)
	for _, st := range mod.Statements {
		if d, ok := st.(*tast.VarDecl); ok {
			topDecls[d.Name] = d
		}
	}
	topFns := make(map[string]*tast.FunctionPlan)
	for _, f := range mod.Functions {
		topFns[lastSegment(f.QualifiedName)] = f
	}
	topClasses := make(map[string]*tast.ClassPlan)
	for _, cls := range mod.Classes {
		topClasses[lastSegment(cls.QualifiedName)] = cls
	}

	for _, name := range table.Order {
		if src, isReexport := table.ReexportFrom[name]; isReexport {
			idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstExportSlot, Str: slotKey(src)})
			c.WriteOp(bytecode.OpGetExportSlot, 0, 0)
			c.Write(byte(idx>>8), 0, 0)
			c.Write(byte(idx), 0, 0)
			writeSlot(c, mod.ID, name)
			continue
		}

		local := table.Local[name]
		switch {
		case topDecls[local] != nil && e.LocalSlot(topDecls[local]) >= 0:
			c.WriteOp(bytecode.OpGetLocal, 0, 0)
			c.Write(byte(e.LocalSlot(topDecls[local])), 0, 0)
		case topFns[local] != nil:
			idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: topFns[local].QualifiedName})
			c.WriteOp(bytecode.OpMakeClosure, 0, 0)
			c.Write(byte(idx>>8), 0, 0)
			c.Write(byte(idx), 0, 0)
		case topClasses[local] != nil:
			idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: topClasses[local].QualifiedName})
			c.WriteOp(bytecode.OpMakeClosure, 0, 0)
			c.Write(byte(idx>>8), 0, 0)
			c.Write(byte(idx), 0, 0)
		default:
			// exporting an undeclared local is the checker's error to
			// report; the slot still exists and holds null
			c.WriteOp(bytecode.OpNil, 0, 0)
		}
		writeSlot(c, mod.ID, name)
	}
}

func writeSlot(c *bytecode.Chunk, module, name string) {
	idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstExportSlot, Str: slotKey(modplan.Slot{Module: module, Name: name})})
	c.WriteOp(bytecode.OpSetExportSlot, 0, 0)
	c.Write(byte(idx>>8), 0, 0)
	c.Write(byte(idx), 0, 0)
}
