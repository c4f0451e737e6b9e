package linker

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

const syntheticEntryName = "$entry"

// resolveEntryPoint picks the emitted image's entry method. A user
// `main(args: string[]): void | Promise<void>` becomes the final call of
// the bootstrap sequence after every module's init ran; any other `main`
// signature is diagnosed and ignored. With no (valid) main, the entry just
// runs the module inits and returns.
func resolveEntryPoint(modules []*tast.Module, img *bytecode.Image, bag *diag.Bag) string {
	main := findMain(modules)
	if main != nil && !isValidMainSignature(main) {
		span := diag.Span{}
		if len(main.Body) > 0 {
			span = main.Body[0].Span()
		}
		bag.Addf(diag.InvalidMainSignature, span, "main must have signature (args: string[]): void or (args: string[]): Promise<void>")
		main = nil
	}
	emitEntry(main, img)
	return syntheticEntryName
}

func findMain(modules []*tast.Module) *tast.FunctionPlan {
	for _, mod := range modules {
		for _, fn := range mod.Functions {
			if fn.Enclosing == nil && lastSegment(fn.QualifiedName) == "main" {
				return fn
			}
		}
	}
	return nil
}

func lastSegment(qualified string) string {
	name := qualified
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' || qualified[i] == '#' {
			name = qualified[i+1:]
			break
		}
	}
	return name
}

func isValidMainSignature(fn *tast.FunctionPlan) bool {
	if len(fn.Params) != 1 {
		return false
	}
	arr, ok := fn.Params[0].Type.(tast.Array)
	if !ok {
		return false
	}
	prim, ok := arr.Elem.(tast.Primitive)
	if !ok || prim.Kind != tast.StringKind {
		return false
	}
	switch r := fn.Return.(type) {
	case tast.Void:
		return true
	case tast.Promise:
		_, ok := r.Elem.(tast.Void)
		return ok
	default:
		return false
	}
}

// emitEntry writes the synthetic bootstrap chunk: call every module's
// static constructor in init order (top-level awaits block inside each
// constructor), then call main(args) when one exists. An async main's
// returned task is waited on synchronously, so the process doesn't exit
// with the task still pending.
func emitEntry(main *tast.FunctionPlan, img *bytecode.Image) {
	c := bytecode.NewChunk()
	for _, initName := range img.ModuleInit {
		idx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: initName})
		c.WriteOp(bytecode.OpCall, 0, 0)
		c.Write(byte(idx>>8), 0, 0)
		c.Write(byte(idx), 0, 0)
		c.Write(0, 0, 0)
		c.WriteOp(bytecode.OpPop, 0, 0)
	}
	if main != nil {
		argsIdx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: "args"})
		c.WriteOp(bytecode.OpGetWellKnownSymbol, 0, 0)
		c.Write(byte(argsIdx>>8), 0, 0)
		c.Write(byte(argsIdx), 0, 0)

		callIdx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: main.QualifiedName})
		c.WriteOp(bytecode.OpCall, 0, 0)
		c.Write(byte(callIdx>>8), 0, 0)
		c.Write(byte(callIdx), 0, 0)
		c.Write(1, 0, 0)

		awaitIdx := c.AddConstant(bytecode.Constant{Kind: bytecode.ConstEntryPoint, Str: "AwaitTaskSync"})
		c.WriteOp(bytecode.OpCallRuntime, 0, 0)
		c.Write(byte(awaitIdx>>8), 0, 0)
		c.Write(byte(awaitIdx), 0, 0)
		c.Write(1, 0, 0)
		c.WriteOp(bytecode.OpPop, 0, 0)
	}
	c.WriteOp(bytecode.OpNil, 0, 0)
	c.WriteOp(bytecode.OpReturn, 0, 0)

	img.Functions[syntheticEntryName] = &bytecode.CompiledFunction{QualifiedName: syntheticEntryName, Chunk: c, Arity: 0}
}
