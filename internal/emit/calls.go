package emit

import (
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// strategyNamespaces are the static-type receivers routed through the
// inlined type-strategy registry instead of a runtime property lookup.
var strategyNamespaces = map[string]bool{
	"Math": true, "JSON": true, "Object": true, "Array": true,
	"Number": true, "Promise": true, "Symbol": true,
}

var promiseInstanceMethods = map[string]string{
	"then":    "PromiseThen",
	"catch":   "PromiseCatch",
	"finally": "PromiseFinally",
}

// ambiguousNames are method names that exist on more than one well-known
// instance type (string and array) with different runtime entry points, so
// a call site whose receiver's static type isn't resolved to exactly one of
// them falls back to a runtime type-switch.
var ambiguousNames = map[string]bool{
	"slice": true, "concat": true, "includes": true, "indexOf": true,
}

// emitCall resolves a call site through the dispatch ladder, most
// specific first, trying each rung until one applies.
func (e *Emitter) emitCall(n *tast.Call) {
	if e.tryConsoleLog(n) {
		return
	}
	if e.tryStrategyCall(n) {
		return
	}
	if e.tryPromiseMethod(n) {
		return
	}
	if e.tryDirectDispatch(n) {
		return
	}
	if e.tryUnionMemberDispatch(n) {
		return
	}
	if e.tryAmbiguousFallback(n) {
		return
	}
	e.emitIndirectCall(n)
}

// step 1: console.log(...args)
func (e *Emitter) tryConsoleLog(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok || m.Name != "log" {
		return false
	}
	obj, ok := m.Object.(*tast.Ident)
	if !ok || obj.Decl != nil || obj.Name != "console" {
		return false
	}
	count := e.emitArgs(n.Args)
	e.emitCallRuntimeN("ConsoleLog", count, n.Span())
	e.lastRepr = ReprUnknown
	return true
}

// step 2: Math.foo(...) / JSON.foo(...) / Object.foo(...) / Array.foo(...) /
// Number.foo(...) / Promise.foo(...) / Symbol.foo(...), where the receiver
// is the bare builtin namespace identifier, dispatched by name through the
// inlined registry (OpCallStrategy carries the namespace and method name;
// the registry itself lives in the runtime library). Calls on a receiver
// whose static type is an instance type (string, array, number, ...) are
// not handled here; they fall through to the later steps of the ladder.
func (e *Emitter) tryStrategyCall(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok {
		return false
	}
	obj, ok := m.Object.(*tast.Ident)
	if !ok || obj.Decl != nil || !strategyNamespaces[obj.Name] {
		return false
	}
	count := e.emitArgs(n.Args)
	e.emitStrategyOp(obj.Name, m.Name, count, n.Span())
	e.lastRepr = ReprUnknown
	return true
}

func (e *Emitter) emitStrategyOp(namespace, method string, argCount int, span diag.Span) {
	e.emitOp(bytecode.OpCallStrategy, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: namespace + "." + method})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.chunk.Write(byte(argCount), span.Line, span.Col)
}

// step 3: a Promise instance method (then/catch/finally) on a receiver
// whose static type is Promise<T>.
func (e *Emitter) tryPromiseMethod(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok {
		return false
	}
	if _, isPromise := m.Object.Type().(tast.Promise); !isPromise {
		return false
	}
	entry, ok := promiseInstanceMethods[m.Name]
	if !ok {
		return false
	}
	e.EmitExpr(m.Object)
	e.ensureBoxed(e.lastRepr)
	for _, a := range n.Args {
		e.EmitExpr(a)
		e.ensureBoxed(e.lastRepr)
	}
	// missing callbacks (a bare .then(onFulfilled), say) pad to the entry
	// point's declared arity with null
	sig := e.Catalog.MustLookup(entry)
	for i := len(n.Args) + 1; i < sig.In.Fixed; i++ {
		e.emitOp(bytecode.OpNil, n.Span())
	}
	e.emitCallRuntime(entry, n.Span())
	e.lastRepr = ReprUnknown
	return true
}

// step 4: a method call whose receiver's static type is a known class
// instance — direct dispatch to that class's compiled method, no runtime
// lookup at all.
func (e *Emitter) tryDirectDispatch(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok {
		return false
	}
	inst, ok := m.Object.Type().(tast.Instance)
	if !ok {
		return false
	}
	e.EmitExpr(m.Object)
	e.ensureBoxed(e.lastRepr)
	count := e.emitArgs(n.Args)
	e.emitOp(bytecode.OpCall, n.Span())
	span := n.Span()
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: string(inst.Class) + "#" + m.Name})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.chunk.Write(byte(count), span.Line, span.Col)
	e.lastRepr = ReprUnknown
	return true
}

// step 5: the receiver's static type is a union — iterate its members
// looking for one that would resolve the call (string methods preferred
// over array methods when both are present), and synthesize the
// corresponding
// UnionDescriptor so the runtime can tag-dispatch at the chosen member.
func (e *Emitter) tryUnionMemberDispatch(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok {
		return false
	}
	union, ok := m.Object.Type().(tast.Union)
	if !ok {
		return false
	}
	desc := e.Unions.GetOrCreate(union)

	var chosen tast.TypeDescriptor
	for _, member := range union.Members {
		if isStringType(member) {
			chosen = member
			break
		}
	}
	if chosen == nil {
		for _, member := range union.Members {
			if _, isArray := member.(tast.Array); isArray {
				chosen = member
				break
			}
		}
	}
	if chosen == nil {
		chosen = union.Members[0]
	}
	tag := desc.TagFor(chosen)

	e.EmitExpr(m.Object)
	e.ensureBoxed(e.lastRepr)
	e.emitOp(bytecode.OpUnionAs, n.Span())
	span := n.Span()
	e.chunk.Write(byte(tag), span.Line, span.Col)
	count := e.emitArgs(n.Args)
	e.emitAmbiguousOrNamed(m.Name, count, span)
	e.lastRepr = ReprUnknown
	return true
}

// step 6: the receiver's static type didn't resolve to any of the above
// (e.g. `any`), but the method name is one that exists on more than one
// well-known instance type: fall back to a runtime type-switch keyed by
// name.
func (e *Emitter) tryAmbiguousFallback(n *tast.Call) bool {
	m, ok := n.Callee.(*tast.Member)
	if !ok || !ambiguousNames[m.Name] {
		return false
	}
	e.EmitExpr(m.Object)
	e.ensureBoxed(e.lastRepr)
	count := e.emitArgs(n.Args)
	e.emitAmbiguousOrNamed(m.Name, count, n.Span())
	e.lastRepr = ReprUnknown
	return true
}

func (e *Emitter) emitAmbiguousOrNamed(method string, argCount int, span diag.Span) {
	e.emitOp(bytecode.OpCallAmbiguous, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: method})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.chunk.Write(byte(argCount), span.Line, span.Col)
}

// step 7: nothing above applied — an indirect call through the opaque
// callable abstraction (a plain function value, a captured closure, or a
// dynamically-typed receiver).
func (e *Emitter) emitIndirectCall(n *tast.Call) {
	e.EmitExpr(n.Callee)
	e.ensureBoxed(e.lastRepr)
	var params []tast.TypeDescriptor
	if ft, ok := n.Callee.Type().(tast.Function); ok {
		params = ft.Params
	}
	count := e.emitArgsTyped(n.Args, params)
	e.emitCallRuntimeN("InvokeValue", count, n.Span())
	e.lastRepr = ReprUnknown
}

// emitArgs evaluates args left to right, boxing each, and returns the
// count. When the enclosing function is an async fragment, each argument is
// materialized to a fresh temporary slot immediately after evaluation
// instead of left on the operand stack: any argument may suspend, and a
// suspension clears the evaluation stack, so nothing can be left pending
// across one.
func (e *Emitter) emitArgs(args []tast.Expr) int {
	return e.emitArgsTyped(args, nil)
}

// emitArgsTyped additionally bridges each argument into the matching
// declared parameter type when the callee's function type is statically
// known (union wrapping and projection happen here).
func (e *Emitter) emitArgsTyped(args []tast.Expr, params []tast.TypeDescriptor) int {
	coerceArg := func(i int, a tast.Expr) {
		if i < len(params) {
			e.coerce(a.Type(), params[i], a.Span())
		}
	}
	if !e.InAsyncFragment {
		for i, a := range args {
			e.EmitExpr(a)
			coerceArg(i, a)
			e.ensureBoxed(e.lastRepr)
		}
		return len(args)
	}

	temps := make([]*tast.VarDecl, len(args))
	for i, a := range args {
		e.EmitExpr(a)
		coerceArg(i, a)
		e.ensureBoxed(e.lastRepr)
		temp := &tast.VarDecl{}
		e.addLocal(temp)
		temps[i] = temp
		e.emitOp(bytecode.OpSetLocal, a.Span())
		slot := e.resolveLocalSlot(temp)
		e.chunk.Write(byte(slot), a.Span().Line, a.Span().Col)
		e.emitPop(a.Span())
	}
	for _, temp := range temps {
		slot := e.resolveLocalSlot(temp)
		e.emitOp(bytecode.OpGetLocal, diag.Span{})
		e.chunk.Write(byte(slot), 0, 0)
	}
	return len(args)
}

func (e *Emitter) emitMember(n *tast.Member) {
	span := n.Span()
	if n.Optional {
		e.emitOptionalMember(n)
		return
	}
	e.EmitExpr(n.Object)
	e.ensureBoxed(e.lastRepr)
	e.emitOp(bytecode.OpGetPropertyRuntime, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: n.Name})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.lastRepr = ReprUnknown
}

// emitOptionalMember implements `obj?.name`: a nullish object short-
// circuits the whole expression to undefined instead of dispatching
// GetPropertyRuntime.
func (e *Emitter) emitOptionalMember(n *tast.Member) {
	span := n.Span()
	e.EmitExpr(n.Object)
	e.ensureBoxed(e.lastRepr)
	nullishJump := e.chunk.WriteJump(bytecode.OpJumpIfNullish, span.Line, span.Col)
	e.emitOp(bytecode.OpGetPropertyRuntime, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: n.Name})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	endJump := e.chunk.WriteJump(bytecode.OpJump, span.Line, span.Col)
	e.chunk.PatchJump(nullishJump)
	// fallthrough-on-nullish path: the object itself is nullish and still
	// sits on the stack (peek semantics); swap it for the undefined result.
	e.emitPop(span)
	e.emitOp(bytecode.OpNil, span)
	e.chunk.PatchJump(endJump)
	e.lastRepr = ReprUnknown
}

func (e *Emitter) emitIndex(n *tast.Index) {
	span := n.Span()
	e.EmitExpr(n.Object)
	e.ensureBoxed(e.lastRepr)
	e.EmitExpr(n.Key)
	e.ensureBoxed(e.lastRepr)
	e.emitOp(bytecode.OpGetIndexRuntime, span)
	e.lastRepr = ReprUnknown
}

// emitFunctionExpr instantiates a closure value over the function's
// DisplayClass chain. The function's own body is emitted separately (by the
// Linker's per-plan emission loop); here we only need to
// allocate/populate its DisplayClass (if closure.Synth gave it one) and
// produce the closure value.
func (e *Emitter) emitFunctionExpr(n *tast.FunctionExpr) {
	span := n.Span()
	display := closure.Synth(n.Plan, e.Captures, e.display)
	if display != nil {
		e.emitOp(bytecode.OpMakeDisplayClass, span)
		idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: display.Name})
		e.chunk.Write(byte(idx>>8), span.Line, span.Col)
		e.chunk.Write(byte(idx), span.Line, span.Col)
		for _, field := range display.Fields {
			e.emitIdent(&tast.Ident{Name: field.Name, Decl: field})
		}
		if display.HasThisSlot {
			e.emitThis(&tast.ThisExpr{})
		}
	}
	e.emitOp(bytecode.OpMakeClosure, span)
	idx := e.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: n.Plan.QualifiedName})
	e.chunk.Write(byte(idx>>8), span.Line, span.Col)
	e.chunk.Write(byte(idx), span.Line, span.Col)
	e.lastRepr = ReprUnknown
}

func (e *Emitter) emitArrayLit(n *tast.ArrayLit) {
	span := n.Span()
	for i, el := range n.Elements {
		e.EmitExpr(el)
		e.ensureBoxed(e.lastRepr)
		_ = n.Spreads[i]
	}
	e.emitCallRuntimeN("CreateArray", len(n.Elements), span)
	e.lastRepr = ReprUnknown
}

func (e *Emitter) emitObjectLit(n *tast.ObjectLit) {
	span := n.Span()
	for _, p := range n.Props {
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: p.Key}, span.Line, span.Col)
		e.EmitExpr(p.Value)
		e.ensureBoxed(e.lastRepr)
	}
	e.emitCallRuntimeN("CreateObject", len(n.Props)*2, span)
	e.lastRepr = ReprUnknown
}

func (e *Emitter) emitTemplateLit(n *tast.TemplateLit) {
	span := n.Span()
	if len(n.Parts) == 0 {
		e.chunk.WriteConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: ""}, span.Line, span.Col)
		e.lastRepr = ReprString
		return
	}
	e.EmitExpr(n.Parts[0])
	e.ensureBoxed(e.lastRepr)
	for _, part := range n.Parts[1:] {
		e.EmitExpr(part)
		e.ensureBoxed(e.lastRepr)
		e.emitOp(bytecode.OpConcatString, span)
	}
	e.lastRepr = ReprString
}
