// Package linker is the final pass: it turns every module's emitted
// functions and classes into one Image, decides the initialization order,
// and picks (or synthesizes) the entry point. Each class's metadata is
// recorded before that class's method bodies are linked in. Union
// descriptors are created while bodies are emitted and are finalized once,
// after every body is linked and before their metadata enters the Image.
package linker

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sharpts/sharpts/internal/asyncx"
	"github.com/sharpts/sharpts/internal/bytecode"
	"github.com/sharpts/sharpts/internal/closure"
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/emit"
	"github.com/sharpts/sharpts/internal/modplan"
	"github.com/sharpts/sharpts/internal/runtime"
	"github.com/sharpts/sharpts/internal/tast"
	"github.com/sharpts/sharpts/internal/unions"
)

// Link runs the whole emitter core over modules and produces a finished
// Image. Diagnostics recorded along the way (unresolved imports, duplicate
// exports, an invalid main signature) are added to bag; Link still returns a
// best-effort Image even when bag ends up non-empty, consistent with every
// other stage's continue-on-error policy.
func Link(modules []*tast.Module, catalog *runtime.Catalog, bag *diag.Bag) *bytecode.Image {
	captures := closure.Analyze(modules)
	us := unions.NewWithNaming(collisionSafeNaming())
	us.Bag = bag
	plan := modplan.Plan(modules, bag)
	modplan.ExpandStarExports(plan)

	img := bytecode.NewImage()

	for _, mod := range modules {
		linkModule(mod, catalog, us, captures, plan, bag, img)
	}

	// Static constructors run in the planner's init order; each writes its
	// module's export slots after its top-level statements ran.
	byID := make(map[string]*tast.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}
	for _, id := range plan.InitOrder {
		if mod := byID[id]; mod != nil {
			img.ModuleInit = append(img.ModuleInit, emitModuleInit(mod, catalog, us, captures, plan, bag, img))
		}
	}

	// Union descriptors are only discovered as a side effect of emitting
	// function bodies (every InstanceOf/union-member call site calls
	// Unions.GetOrCreate lazily); finalizing here, after every module's
	// functions are linked in, means every descriptor is finalized before
	// its metadata is written to the Image and before anything downstream
	// of Link reads it; the emitter has already used the descriptors,
	// unfinalized, by then.
	us.FinalizeAll()
	for _, d := range us.Descriptors() {
		members := make([]string, len(d.Members))
		for i, m := range d.Members {
			members[i] = m.String()
		}
		img.Unions = append(img.Unions, bytecode.UnionMetadata{Name: d.Name, Members: members})
	}

	img.EntryPoint = resolveEntryPoint(modules, img, bag)
	return img
}

func linkModule(mod *tast.Module, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, plan *modplan.Result, bag *diag.Bag, img *bytecode.Image) {
	for _, fn := range mod.Functions {
		linkFunction(fn, nil, catalog, us, captures, plan, bag, img)
	}
	for _, cls := range mod.Classes {
		linkClass(cls, catalog, us, captures, plan, bag, img)
	}
}

// linkClass defines the class's host metadata before linking in any of its
// method bodies. Instance methods and accessor bodies are normalized to
// the method calling convention (receiver in slot 0) here, so the front
// end doesn't have to mark every plan itself; abstract members are
// declared in metadata but get no body, and an abstract member on a
// concrete class is diagnosed and skipped.
func linkClass(cls *tast.ClassPlan, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, plan *modplan.Result, bag *diag.Bag, img *bytecode.Image) {
	validateConstraints(cls, bag)

	meta := &bytecode.ClassMetadata{QualifiedName: cls.QualifiedName}
	if cls.Base != nil {
		meta.BaseClass = cls.Base.QualifiedName
	}
	for _, f := range cls.Fields {
		meta.FieldNames = append(meta.FieldNames, f.Name)
	}
	for _, f := range cls.StaticFields {
		meta.FieldNames = append(meta.FieldNames, f.Name)
	}
	for _, m := range cls.Methods {
		meta.MethodNames = append(meta.MethodNames, m.QualifiedName)
	}
	for _, m := range cls.StaticMethods {
		meta.MethodNames = append(meta.MethodNames, m.QualifiedName)
	}
	img.Classes[cls.QualifiedName] = meta

	for _, m := range cls.Methods {
		m.IsMethod = true
		if m.IsAbstract {
			if !cls.IsAbstract {
				bag.Addf(diag.UnsupportedAbstractInConcreteClass, methodSpan(m),
					"abstract method %s on concrete class %s", m.QualifiedName, cls.QualifiedName)
			}
			continue // no body to emit
		}
		linkFunction(m, nil, catalog, us, captures, plan, bag, img)
	}
	for _, m := range cls.StaticMethods {
		linkFunction(m, nil, catalog, us, captures, plan, bag, img)
	}
	for _, acc := range cls.Accessors {
		acc.Getter.IsMethod = true
		linkFunction(acc.Getter, nil, catalog, us, captures, plan, bag, img)
		if acc.Setter != nil {
			acc.Setter.IsMethod = true
			linkFunction(acc.Setter, nil, catalog, us, captures, plan, bag, img)
		}
	}
}

func methodSpan(m *tast.FunctionPlan) diag.Span {
	if len(m.Body) > 0 {
		return m.Body[0].Span()
	}
	return diag.Span{}
}

// validateConstraints checks every declared `T extends X` bound before the
// class is emitted: a bound must name a known type parameter and must
// actually constrain — Void and Null admit no values, and a parameter
// bounded by itself is circular.
func validateConstraints(cls *tast.ClassPlan, bag *diag.Bag) {
	declared := make(map[string]bool, len(cls.GenericParams))
	for _, p := range cls.GenericParams {
		declared[p] = true
	}
	var unknown []string
	for name := range cls.Constraints {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		bag.Addf(diag.InvalidConstraint, diag.Span{},
			"class %s constrains unknown type parameter %s", cls.QualifiedName, name)
	}
	for _, name := range cls.GenericParams {
		bound, ok := cls.Constraints[name]
		if !ok {
			continue
		}
		switch b := bound.(type) {
		case tast.Void:
			bag.Addf(diag.InvalidConstraint, diag.Span{},
				"class %s: constraint on %s admits no values (void)", cls.QualifiedName, name)
		case tast.Null:
			bag.Addf(diag.InvalidConstraint, diag.Span{},
				"class %s: constraint on %s admits no values (null)", cls.QualifiedName, name)
		case tast.Instance:
			if string(b.Class) == name {
				bag.Addf(diag.InvalidConstraint, diag.Span{},
					"class %s: type parameter %s is bounded by itself", cls.QualifiedName, name)
			}
		}
	}
}

// linkFunction emits fn's body and registers the resulting
// CompiledFunction(s) in img. outerDisplay is the enclosing function's
// DisplayClass, if fn is a nested function/method closing over it.
//
// fn.IsAsync/IsGenerator bodies belong to internal/asyncx instead of
// straight through SyncEmitter; this function
// dispatches to whichever one applies.
func linkFunction(fn *tast.FunctionPlan, outerDisplay *closure.DisplayClass, catalog *runtime.Catalog, us *unions.Synth, captures *closure.CaptureMap, plan *modplan.Result, bag *diag.Bag, img *bytecode.Image) {
	if fn.IsAsync || fn.IsGenerator {
		moveNext, starter := asyncx.Transform(fn, outerDisplay, catalog, us, captures, plan, bag)
		img.Functions[moveNext.QualifiedName] = moveNext
		img.Functions[starter.QualifiedName] = starter
		return
	}

	display := closure.Synth(fn, captures, outerDisplay)
	e := emit.New(catalog, us, captures, plan, bag, fn, display, outerDisplay)
	cf := e.EmitFunction()
	img.Functions[fn.QualifiedName] = cf
	for _, extra := range e.ExtraFunctions() {
		img.Functions[extra.QualifiedName] = extra
	}
}

// collisionSafeNaming prefers the human-readable sorted-member name for a
// synthesized union type; two distinct unions that sanitize to the same
// identifier (possible across modules with locally-named instance types)
// get a uuid suffix instead of silently sharing a type.
func collisionSafeNaming() func(key string, members []tast.TypeDescriptor) string {
	seen := make(map[string]bool)
	return func(key string, members []tast.TypeDescriptor) string {
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = sanitizeName(m.String())
		}
		sort.Strings(names)
		base := "Union"
		for _, n := range names {
			base += "_" + n
		}
		if seen[base] {
			base = fmt.Sprintf("%s_%s", base, uuid.NewString()[:8])
		}
		seen[base] = true
		return base
	}
}

func sanitizeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
