// Package tast defines the typed AST the emitter consumes: expression and
// statement sum types carrying source spans and already-resolved type
// information. The lexer, parser, and type checker are external
// collaborators — this package is the contract the emitter core (closure,
// unions, modplan, emit, asyncx, linker) is built against, not a checker
// implementation. Every expression node carries exactly one resolved
// TypeDescriptor.
package tast

import "github.com/sharpts/sharpts/internal/diag"

// TypeDescriptor is the static type sum: Primitive, Null, Void, Any,
// Array(T), Record(k,v), Instance(ClassID), Function(params,ret),
// Union(members), Promise(T).
type TypeDescriptor interface {
	typeDescriptor()
	String() string
}

// Primitive is one of the scalar JS/TS runtime kinds.
type Primitive struct{ Kind PrimitiveKind }

type PrimitiveKind int

const (
	Number PrimitiveKind = iota
	StringKind
	Boolean
	BigInt
)

func (Primitive) typeDescriptor() {}
func (p Primitive) String() string {
	switch p.Kind {
	case Number:
		return "number"
	case StringKind:
		return "string"
	case Boolean:
		return "boolean"
	case BigInt:
		return "bigint"
	default:
		return "?"
	}
}

type Null struct{}

func (Null) typeDescriptor() {}
func (Null) String() string  { return "null" }

type Void struct{}

func (Void) typeDescriptor() {}
func (Void) String() string  { return "void" }

type Any struct{}

func (Any) typeDescriptor() {}
func (Any) String() string  { return "any" }

type Array struct{ Elem TypeDescriptor }

func (Array) typeDescriptor() {}
func (a Array) String() string {
	return a.Elem.String() + "[]"
}

type Record struct{ Key, Value TypeDescriptor }

func (Record) typeDescriptor() {}
func (r Record) String() string {
	return "Record<" + r.Key.String() + ", " + r.Value.String() + ">"
}

// ClassID identifies a ClassPlan by its qualified name.
type ClassID string

type Instance struct{ Class ClassID }

func (Instance) typeDescriptor() {}
func (i Instance) String() string { return string(i.Class) }

type Function struct {
	Params []TypeDescriptor
	Return TypeDescriptor
}

func (Function) typeDescriptor() {}
func (f Function) String() string {
	s := "("
	for i, p := range f.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	return s + ") => " + f.Return.String()
}

// Union is the source-level member list; UnionSynth turns this into a
// deduplicated UnionDescriptor (see internal/unions).
type Union struct{ Members []TypeDescriptor }

func (Union) typeDescriptor() {}
func (u Union) String() string {
	s := ""
	for i, m := range u.Members {
		if i > 0 {
			s += " | "
		}
		s += m.String()
	}
	return s
}

type Promise struct{ Elem TypeDescriptor }

func (Promise) typeDescriptor() {}
func (p Promise) String() string { return "Promise<" + p.Elem.String() + ">" }

// CanonicalKey returns the sorted-member canonical key UnionSynth dedups on.
func CanonicalKey(members []TypeDescriptor) string {
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.String()
	}
	// insertion sort is fine: union arities are small in practice
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "|"
		}
		out += k
	}
	return out
}

// Span re-exports diag.Span so tast nodes don't need a second import for
// callers that only touch positions.
type Span = diag.Span
