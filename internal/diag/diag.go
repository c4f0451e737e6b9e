// Package diag implements SharpTS's compile-time diagnostic records.
//
// Diagnostics never abort a compile run early: a Bag collects everything a
// stage finds and lets every later stage keep running, so a single compile
// run reports every error it can instead of stopping at the first one.
package diag

import "fmt"

// Kind is the closed set of compile-time diagnostic kinds.
type Kind int

const (
	UnresolvedImport Kind = iota
	UnknownExportedName
	DuplicateExport
	InvalidMainSignature
	UnsupportedAbstractInConcreteClass
	CyclicUnionDependency
	InvalidConstraint
)

func (k Kind) String() string {
	switch k {
	case UnresolvedImport:
		return "UnresolvedImport"
	case UnknownExportedName:
		return "UnknownExportedName"
	case DuplicateExport:
		return "DuplicateExport"
	case InvalidMainSignature:
		return "InvalidMainSignature"
	case UnsupportedAbstractInConcreteClass:
		return "UnsupportedAbstractInConcreteClass"
	case CyclicUnionDependency:
		return "CyclicUnionDependency"
	case InvalidConstraint:
		return "InvalidConstraint"
	default:
		return "Unknown"
	}
}

// Span is a source location, carried through from the typed AST.
type Span struct {
	File        string
	Line, Col   int
	EndLine     int
	EndCol      int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// Diagnostic is a single compile-time error or note.
type Diagnostic struct {
	Kind    Kind
	Span    Span
	Message string
	Notes   []string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s: %s", d.Span, d.Kind, d.Message)
	for _, n := range d.Notes {
		s += "\n  note: " + n
	}
	return s
}

// Bag accumulates diagnostics across an entire compile run. Stages append to
// the same bag and keep going; nothing in this package ever panics on a
// Diagnostic — panics are reserved for internal invariant violations that
// indicate a compiler bug, not a user source error.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic. The offending item's emission should be skipped
// by the caller, but the bag itself never halts anything.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Addf is a convenience constructor-and-add.
func (b *Bag) Addf(kind Kind, span Span, format string, args ...any) {
	b.Add(Diagnostic{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	return len(b.items) > 0
}

// Items returns the recorded diagnostics in recording order.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Len returns how many diagnostics have been recorded.
func (b *Bag) Len() int {
	return len(b.items)
}
