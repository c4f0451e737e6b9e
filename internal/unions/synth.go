// Package unions implements UnionSynth: for every union type the program
// uses, synthesize a concrete value-type layout (a tag plus one field per
// member) and its accessors and conversions. Descriptors are deduplicated
// by a canonical key built from the sorted member types, so `string |
// number` and `number | string` share one layout.
package unions

import (
	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

// Accessor describes one member's generated "is T" / "as T" pair plus the
// implicit conversion from T into the union.
type Accessor struct {
	Member   tast.TypeDescriptor
	Tag      int
	IsName   string // e.g. "IsString"
	AsName   string // e.g. "AsString"; throws InvalidCast on tag mismatch
	FromName string // the implicit-conversion constructor name, e.g. "FromString"
}

// UnionDescriptor is the synthesized runtime discriminated union. The tag
// domain equals len(Members) exactly, and at most one member field is
// meaningful per value, selected by Tag.
type UnionDescriptor struct {
	Key        string // tast.CanonicalKey(Members)
	Name       string // synthesized type name, e.g. "Union_number_string"
	Members    []tast.TypeDescriptor
	Accessors  []Accessor
	// Finalized is set once this descriptor is safe for a consumer to
	// reference.
	Finalized bool
}

// Uniform members every synthesized union carries besides the per-member
// accessors: the erased value projection (boxing value-typed members when
// a union is consumed polymorphically) and the structural operations that
// delegate to the active member.
const (
	ValueAccessorName = "Value"
	EqualsName        = "Equals"
	HashName          = "GetHashCode"
	FormatName        = "ToString"
)

// maxNesting bounds how deep union members may nest further unions. A
// recursive type alias expanded by the checker unfolds into unbounded
// nesting here; a value-type layout cannot realize that, so crossing the
// bound is reported as a cyclic dependency instead of recursing forever.
const maxNesting = 64

// Synth is the descriptor registry: GetOrCreate deduplicates by the
// canonical sorted-member key.
type Synth struct {
	byKey map[string]*UnionDescriptor
	// order preserves first-creation order; Descriptors and FinalizeAll
	// walk descriptors in this order.
	order []*UnionDescriptor
	// naming resolves a synthesized type name for a canonical key,
	// allowing the linker's collision-fallback naming scheme to be
	// swapped in without this package knowing about uuid.
	naming func(key string, members []tast.TypeDescriptor) string
	// depth tracks the current GetOrCreate recursion through nested union
	// members, for the maxNesting guard.
	depth int

	// Bag receives CyclicUnionDependency diagnostics; a nil Bag disables
	// reporting (unit tests that only probe tags don't need one).
	Bag *diag.Bag
}

// New builds an empty Synth using the default "Union_<sorted member
// names>" naming scheme. Callers that need collision-safe names (the
// Linker, across modules) pass their own naming function via NewWithNaming.
func New() *Synth {
	return NewWithNaming(defaultName)
}

func NewWithNaming(naming func(key string, members []tast.TypeDescriptor) string) *Synth {
	return &Synth{byKey: make(map[string]*UnionDescriptor), naming: naming}
}

func defaultName(key string, members []tast.TypeDescriptor) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = sanitize(m.String())
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	name := "Union"
	for _, n := range names {
		name += "_" + n
	}
	return name
}

func sanitize(s string) string {
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

// GetOrCreate returns the descriptor for union, synthesizing it on first
// use. Members that are themselves unions are registered recursively, so
// every descriptor a layout depends on exists before FinalizeAll runs;
// recursion past maxNesting is diagnosed as CyclicUnionDependency and cut
// off with a detached descriptor.
func (s *Synth) GetOrCreate(union tast.Union) *UnionDescriptor {
	key := tast.CanonicalKey(union.Members)
	if d, ok := s.byKey[key]; ok {
		return d
	}
	if s.depth >= maxNesting {
		if s.Bag != nil {
			s.Bag.Addf(diag.CyclicUnionDependency, diag.Span{},
				"union %q nests more than %d levels deep; a recursive type alias cannot be realized as a value layout", key, maxNesting)
		}
		return &UnionDescriptor{Key: key, Name: s.naming(key, union.Members), Members: union.Members}
	}
	s.depth++
	d := &UnionDescriptor{
		Key:     key,
		Name:    s.naming(key, union.Members),
		Members: union.Members,
	}
	for i, m := range union.Members {
		if nested, ok := m.(tast.Union); ok {
			s.GetOrCreate(nested)
		}
		name := sanitize(m.String())
		d.Accessors = append(d.Accessors, Accessor{
			Member:   m,
			Tag:      i,
			IsName:   "Is" + name,
			AsName:   "As" + name,
			FromName: "From" + name,
		})
	}
	s.depth--
	s.byKey[key] = d
	s.order = append(s.order, d)
	return d
}

// Descriptors returns every synthesized descriptor in creation order.
func (s *Synth) Descriptors() []*UnionDescriptor {
	return s.order
}

// FinalizeAll marks every descriptor created so far as finalized. The
// Linker calls this once, after every function body has been emitted;
// descriptors are created on demand during that emission, so none is
// finalized yet while the bodies that reference it are being emitted.
func (s *Synth) FinalizeAll() {
	for _, d := range s.order {
		d.Finalized = true
	}
}

// TagFor returns the tag (0-indexed) a member type occupies in d, or -1 if
// member isn't one of d's members. Used by internal/emit to pick the
// UnionDescriptor.Accessors entry for an implicit conversion or projection.
func (d *UnionDescriptor) TagFor(member tast.TypeDescriptor) int {
	key := member.String()
	for _, a := range d.Accessors {
		if a.Member.String() == key {
			return a.Tag
		}
	}
	return -1
}
