package unions

import (
	"testing"

	"github.com/sharpts/sharpts/internal/diag"
	"github.com/sharpts/sharpts/internal/tast"
)

func TestGetOrCreateDeduplicatesBySortedMemberKey(t *testing.T) {
	s := New()
	u1 := tast.Union{Members: []tast.TypeDescriptor{tast.Primitive{Kind: tast.StringKind}, tast.Primitive{Kind: tast.Number}}}
	u2 := tast.Union{Members: []tast.TypeDescriptor{tast.Primitive{Kind: tast.Number}, tast.Primitive{Kind: tast.StringKind}}}

	d1 := s.GetOrCreate(u1)
	d2 := s.GetOrCreate(u2)

	if d1 != d2 {
		t.Fatalf("string|number and number|string must dedupe to the same descriptor")
	}
	if len(s.Descriptors()) != 1 {
		t.Fatalf("expected exactly one synthesized descriptor, got %d", len(s.Descriptors()))
	}
}

func TestUnionRoundTrip(t *testing.T) {
	// round-trip property: for x: M, from(x).as<M>() == x;
	// U::from(x).is::<M>() == true; U::from(x).is::<M'>() == false.
	s := New()
	u := s.GetOrCreate(tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.StringKind},
		tast.Primitive{Kind: tast.Number},
		tast.Array{Elem: tast.Any{}},
	}})

	if len(u.Accessors) != len(u.Members) {
		t.Fatalf("tag domain must equal member count: got %d accessors for %d members", len(u.Accessors), len(u.Members))
	}

	stringTag := u.TagFor(tast.Primitive{Kind: tast.StringKind})
	numberTag := u.TagFor(tast.Primitive{Kind: tast.Number})
	if stringTag == numberTag {
		t.Fatalf("distinct members must get distinct tags")
	}
	if u.TagFor(tast.Primitive{Kind: tast.Boolean}) != -1 {
		t.Fatalf("a type that isn't a member must resolve to no tag")
	}
}

func TestFinalizeAllMarksEveryCreatedDescriptor(t *testing.T) {
	s := New()
	s.GetOrCreate(tast.Union{Members: []tast.TypeDescriptor{tast.Null{}, tast.Primitive{Kind: tast.Number}}})
	s.GetOrCreate(tast.Union{Members: []tast.TypeDescriptor{tast.Null{}, tast.Primitive{Kind: tast.StringKind}}})

	for _, d := range s.Descriptors() {
		if d.Finalized {
			t.Fatalf("descriptors must not be finalized before FinalizeAll runs")
		}
	}
	s.FinalizeAll()
	for _, d := range s.Descriptors() {
		if !d.Finalized {
			t.Fatalf("FinalizeAll must finalize every descriptor created so far")
		}
	}
}

func TestNestedUnionMembersAreRegisteredToo(t *testing.T) {
	s := New()
	inner := tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.Number},
		tast.Primitive{Kind: tast.StringKind},
	}}
	outer := tast.Union{Members: []tast.TypeDescriptor{
		tast.Primitive{Kind: tast.Boolean},
		inner,
	}}
	s.GetOrCreate(outer)
	if len(s.Descriptors()) != 2 {
		t.Fatalf("the nested member union must be registered alongside the outer one, got %d descriptors", len(s.Descriptors()))
	}
}

func TestRunawayUnionNestingIsDiagnosedAsCyclic(t *testing.T) {
	s := New()
	var bag diag.Bag
	s.Bag = &bag

	// a recursive type alias expanded by a checker unfolds into unbounded
	// nesting; eighty levels is far past anything a human writes
	u := tast.Union{Members: []tast.TypeDescriptor{tast.Primitive{Kind: tast.Number}}}
	for i := 0; i < 80; i++ {
		u = tast.Union{Members: []tast.TypeDescriptor{tast.Primitive{Kind: tast.StringKind}, u}}
	}
	s.GetOrCreate(u)

	if !bag.HasErrors() {
		t.Fatalf("expected a CyclicUnionDependency diagnostic")
	}
	if bag.Items()[0].Kind != diag.CyclicUnionDependency {
		t.Fatalf("expected CyclicUnionDependency, got %v", bag.Items()[0].Kind)
	}
}
