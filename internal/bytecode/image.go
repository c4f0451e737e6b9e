package bytecode

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(&Image{})
	gob.Register(&CompiledFunction{})
	gob.Register(&ClassMetadata{})
	gob.Register(&UnionMetadata{})
}

// UnionMetadata is the linked, named form of a unions.UnionDescriptor: just
// enough for a disassembly/debug listing to print which tag corresponds to
// which member, without internal/bytecode needing to import internal/unions.
type UnionMetadata struct {
	Name    string
	Members []string
}

// CompiledFunction is one emitted method/function body plus enough
// metadata to call it: parameter count (for the overload-forwarding
// entries for default parameters), upvalue count, and whether it's the
// move_next of a state machine.
type CompiledFunction struct {
	QualifiedName string
	Chunk         *Chunk
	Arity         int
	UpvalueCount  int
	IsStateMachine bool
}

// ClassMetadata is the host-metadata record the Linker defines before any
// method body is emitted.
type ClassMetadata struct {
	QualifiedName string
	BaseClass     string // "" for no base
	FieldNames    []string
	MethodNames   []string
}

// Image is the emitted artifact: everything the host runtime needs to
// load and run a compiled program — user types, static members, function
// bodies, and an entry point. No external format pins the layout, so the
// shape here is the project's own: a flat name-keyed function table plus
// class and union metadata, gob-encoded, with module initialization
// sequenced through export slots.
type Image struct {
	// EntryPoint is the qualified name of the Linker-synthesized or
	// user-defined entry method.
	EntryPoint string

	Classes   map[string]*ClassMetadata
	Functions map[string]*CompiledFunction
	Unions    []UnionMetadata

	// ModuleInit lists, per module ID, the qualified name of that module's
	// static-constructor function, in the order the Linker decided to run
	// them.
	ModuleInit []string

	// Resources holds embedded static files bundled alongside the image;
	// the sharpts.yaml embed globs feed this.
	Resources map[string][]byte
}

func NewImage() *Image {
	return &Image{
		Classes:   make(map[string]*ClassMetadata),
		Functions: make(map[string]*CompiledFunction),
		Resources: make(map[string][]byte),
	}
}

// Encode gob-serializes the image.
func (img *Image) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(img); err != nil {
		return nil, fmt.Errorf("bytecode: encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Image, error) {
	var img Image
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&img); err != nil {
		return nil, fmt.Errorf("bytecode: decode image: %w", err)
	}
	return &img, nil
}
