// Package emit lowers a straight-line (non-suspending) function body to
// stack-based instructions: classic single-pass slot/local bookkeeping,
// emitJump/patchJump control flow, and switch-on-operator lowering for
// infix expressions, extended with the typed-stack discipline this file
// implements — tracking the representation of the top-of-stack value so
// boxing conversions are inserted only where representations disagree.
package emit

// Repr is the typed-stack representation tracked per evaluation position
//: "Unknown (erased reference), Double, Boolean, String,
// Null". Operations that need a specific representation insert exactly one
// conversion; a value already in the desired representation costs nothing.
type Repr int

const (
	ReprUnknown Repr = iota
	ReprDouble
	ReprBoolean
	ReprString
	ReprNull
)

func (r Repr) String() string {
	switch r {
	case ReprDouble:
		return "Double"
	case ReprBoolean:
		return "Boolean"
	case ReprString:
		return "String"
	case ReprNull:
		return "Null"
	default:
		return "Unknown"
	}
}
