package tast

// Expr is the base interface every typed expression node implements.
// Nodes are shared-immutable once the type checker hands them to the
// emitter.
type Expr interface {
	exprNode()
	Span() Span
	Type() TypeDescriptor
}

// Info carries the two fields every expression needs; embedded by every
// concrete Expr so the front end sets spans and resolved types uniformly.
type Info struct {
	Sp Span
	Ty TypeDescriptor
}

func (b Info) Span() Span           { return b.Sp }
func (b Info) Type() TypeDescriptor { return b.Ty }

// Ident references a local, parameter, or captured variable by name.
// Resolution to a slot/upvalue/display-class field happens in internal/emit
// and internal/closure, not here.
type Ident struct {
	Info
	Name string
	// Decl identifies the declaring VarDecl this identifier resolves to, or
	// nil for builtins (console, Math, Symbol, undefined, NaN, Infinity).
	Decl *VarDecl
}

func (Ident) exprNode() {}

// ThisExpr is `this`; the ClosureAnalyzer records this-usage separately
// from ordinary captures.
type ThisExpr struct{ Info }

func (ThisExpr) exprNode() {}

// Literal covers number/string/boolean/null/bigint/undefined constants.
type Literal struct {
	Info
	Value any
}

func (Literal) exprNode() {}

// Binary is a binary operator application; Op is the source token
// (`+`, `-`, `==`, `&&`, `??`, …) and lowering is entirely internal/emit's
// job.
type Binary struct {
	Info
	Op          string
	Left, Right Expr
}

func (Binary) exprNode() {}

// Unary covers `typeof`, `!`, `-`, `~`, and prefix/postfix `++`/`--`.
type Unary struct {
	Info
	Op       string
	Operand  Expr
	Postfix  bool
}

func (Unary) exprNode() {}

// InstanceOf is `a instanceof B`.
type InstanceOf struct {
	Info
	Value Expr
	Class ClassID
}

func (InstanceOf) exprNode() {}

// Assign is `target = value` or a compound assignment (`+=`, …). Op is ""
// for plain assignment.
type Assign struct {
	Info
	Op     string
	Target Expr
	Value  Expr
}

func (Assign) exprNode() {}

// Call covers every call-dispatch shape; the emitter decides which
// strategy applies from Callee's static type, not from a field here.
type Call struct {
	Info
	Callee Expr
	Args   []Expr
	// Optional marks `callee?.()` — a null/undefined callee short-circuits
	// to undefined instead of throwing.
	Optional bool
}

func (Call) exprNode() {}

// Member is `obj.name` / well-known-symbol property access.
type Member struct {
	Info
	Object   Expr
	Name     string
	Optional bool
}

func (Member) exprNode() {}

// Index is `obj[key]`.
type Index struct {
	Info
	Object, Key Expr
}

func (Index) exprNode() {}

// FunctionExpr is a function/arrow expression. An arrow captures `this`
// lexically; the closure analyzer records that on the plan's UsesThis.
type FunctionExpr struct {
	Info
	Plan *FunctionPlan
}

func (FunctionExpr) exprNode() {}

// Await is a suspension point.
type Await struct {
	Info
	Operand Expr
}

func (Await) exprNode() {}

// Yield is a suspension point; Delegate marks `yield*`.
type Yield struct {
	Info
	Operand  Expr
	Delegate bool
}

func (Yield) exprNode() {}

// ArrayLit / ObjectLit / TemplateLit round out literal-construction forms
// that the emitter routes through runtime CreateArray/CreateObject/
// Stringify entry points.
type ArrayLit struct {
	Info
	Elements []Expr
	// Spreads marks which elements are `...expr` spreads, by index.
	Spreads map[int]bool
}

func (ArrayLit) exprNode() {}

type ObjectProp struct {
	Key   string
	Value Expr
}

type ObjectLit struct {
	Info
	Props []ObjectProp
}

func (ObjectLit) exprNode() {}

type TemplateLit struct {
	Info
	Parts []Expr // string literal and substitution expressions, interleaved
}

func (TemplateLit) exprNode() {}
