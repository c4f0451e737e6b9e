package tast

// Stmt is the base interface for typed statement nodes.
type Stmt interface {
	stmtNode()
	Span() Span
}

// StmtInfo carries the source span every statement node embeds.
type StmtInfo struct{ Sp Span }

func (s StmtInfo) Span() Span { return s.Sp }

// VarDecl declares a local/parameter/catch binding. ClosureAnalyzer keys
// capture decisions off the identity of this node.
type VarDecl struct {
	StmtInfo
	Name     string
	Type     TypeDescriptor
	Init     Expr
	Mutable  bool
	// Kind distinguishes ordinary lets/consts from the special per-scope
	// bindings: catch bindings and per-iteration for-of loop variables.
	Kind VarDeclKind
}

type VarDeclKind int

const (
	PlainVar VarDeclKind = iota
	Param
	CatchBinding
	LoopBinding
)

func (VarDecl) stmtNode() {}

type ExprStmt struct {
	StmtInfo
	X Expr
}

func (ExprStmt) stmtNode() {}

type Block struct {
	StmtInfo
	Stmts []Stmt
}

func (Block) stmtNode() {}

type If struct {
	StmtInfo
	Cond       Expr
	Then, Else Stmt
}

func (If) stmtNode() {}

// LoopKind distinguishes the loop headers the ClosureAnalyzer and
// AsyncXformer both need to treat specially.
type LoopKind int

const (
	WhileLoop LoopKind = iota
	DoWhileLoop
	ForLoop
	ForOfLoop
	ForInLoop
)

type Loop struct {
	StmtInfo
	Kind LoopKind
	// Binding is non-nil for ForOfLoop/ForInLoop: the per-iteration
	// declaration.
	Binding   *VarDecl
	Init      Stmt
	Cond      Expr
	Post      Expr
	Iterable  Expr
	Body      Stmt
	Label     string
}

func (Loop) stmtNode() {}

type Break struct {
	StmtInfo
	Label string
}

func (Break) stmtNode() {}

type Continue struct {
	StmtInfo
	Label string
}

func (Continue) stmtNode() {}

type Return struct {
	StmtInfo
	Value Expr // nil for bare `return;`
}

func (Return) stmtNode() {}

type Throw struct {
	StmtInfo
	Value Expr
}

func (Throw) stmtNode() {}

// TryRegion is one try/catch/finally region. If it contains any
// suspension point, the async transformer lowers it to an explicit
// exception-slot simulation instead of a native exception-region frame.
type TryRegion struct {
	StmtInfo
	ID          int
	Body        Stmt
	CatchParam  *VarDecl // nil if there is no catch clause
	CatchBody   Stmt
	FinallyBody Stmt // nil if there is no finally clause
}

func (TryRegion) stmtNode() {}

// ClassDecl / FunctionDecl surface ClassPlan/FunctionPlan as statements so
// they can appear in a module's top-level statement list in source order.
type ClassDecl struct {
	StmtInfo
	Plan *ClassPlan
}

func (ClassDecl) stmtNode() {}

type FunctionDecl struct {
	StmtInfo
	Plan *FunctionPlan
}

func (FunctionDecl) stmtNode() {}

// ExportDecl / ImportDecl are module-planning inputs consumed by
// internal/modplan; they don't carry resolved slot information themselves.
type ExportKind int

const (
	ExportNamed ExportKind = iota
	ExportDefault
	ExportAll
	ExportFrom
)

type ExportDecl struct {
	StmtInfo
	Kind    ExportKind
	Name    string // local name being exported ("" for ExportAll)
	As      string // exported name, defaults to Name
	FromPath string // non-empty for `export ... from 'path'` and ExportAll
}

func (ExportDecl) stmtNode() {}

type ImportKind int

const (
	ImportNamed ImportKind = iota
	ImportDefault
	ImportNamespace
)

type ImportSpecifier struct {
	Kind   ImportKind
	Remote string // remote export name ("$default" for ImportDefault)
	Local  string // local binding name
	// Binding is the module-scope VarDecl the checker synthesizes for the
	// local name; identifiers referencing the import resolve to it. Module
	// init seeds it from the remote export slot, so a binding read before
	// the source module finished initializing observes null.
	Binding *VarDecl
}

type ImportDecl struct {
	StmtInfo
	Path        string
	Specifiers  []ImportSpecifier
}

func (ImportDecl) stmtNode() {}
