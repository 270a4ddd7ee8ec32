// Package ast defines the minimal typed-AST contract internal/lower
// consumes. Scanning, parsing, and type checking are external
// collaborators (spec §1); this package is the stub shape a checker
// would populate, large enough for the lowerer to build an SSA Function
// from it but no larger, the same way internal/wasm2clif treats a decoded
// wasm.Module as its upstream artifact without owning the decoder.
package ast

import "github.com/cot-lang/cotc/internal/types"

// Program is a single compilation unit: every declared struct/enum type
// (already interned into the shared TypeRegistry) and every function.
type Program struct {
	Types *types.TypeRegistry
	Funcs []*FuncDecl
}

// FuncDecl is a typed function declaration.
type FuncDecl struct {
	Name    string
	Params  []Param
	Results []types.TypeIndex
	Body    []Stmt
}

// Param is a single function parameter.
type Param struct {
	Name string
	Type types.TypeIndex
}

// Stmt is a statement. Exactly one of the concrete *Stmt fields is set;
// Kind disambiguates which, mirroring the tagged-union style spec §3.1
// uses for SSA Values since a Go interface per node would give the
// lowerer type switches anyway.
type Stmt struct {
	Kind StmtKind
	Pos  Pos

	Let    *LetStmt
	Assign *AssignStmt
	Return *ReturnStmt
	Expr   Expr
	If     *IfStmt
	While  *WhileStmt
	Defer  Expr
	Block  []Stmt
}

// StmtKind tags which field of Stmt is populated.
type StmtKind int

const (
	StmtLet StmtKind = iota
	StmtAssign
	StmtReturn
	StmtExpr
	StmtIf
	StmtWhile
	StmtDefer
	StmtBlock
)

// LetStmt declares a new local binding.
type LetStmt struct {
	Name  string
	Type  types.TypeIndex
	Value Expr
}

// AssignStmt assigns to an existing lvalue (local, field, or index).
type AssignStmt struct {
	Target Expr
	Value  Expr
}

// ReturnStmt returns zero or more values from the enclosing function.
type ReturnStmt struct {
	Values []Expr
}

// IfStmt is a conditional with optional else branch.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// WhileStmt is cot's only source-level loop form; `for`-style iteration
// desugars to this in the checker, so the lowerer only ever sees While.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

// Pos is a 1-based source position, carried through to SSA Values (§3.1)
// and on to DWARF line-table rows (§4.5.6).
type Pos struct {
	Line, Col int
}

// ExprKind tags which field of Expr is populated.
type ExprKind int

const (
	ExprIntLit ExprKind = iota
	ExprStringLit
	ExprBoolLit
	ExprVar
	ExprBinary
	ExprUnary
	ExprCall
	ExprNew
	ExprField
	ExprIndex
	ExprStructLit
	ExprSwitch
)

// BinOp enumerates the source-level binary operators the lowerer
// rewrites into SSA arithmetic/comparison ops.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

// UnOp enumerates the source-level unary operators.
type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// Expr is a typed expression node. Like Stmt, exactly one concrete field
// is populated per Kind.
type Expr struct {
	Kind Kind
	Type types.TypeIndex
	Pos  Pos

	IntLit    int64
	StringLit string
	BoolLit   bool
	Name      string

	BinOp BinOp
	UnOp  UnOp
	LHS   *Expr
	RHS   *Expr
	Arg   *Expr

	Callee string
	Args   []Expr

	StructName string
	FieldNames []string
	FieldVals  []Expr

	FieldBase *Expr
	FieldName string

	IndexBase *Expr
	IndexExpr *Expr

	SwitchOn    *Expr
	SwitchCases []SwitchCase
}

// Kind is an alias retained for readability at call sites (ast.Kind vs.
// ast.ExprKind reads the same either way; Expr.Kind uses this name).
type Kind = ExprKind

// SwitchCase is one arm of a tagged-union switch (spec §8 scenario S6):
// TagName selects the union variant, Binding names the payload local
// (empty if the variant carries no payload, e.g. Void).
type SwitchCase struct {
	TagName string
	Binding string
	Body    []Stmt
}
