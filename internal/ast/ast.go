// Package ast defines the C-minus-f syntax tree that internal/lower
// consumes. Lexing and parsing are out of scope for this repository; these
// types are the schema an external front end (or a hand-written test, or
// cmd/cminusfc-ir's JSON reader) produces.
package ast

// Program is the root of a C-minus-f syntax tree: an ordered sequence of
// top-level declarations.
type Program struct {
	Declarations []Declaration `json:"declarations"`
}

// Declaration is a top-level variable or function declaration. Exactly one
// of the Var/Func fields is set, selected by Kind.
type Declaration struct {
	Kind DeclKind         `json:"kind"`
	Var  *VarDeclaration  `json:"var,omitempty"`
	Func *FuncDeclaration `json:"func,omitempty"`
}

// DeclKind discriminates Declaration.
type DeclKind string

const (
	DeclVar  DeclKind = "var"
	DeclFunc DeclKind = "func"
)

// ValueType is the C-minus-f surface type of a declaration, parameter, or
// literal: Int or Float. Function declarations additionally allow Void as a
// return type.
type ValueType string

const (
	TypeInt   ValueType = "int"
	TypeFloat ValueType = "float"
	TypeVoid  ValueType = "void"
)

// VarDeclaration declares a scalar or (when Num is non-nil) a 1-D array.
// Scope determines whether lowering emits a global or a local alloca: it is
// implicit from where the declaration appears in the tree (program level vs.
// inside a function body), not stored on the node itself.
type VarDeclaration struct {
	Type ValueType `json:"type"`
	Name string    `json:"name"`
	// Num is the array length literal; nil for a scalar declaration.
	Num *int64 `json:"num,omitempty"`
}

// FuncDeclaration declares a function with an ordered parameter list and a
// compound-statement body.
type FuncDeclaration struct {
	Returns ValueType  `json:"returns"`
	Name    string     `json:"name"`
	Params  []Param    `json:"params"`
	// Body is the function's compound-statement body (Kind == StmtCompound).
	// Nil means this is an external declaration with no definition.
	Body *Statement `json:"body,omitempty"`
}

// Param is a function parameter; IsArray marks a bare-array parameter
// (`int a[]`), which lowers to a pointer to the element type.
type Param struct {
	Type    ValueType `json:"type"`
	Name    string    `json:"name"`
	IsArray bool      `json:"isArray,omitempty"`
}

// StmtKind discriminates Statement.
type StmtKind string

const (
	StmtCompound StmtKind = "compound"
	StmtExpr     StmtKind = "expr"
	StmtIf       StmtKind = "if"
	StmtWhile    StmtKind = "while"
	StmtReturn   StmtKind = "return"
)

// Statement is a flat tagged struct over every C-minus-f statement form;
// which fields are populated is determined by Kind.
type Statement struct {
	Kind StmtKind `json:"kind"`

	// StmtCompound
	Locals []VarDeclaration `json:"locals,omitempty"`
	Body   []Statement      `json:"body,omitempty"`

	// StmtExpr (Expr may be nil for a bare ";")
	Expr *Expression `json:"expr,omitempty"`

	// StmtIf
	Cond *Expression `json:"cond,omitempty"`
	Then []Statement `json:"then,omitempty"`
	Else []Statement `json:"else,omitempty"` // absent => no else branch

	// StmtWhile reuses Cond and Body above.

	// StmtReturn; Expr above carries the returned expression (nil => bare
	// "return;").
}

// ExprKind discriminates Expression.
type ExprKind string

const (
	ExprLiteral    ExprKind = "literal"
	ExprVar        ExprKind = "var"   // plain or indexed variable reference
	ExprAssign     ExprKind = "assign"
	ExprRelational ExprKind = "relational"
	ExprAdditive   ExprKind = "additive"
	ExprTerm       ExprKind = "term"
	ExprCall       ExprKind = "call"
)

// BinOp is the operator carried by a relational/additive/term expression.
type BinOp string

const (
	OpLt  BinOp = "<"
	OpLe  BinOp = "<="
	OpGt  BinOp = ">"
	OpGe  BinOp = ">="
	OpEq  BinOp = "=="
	OpNe  BinOp = "!="
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
)

// Expression is a flat tagged struct over every C-minus-f expression form.
type Expression struct {
	Kind ExprKind `json:"kind"`

	// ExprLiteral: exactly one of IntVal/FloatVal is meaningful, selected by
	// IsFloat. Literal lexing (text -> number) is a parser concern; these are
	// already-parsed values.
	IsFloat  bool    `json:"isFloat,omitempty"`
	IntVal   int32   `json:"intVal,omitempty"`
	FloatVal float64 `json:"floatVal,omitempty"`

	// ExprVar: Name identifies the binding; Index, if non-nil, makes this an
	// indexed reference id[Index].
	Name  string      `json:"name,omitempty"`
	Index *Expression `json:"index,omitempty"`

	// ExprAssign: Target is an ExprVar node (plain or indexed); Value is the
	// right-hand expression.
	Target *Expression `json:"target,omitempty"`
	Value  *Expression `json:"value,omitempty"`

	// ExprRelational/ExprAdditive/ExprTerm: Op selects the operator; Left
	// and/or Right may be nil, in which case the node passes through to the
	// single present operand.
	Op    BinOp       `json:"op,omitempty"`
	Left  *Expression `json:"left,omitempty"`
	Right *Expression `json:"right,omitempty"`

	// ExprCall
	Callee string       `json:"callee,omitempty"`
	Args   []Expression `json:"args,omitempty"`
}
