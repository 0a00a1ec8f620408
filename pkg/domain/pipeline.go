package domain

// Expr is an aggregation expression: a literal, a field reference, or an
// operator applied to argument expressions.
type Expr interface {
	isExpr()
}

// Literal is a constant expression.
type Literal struct {
	Value interface{}
}

// FieldRef reads a field path from the current document ("$price").
type FieldRef struct {
	Path string
}

// ExprOp names an arithmetic operator.
type ExprOp string

const (
	ExprMultiply ExprOp = "$multiply"
	ExprDivide   ExprOp = "$divide"
	ExprAdd      ExprOp = "$add"
	ExprSubtract ExprOp = "$subtract"
	ExprFloor    ExprOp = "$floor"
	ExprMod      ExprOp = "$mod"
)

// Operation applies an operator to its arguments.
type Operation struct {
	Op   ExprOp
	Args []Expr
}

// ObjectExpr builds a sub-record from named expressions (compound group keys).
type ObjectExpr struct {
	Fields map[string]Expr
}

func (Literal) isExpr()    {}
func (FieldRef) isExpr()   {}
func (Operation) isExpr()  {}
func (ObjectExpr) isExpr() {}

// Field is shorthand for a FieldRef.
func Field(path string) Expr { return FieldRef{Path: path} }

// Const is shorthand for a Literal.
func Const(v interface{}) Expr { return Literal{Value: v} }

// Multiply multiplies its arguments.
func Multiply(args ...Expr) Expr { return Operation{Op: ExprMultiply, Args: args} }

// Divide divides a by b.
func Divide(a, b Expr) Expr { return Operation{Op: ExprDivide, Args: []Expr{a, b}} }

// Add sums its arguments.
func Add(args ...Expr) Expr { return Operation{Op: ExprAdd, Args: args} }

// Subtract subtracts b from a.
func Subtract(a, b Expr) Expr { return Operation{Op: ExprSubtract, Args: []Expr{a, b}} }

// Floor rounds down.
func Floor(a Expr) Expr { return Operation{Op: ExprFloor, Args: []Expr{a}} }

// Mod is the remainder of a divided by b.
func Mod(a, b Expr) Expr { return Operation{Op: ExprMod, Args: []Expr{a, b}} }

// AccumulatorOp names a group accumulator.
type AccumulatorOp string

const (
	AccSum   AccumulatorOp = "$sum"
	AccAvg   AccumulatorOp = "$avg"
	AccMin   AccumulatorOp = "$min"
	AccMax   AccumulatorOp = "$max"
	AccFirst AccumulatorOp = "$first"
	AccLast  AccumulatorOp = "$last"
	AccPush  AccumulatorOp = "$push"
)

// Accumulator computes one output field per group.
type Accumulator struct {
	Field string
	Op    AccumulatorOp
	Expr  Expr
}

// Stage is one step of an aggregation pipeline.
type Stage interface {
	StageName() string
}

// MatchStage filters documents.
type MatchStage struct {
	Filter FilterExpr
}

// GroupStage partitions documents by the evaluated key and accumulates.
type GroupStage struct {
	By           Expr
	Accumulators []Accumulator
}

// SortStage orders documents.
type SortStage struct {
	Keys []SortKey
}

// LimitStage keeps the first N documents.
type LimitStage struct {
	N int
}

// SkipStage drops the first N documents.
type SkipStage struct {
	N int
}

// ProjectField is one entry of a $project spec: either an include/exclude
// flag or a computed expression.
type ProjectField struct {
	Field   string
	Include bool
	Expr    Expr
}

// ProjectStage reshapes documents. An empty spec is the identity.
type ProjectStage struct {
	Fields []ProjectField
}

func (MatchStage) StageName() string   { return "$match" }
func (GroupStage) StageName() string   { return "$group" }
func (SortStage) StageName() string    { return "$sort" }
func (LimitStage) StageName() string   { return "$limit" }
func (SkipStage) StageName() string    { return "$skip" }
func (ProjectStage) StageName() string { return "$project" }
