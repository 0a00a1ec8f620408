package domain

// Operator is a comparison operator in a field predicate.
type Operator string

const (
	OpEq     Operator = "$eq"
	OpNe     Operator = "$ne"
	OpGt     Operator = "$gt"
	OpGte    Operator = "$gte"
	OpLt     Operator = "$lt"
	OpLte    Operator = "$lte"
	OpIn     Operator = "$in"
	OpExists Operator = "$exists"
)

// IsRange reports whether op bounds a value range.
func (op Operator) IsRange() bool {
	return op == OpGt || op == OpGte || op == OpLt || op == OpLte
}

// FieldPredicate tests one field path against a literal.
type FieldPredicate struct {
	Path  string
	Op    Operator
	Value interface{}
}

// FilterExpr is a conjunction of field predicates. The zero value matches
// every document.
type FilterExpr struct {
	Predicates []FieldPredicate
}

// IsEmpty reports whether the filter matches everything.
func (f FilterExpr) IsEmpty() bool {
	return len(f.Predicates) == 0
}

// And returns a filter requiring both f and other.
func (f FilterExpr) And(other FilterExpr) FilterExpr {
	preds := make([]FieldPredicate, 0, len(f.Predicates)+len(other.Predicates))
	preds = append(preds, f.Predicates...)
	preds = append(preds, other.Predicates...)
	return FilterExpr{Predicates: preds}
}

// Eq builds an equality predicate.
func Eq(path string, value interface{}) FieldPredicate {
	return FieldPredicate{Path: path, Op: OpEq, Value: value}
}

// Gt builds a greater-than predicate.
func Gt(path string, value interface{}) FieldPredicate {
	return FieldPredicate{Path: path, Op: OpGt, Value: value}
}

// Gte builds a greater-or-equal predicate.
func Gte(path string, value interface{}) FieldPredicate {
	return FieldPredicate{Path: path, Op: OpGte, Value: value}
}

// Lt builds a less-than predicate.
func Lt(path string, value interface{}) FieldPredicate {
	return FieldPredicate{Path: path, Op: OpLt, Value: value}
}

// Lte builds a less-or-equal predicate.
func Lte(path string, value interface{}) FieldPredicate {
	return FieldPredicate{Path: path, Op: OpLte, Value: value}
}

// Where builds a conjunction of predicates.
func Where(preds ...FieldPredicate) FilterExpr {
	return FilterExpr{Predicates: preds}
}
