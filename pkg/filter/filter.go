// Package filter parses and evaluates filter expressions against documents.
//
// Evaluation is total: a missing field or a type mismatch simply fails the
// predicate and never produces an error. Errors are reported only when a
// filter is parsed or prepared.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Parse converts a map-based filter into a FilterExpr.
// filter: { "genre": "Fiction", "published_year": { "$gt": 2000 } }
func Parse(filter map[string]interface{}) (domain.FilterExpr, error) {
	var expr domain.FilterExpr
	// Sorted keys keep predicate order stable for plan explanations.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := filter[key]
		if key == "$and" {
			list, ok := val.([]interface{})
			if !ok {
				return domain.FilterExpr{}, fmt.Errorf("%w: value for $and must be a list", domain.ErrInvalidArgument)
			}
			for _, item := range list {
				sub, ok := item.(map[string]interface{})
				if !ok {
					return domain.FilterExpr{}, fmt.Errorf("%w: element of $and must be an object", domain.ErrInvalidArgument)
				}
				subExpr, err := Parse(sub)
				if err != nil {
					return domain.FilterExpr{}, err
				}
				expr = expr.And(subExpr)
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return domain.FilterExpr{}, fmt.Errorf("%w: unsupported top-level operator %s", domain.ErrInvalidArgument, key)
		}

		ops, isOps, err := operatorMap(val)
		if err != nil {
			return domain.FilterExpr{}, fmt.Errorf("field %q: %w", key, err)
		}
		if !isOps {
			expr.Predicates = append(expr.Predicates, domain.FieldPredicate{Path: key, Op: domain.OpEq, Value: val})
			continue
		}
		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)
		for _, op := range opNames {
			expr.Predicates = append(expr.Predicates, domain.FieldPredicate{Path: key, Op: domain.Operator(op), Value: ops[op]})
		}
	}
	return Prepare(expr)
}

// operatorMap reports whether val is an operator object like {"$gt": 5}.
// A map without any $-keys is a literal sub-record compared by equality.
func operatorMap(val interface{}) (map[string]interface{}, bool, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		if d, isDoc := val.(domain.Document); isDoc {
			m, ok = d, true
		}
	}
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	dollar := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	}
	return nil, false, fmt.Errorf("%w: cannot mix operators and fields", domain.ErrInvalidArgument)
}

// Prepare validates paths and operators and normalizes literal values.
func Prepare(expr domain.FilterExpr) (domain.FilterExpr, error) {
	out := domain.FilterExpr{Predicates: make([]domain.FieldPredicate, 0, len(expr.Predicates))}
	for _, p := range expr.Predicates {
		if err := domain.ValidatePath(p.Path); err != nil {
			return domain.FilterExpr{}, err
		}
		val, err := domain.Normalize(p.Value)
		if err != nil {
			return domain.FilterExpr{}, fmt.Errorf("field %q: %w", p.Path, err)
		}
		switch p.Op {
		case domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		case domain.OpIn:
			if _, ok := val.([]interface{}); !ok {
				return domain.FilterExpr{}, fmt.Errorf("%w: $in on %q needs an array", domain.ErrInvalidArgument, p.Path)
			}
		case domain.OpExists:
			if _, ok := val.(bool); !ok {
				return domain.FilterExpr{}, fmt.Errorf("%w: $exists on %q needs a boolean", domain.ErrInvalidArgument, p.Path)
			}
		default:
			return domain.FilterExpr{}, fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidArgument, p.Op)
		}
		out.Predicates = append(out.Predicates, domain.FieldPredicate{Path: p.Path, Op: p.Op, Value: val})
	}
	return out, nil
}

// Matches checks if a document satisfies every predicate of expr.
func Matches(doc domain.Document, expr domain.FilterExpr) bool {
	for _, p := range expr.Predicates {
		if !MatchesPredicate(doc, p) {
			return false
		}
	}
	return true
}

// MatchesPredicate evaluates a single predicate.
func MatchesPredicate(doc domain.Document, p domain.FieldPredicate) bool {
	actual, exists := domain.Lookup(doc, p.Path)
	switch p.Op {
	case domain.OpExists:
		want, _ := p.Value.(bool)
		return exists == want
	case domain.OpNe:
		return !exists || !ValuesMatch(actual, p.Value)
	}
	if !exists {
		return false
	}
	switch p.Op {
	case domain.OpEq:
		return ValuesMatch(actual, p.Value)
	case domain.OpIn:
		list, _ := p.Value.([]interface{})
		for _, candidate := range list {
			if ValuesMatch(actual, candidate) {
				return true
			}
		}
		return false
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		c, ok := CompareComparable(actual, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case domain.OpGt:
			return c > 0
		case domain.OpGte:
			return c >= 0
		case domain.OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

// ValuesMatch compares two values for equality, handling different numeric types
func ValuesMatch(actual, expected interface{}) bool {
	if domain.KindOf(actual) != domain.KindOf(expected) {
		return false
	}
	return domain.ValuesEqual(actual, expected)
}

// CompareComparable orders two values that a range operator may compare:
// both numbers or both strings. ok is false for any other pairing.
func CompareComparable(a, b interface{}) (int, bool) {
	ka, kb := domain.KindOf(a), domain.KindOf(b)
	if ka != kb || (ka != domain.KindNumber && ka != domain.KindString) {
		return 0, false
	}
	return domain.CompareValues(a, b), true
}
