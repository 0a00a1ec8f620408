package aggregation

import (
	"fmt"
	"math"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Eval evaluates expr against doc. A field reference to an absent field
// yields domain.Missing. Arithmetic over non-numeric operands, or division
// by zero, yields nil.
func Eval(expr domain.Expr, doc domain.Document) interface{} {
	switch e := expr.(type) {
	case domain.Literal:
		if f, ok := domain.ToFloat64(e.Value); ok {
			return f
		}
		return e.Value
	case domain.FieldRef:
		return domain.LookupValue(doc, e.Path)
	case domain.ObjectExpr:
		out := make(map[string]interface{}, len(e.Fields))
		for name, sub := range e.Fields {
			v := Eval(sub, doc)
			if v == domain.Missing {
				continue
			}
			out[name] = v
		}
		return out
	case domain.Operation:
		return evalOperation(e, doc)
	}
	return nil
}

func evalOperation(op domain.Operation, doc domain.Document) interface{} {
	args := make([]float64, len(op.Args))
	for i, arg := range op.Args {
		v := Eval(arg, doc)
		if domain.KindOf(v) != domain.KindNumber {
			return nil
		}
		args[i], _ = domain.ToFloat64(v)
	}
	if len(args) == 0 {
		return nil
	}

	switch op.Op {
	case domain.ExprAdd:
		sum := 0.0
		for _, a := range args {
			sum += a
		}
		return sum
	case domain.ExprMultiply:
		product := 1.0
		for _, a := range args {
			product *= a
		}
		return product
	case domain.ExprSubtract:
		if len(args) != 2 {
			return nil
		}
		return args[0] - args[1]
	case domain.ExprDivide:
		if len(args) != 2 || args[1] == 0 {
			return nil
		}
		return args[0] / args[1]
	case domain.ExprMod:
		if len(args) != 2 || args[1] == 0 {
			return nil
		}
		return math.Mod(args[0], args[1])
	case domain.ExprFloor:
		if len(args) != 1 {
			return nil
		}
		return math.Floor(args[0])
	}
	return nil
}

var arity = map[domain.ExprOp]int{
	domain.ExprMultiply: -1,
	domain.ExprAdd:      -1,
	domain.ExprDivide:   2,
	domain.ExprSubtract: 2,
	domain.ExprMod:      2,
	domain.ExprFloor:    1,
}

// ValidateExpr checks operator names, argument counts and field paths.
func ValidateExpr(expr domain.Expr) error {
	switch e := expr.(type) {
	case nil:
		return fmt.Errorf("%w: missing expression", domain.ErrInvalidArgument)
	case domain.Literal:
		_, err := domain.Normalize(e.Value)
		return err
	case domain.FieldRef:
		return domain.ValidatePath(e.Path)
	case domain.ObjectExpr:
		for name, sub := range e.Fields {
			if name == "" || strings.HasPrefix(name, "$") {
				return fmt.Errorf("%w: invalid field name %q in expression", domain.ErrInvalidArgument, name)
			}
			if err := ValidateExpr(sub); err != nil {
				return err
			}
		}
		return nil
	case domain.Operation:
		n, ok := arity[e.Op]
		if !ok {
			return fmt.Errorf("%w: unknown expression operator %s", domain.ErrInvalidArgument, e.Op)
		}
		if (n < 0 && len(e.Args) == 0) || (n > 0 && len(e.Args) != n) {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", domain.ErrInvalidArgument, e.Op, n, len(e.Args))
		}
		for _, arg := range e.Args {
			if err := ValidateExpr(arg); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported expression %T", domain.ErrInvalidArgument, expr)
}

// ParseExpr converts a Mongo-shaped expression value: "$path" is a field
// reference, {"$op": [args]} an operation, a plain object a sub-record of
// expressions, and anything else a literal.
func ParseExpr(v interface{}) (domain.Expr, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			path := strings.TrimPrefix(val, "$")
			if err := domain.ValidatePath(path); err != nil {
				return nil, err
			}
			return domain.FieldRef{Path: path}, nil
		}
		return domain.Literal{Value: val}, nil
	case domain.Document:
		return ParseExpr(map[string]interface{}(val))
	case map[string]interface{}:
		if len(val) == 1 {
			for k, raw := range val {
				if strings.HasPrefix(k, "$") {
					return parseOperation(domain.ExprOp(k), raw)
				}
			}
		}
		fields := make(map[string]domain.Expr, len(val))
		for k, raw := range val {
			if strings.HasPrefix(k, "$") {
				return nil, fmt.Errorf("%w: operator %s must be the only key of its object", domain.ErrInvalidArgument, k)
			}
			sub, err := ParseExpr(raw)
			if err != nil {
				return nil, err
			}
			fields[k] = sub
		}
		expr := domain.ObjectExpr{Fields: fields}
		return expr, ValidateExpr(expr)
	}
	norm, err := domain.Normalize(v)
	if err != nil {
		return nil, err
	}
	return domain.Literal{Value: norm}, nil
}

func parseOperation(op domain.ExprOp, raw interface{}) (domain.Expr, error) {
	rawArgs, ok := raw.([]interface{})
	if !ok {
		rawArgs = []interface{}{raw}
	}
	args := make([]domain.Expr, len(rawArgs))
	for i, a := range rawArgs {
		expr, err := ParseExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = expr
	}
	expr := domain.Operation{Op: op, Args: args}
	return expr, ValidateExpr(expr)
}
