package aggregation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
)

// ParsePipeline converts Mongo-shaped stage objects into typed stages:
//
//	[{"$group": {"_id": "$author", "count": {"$sum": 1}}}, {"$sort": {"count": -1}}, {"$limit": 1}]
//
// Go maps are unordered, so a $sort over several fields takes a list of
// single-key objects: {"$sort": [{"author": 1}, {"published_year": -1}]}.
func ParsePipeline(raw []map[string]interface{}) ([]domain.Stage, error) {
	stages := make([]domain.Stage, 0, len(raw))
	for i, obj := range raw {
		stage, err := parseStage(obj)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, stage)
	}
	if err := Validate(stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func parseStage(obj map[string]interface{}) (domain.Stage, error) {
	if len(obj) != 1 {
		return nil, fmt.Errorf("%w: a stage must have exactly one operator", domain.ErrInvalidArgument)
	}
	for name, body := range obj {
		switch name {
		case "$match":
			m, ok := asMap(body)
			if !ok {
				return nil, fmt.Errorf("%w: $match takes an object", domain.ErrInvalidArgument)
			}
			expr, err := filter.Parse(m)
			if err != nil {
				return nil, err
			}
			return domain.MatchStage{Filter: expr}, nil
		case "$group":
			return parseGroup(body)
		case "$sort":
			keys, err := ParseSortKeys(body)
			if err != nil {
				return nil, err
			}
			return domain.SortStage{Keys: keys}, nil
		case "$limit":
			n, err := parseCount(name, body)
			if err != nil {
				return nil, err
			}
			return domain.LimitStage{N: n}, nil
		case "$skip":
			n, err := parseCount(name, body)
			if err != nil {
				return nil, err
			}
			return domain.SkipStage{N: n}, nil
		case "$project":
			return parseProject(body)
		default:
			return nil, fmt.Errorf("%w: unknown stage %s", domain.ErrInvalidArgument, name)
		}
	}
	return nil, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case domain.Document:
		return m, true
	}
	return nil, false
}

func parseGroup(body interface{}) (domain.Stage, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, fmt.Errorf("%w: $group takes an object", domain.ErrInvalidArgument)
	}
	rawID, ok := m[domain.IDField]
	if !ok {
		return nil, fmt.Errorf("%w: $group requires an _id expression", domain.ErrInvalidArgument)
	}
	by, err := ParseExpr(rawID)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(m))
	for k := range m {
		if k != domain.IDField {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	stage := domain.GroupStage{By: by}
	for _, field := range fields {
		spec, ok := asMap(m[field])
		if !ok || len(spec) != 1 {
			return nil, fmt.Errorf("%w: accumulator %q must be a single-operator object", domain.ErrInvalidArgument, field)
		}
		for op, rawExpr := range spec {
			expr, err := ParseExpr(rawExpr)
			if err != nil {
				return nil, err
			}
			stage.Accumulators = append(stage.Accumulators, domain.Accumulator{
				Field: field,
				Op:    domain.AccumulatorOp(op),
				Expr:  expr,
			})
		}
	}
	return stage, nil
}

// ParseSortKeys reads {"field": 1} or an ordered list of such objects.
func ParseSortKeys(body interface{}) ([]domain.SortKey, error) {
	var parts []map[string]interface{}
	if m, ok := asMap(body); ok {
		if len(m) > 1 {
			return nil, fmt.Errorf("%w: sort on several fields needs a list of single-key objects", domain.ErrInvalidArgument)
		}
		parts = append(parts, m)
	} else if list, ok := body.([]interface{}); ok {
		for _, item := range list {
			m, ok := asMap(item)
			if !ok || len(m) != 1 {
				return nil, fmt.Errorf("%w: sort list entries must be single-key objects", domain.ErrInvalidArgument)
			}
			parts = append(parts, m)
		}
	} else {
		return nil, fmt.Errorf("%w: sort takes an object or a list", domain.ErrInvalidArgument)
	}

	keys := make([]domain.SortKey, 0, len(parts))
	for _, part := range parts {
		for field, raw := range part {
			dir, ok := domain.ToFloat64(raw)
			if !ok || (dir != 1 && dir != -1) {
				return nil, fmt.Errorf("%w: sort direction for %q must be 1 or -1", domain.ErrInvalidArgument, field)
			}
			keys = append(keys, domain.SortKey{Field: field, Direction: domain.Direction(dir)})
		}
	}
	return keys, nil
}

func parseCount(stage string, body interface{}) (int, error) {
	f, ok := domain.ToFloat64(body)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s takes an integer", domain.ErrInvalidArgument, stage)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %s cannot be negative", domain.ErrInvalidArgument, stage)
	}
	return int(f), nil
}

func parseProject(body interface{}) (domain.Stage, error) {
	m, ok := asMap(body)
	if !ok {
		return nil, fmt.Errorf("%w: $project takes an object", domain.ErrInvalidArgument)
	}
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	stage := domain.ProjectStage{}
	for _, field := range fields {
		raw := m[field]
		pf := domain.ProjectField{Field: field}
		switch v := raw.(type) {
		case bool:
			pf.Include = v
		case string:
			if !strings.HasPrefix(v, "$") {
				pf.Expr = domain.Literal{Value: v}
				break
			}
			expr, err := ParseExpr(v)
			if err != nil {
				return nil, err
			}
			pf.Expr = expr
		default:
			if n, isNum := domain.ToFloat64(raw); isNum {
				pf.Include = n != 0
				break
			}
			expr, err := ParseExpr(raw)
			if err != nil {
				return nil, err
			}
			pf.Expr = expr
		}
		stage.Fields = append(stage.Fields, pf)
	}
	return stage, nil
}
