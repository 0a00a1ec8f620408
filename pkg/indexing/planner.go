package indexing

import (
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
)

type candidate struct {
	index    *Index
	equality []interface{}
	rng      *domain.KeyRange
}

// ChoosePlan selects an execution plan for a filter and sort. The index with
// the longest exact-match prefix wins and ties go to the earliest created.
// An index bound only by a range on its first field is usable too. Without a
// usable filter index, an index whose fields equal the sort keys is used for
// ordering.
func (ie *IndexEngine) ChoosePlan(expr domain.FilterExpr, sortKeys []domain.SortKey) domain.Plan {
	var best *candidate
	for _, index := range ie.indexes {
		c := matchIndex(index, expr)
		if len(c.equality) == 0 && c.rng == nil {
			continue
		}
		if best == nil || len(c.equality) > len(best.equality) {
			cc := c
			best = &cc
		}
	}

	if best != nil {
		handle := best.index.handle
		plan := domain.Plan{
			Kind:     domain.IndexScan,
			Index:    &handle,
			Equality: best.equality,
			Range:    best.rng,
		}
		plan.SortCovered = coversSort(handle.Spec, len(best.equality), sortKeys)
		return plan
	}

	if len(sortKeys) > 0 {
		for _, index := range ie.indexes {
			if coversSort(index.handle.Spec, 0, sortKeys) {
				handle := index.handle
				return domain.Plan{Kind: domain.IndexScan, Index: &handle, SortCovered: true}
			}
		}
	}
	return domain.Plan{Kind: domain.FullScan}
}

// matchIndex binds the leading index fields to $eq predicates and the next
// field to range predicates.
func matchIndex(index *Index, expr domain.FilterExpr) candidate {
	c := candidate{index: index}
	spec := index.handle.Spec
	for _, f := range spec {
		v, ok := equalityValue(expr, f.Field)
		if !ok {
			break
		}
		c.equality = append(c.equality, v)
	}
	if len(c.equality) < len(spec) {
		c.rng = rangeFor(expr, spec[len(c.equality)].Field)
	}
	return c
}

func equalityValue(expr domain.FilterExpr, field string) (interface{}, bool) {
	for _, p := range expr.Predicates {
		if p.Path == field && p.Op == domain.OpEq {
			return p.Value, true
		}
	}
	return nil, false
}

// rangeFor folds the range predicates on field into the tightest bounds.
// Only numbers and strings can satisfy a range predicate.
func rangeFor(expr domain.FilterExpr, field string) *domain.KeyRange {
	var rng domain.KeyRange
	found := false
	for _, p := range expr.Predicates {
		if p.Path != field || !p.Op.IsRange() {
			continue
		}
		k := domain.KindOf(p.Value)
		if k != domain.KindNumber && k != domain.KindString {
			continue
		}
		inclusive := p.Op == domain.OpGte || p.Op == domain.OpLte
		b := &domain.Bound{Value: p.Value, Inclusive: inclusive}
		switch p.Op {
		case domain.OpGt, domain.OpGte:
			if rng.Low == nil || tighter(b, rng.Low, 1) {
				rng.Low = b
			}
		default:
			if rng.High == nil || tighter(b, rng.High, -1) {
				rng.High = b
			}
		}
		found = true
	}
	if !found {
		return nil
	}
	return &rng
}

// tighter reports whether b narrows the range more than cur. sign is 1 for
// lower bounds and -1 for upper bounds.
func tighter(b, cur *domain.Bound, sign int) bool {
	c, ok := filter.CompareComparable(b.Value, cur.Value)
	if !ok {
		return false
	}
	c *= sign
	return c > 0 || (c == 0 && !b.Inclusive)
}

// coversSort reports whether scanning spec after an equality prefix of n
// fields yields exactly the stable order the sort keys request.
func coversSort(spec domain.IndexSpec, n int, sortKeys []domain.SortKey) bool {
	if len(sortKeys) == 0 || n+len(sortKeys) != len(spec) {
		return false
	}
	for i, k := range sortKeys {
		f := spec[n+i]
		if f.Field != k.Field || f.Direction != k.Direction {
			return false
		}
	}
	return true
}
