// Package query executes find descriptors over a candidate snapshot taken
// by the record store.
package query

import (
	"context"
	"sort"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
)

// Execute filters candidates, sorts them unless the plan already delivers the
// requested order, applies skip and limit, and returns a cursor that projects
// lazily. Candidates must be in insertion order, or in index order when
// plan.SortCovered is set.
func Execute(ctx context.Context, candidates []domain.Document, plan domain.Plan, q domain.Query) (*Cursor, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	matched, err := Matches(ctx, candidates, plan, q)
	if err != nil {
		return nil, err
	}
	cursor := NewCursor(Window(matched, q.Skip, q.Limit), q.Projection)
	cursor.examined = len(candidates)
	return cursor, nil
}

// Matches returns every candidate that satisfies the filter, in result order,
// before skip, limit and projection are applied.
func Matches(ctx context.Context, candidates []domain.Document, plan domain.Plan, q domain.Query) ([]domain.Document, error) {
	matched, err := Filter(ctx, candidates, q.Filter)
	if err != nil {
		return nil, err
	}
	if len(q.Sort) > 0 && !plan.SortCovered {
		if err := Sort(ctx, matched, q.Sort); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

// Filter keeps the documents that match expr, preserving order.
func Filter(ctx context.Context, docs []domain.Document, expr domain.FilterExpr) ([]domain.Document, error) {
	if expr.IsEmpty() {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		out := make([]domain.Document, len(docs))
		copy(out, docs)
		return out, nil
	}
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		if filter.Matches(doc, expr) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Sort orders docs in place by keys. The sort is stable, so documents with
// equal keys keep their relative order.
func Sort(ctx context.Context, docs []domain.Document, keys []domain.SortKey) error {
	if len(keys) == 0 || len(docs) < 2 {
		return domain.CheckContext(ctx)
	}

	type keyed struct {
		values []interface{}
		doc    domain.Document
	}
	rows := make([]keyed, len(docs))
	for i, doc := range docs {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		values := make([]interface{}, len(keys))
		for j, k := range keys {
			values[j] = domain.LookupValue(doc, k.Field)
		}
		rows[i] = keyed{values: values, doc: doc}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return CompareSortKeys(rows[i].values, rows[j].values, keys) < 0
	})
	if err := domain.CheckContext(ctx); err != nil {
		return err
	}
	for i := range rows {
		docs[i] = rows[i].doc
	}
	return nil
}

// CompareSortKeys orders two extracted key tuples, applying each key's
// direction.
func CompareSortKeys(a, b []interface{}, keys []domain.SortKey) int {
	for i, k := range keys {
		if c := domain.CompareValues(a[i], b[i]); c != 0 {
			return c * int(k.Direction)
		}
	}
	return 0
}

// Window applies skip and then limit. A limit of 0 means unlimited; a skip
// outside the results yields nothing.
func Window(docs []domain.Document, skip, limit int) []domain.Document {
	if skip < 0 || skip >= len(docs) {
		return []domain.Document{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
