package storage

import (
	"context"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/aggregation"
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/adfharrison1/go-docquery/pkg/query"
)

// snapshot chooses a plan and copies out the candidate documents under the
// read lock. The documents are shared with the store but never mutated.
func (c *Collection) snapshot(ctx context.Context, expr domain.FilterExpr, sortKeys []domain.SortKey) ([]domain.Document, domain.Plan, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkUsable(); err != nil {
		return nil, domain.Plan{}, 0, err
	}
	plan := c.indexes.ChoosePlan(expr, sortKeys)
	docs, keysExamined, err := c.candidates(ctx, plan)
	if err != nil {
		return nil, domain.Plan{}, 0, err
	}
	c.metrics.ObservePlan(plan.Kind)
	c.metrics.AddDocsExamined(len(docs))
	return docs, plan, keysExamined, nil
}

func prepareQuery(q domain.Query) (domain.Query, error) {
	expr, err := filter.Prepare(q.Filter)
	if err != nil {
		return q, err
	}
	q.Filter = expr
	return q, q.Validate()
}

// Find runs a query and returns a cursor over the results.
func (c *Collection) Find(ctx context.Context, q domain.Query) (*query.Cursor, error) {
	start := time.Now()
	cursor, err := c.find(ctx, q)
	c.metrics.ObserveOperation("find", c.name, err, time.Since(start))
	return cursor, err
}

func (c *Collection) find(ctx context.Context, q domain.Query) (*query.Cursor, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	q, err := prepareQuery(q)
	if err != nil {
		return nil, err
	}
	docs, plan, _, err := c.snapshot(ctx, q.Filter, q.Sort)
	if err != nil {
		return nil, err
	}
	return query.Execute(ctx, docs, plan, q)
}

// FindAll runs a query and collects every result.
func (c *Collection) FindAll(ctx context.Context, q domain.Query) ([]domain.Document, error) {
	cursor, err := c.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	return cursor.All(ctx)
}

// FindPage runs a query and cuts one page of results, reporting the total
// number of matches. The query's own Skip and Limit are ignored.
func (c *Collection) FindPage(ctx context.Context, q domain.Query, opts *domain.PaginationOptions) (*domain.PaginationResult, error) {
	start := time.Now()
	res, err := c.findPage(ctx, q, opts)
	c.metrics.ObserveOperation("find_page", c.name, err, time.Since(start))
	return res, err
}

func (c *Collection) findPage(ctx context.Context, q domain.Query, opts *domain.PaginationOptions) (*domain.PaginationResult, error) {
	if opts == nil {
		opts = domain.DefaultPaginationOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	q.Skip, q.Limit = 0, 0
	q, err := prepareQuery(q)
	if err != nil {
		return nil, err
	}
	docs, plan, _, err := c.snapshot(ctx, q.Filter, q.Sort)
	if err != nil {
		return nil, err
	}
	matched, err := query.Matches(ctx, docs, plan, q)
	if err != nil {
		return nil, err
	}

	page := query.Window(matched, opts.Offset(), opts.PageSize)
	out, err := query.NewCursor(page, q.Projection).All(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewPaginationResult(out, opts, int64(len(matched))), nil
}

// Count returns the number of documents matching expr.
func (c *Collection) Count(ctx context.Context, expr domain.FilterExpr) (int, error) {
	start := time.Now()
	n, err := c.count(ctx, expr)
	c.metrics.ObserveOperation("count", c.name, err, time.Since(start))
	return n, err
}

func (c *Collection) count(ctx context.Context, expr domain.FilterExpr) (int, error) {
	q, err := prepareQuery(domain.Query{Filter: expr})
	if err != nil {
		return 0, err
	}
	docs, _, _, err := c.snapshot(ctx, q.Filter, nil)
	if err != nil {
		return 0, err
	}
	matched, err := query.Filter(ctx, docs, q.Filter)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Scan returns a cursor over a point-in-time snapshot of every document in
// insertion order. Rewind restarts it over the same snapshot.
func (c *Collection) Scan(ctx context.Context) (*query.Cursor, error) {
	docs, _, _, err := c.snapshot(ctx, domain.FilterExpr{}, nil)
	if err != nil {
		return nil, err
	}
	return query.NewCursor(docs, nil), nil
}

// Aggregate runs a pipeline over the collection. A leading $match stage is
// planned like a query filter.
func (c *Collection) Aggregate(ctx context.Context, stages []domain.Stage) ([]domain.Document, error) {
	start := time.Now()
	out, err := c.aggregate(ctx, stages)
	c.metrics.ObserveOperation("aggregate", c.name, err, time.Since(start))
	return out, err
}

func (c *Collection) aggregate(ctx context.Context, stages []domain.Stage) ([]domain.Document, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	if err := aggregation.Validate(stages); err != nil {
		return nil, err
	}

	var expr domain.FilterExpr
	if len(stages) > 0 {
		if m, ok := stages[0].(domain.MatchStage); ok {
			prepared, err := filter.Prepare(m.Filter)
			if err != nil {
				return nil, err
			}
			expr = prepared
			stages = append([]domain.Stage{domain.MatchStage{Filter: prepared}}, stages[1:]...)
		}
	}
	docs, _, _, err := c.snapshot(ctx, expr, nil)
	if err != nil {
		return nil, err
	}
	return aggregation.Run(ctx, docs, stages)
}

// ExplainPlan reports the plan a query would use without running it.
func (c *Collection) ExplainPlan(q domain.Query) (domain.Plan, error) {
	q, err := prepareQuery(q)
	if err != nil {
		return domain.Plan{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkUsable(); err != nil {
		return domain.Plan{}, err
	}
	return c.indexes.ChoosePlan(q.Filter, q.Sort), nil
}

// Explain runs a query and reports what it did.
func (c *Collection) Explain(ctx context.Context, q domain.Query) (*domain.ExecutionStats, error) {
	start := time.Now()
	q, err := prepareQuery(q)
	if err != nil {
		return nil, err
	}
	docs, plan, keysExamined, err := c.snapshot(ctx, q.Filter, q.Sort)
	if err != nil {
		return nil, err
	}
	cursor, err := query.Execute(ctx, docs, plan, q)
	if err != nil {
		return nil, err
	}
	return &domain.ExecutionStats{
		Plan:          plan,
		KeysExamined:  keysExamined,
		DocsExamined:  cursor.Examined(),
		Returned:      cursor.Len(),
		ExecutionTime: time.Since(start),
	}, nil
}
