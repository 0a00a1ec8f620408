package storage

import (
	"context"
	"testing"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder counts what the engine reports.
type recorder struct {
	ops   map[string]int
	plans map[domain.PlanKind]int
	docs  int
}

func newRecorder() *recorder {
	return &recorder{ops: make(map[string]int), plans: make(map[domain.PlanKind]int)}
}

func (r *recorder) ObserveOperation(op, collection string, err error, elapsed time.Duration) {
	r.ops[op]++
}
func (r *recorder) ObservePlan(kind domain.PlanKind) { r.plans[kind]++ }
func (r *recorder) AddDocsExamined(n int)           { r.docs += n }

func TestNewStorageEngine(t *testing.T) {
	engine := NewStorageEngine()
	assert.IsType(t, &MemoryProvider{}, engine.provider)
	assert.Equal(t, *domain.DefaultPaginationOptions(), engine.pagination)

	engine = NewStorageEngine(WithPagination(10, 20), WithIDGenerator(func() string { return "fixed" }))
	assert.Equal(t, 10, engine.pagination.PageSize)
	assert.Equal(t, 20, engine.pagination.MaxPageSize)
	assert.Equal(t, "fixed", engine.idGen())
}

func TestStorageEngine_Collections(t *testing.T) {
	ctx := context.Background()
	engine := NewStorageEngine()

	_, err := engine.CreateCollection("books")
	require.NoError(t, err)
	_, err = engine.CreateCollection("books")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	_, err = engine.CreateCollection("../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = engine.Insert(ctx, "authors", domain.Document{"name": "Herbert"})
	require.NoError(t, err, "writes create collections on first use")
	assert.Equal(t, []string{"authors", "books"}, engine.ListCollections())

	_, err = engine.Find(ctx, "missing", domain.Query{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = engine.GetById(ctx, "missing", "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = engine.GetIndexes(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotContains(t, engine.ListCollections(), "missing")
}

func TestStorageEngine_DropCollection(t *testing.T) {
	ctx := context.Background()
	engine := NewStorageEngine()
	coll, err := engine.Collection("books")
	require.NoError(t, err)
	_, err = coll.Insert(ctx, domain.Document{"_id": "1"})
	require.NoError(t, err)

	require.NoError(t, engine.DropCollection(ctx, "books"))
	assert.Empty(t, engine.ListCollections())
	assert.ErrorIs(t, engine.DropCollection(ctx, "books"), domain.ErrNotFound)

	_, err = coll.Insert(ctx, domain.Document{"_id": "2"})
	assert.ErrorIs(t, err, domain.ErrNotFound, "old handles see the drop")
	_, err = coll.FindAll(ctx, domain.Query{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.Insert(ctx, "books", domain.Document{"_id": "1"})
	require.NoError(t, err, "a dropped name can be reused")
}

func TestStorageEngine_DocumentOperations(t *testing.T) {
	ctx := context.Background()
	engine := NewStorageEngine()

	ids, err := engine.InsertMany(ctx, "books", library())
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	doc, err := engine.GetById(ctx, "books", "2")
	require.NoError(t, err)
	assert.Equal(t, "Dune", doc["title"])

	doc, err = engine.UpdateById(ctx, "books", "2", domain.Document{"price": 13})
	require.NoError(t, err)
	assert.Equal(t, 13.0, doc["price"])

	doc, err = engine.ReplaceById(ctx, "books", "2", domain.Document{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, domain.Document{"_id": "2", "title": "Dune"}, doc)

	n, err := engine.UpdateWhere(ctx, "books", domain.Where(domain.Eq("author", "Herbert")), domain.Document{"$set": map[string]interface{}{"series": "Dune"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = engine.DeleteWhere(ctx, "books", domain.Where(domain.Lt("published_year", 1900)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, engine.DeleteById(ctx, "books", "1"))
	assert.ErrorIs(t, engine.DeleteById(ctx, "books", "1"), domain.ErrNotFound)

	docs, err := engine.Find(ctx, "books", domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "5"}, docIDs(docs))
}

func TestStorageEngine_QueryOperations(t *testing.T) {
	ctx := context.Background()
	engine := NewStorageEngine(WithPagination(2, 3))
	_, err := engine.InsertMany(ctx, "books", library())
	require.NoError(t, err)

	handle, err := engine.CreateIndex(ctx, "books", domain.NewIndexSpec("genre"))
	require.NoError(t, err)
	infos, err := engine.GetIndexes(ctx, "books")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, handle, infos[0].IndexHandle)

	q := domain.Query{Filter: domain.Where(domain.Eq("genre", "Fiction"))}
	plan, err := engine.ExplainPlan(ctx, "books", q)
	require.NoError(t, err)
	assert.Equal(t, "IXSCAN(genre_1)", plan.String())

	stats, err := engine.Explain(ctx, "books", q)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Returned)

	page, err := engine.FindPage(ctx, "books", q, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.PageSize, "engine default page size")
	assert.True(t, page.HasNext)
	assert.EqualValues(t, 3, page.Total)

	page, err = engine.FindPage(ctx, "books", q, &domain.PaginationOptions{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Documents, 1)

	_, err = engine.FindPage(ctx, "books", q, &domain.PaginationOptions{PageSize: 4})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "engine maximum page size")

	out, err := engine.Aggregate(ctx, "books", []domain.Stage{
		domain.GroupStage{By: domain.Field("genre"), Accumulators: []domain.Accumulator{
			{Field: "avg_price", Op: domain.AccAvg, Expr: domain.Field("price")},
		}},
		domain.SortStage{Keys: []domain.SortKey{domain.Asc("_id")}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Document{
		{"_id": "Fiction", "avg_price": 12.0},
		{"_id": "History", "avg_price": 20.0},
		{"_id": "Romance", "avg_price": 8.0},
	}, out)

	require.NoError(t, engine.DropIndex(ctx, "books", handle.Name))
	assert.ErrorIs(t, engine.DropIndex(ctx, "books", handle.Name), domain.ErrNotFound)
}

func TestStorageEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	engine := NewStorageEngine(WithMetrics(rec))

	_, err := engine.InsertMany(ctx, "books", library())
	require.NoError(t, err)
	_, err = engine.CreateIndex(ctx, "books", domain.NewIndexSpec("author"))
	require.NoError(t, err)
	_, err = engine.Find(ctx, "books", domain.Query{Filter: domain.Where(domain.Eq("author", "Herbert"))})
	require.NoError(t, err)
	_, err = engine.Find(ctx, "books", domain.Query{Filter: domain.Where(domain.Eq("genre", "Fiction"))})
	require.NoError(t, err)
	_, err = engine.GetById(ctx, "books", "nope")
	assert.Error(t, err)

	assert.Equal(t, 1, rec.ops["insert_many"])
	assert.Equal(t, 1, rec.ops["create_index"])
	assert.Equal(t, 2, rec.ops["find"])
	assert.Equal(t, 1, rec.plans[domain.IndexScan])
	assert.Equal(t, 1, rec.plans[domain.FullScan])
	assert.Equal(t, 2+5, rec.docs)
}

func TestStorageEngine_Close(t *testing.T) {
	ctx := context.Background()
	engine := NewStorageEngine()
	_, err := engine.Insert(ctx, "books", domain.Document{"_id": "1"})
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	_, err = engine.Insert(ctx, "books", domain.Document{"_id": "2"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	_, err = engine.CreateCollection("other")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	doc := domain.Document{"_id": "b", "n": 1.0}
	require.NoError(t, b.Persist(doc))
	require.NoError(t, b.Persist(domain.Document{"_id": "a"}))
	doc["n"] = 2.0
	require.NoError(t, b.Persist(domain.Document{"_id": "b", "n": 3.0}))
	require.NoError(t, b.Remove("zzz"))

	docs, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, docIDs(docs))
	assert.Equal(t, 3.0, docs[0]["n"])

	require.NoError(t, b.Remove("b"))
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Close())
	assert.Error(t, b.Persist(domain.Document{"_id": "c"}))
	_, err = b.Load()
	assert.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider()
	first, err := p.Backend("books")
	require.NoError(t, err)
	again, err := p.Backend("books")
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = p.Backend("authors")
	require.NoError(t, err)
	names, err := p.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "books"}, names)

	require.NoError(t, p.Drop("books"))
	names, err = p.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors"}, names)

	fresh, err := p.Backend("books")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	require.NoError(t, p.Close())
}
