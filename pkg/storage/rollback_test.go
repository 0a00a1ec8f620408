package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// flakyBackend fails writes that touch particular ids.
type flakyBackend struct {
	*MemoryBackend
	failPersist string
	failRemove  string
	failLoad    bool
	failIndexes bool
}

func (f *flakyBackend) SaveIndexes(specs []domain.IndexSpec) error {
	if f.failIndexes {
		return errDiskFull
	}
	return f.MemoryBackend.SaveIndexes(specs)
}

func (f *flakyBackend) Load() ([]domain.Document, error) {
	if f.failLoad {
		return nil, errDiskFull
	}
	return f.MemoryBackend.Load()
}

func (f *flakyBackend) Persist(doc domain.Document) error {
	if doc.ID() == f.failPersist {
		return errDiskFull
	}
	return f.MemoryBackend.Persist(doc)
}

func (f *flakyBackend) Remove(id string) error {
	if id == f.failRemove {
		return errDiskFull
	}
	return f.MemoryBackend.Remove(id)
}

func newFlaky(t *testing.T) (*Collection, *flakyBackend) {
	t.Helper()
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	coll, err := NewCollection("books", backend)
	require.NoError(t, err)
	_, err = coll.InsertMany(context.Background(), []domain.Document{
		{"_id": "1", "genre": "Fiction", "price": 10},
		{"_id": "2", "genre": "Fiction", "price": 12},
		{"_id": "3", "genre": "Fiction", "price": 14},
	})
	require.NoError(t, err)
	_, err = coll.CreateIndex(context.Background(), domain.NewIndexSpec("price"))
	require.NoError(t, err)
	return coll, backend
}

func backendPrices(t *testing.T, b *flakyBackend) map[string]interface{} {
	t.Helper()
	docs, err := b.MemoryBackend.Load()
	require.NoError(t, err)
	out := make(map[string]interface{}, len(docs))
	for _, d := range docs {
		out[d.ID()] = d["price"]
	}
	return out
}

func TestInsertManyRollsBack(t *testing.T) {
	ctx := context.Background()
	coll, backend := newFlaky(t)
	backend.failPersist = "6"

	_, err := coll.InsertMany(ctx, []domain.Document{{"_id": "4"}, {"_id": "5"}, {"_id": "6"}})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 3, coll.Len())
	assert.Equal(t, 3, backend.Len())

	_, err = coll.Insert(ctx, domain.Document{"_id": "6"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	_, err = coll.Get("6")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateRollsBack(t *testing.T) {
	ctx := context.Background()
	coll, backend := newFlaky(t)
	backend.failPersist = "3"

	_, err := coll.UpdateWhere(ctx, domain.Where(domain.Eq("genre", "Fiction")),
		map[string]interface{}{"$inc": map[string]interface{}{"price": 100}})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	assert.Equal(t, map[string]interface{}{"1": 10.0, "2": 12.0, "3": 14.0}, backendPrices(t, backend))

	docs, err := coll.FindAll(ctx, domain.Query{Filter: domain.Where(domain.Gte("price", 100))})
	require.NoError(t, err)
	assert.Empty(t, docs)
	byIndex, err := coll.FindByIndex(ctx, "price_1", 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, docIDs(byIndex))

	_, err = coll.ReplaceByID(ctx, "3", domain.Document{"price": 1})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	doc, err := coll.Get("3")
	require.NoError(t, err)
	assert.Equal(t, 14.0, doc["price"])
}

func TestDeleteRollsBack(t *testing.T) {
	ctx := context.Background()
	coll, backend := newFlaky(t)
	backend.failRemove = "3"

	_, err := coll.DeleteWhere(ctx, domain.FilterExpr{})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 3, coll.Len())
	assert.Len(t, backendPrices(t, backend), 3)

	all, err := coll.FindAll(ctx, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, docIDs(all))
}

func TestLoadFailure(t *testing.T) {
	_, err := NewCollection("books", &flakyBackend{MemoryBackend: NewMemoryBackend(), failLoad: true})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	dup := NewMemoryBackend()
	require.NoError(t, dup.Persist(domain.Document{"_id": "1"}))
	// A document without an _id cannot be loaded.
	dup.docs["broken"] = domain.Document{"title": "no id"}
	dup.order = append(dup.order, "broken")
	_, err = NewCollection("books", dup)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpdatePersistsOnlyModified(t *testing.T) {
	ctx := context.Background()
	coll, backend := newFlaky(t)
	backend.failPersist = "2"

	n, err := coll.UpdateWhere(ctx, domain.Where(domain.Eq("genre", "Fiction")),
		map[string]interface{}{"$set": map[string]interface{}{"price": 12}})
	require.NoError(t, err, "document 2 already has price 12 and is not rewritten")
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]interface{}{"1": 12.0, "2": 12.0, "3": 12.0}, backendPrices(t, backend))

	n, err = coll.UpdateWhere(ctx, domain.FilterExpr{}, map[string]interface{}{"genre": "Fiction"})
	require.NoError(t, err)
	assert.Zero(t, n)

	doc, err := coll.UpdateByID(ctx, "2", map[string]interface{}{"price": 12})
	require.NoError(t, err)
	assert.Equal(t, 12.0, doc["price"])
}

func TestIndexCatalogFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	coll, backend := newFlaky(t)
	backend.failIndexes = true

	_, err := coll.CreateIndex(ctx, domain.NewIndexSpec("genre"))
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.Len(t, coll.GetIndexes(), 1)
	assert.Equal(t, "price_1", coll.GetIndexes()[0].Name)

	err = coll.DropIndex("price_1")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Len(t, coll.GetIndexes(), 1)

	backend.failIndexes = false
	require.NoError(t, coll.DropIndex("price_1"))
	specs, err := backend.LoadIndexes()
	require.NoError(t, err)
	assert.Empty(t, specs)
}
