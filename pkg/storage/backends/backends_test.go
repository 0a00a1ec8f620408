package backends

import (
	"context"
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/storage"
	"github.com/adfharrison1/go-docquery/pkg/storage/badgerstore"
	"github.com/adfharrison1/go-docquery/pkg/storage/filestore"
	"github.com/adfharrison1/go-docquery/pkg/storage/sqlitestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		want    interface{}
	}{
		{"", &storage.MemoryProvider{}},
		{Memory, &storage.MemoryProvider{}},
		{File, &filestore.Provider{}},
		{Badger, &badgerstore.Provider{}},
		{SQLite, &sqlitestore.Provider{}},
	}
	for _, tt := range tests {
		t.Run("backend="+tt.backend, func(t *testing.T) {
			p, err := New(tt.backend, t.TempDir(), Options{})
			require.NoError(t, err)
			defer p.Close()
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New("cassandra", t.TempDir(), Options{})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = New(File, t.TempDir(), Options{Durability: "sometimes"})
	assert.ErrorContains(t, err, "unknown durability level")
}

// Every backend must give the engine the same observable behaviour across a
// restart: same documents, same insertion order, same indexes.
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{File, Badger, SQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			p, err := New(backend, dir, Options{Durability: "full"})
			require.NoError(t, err)
			engine := storage.NewStorageEngine(storage.WithBackendProvider(p))

			_, err = engine.InsertMany(ctx, "books", []domain.Document{
				{"_id": "c", "author": "Le Guin", "published_year": 1969},
				{"_id": "a", "author": "Herbert", "published_year": 1965},
				{"_id": "b", "author": "Austen", "published_year": 1815},
			})
			require.NoError(t, err)
			_, err = engine.UpdateWhere(ctx, "books", domain.Where(domain.Gt("published_year", 1900)),
				domain.Document{"$inc": map[string]interface{}{"reprints": 1}})
			require.NoError(t, err)
			require.NoError(t, engine.DeleteById(ctx, "books", "b"))
			_, err = engine.CreateIndex(ctx, "books", domain.NewIndexSpec("author"))
			require.NoError(t, err)
			_, err = engine.CreateIndex(ctx, "books", domain.IndexSpec{{Field: "published_year", Direction: domain.Descending}})
			require.NoError(t, err)
			require.NoError(t, engine.DropIndex(ctx, "books", "author_1"))
			_, err = engine.CreateIndex(ctx, "books", domain.NewIndexSpec("author", "published_year"))
			require.NoError(t, err)
			require.NoError(t, engine.Close())

			p, err = New(backend, dir, Options{})
			require.NoError(t, err)
			engine = storage.NewStorageEngine(storage.WithBackendProvider(p))
			defer engine.Close()

			docs, err := engine.Find(ctx, "books", domain.Query{})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "c", docs[0].ID())
			assert.Equal(t, "a", docs[1].ID())
			assert.Equal(t, 1.0, docs[0]["reprints"])

			indexes, err := engine.GetIndexes(ctx, "books")
			require.NoError(t, err)
			require.Len(t, indexes, 2)
			assert.Equal(t, "published_year_-1", indexes[0].Name)
			assert.Equal(t, "author_1_published_year_1", indexes[1].Name)
			assert.Equal(t, 2, indexes[1].Entries)

			plan, err := engine.ExplainPlan(ctx, "books", domain.Query{Filter: domain.Where(domain.Eq("author", "Herbert"))})
			require.NoError(t, err)
			require.Equal(t, domain.IndexScan, plan.Kind)
			assert.Equal(t, "author_1_published_year_1", plan.Index.Name)
		})
	}
}
