package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_PersistLoadRemove(t *testing.T) {
	p, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	defer p.Close()

	b, err := p.Backend("books")
	require.NoError(t, err)

	require.NoError(t, b.Persist(domain.Document{"_id": "z", "title": "Dune"}))
	require.NoError(t, b.Persist(domain.Document{"_id": "a", "title": "Emma"}))
	require.NoError(t, b.Persist(domain.Document{"_id": "z", "title": "Dune Messiah", "meta": map[string]interface{}{"pages": 256.0}}))
	require.NoError(t, b.Remove("absent"))

	docs, err := b.Load()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "z", docs[0].ID())
	assert.Equal(t, "Dune Messiah", docs[0]["title"])
	assert.Equal(t, map[string]interface{}{"pages": 256.0}, docs[0]["meta"])
	assert.Equal(t, "a", docs[1].ID())

	require.NoError(t, b.Remove("z"))
	docs, err = b.Load()
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, b.Close())
	assert.Error(t, b.Persist(domain.Document{"_id": "q"}))
}

func TestProvider_CollectionsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	p, err := Open(path)
	require.NoError(t, err)

	for _, name := range []string{"books", "authors", "empty"} {
		b, err := p.Backend(name)
		require.NoError(t, err)
		if name != "empty" {
			require.NoError(t, b.Persist(domain.Document{"_id": "1", "name": name}))
		}
	}
	require.NoError(t, p.Drop("authors"))
	require.NoError(t, p.Close())

	p, err = Open(path)
	require.NoError(t, err)
	defer p.Close()

	names, err := p.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "empty"}, names)

	b, err := p.Backend("authors")
	require.NoError(t, err)
	docs, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestProvider_WithStorageEngine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	p, err := Open(path)
	require.NoError(t, err)
	engine := storage.NewStorageEngine(storage.WithBackendProvider(p))
	_, err = engine.InsertMany(ctx, "books", []domain.Document{
		{"_id": "1", "title": "Dune", "published_year": 1965},
		{"_id": "2", "title": "Emma", "published_year": 1815},
	})
	require.NoError(t, err)
	_, err = engine.ReplaceById(ctx, "books", "1", domain.Document{"title": "Dune", "published_year": 1966})
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	p, err = Open(path)
	require.NoError(t, err)
	engine = storage.NewStorageEngine(storage.WithBackendProvider(p))
	defer engine.Close()

	docs, err := engine.Find(ctx, "books", domain.Query{Sort: []domain.SortKey{domain.Asc("published_year")}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[0].ID())
	assert.Equal(t, 1966.0, docs[1]["published_year"])
}
