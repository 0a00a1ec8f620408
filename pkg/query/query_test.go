package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookstore() []domain.Document {
	return []domain.Document{
		{"_id": "1", "title": "1984", "author": "George Orwell", "genre": "Fiction", "price": 10.0, "published_year": 1949.0},
		{"_id": "2", "title": "Brave New World", "author": "Aldous Huxley", "genre": "Fiction", "price": 12.0, "published_year": 1932.0},
		{"_id": "3", "title": "Sapiens", "author": "Yuval Harari", "genre": "History", "price": 15.0, "published_year": 2011.0},
		{"_id": "4", "title": "Animal Farm", "author": "George Orwell", "genre": "Fiction", "price": 10.0, "published_year": 1945.0},
		{"_id": "5", "title": "Dune", "author": "Frank Herbert", "genre": "Fiction", "published_year": 1965.0},
	}
}

func ids(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func run(t *testing.T, q domain.Query) []domain.Document {
	t.Helper()
	cursor, err := Execute(context.Background(), bookstore(), domain.Plan{Kind: domain.FullScan}, q)
	require.NoError(t, err)
	docs, err := cursor.All(context.Background())
	require.NoError(t, err)
	return docs
}

func TestExecuteFilterSortProject(t *testing.T) {
	expr, err := filter.Parse(map[string]interface{}{"genre": "Fiction"})
	require.NoError(t, err)

	docs := run(t, domain.Query{
		Filter:     expr,
		Sort:       []domain.SortKey{domain.Asc("price")},
		Projection: domain.Projection{"title": true, "price": true, "_id": false},
	})
	require.Len(t, docs, 4)
	// Missing price sorts first; equal prices keep insertion order
	assert.Equal(t, domain.Document{"title": "Dune"}, docs[0])
	assert.Equal(t, domain.Document{"title": "1984", "price": 10.0}, docs[1])
	assert.Equal(t, domain.Document{"title": "Animal Farm", "price": 10.0}, docs[2])
	assert.Equal(t, domain.Document{"title": "Brave New World", "price": 12.0}, docs[3])
}

func TestExecuteStableMultiKeySort(t *testing.T) {
	docs := run(t, domain.Query{Sort: []domain.SortKey{domain.Asc("author"), domain.Desc("published_year")}})
	assert.Equal(t, []string{"2", "5", "1", "4", "3"}, ids(docs))

	docs = run(t, domain.Query{Sort: []domain.SortKey{domain.Desc("price")}})
	assert.Equal(t, []string{"3", "2", "1", "4", "5"}, ids(docs))
}

func TestExecutePaginationConcatenates(t *testing.T) {
	sortKeys := []domain.SortKey{domain.Asc("title")}
	all := run(t, domain.Query{Sort: sortKeys})

	var pages []domain.Document
	for page := 1; page <= 3; page++ {
		q, err := domain.Query{Sort: sortKeys}.Paginate(page, 2)
		require.NoError(t, err)
		pages = append(pages, run(t, q)...)
	}
	assert.Equal(t, ids(all), ids(pages))

	q, err := domain.Query{Sort: sortKeys}.Paginate(10, 2)
	require.NoError(t, err)
	assert.Empty(t, run(t, q))
}

func TestExecuteSortCoveredKeepsCandidateOrder(t *testing.T) {
	candidates := bookstore()
	reversed := make([]domain.Document, len(candidates))
	for i, d := range candidates {
		reversed[len(candidates)-1-i] = d
	}
	plan := domain.Plan{Kind: domain.IndexScan, SortCovered: true}
	cursor, err := Execute(context.Background(), reversed, plan, domain.Query{Sort: []domain.SortKey{domain.Asc("title")}})
	require.NoError(t, err)
	docs, err := cursor.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "4", "3", "2", "1"}, ids(docs))
}

func TestExecuteInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		q    domain.Query
	}{
		{"negative limit", domain.Query{Limit: -1}},
		{"negative skip", domain.Query{Skip: -3}},
		{"mixed projection", domain.Query{Projection: domain.Projection{"title": true, "price": false}}},
		{"bad sort direction", domain.Query{Sort: []domain.SortKey{{Field: "title", Direction: 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), bookstore(), domain.Plan{}, tt.q)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	expr, err := filter.Parse(map[string]interface{}{"genre": "Fiction"})
	require.NoError(t, err)
	_, err = Execute(ctx, bookstore(), domain.Plan{}, domain.Query{Filter: expr})
	assert.ErrorIs(t, err, domain.ErrCancelled)

	err = Sort(ctx, bookstore(), []domain.SortKey{domain.Asc("title")})
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestCursor(t *testing.T) {
	source := bookstore()
	cursor, err := Execute(context.Background(), source, domain.Plan{}, domain.Query{Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, cursor.Len())
	assert.Equal(t, 5, cursor.Examined())

	require.True(t, cursor.Next(context.Background()))
	doc := cursor.Decode()
	assert.Equal(t, "2", doc.ID())
	doc["title"] = "changed"
	assert.Equal(t, "Brave New World", source[1]["title"], "decoded documents are copies")

	assert.Equal(t, 1, cursor.Remaining())
	require.True(t, cursor.Next(context.Background()))
	assert.False(t, cursor.Next(context.Background()))
	assert.NoError(t, cursor.Err())

	cursor.Rewind()
	rest, err := cursor.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(rest))

	require.NoError(t, cursor.Close())
	assert.False(t, cursor.Next(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cursor.Rewind()
	assert.False(t, cursor.Next(ctx))
	assert.ErrorIs(t, cursor.Err(), domain.ErrCancelled)
}

func TestWindow(t *testing.T) {
	docs := make([]domain.Document, 7)
	for i := range docs {
		docs[i] = domain.Document{"_id": fmt.Sprint(i)}
	}
	assert.Len(t, Window(docs, 0, 0), 7)
	assert.Equal(t, []string{"2", "3"}, ids(Window(docs, 2, 2)))
	assert.Equal(t, []string{"6"}, ids(Window(docs, 6, 5)))
	assert.Empty(t, Window(docs, 7, 1))
	assert.Empty(t, Window(docs, -4, 2))
}
