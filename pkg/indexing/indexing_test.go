package indexing

import (
	"fmt"
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func books() []Record {
	docs := []domain.Document{
		{"title": "1984", "author": "George Orwell", "published_year": 1949.0, "price": 10.0},
		{"title": "Animal Farm", "author": "George Orwell", "published_year": 1945.0, "price": 8.0},
		{"title": "Dune", "author": "Frank Herbert", "published_year": 1965.0, "price": 12.0},
		{"title": "Emma", "author": "Jane Austen", "published_year": 1815.0},
		{"title": "Persuasion", "author": "Jane Austen", "published_year": 1817.0, "price": 7.5},
	}
	records := make([]Record, len(docs))
	for i, d := range docs {
		id := fmt.Sprintf("b%d", i+1)
		d["_id"] = id
		records[i] = Record{ID: id, Seq: uint64(i + 1), Doc: d}
	}
	return records
}

func prepared(t *testing.T, m map[string]interface{}) domain.FilterExpr {
	t.Helper()
	expr, err := filter.Parse(m)
	require.NoError(t, err)
	return expr
}

func TestCreateIndex(t *testing.T) {
	ie := NewIndexEngine()

	handle, created, err := ie.CreateIndex(domain.NewIndexSpec("title"), books())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "title_1", handle.Name)

	// Same field sequence returns the existing handle without duplicating entries
	again, created, err := ie.CreateIndex(domain.NewIndexSpec("title"), books())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, handle, again)
	require.Len(t, ie.GetIndexes(), 1)
	assert.Equal(t, 5, ie.GetIndexes()[0].Entries)

	// Field order distinguishes compound indexes
	_, created, err = ie.CreateIndex(domain.NewIndexSpec("author", "published_year"), books())
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = ie.CreateIndex(domain.NewIndexSpec("published_year", "author"), books())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, ie.GetIndexes(), 3)

	_, _, err = ie.CreateIndex(domain.IndexSpec{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDropIndex(t *testing.T) {
	ie := NewIndexEngine()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("title"), books())
	require.NoError(t, err)

	require.NoError(t, ie.DropIndex("title_1"))
	assert.Empty(t, ie.GetIndexes())
	assert.ErrorIs(t, ie.DropIndex("title_1"), domain.ErrNotFound)
}

func TestIndexScan(t *testing.T) {
	ie := NewIndexEngine()
	records := books()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("author", "published_year"), records)
	require.NoError(t, err)
	index, ok := ie.GetIndex("author_1_published_year_1")
	require.True(t, ok)

	ids, examined := index.Scan([]interface{}{"George Orwell"}, nil)
	assert.Equal(t, []string{"b2", "b1"}, ids)
	assert.Equal(t, 2, examined)

	ids, _ = index.Scan([]interface{}{"Jane Austen"}, &domain.KeyRange{Low: &domain.Bound{Value: 1816.0}})
	assert.Equal(t, []string{"b5"}, ids)

	ids, _ = index.Scan([]interface{}{"Nobody"}, nil)
	assert.Empty(t, ids)

	ids, _ = index.Scan(nil, nil)
	assert.Equal(t, []string{"b3", "b2", "b1", "b4", "b5"}, ids)
}

func TestDescendingIndexRange(t *testing.T) {
	ie := NewIndexEngine()
	spec := domain.IndexSpec{{Field: "price", Direction: domain.Descending}}
	_, _, err := ie.CreateIndex(spec, books())
	require.NoError(t, err)
	index, _ := ie.GetIndex("price_-1")

	ids, _ := index.Scan(nil, &domain.KeyRange{
		Low:  &domain.Bound{Value: 8.0, Inclusive: true},
		High: &domain.Bound{Value: 12.0},
	})
	assert.Equal(t, []string{"b1", "b2"}, ids)

	// Missing prices sort last in a descending index
	ids, _ = index.Scan(nil, nil)
	assert.Equal(t, []string{"b3", "b1", "b2", "b5", "b4"}, ids)
}

func TestIndexMaintenance(t *testing.T) {
	ie := NewIndexEngine()
	records := books()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("price"), records)
	require.NoError(t, err)
	index, _ := ie.GetIndex("price_1")

	// Update b1's price
	oldDoc := records[0].Doc
	newDoc := oldDoc.Clone()
	newDoc["price"] = 15.99
	ie.UpdateIndexForDocument("b1", 1, oldDoc, newDoc)

	ids, _ := index.Scan([]interface{}{15.99}, nil)
	assert.Equal(t, []string{"b1"}, ids)
	ids, _ = index.Scan([]interface{}{10.0}, nil)
	assert.Empty(t, ids)

	// Insert
	ie.UpdateIndexForDocument("b6", 6, nil, domain.Document{"_id": "b6", "price": 8.0})
	ids, _ = index.Scan([]interface{}{8.0}, nil)
	assert.Equal(t, []string{"b2", "b6"}, ids)

	// Delete
	ie.UpdateIndexForDocument("b2", 2, records[1].Doc, nil)
	ids, _ = index.Scan([]interface{}{8.0}, nil)
	assert.Equal(t, []string{"b6"}, ids)
	assert.Equal(t, 5, index.Len())
}

func TestChoosePlan(t *testing.T) {
	ie := NewIndexEngine()
	records := books()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("title"), records)
	require.NoError(t, err)
	_, _, err = ie.CreateIndex(domain.NewIndexSpec("author", "published_year"), records)
	require.NoError(t, err)
	_, _, err = ie.CreateIndex(domain.NewIndexSpec("author"), records)
	require.NoError(t, err)

	t.Run("exact match on single field index", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"title": "1984"}), nil)
		require.Equal(t, domain.IndexScan, plan.Kind)
		assert.Equal(t, "title_1", plan.Index.Name)
		assert.Equal(t, []interface{}{"1984"}, plan.Equality)
	})

	t.Run("longest equality prefix wins", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"author": "Jane Austen", "published_year": 1815}), nil)
		require.Equal(t, domain.IndexScan, plan.Kind)
		assert.Equal(t, "author_1_published_year_1", plan.Index.Name)
		assert.Len(t, plan.Equality, 2)
	})

	t.Run("tie broken by earliest created", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"author": "Jane Austen"}), nil)
		require.Equal(t, domain.IndexScan, plan.Kind)
		assert.Equal(t, "author_1_published_year_1", plan.Index.Name)
	})

	t.Run("range after equality prefix", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{
			"author":         "George Orwell",
			"published_year": map[string]interface{}{"$gt": 1940, "$gte": 1946},
		}), nil)
		require.Equal(t, domain.IndexScan, plan.Kind)
		require.NotNil(t, plan.Range)
		assert.Equal(t, 1946.0, plan.Range.Low.Value)
		assert.True(t, plan.Range.Low.Inclusive)
	})

	t.Run("unindexed field falls back to full scan", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"price": 10}), nil)
		assert.Equal(t, domain.FullScan, plan.Kind)
		assert.True(t, plan.IsFullScan())
	})

	t.Run("sort covered by equality suffix", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"author": "Jane Austen"}),
			[]domain.SortKey{domain.Asc("published_year")})
		assert.True(t, plan.SortCovered)
	})

	t.Run("sort direction mismatch is not covered", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"author": "Jane Austen"}),
			[]domain.SortKey{domain.Desc("published_year")})
		assert.False(t, plan.SortCovered)
	})

	t.Run("sort only uses matching index", func(t *testing.T) {
		plan := ie.ChoosePlan(domain.FilterExpr{}, []domain.SortKey{domain.Asc("title")})
		require.Equal(t, domain.IndexScan, plan.Kind)
		assert.Equal(t, "title_1", plan.Index.Name)
		assert.True(t, plan.SortCovered)
	})

	t.Run("range on non comparable literal ignored", func(t *testing.T) {
		plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"title": map[string]interface{}{"$gt": true}}), nil)
		assert.Equal(t, domain.FullScan, plan.Kind)
	})
}

func TestChoosePlan_TieIgnoresRange(t *testing.T) {
	ie := NewIndexEngine()
	records := books()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("author"), records)
	require.NoError(t, err)
	_, _, err = ie.CreateIndex(domain.NewIndexSpec("author", "published_year"), records)
	require.NoError(t, err)

	plan := ie.ChoosePlan(prepared(t, map[string]interface{}{
		"author":         "George Orwell",
		"published_year": map[string]interface{}{"$gt": 1940},
	}), nil)
	require.Equal(t, domain.IndexScan, plan.Kind)
	assert.Equal(t, "author_1", plan.Index.Name)
	assert.Nil(t, plan.Range)
}

func TestCreateIndex_NameCollision(t *testing.T) {
	ie := NewIndexEngine()
	records := books()

	underscored, created, err := ie.CreateIndex(domain.NewIndexSpec("a_1_b"), records)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "a_1_b_1", underscored.Name)

	compound, created, err := ie.CreateIndex(domain.NewIndexSpec("a", "b"), records)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "a_1_b_1_2", compound.Name)
	assert.True(t, compound.Spec.Equal(domain.NewIndexSpec("a", "b")))

	again, created, err := ie.CreateIndex(domain.NewIndexSpec("a", "b"), records)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, compound, again)

	require.NoError(t, ie.DropIndex("a_1_b_1"))
	infos := ie.GetIndexes()
	require.Len(t, infos, 1)
	assert.Equal(t, "a_1_b_1_2", infos[0].Name)
}

func TestScanPlan(t *testing.T) {
	ie := NewIndexEngine()
	_, _, err := ie.CreateIndex(domain.NewIndexSpec("title"), books())
	require.NoError(t, err)

	plan := ie.ChoosePlan(prepared(t, map[string]interface{}{"title": "Dune"}), nil)
	ids, examined, err := ie.ScanPlan(plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"b3"}, ids)
	assert.Equal(t, 1, examined)

	_, _, err = ie.ScanPlan(domain.Plan{Kind: domain.FullScan})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
