package filter

import (
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, m map[string]interface{}) domain.FilterExpr {
	t.Helper()
	expr, err := Parse(m)
	require.NoError(t, err)
	return expr
}

func TestMatches(t *testing.T) {
	doc := domain.Document{
		"title":          "1984",
		"author":         "George Orwell",
		"price":          10.0,
		"published_year": 1949.0,
		"in_stock":       true,
		"publisher":      map[string]interface{}{"name": "Secker", "city": "London"},
		"notes":          nil,
	}

	tests := []struct {
		name   string
		filter map[string]interface{}
		want   bool
	}{
		{"empty filter", map[string]interface{}{}, true},
		{"equality", map[string]interface{}{"author": "George Orwell"}, true},
		{"equality is case sensitive", map[string]interface{}{"author": "george orwell"}, false},
		{"numeric equality across types", map[string]interface{}{"price": 10}, true},
		{"gt match", map[string]interface{}{"published_year": map[string]interface{}{"$gt": 1900}}, true},
		{"gt no match", map[string]interface{}{"published_year": map[string]interface{}{"$gt": 2000}}, false},
		{"gte boundary", map[string]interface{}{"price": map[string]interface{}{"$gte": 10}}, true},
		{"lt boundary", map[string]interface{}{"price": map[string]interface{}{"$lt": 10}}, false},
		{"range both ends", map[string]interface{}{"price": map[string]interface{}{"$gt": 5, "$lte": 10}}, true},
		{"conjunction", map[string]interface{}{"in_stock": true, "published_year": map[string]interface{}{"$gt": 1940}}, true},
		{"conjunction one fails", map[string]interface{}{"in_stock": false, "published_year": map[string]interface{}{"$gt": 1940}}, false},
		{"missing field never equals", map[string]interface{}{"genre": "Fiction"}, false},
		{"missing field never equals null", map[string]interface{}{"genre": nil}, false},
		{"explicit null equals null", map[string]interface{}{"notes": nil}, true},
		{"missing field fails range", map[string]interface{}{"pages": map[string]interface{}{"$gt": 0}}, false},
		{"type mismatch on range", map[string]interface{}{"title": map[string]interface{}{"$gt": 100}}, false},
		{"string range", map[string]interface{}{"title": map[string]interface{}{"$gte": "1000"}}, true},
		{"type mismatch on equality", map[string]interface{}{"price": "10"}, false},
		{"dotted path", map[string]interface{}{"publisher.city": "London"}, true},
		{"dotted path through scalar", map[string]interface{}{"title.length": 4}, false},
		{"sub-record equality", map[string]interface{}{"publisher": map[string]interface{}{"city": "London", "name": "Secker"}}, true},
		{"ne on missing field", map[string]interface{}{"genre": map[string]interface{}{"$ne": "Fiction"}}, true},
		{"ne on equal value", map[string]interface{}{"price": map[string]interface{}{"$ne": 10}}, false},
		{"in", map[string]interface{}{"author": map[string]interface{}{"$in": []interface{}{"Jane Austen", "George Orwell"}}}, true},
		{"exists true", map[string]interface{}{"price": map[string]interface{}{"$exists": true}}, true},
		{"exists false", map[string]interface{}{"genre": map[string]interface{}{"$exists": false}}, true},
		{"explicit and", map[string]interface{}{"$and": []interface{}{
			map[string]interface{}{"price": map[string]interface{}{"$gt": 5}},
			map[string]interface{}{"price": map[string]interface{}{"$lt": 20}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(doc, mustParse(t, tt.filter)))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]interface{}
	}{
		{"unknown operator", map[string]interface{}{"price": map[string]interface{}{"$regex": "x"}}},
		{"mixed operators and fields", map[string]interface{}{"price": map[string]interface{}{"$gt": 1, "currency": "USD"}}},
		{"in without array", map[string]interface{}{"price": map[string]interface{}{"$in": 3}}},
		{"exists without bool", map[string]interface{}{"price": map[string]interface{}{"$exists": "yes"}}},
		{"and without list", map[string]interface{}{"$and": map[string]interface{}{}}},
		{"unknown top-level operator", map[string]interface{}{"$or": []interface{}{}}},
		{"empty path segment", map[string]interface{}{"a..b": 1}},
		{"dollar path segment", map[string]interface{}{"a.$b": 1}},
		{"unsupported literal", map[string]interface{}{"a": struct{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestPrepareNormalizesLiterals(t *testing.T) {
	expr, err := Prepare(domain.Where(domain.Eq("price", 15), domain.Gt("year", int64(2000))))
	require.NoError(t, err)
	assert.Equal(t, 15.0, expr.Predicates[0].Value)
	assert.Equal(t, 2000.0, expr.Predicates[1].Value)
}

func TestValuesMatch(t *testing.T) {
	assert.False(t, ValuesMatch("Alice", "alice"))
	assert.True(t, ValuesMatch(42, 42.0))
	assert.True(t, ValuesMatch(nil, nil))
	assert.False(t, ValuesMatch(nil, 1))
	assert.False(t, ValuesMatch(domain.Missing, nil))
	assert.True(t, ValuesMatch([]interface{}{1.0, "a"}, []interface{}{1.0, "a"}))
	assert.False(t, ValuesMatch([]interface{}{1.0}, []interface{}{1.0, 2.0}))
}

func TestCompareComparable(t *testing.T) {
	c, ok := CompareComparable(3.0, 4)
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = CompareComparable("b", "a")
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = CompareComparable(true, false)
	assert.False(t, ok)
	_, ok = CompareComparable("1", 1)
	assert.False(t, ok)
}
