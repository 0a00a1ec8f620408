package storage

import (
	"testing"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdate(t *testing.T) {
	tests := []struct {
		name    string
		patch   map[string]interface{}
		wantErr bool
	}{
		{"plain fields", map[string]interface{}{"price": 15.99, "meta.pages": 10}, false},
		{"operators", map[string]interface{}{"$set": map[string]interface{}{"a": 1}, "$inc": map[string]interface{}{"b": 2}, "$unset": map[string]interface{}{"c": ""}}, false},
		{"document body", map[string]interface{}{"$set": domain.Document{"a": 1}}, false},
		{"empty", map[string]interface{}{}, true},
		{"mixed", map[string]interface{}{"$set": map[string]interface{}{"a": 1}, "b": 2}, true},
		{"unknown operator", map[string]interface{}{"$push": map[string]interface{}{"a": 1}}, true},
		{"operator body not object", map[string]interface{}{"$set": 1}, true},
		{"inc non-number", map[string]interface{}{"$inc": map[string]interface{}{"a": "x"}}, true},
		{"unset id", map[string]interface{}{"$unset": map[string]interface{}{"_id": ""}}, true},
		{"inc nested id", map[string]interface{}{"$inc": map[string]interface{}{"_id.n": 1}}, true},
		{"bad path", map[string]interface{}{"a..b": 1}, true},
		{"dollar segment", map[string]interface{}{"$set": map[string]interface{}{"a.$b": 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUpdate(tt.patch)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateApply(t *testing.T) {
	original := domain.Document{
		"_id":   "1",
		"price": 10.0,
		"meta":  map[string]interface{}{"pages": 100.0, "lang": "en"},
		"promo": true,
	}

	u, err := ParseUpdate(map[string]interface{}{
		"$set":   map[string]interface{}{"meta.pages": 120, "title": "Dune"},
		"$inc":   map[string]interface{}{"price": 2.5, "sold": 3},
		"$unset": map[string]interface{}{"promo": "", "absent": ""},
	})
	require.NoError(t, err)

	out, err := u.Apply(original)
	require.NoError(t, err)
	assert.Equal(t, domain.Document{
		"_id":   "1",
		"price": 12.5,
		"sold":  3.0,
		"title": "Dune",
		"meta":  map[string]interface{}{"pages": 120.0, "lang": "en"},
	}, out)

	assert.Equal(t, 100.0, original["meta"].(map[string]interface{})["pages"], "input is not modified")
	assert.Equal(t, true, original["promo"])

	u, err = ParseUpdate(map[string]interface{}{"$inc": map[string]interface{}{"meta.lang": 1}})
	require.NoError(t, err)
	_, err = u.Apply(original)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	u, err = ParseUpdate(map[string]interface{}{"_id": "2"})
	require.NoError(t, err)
	_, err = u.Apply(original)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
