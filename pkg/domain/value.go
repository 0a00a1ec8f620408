package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind identifies the variant of a document value.
// The declaration order is the cross-type sort order.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindNumber
	KindString
	KindObject
	KindArray
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

type missingValue struct{}

func (missingValue) String() string { return "<missing>" }

// Missing stands in for an absent field in index keys and sort keys.
var Missing interface{} = missingValue{}

// KindOf reports the kind of a normalized value.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case missingValue:
		return KindMissing
	case nil:
		return KindNull
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case string:
		return KindString
	case map[string]interface{}, Document:
		return KindObject
	case []interface{}:
		return KindArray
	case bool:
		return KindBool
	}
	return KindNull
}

// ToFloat64 converts various numeric types to float64 for comparison
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Normalize converts a Go value into the engine's value model.
func Normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string:
		return val, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrInvalidArgument, val.String())
		}
		return f, nil
	case map[string]interface{}:
		return normalizeObject(val)
	case Document:
		return normalizeObject(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			nv, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case []float64:
		out := make([]interface{}, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(val))
		for i, n := range val {
			out[i] = float64(n)
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, m := range val {
			nv, err := normalizeObject(m)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}
	if f, ok := ToFloat64(v); ok {
		if math.IsNaN(f) {
			return nil, fmt.Errorf("%w: NaN is not a valid number", ErrInvalidArgument)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
}

func normalizeObject(m map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		nv, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

// CompareValues orders two values. Values of different kinds order by Kind;
// values of the same kind order naturally.
func CompareValues(a, b interface{}) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	switch ka {
	case KindMissing, KindNull:
		return 0
	case KindNumber:
		fa, _ := ToFloat64(a)
		fb, _ := ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(a.(string), b.(string))
	case KindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case KindArray:
		return compareArrays(a.([]interface{}), b.([]interface{}))
	case KindObject:
		ma, _ := asObject(a)
		mb, _ := asObject(b)
		return compareObjects(ma, mb)
	}
	return 0
}

func compareArrays(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareObjects(a, b map[string]interface{}) int {
	ka := sortedKeys(a)
	kb := sortedKeys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := CompareValues(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return 0
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValuesEqual reports deep equality under the engine's value model.
func ValuesEqual(a, b interface{}) bool {
	return CompareValues(a, b) == 0
}
