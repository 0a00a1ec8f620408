package domain

import (
	"fmt"
	"strings"
)

// IDField is the name of the primary key field every document carries.
const IDField = "_id"

// Document represents a document in the database
type Document map[string]interface{}

// ID returns the document's primary key, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return map[string]interface{}(val.Clone())
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// NormalizeDocument converts a document into the engine's canonical value
// representation: numbers become float64, nested maps become
// map[string]interface{} and slices become []interface{}.
func NormalizeDocument(doc map[string]interface{}) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// SplitPath validates a dotted field path and returns its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty field path", ErrInvalidArgument)
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in field path %q", ErrInvalidArgument, path)
		}
		if strings.HasPrefix(p, "$") {
			return nil, fmt.Errorf("%w: field path %q cannot start a segment with '$'", ErrInvalidArgument, path)
		}
	}
	return parts, nil
}

// ValidatePath reports whether path is a well-formed field path.
func ValidatePath(path string) error {
	_, err := SplitPath(path)
	return err
}

// Lookup resolves a dotted path against a document. The boolean is false
// when any segment is absent or traverses a non-object value.
func Lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	if doc == nil {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		v, ok := doc[path]
		return v, ok
	}
	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// LookupValue is Lookup with absent fields reported as Missing.
func LookupValue(doc map[string]interface{}, path string) interface{} {
	if v, ok := Lookup(doc, path); ok {
		return v
	}
	return Missing
}

// SetPath assigns value at path, creating intermediate objects as needed.
// An intermediate non-object value is replaced by an object.
func SetPath(doc map[string]interface{}, path string, value interface{}) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asObject(cur[seg])
		if !ok {
			next = make(map[string]interface{})
		} else {
			next = copyObject(next)
		}
		cur[seg] = next
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// UnsetPath removes the value at path. It reports whether anything was removed.
func UnsetPath(doc map[string]interface{}, path string) bool {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asObject(cur[seg])
		if !ok {
			return false
		}
		next = copyObject(next)
		cur[seg] = next
		cur = next
	}
	last := segs[len(segs)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// copyObject makes a shallow copy so stored documents are never mutated in place.
func copyObject(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
