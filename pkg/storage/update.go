package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Update is a parsed update document.
type Update struct {
	Set   map[string]interface{}
	Unset []string
	Inc   map[string]float64
}

// ParseUpdate accepts either a plain field map, whose values replace the named
// fields, or an operator map using $set, $unset and $inc.
//
//	{"price": 15.99}
//	{"$set": {"price": 15.99}, "$inc": {"stock": -1}, "$unset": {"promo": ""}}
func ParseUpdate(patch map[string]interface{}) (Update, error) {
	u := Update{Set: make(map[string]interface{}), Inc: make(map[string]float64)}
	if len(patch) == 0 {
		return u, fmt.Errorf("%w: empty update", domain.ErrInvalidArgument)
	}

	operators := 0
	for k := range patch {
		if strings.HasPrefix(k, "$") {
			operators++
		}
	}
	if operators == 0 {
		return u, u.addSet(patch)
	}
	if operators != len(patch) {
		return u, fmt.Errorf("%w: update cannot mix operators and fields", domain.ErrInvalidArgument)
	}

	for op, body := range patch {
		fields, ok := body.(map[string]interface{})
		if !ok {
			if doc, isDoc := body.(domain.Document); isDoc {
				fields, ok = doc, true
			}
		}
		if !ok {
			return u, fmt.Errorf("%w: %s takes an object", domain.ErrInvalidArgument, op)
		}
		switch op {
		case "$set":
			if err := u.addSet(fields); err != nil {
				return u, err
			}
		case "$unset":
			for path := range fields {
				if err := checkUpdatePath(path); err != nil {
					return u, err
				}
				u.Unset = append(u.Unset, path)
			}
		case "$inc":
			for path, raw := range fields {
				if err := checkUpdatePath(path); err != nil {
					return u, err
				}
				n, isNum := domain.ToFloat64(raw)
				if !isNum {
					return u, fmt.Errorf("%w: $inc on %q needs a number", domain.ErrInvalidArgument, path)
				}
				u.Inc[path] = n
			}
		default:
			return u, fmt.Errorf("%w: unknown update operator %s", domain.ErrInvalidArgument, op)
		}
	}
	sort.Strings(u.Unset)
	return u, nil
}

func (u *Update) addSet(fields map[string]interface{}) error {
	for path, raw := range fields {
		if path == domain.IDField {
			// _id may be repeated unchanged; Apply rejects a different value.
			v, err := domain.Normalize(raw)
			if err != nil {
				return err
			}
			u.Set[path] = v
			continue
		}
		if err := checkUpdatePath(path); err != nil {
			return err
		}
		v, err := domain.Normalize(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", path, err)
		}
		u.Set[path] = v
	}
	return nil
}

func checkUpdatePath(path string) error {
	if err := domain.ValidatePath(path); err != nil {
		return err
	}
	if path == domain.IDField || strings.HasPrefix(path, domain.IDField+".") {
		return fmt.Errorf("%w: %s cannot be modified", domain.ErrInvalidArgument, domain.IDField)
	}
	return nil
}

// Apply returns an updated copy of doc. doc itself is not modified.
func (u Update) Apply(doc domain.Document) (domain.Document, error) {
	out := doc.Clone()

	if id, ok := u.Set[domain.IDField]; ok && !domain.ValuesEqual(id, doc[domain.IDField]) {
		return nil, fmt.Errorf("%w: %s cannot be modified", domain.ErrInvalidArgument, domain.IDField)
	}

	paths := make([]string, 0, len(u.Set))
	for path := range u.Set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if path == domain.IDField {
			continue
		}
		domain.SetPath(out, path, u.Set[path])
	}

	for path, delta := range u.Inc {
		current, exists := domain.Lookup(out, path)
		if !exists {
			domain.SetPath(out, path, delta)
			continue
		}
		n, isNum := current.(float64)
		if !isNum {
			return nil, fmt.Errorf("%w: cannot $inc non-numeric field %q", domain.ErrInvalidArgument, path)
		}
		domain.SetPath(out, path, n+delta)
	}

	for _, path := range u.Unset {
		domain.UnsetPath(out, path)
	}
	return out, nil
}
