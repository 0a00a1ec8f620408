package domain

import "fmt"

// SortKey orders results by one field.
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Asc sorts ascending by field.
func Asc(field string) SortKey { return SortKey{Field: field, Direction: Ascending} }

// Desc sorts descending by field.
func Desc(field string) SortKey { return SortKey{Field: field, Direction: Descending} }

// Projection selects fields: true includes, false excludes.
// Inclusion and exclusion cannot be mixed except for _id.
type Projection map[string]bool

// Query is a structured find descriptor.
type Query struct {
	Filter     FilterExpr
	Projection Projection
	Sort       []SortKey
	Skip       int
	// Limit of 0 means no limit.
	Limit int
}

// Validate checks pagination bounds, sort keys and projection shape.
func (q Query) Validate() error {
	if q.Skip < 0 {
		return fmt.Errorf("%w: skip cannot be negative", ErrInvalidArgument)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidArgument)
	}
	for _, k := range q.Sort {
		if err := ValidatePath(k.Field); err != nil {
			return err
		}
		if k.Direction != Ascending && k.Direction != Descending {
			return fmt.Errorf("%w: sort direction for %q must be 1 or -1", ErrInvalidArgument, k.Field)
		}
	}
	return q.Projection.Validate()
}

// Paginate returns a copy of q restricted to a 1-indexed page.
func (q Query) Paginate(page, pageSize int) (Query, error) {
	if page < 1 {
		return q, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}
	if pageSize < 1 {
		return q, fmt.Errorf("%w: page size must be positive", ErrInvalidArgument)
	}
	opts := PaginationOptions{Page: page, PageSize: pageSize}
	q.Skip = opts.Offset()
	q.Limit = pageSize
	return q, nil
}

// Validate checks that the projection does not mix modes.
func (p Projection) Validate() error {
	var include, exclude bool
	for field, on := range p {
		if err := ValidatePath(field); err != nil {
			return err
		}
		if field == IDField {
			continue
		}
		if on {
			include = true
		} else {
			exclude = true
		}
	}
	if include && exclude {
		return fmt.Errorf("%w: projection cannot mix inclusion and exclusion", ErrInvalidArgument)
	}
	return nil
}

// Apply shapes a document according to the projection.
func (p Projection) Apply(doc Document) Document {
	if len(p) == 0 {
		return doc
	}
	inclusive := len(p) == 1 && p[IDField]
	for field, on := range p {
		if field != IDField && on {
			inclusive = true
			break
		}
	}
	keepID := true
	if on, ok := p[IDField]; ok {
		keepID = on
	}
	if inclusive {
		out := make(Document, len(p)+1)
		if keepID {
			if id, ok := doc[IDField]; ok {
				out[IDField] = id
			}
		}
		for field, on := range p {
			if !on || field == IDField {
				continue
			}
			if v, ok := Lookup(doc, field); ok {
				SetPath(out, field, cloneValue(v))
			}
		}
		return out
	}
	out := doc.Clone()
	for field := range p {
		if field == IDField && keepID {
			continue
		}
		UnsetPath(out, field)
	}
	return out
}
