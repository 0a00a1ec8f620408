package domain

import (
	"fmt"
	"strings"
)

// Direction is a sort or index direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// IndexField is one component of an index key.
type IndexField struct {
	Field     string    `json:"field" msgpack:"field"`
	Direction Direction `json:"direction" msgpack:"direction"`
}

// IndexSpec is an ordered sequence of fields defining an index.
type IndexSpec []IndexField

// NewIndexSpec builds an ascending index spec over the given fields.
func NewIndexSpec(fields ...string) IndexSpec {
	spec := make(IndexSpec, len(fields))
	for i, f := range fields {
		spec[i] = IndexField{Field: f, Direction: Ascending}
	}
	return spec
}

// Validate checks field paths and directions.
func (s IndexSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: index spec has no fields", ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if err := ValidatePath(f.Field); err != nil {
			return err
		}
		if f.Direction != Ascending && f.Direction != Descending {
			return fmt.Errorf("%w: index direction for %q must be 1 or -1", ErrInvalidArgument, f.Field)
		}
		if seen[f.Field] {
			return fmt.Errorf("%w: field %q repeated in index spec", ErrInvalidArgument, f.Field)
		}
		seen[f.Field] = true
	}
	return nil
}

// Name derives the conventional index name, e.g. author_1_published_year_1.
func (s IndexSpec) Name() string {
	parts := make([]string, 0, len(s)*2)
	for _, f := range s {
		parts = append(parts, f.Field, fmt.Sprintf("%d", int(f.Direction)))
	}
	return strings.Join(parts, "_")
}

// Equal reports whether two specs have the same field sequence.
func (s IndexSpec) Equal(other IndexSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// CloneIndexSpecs deep-copies a list of specs.
func CloneIndexSpecs(specs []IndexSpec) []IndexSpec {
	out := make([]IndexSpec, len(specs))
	for i, spec := range specs {
		out[i] = append(IndexSpec(nil), spec...)
	}
	return out
}

// IndexHandle identifies a created index.
type IndexHandle struct {
	Name string    `json:"name"`
	Spec IndexSpec `json:"spec"`
}

// IndexInfo describes an index for listing.
type IndexInfo struct {
	IndexHandle
	Entries int `json:"entries"`
}

// PlanKind distinguishes index-assisted from full-scan execution.
type PlanKind string

const (
	FullScan  PlanKind = "COLLSCAN"
	IndexScan PlanKind = "IXSCAN"
)

// Bound is one end of a range on an index field.
type Bound struct {
	Value     interface{} `json:"value"`
	Inclusive bool        `json:"inclusive"`
}

// KeyRange constrains the field that follows the equality prefix.
type KeyRange struct {
	Low  *Bound `json:"low,omitempty"`
	High *Bound `json:"high,omitempty"`
}

// Plan is the chosen execution strategy for a query.
type Plan struct {
	Kind PlanKind `json:"stage"`
	// Index is set for IndexScan plans.
	Index *IndexHandle `json:"index,omitempty"`
	// Equality holds the values bound to the index's leading fields.
	Equality []interface{} `json:"equality,omitempty"`
	// Range is set when the field after the equality prefix is range bound.
	Range *KeyRange `json:"range,omitempty"`
	// SortCovered means candidates already arrive in the requested order.
	SortCovered bool `json:"sort_covered"`
}

// IsFullScan reports whether the plan scans every document.
func (p Plan) IsFullScan() bool {
	return p.Kind != IndexScan
}

func (p Plan) String() string {
	if p.Kind != IndexScan || p.Index == nil {
		return string(FullScan)
	}
	return fmt.Sprintf("%s(%s)", IndexScan, p.Index.Name)
}
