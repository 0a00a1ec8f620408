package domain

import (
	"fmt"
	"math"
)

// PaginationOptions defines pagination parameters
type PaginationOptions struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`

	// Common
	MaxPageSize int `json:"max_page_size,omitempty"` // Maximum allowed page size
}

// PaginationResult contains pagination metadata
type PaginationResult struct {
	Documents []Document `json:"documents"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	HasNext   bool       `json:"has_next"`
	HasPrev   bool       `json:"has_prev"`
	Total     int64      `json:"total"`
}

// DefaultPaginationOptions returns default pagination settings
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		Page:        1,
		PageSize:    50,
		MaxPageSize: 1000,
	}
}

// Validate validates pagination options
func (po *PaginationOptions) Validate() error {
	if po.Page < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}
	if po.PageSize < 1 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidArgument)
	}
	if po.MaxPageSize > 0 && po.PageSize > po.MaxPageSize {
		return fmt.Errorf("%w: page size %d exceeds maximum %d", ErrInvalidArgument, po.PageSize, po.MaxPageSize)
	}
	return nil
}

// Offset returns the number of results before the page. Pages too far out
// to address saturate at math.MaxInt instead of overflowing. Options must be
// valid.
func (po *PaginationOptions) Offset() int {
	if po.Page-1 > math.MaxInt/po.PageSize {
		return math.MaxInt
	}
	return (po.Page - 1) * po.PageSize
}

// NewPaginationResult fills page metadata for a page cut from total results.
func NewPaginationResult(docs []Document, opts *PaginationOptions, total int64) *PaginationResult {
	if docs == nil {
		docs = []Document{}
	}
	offset := int64(opts.Offset())
	return &PaginationResult{
		Documents: docs,
		Page:      opts.Page,
		PageSize:  opts.PageSize,
		HasPrev:   opts.Page > 1,
		HasNext:   offset < total && total-offset > int64(opts.PageSize),
		Total:     total,
	}
}
