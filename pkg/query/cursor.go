package query

import (
	"context"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Cursor iterates a materialized result set. Projection is applied as each
// document is decoded, and every decoded document is a private copy.
type Cursor struct {
	docs       []domain.Document
	projection domain.Projection
	pos        int
	current    domain.Document
	err        error
	closed     bool
	examined   int
}

// NewCursor wraps docs, applying projection lazily.
func NewCursor(docs []domain.Document, projection domain.Projection) *Cursor {
	return &Cursor{docs: docs, projection: projection, pos: -1}
}

// Next advances to the next document. It returns false when the results are
// exhausted, the cursor is closed, or ctx is done; check Err afterwards.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := domain.CheckContext(ctx); err != nil {
		c.err = err
		return false
	}
	c.pos++
	if c.pos >= len(c.docs) {
		c.current = nil
		return false
	}
	c.current = nil
	return true
}

// Decode returns the current document with the projection applied.
func (c *Cursor) Decode() domain.Document {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	if c.current == nil {
		doc := c.docs[c.pos]
		if len(c.projection) == 0 {
			c.current = doc.Clone()
		} else {
			c.current = c.projection.Apply(doc)
		}
	}
	return c.current
}

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// All drains the remaining documents.
func (c *Cursor) All(ctx context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, c.Remaining())
	for c.Next(ctx) {
		out = append(out, c.Decode())
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// Len returns the total number of results.
func (c *Cursor) Len() int {
	return len(c.docs)
}

// Remaining returns the number of results not yet visited.
func (c *Cursor) Remaining() int {
	if c.closed {
		return 0
	}
	n := len(c.docs) - (c.pos + 1)
	if n < 0 {
		return 0
	}
	return n
}

// Examined returns how many candidate documents were evaluated to build the
// result set.
func (c *Cursor) Examined() int {
	return c.examined
}

// Rewind restarts iteration over the same snapshot.
func (c *Cursor) Rewind() {
	c.pos = -1
	c.current = nil
	c.err = nil
	c.closed = false
}

// Close releases the result set.
func (c *Cursor) Close() error {
	c.closed = true
	c.current = nil
	return nil
}
