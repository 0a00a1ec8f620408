package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"go.uber.org/zap"
)

// prepareInsert normalizes a caller's document and assigns an _id if needed.
func (c *Collection) prepareInsert(raw domain.Document) (domain.Document, string, error) {
	if raw == nil {
		return nil, "", fmt.Errorf("%w: nil document", domain.ErrInvalidArgument)
	}
	doc, err := domain.NormalizeDocument(raw)
	if err != nil {
		return nil, "", err
	}
	if _, ok := doc[domain.IDField]; !ok {
		doc[domain.IDField] = c.idGen()
	}
	id, err := documentID(doc)
	if err != nil {
		return nil, "", err
	}
	return doc, id, nil
}

// Insert adds a document and returns its _id. A document without an _id is
// assigned a UUID.
func (c *Collection) Insert(ctx context.Context, raw domain.Document) (string, error) {
	start := time.Now()
	id, err := c.insert(ctx, raw)
	c.metrics.ObserveOperation("insert", c.name, err, time.Since(start))
	return id, err
}

func (c *Collection) insert(ctx context.Context, raw domain.Document) (string, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return "", err
	}
	doc, id, err := c.prepareInsert(raw)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return "", err
	}
	if _, exists := c.records[id]; exists {
		return "", fmt.Errorf("%w: %s", domain.ErrDuplicateKey, id)
	}
	if err := c.backend.Persist(doc); err != nil {
		return "", domain.StorageError("persist "+id, err)
	}
	c.put(id, doc)
	return id, nil
}

// InsertMany adds every document or none of them.
func (c *Collection) InsertMany(ctx context.Context, raws []domain.Document) ([]string, error) {
	start := time.Now()
	ids, err := c.insertMany(ctx, raws)
	c.metrics.ObserveOperation("insert_many", c.name, err, time.Since(start))
	return ids, err
}

func (c *Collection) insertMany(ctx context.Context, raws []domain.Document) ([]string, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, len(raws))
	ids := make([]string, len(raws))
	batch := make(map[string]bool, len(raws))
	for i, raw := range raws {
		doc, id, err := c.prepareInsert(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if batch[id] {
			return nil, fmt.Errorf("document %d: %w: %s", i, domain.ErrDuplicateKey, id)
		}
		batch[id] = true
		docs[i], ids[i] = doc, id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if _, exists := c.records[id]; exists {
			return nil, fmt.Errorf("document %d: %w: %s", i, domain.ErrDuplicateKey, id)
		}
	}

	for i, doc := range docs {
		if err := c.backend.Persist(doc); err != nil {
			c.rollbackInserts(ids[:i])
			return nil, domain.StorageError("persist "+ids[i], err)
		}
	}
	for i, doc := range docs {
		c.put(ids[i], doc)
	}
	return ids, nil
}

// Get returns a copy of the document with id.
func (c *Collection) Get(id string) (domain.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	rec, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: document with id %s not found in collection %s", domain.ErrNotFound, id, c.name)
	}
	return rec.Doc.Clone(), nil
}

// UpdateWhere applies patch to every matching document and returns how many
// were modified. Matches the patch leaves unchanged are not counted or
// persisted. Zero matches is not an error.
func (c *Collection) UpdateWhere(ctx context.Context, expr domain.FilterExpr, patch map[string]interface{}) (int, error) {
	start := time.Now()
	_, modified, err := c.update(ctx, expr, patch, 0)
	c.metrics.ObserveOperation("update", c.name, err, time.Since(start))
	return modified, err
}

// UpdateOne applies patch to the first matching document in insertion order.
func (c *Collection) UpdateOne(ctx context.Context, expr domain.FilterExpr, patch map[string]interface{}) (int, error) {
	start := time.Now()
	_, modified, err := c.update(ctx, expr, patch, 1)
	c.metrics.ObserveOperation("update_one", c.name, err, time.Since(start))
	return modified, err
}

// UpdateByID applies patch to one document and returns its new version.
func (c *Collection) UpdateByID(ctx context.Context, id string, patch map[string]interface{}) (domain.Document, error) {
	start := time.Now()
	updated, _, err := c.update(ctx, domain.Where(domain.Eq(domain.IDField, id)), patch, 1)
	if err == nil && len(updated) == 0 {
		err = fmt.Errorf("%w: document with id %s not found in collection %s", domain.ErrNotFound, id, c.name)
	}
	c.metrics.ObserveOperation("update_by_id", c.name, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return updated[0].Clone(), nil
}

// update returns the new version of every matched document and how many of
// them differ from the stored version.
func (c *Collection) update(ctx context.Context, expr domain.FilterExpr, patch map[string]interface{}, limit int) ([]domain.Document, int, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, 0, err
	}
	expr, err := filter.Prepare(expr)
	if err != nil {
		return nil, 0, err
	}
	upd, err := ParseUpdate(patch)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return nil, 0, err
	}

	matched, err := c.matching(ctx, expr, limit)
	if err != nil {
		return nil, 0, err
	}
	next := make([]domain.Document, len(matched))
	var before, after []domain.Document
	for i, old := range matched {
		if next[i], err = upd.Apply(old); err != nil {
			return nil, 0, fmt.Errorf("document %s: %w", old.ID(), err)
		}
		if !domain.ValuesEqual(map[string]interface{}(old), map[string]interface{}(next[i])) {
			before = append(before, old)
			after = append(after, next[i])
		}
	}
	if err := c.persistAll(before, after); err != nil {
		return nil, 0, err
	}
	for _, doc := range after {
		c.replace(doc.ID(), doc)
	}
	return next, len(after), nil
}

// ReplaceByID swaps a whole document, keeping its _id.
func (c *Collection) ReplaceByID(ctx context.Context, id string, raw domain.Document) (domain.Document, error) {
	start := time.Now()
	doc, err := c.replaceByID(ctx, id, raw)
	c.metrics.ObserveOperation("replace_by_id", c.name, err, time.Since(start))
	return doc, err
}

func (c *Collection) replaceByID(ctx context.Context, id string, raw domain.Document) (domain.Document, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	doc, err := domain.NormalizeDocument(raw)
	if err != nil {
		return nil, err
	}
	if existing, ok := doc[domain.IDField]; ok && existing != id {
		return nil, fmt.Errorf("%w: %s cannot be modified", domain.ErrInvalidArgument, domain.IDField)
	}
	doc[domain.IDField] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	old, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: document with id %s not found in collection %s", domain.ErrNotFound, id, c.name)
	}
	if err := c.persistAll([]domain.Document{old.Doc}, []domain.Document{doc}); err != nil {
		return nil, err
	}
	c.replace(id, doc)
	return doc.Clone(), nil
}

// DeleteWhere removes every matching document and returns how many were removed.
func (c *Collection) DeleteWhere(ctx context.Context, expr domain.FilterExpr) (int, error) {
	start := time.Now()
	n, err := c.delete(ctx, expr, 0)
	c.metrics.ObserveOperation("delete", c.name, err, time.Since(start))
	return n, err
}

// DeleteOne removes the first matching document in insertion order.
func (c *Collection) DeleteOne(ctx context.Context, expr domain.FilterExpr) (int, error) {
	start := time.Now()
	n, err := c.delete(ctx, expr, 1)
	c.metrics.ObserveOperation("delete_one", c.name, err, time.Since(start))
	return n, err
}

// DeleteByID removes one document, reporting ErrNotFound if it is absent.
func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	start := time.Now()
	n, err := c.delete(ctx, domain.Where(domain.Eq(domain.IDField, id)), 1)
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: document with id %s not found in collection %s", domain.ErrNotFound, id, c.name)
	}
	c.metrics.ObserveOperation("delete_by_id", c.name, err, time.Since(start))
	return err
}

func (c *Collection) delete(ctx context.Context, expr domain.FilterExpr, limit int) (int, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return 0, err
	}
	expr, err := filter.Prepare(expr)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return 0, err
	}

	matched, err := c.matching(ctx, expr, limit)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(matched))
	for i, doc := range matched {
		id := doc.ID()
		if err := c.backend.Remove(id); err != nil {
			c.rollbackRemoves(matched[:i])
			return 0, domain.StorageError("remove "+id, err)
		}
		ids[i] = id
	}
	c.removeAll(ids)
	return len(ids), nil
}

// matching returns stored documents matching expr in insertion order, at most
// limit of them when limit > 0. Callers hold the write lock.
func (c *Collection) matching(ctx context.Context, expr domain.FilterExpr, limit int) ([]domain.Document, error) {
	plan := c.indexes.ChoosePlan(expr, nil)
	candidates, _, err := c.candidates(ctx, plan)
	if err != nil {
		return nil, err
	}
	var out []domain.Document
	for _, doc := range candidates {
		if filter.Matches(doc, expr) {
			out = append(out, doc)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// persistAll writes the new versions of documents, restoring the old
// versions of those already written if any write fails.
func (c *Collection) persistAll(old, next []domain.Document) error {
	for i, doc := range next {
		if err := c.backend.Persist(doc); err != nil {
			for _, prev := range old[:i] {
				if rbErr := c.backend.Persist(prev); rbErr != nil {
					c.logger.Error("rollback failed", zap.String("id", prev.ID()), zap.Error(rbErr))
				}
			}
			c.logger.Warn("update rolled back", zap.Int("persisted", i), zap.Error(err))
			return domain.StorageError("persist "+doc.ID(), err)
		}
	}
	return nil
}

func (c *Collection) rollbackInserts(ids []string) {
	for _, id := range ids {
		if err := c.backend.Remove(id); err != nil {
			c.logger.Error("rollback failed", zap.String("id", id), zap.Error(err))
		}
	}
	c.logger.Warn("insert rolled back", zap.Int("persisted", len(ids)))
}

func (c *Collection) rollbackRemoves(docs []domain.Document) {
	for _, doc := range docs {
		if err := c.backend.Persist(doc); err != nil {
			c.logger.Error("rollback failed", zap.String("id", doc.ID()), zap.Error(err))
		}
	}
	c.logger.Warn("delete rolled back", zap.Int("removed", len(docs)))
}
