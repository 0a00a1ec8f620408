package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"go.uber.org/zap"
)

// CreateIndex creates an index over the given fields and builds it from the
// current documents. Creating an index that already exists returns its handle.
func (c *Collection) CreateIndex(ctx context.Context, spec domain.IndexSpec) (domain.IndexHandle, error) {
	start := time.Now()
	handle, err := c.createIndex(ctx, spec)
	c.metrics.ObserveOperation("create_index", c.name, err, time.Since(start))
	return handle, err
}

func (c *Collection) createIndex(ctx context.Context, spec domain.IndexSpec) (domain.IndexHandle, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return domain.IndexHandle{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return domain.IndexHandle{}, err
	}

	start := time.Now()
	handle, created, err := c.indexes.CreateIndex(spec, c.recordsInOrder())
	if err != nil {
		return domain.IndexHandle{}, err
	}
	if created {
		if err := c.saveIndexes(c.indexes.Specs()); err != nil {
			_ = c.indexes.DropIndex(handle.Name)
			return domain.IndexHandle{}, err
		}
		c.logger.Info("index built",
			zap.String("index", handle.Name),
			zap.Int("documents", len(c.records)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return handle, nil
}

// DropIndex removes an index by name.
func (c *Collection) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUsable(); err != nil {
		return err
	}
	index, ok := c.indexes.GetIndex(name)
	if !ok {
		return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	var kept []domain.IndexSpec
	for _, spec := range c.indexes.Specs() {
		if !spec.Equal(index.Handle().Spec) {
			kept = append(kept, spec)
		}
	}
	if err := c.saveIndexes(kept); err != nil {
		return err
	}
	if err := c.indexes.DropIndex(name); err != nil {
		return err
	}
	c.logger.Info("index dropped", zap.String("index", name))
	return nil
}

// saveIndexes records index definitions with backends that keep them.
// Callers hold the write lock.
func (c *Collection) saveIndexes(specs []domain.IndexSpec) error {
	catalog, ok := c.backend.(domain.IndexCatalog)
	if !ok {
		return nil
	}
	if err := catalog.SaveIndexes(specs); err != nil {
		return domain.StorageError("persist indexes of "+c.name, err)
	}
	return nil
}

// restoreIndexes rebuilds the indexes a backend recorded, in their original
// creation order so derived names come out the same.
func (c *Collection) restoreIndexes() error {
	catalog, ok := c.backend.(domain.IndexCatalog)
	if !ok {
		return nil
	}
	specs, err := catalog.LoadIndexes()
	if err != nil {
		return domain.StorageError("load indexes of "+c.name, err)
	}
	records := c.recordsInOrder()
	for _, spec := range specs {
		handle, _, err := c.indexes.CreateIndex(spec, records)
		if err != nil {
			return fmt.Errorf("failed to restore index %s of %s: %w", spec.Name(), c.name, err)
		}
		c.logger.Debug("index restored", zap.String("index", handle.Name), zap.Int("documents", len(records)))
	}
	return nil
}

// GetIndexes describes every index in creation order.
func (c *Collection) GetIndexes() []domain.IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes.GetIndexes()
}

// FindByIndex returns the documents whose leading index fields equal values,
// in index order.
func (c *Collection) FindByIndex(ctx context.Context, name string, values ...interface{}) ([]domain.Document, error) {
	normalized := make([]interface{}, len(values))
	for i, v := range values {
		n, err := domain.Normalize(v)
		if err != nil {
			return nil, err
		}
		normalized[i] = n
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	index, ok := c.indexes.GetIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	if len(normalized) > len(index.Handle().Spec) {
		return nil, fmt.Errorf("%w: index %s has %d fields, got %d values",
			domain.ErrInvalidArgument, name, len(index.Handle().Spec), len(normalized))
	}

	ids, _ := index.Scan(normalized, nil)
	results := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		if rec, ok := c.records[id]; ok {
			results = append(results, rec.Doc.Clone())
		}
	}
	return results, nil
}

