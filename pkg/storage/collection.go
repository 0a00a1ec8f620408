package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/indexing"
	"github.com/adfharrison1/go-docquery/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collection is a record store for one named set of documents.
//
// Stored documents are never mutated in place: an update stores a new map,
// so a snapshot taken under the read lock stays valid after it is released.
type Collection struct {
	name string

	mu      sync.RWMutex
	records map[string]indexing.Record
	order   []string // ids by insertion sequence
	nextSeq uint64
	indexes *indexing.IndexEngine
	backend domain.StorageBackend
	dropped bool

	logger  *zap.Logger
	metrics metrics.Recorder
	idGen   func() string
}

// NewCollection creates an empty collection persisting to backend.
func NewCollection(name string, backend domain.StorageBackend, options ...StorageOption) (*Collection, error) {
	cfg := &StorageEngine{logger: zap.NewNop(), metrics: metrics.Nop(), idGen: uuid.NewString}
	for _, option := range options {
		option(cfg)
	}
	return openCollection(name, backend, cfg.logger, cfg.metrics, cfg.idGen)
}

func openCollection(name string, backend domain.StorageBackend, logger *zap.Logger, rec metrics.Recorder, idGen func() string) (*Collection, error) {
	c := &Collection{
		name:    name,
		records: make(map[string]indexing.Record),
		indexes: indexing.NewIndexEngine(),
		backend: backend,
		logger:  logger.With(zap.String("collection", name)),
		metrics: rec,
		idGen:   idGen,
	}

	docs, err := backend.Load()
	if err != nil {
		return nil, domain.StorageError("load "+name, err)
	}
	for _, raw := range docs {
		doc, err := domain.NormalizeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
		}
		id, err := documentID(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
		}
		if _, dup := c.records[id]; dup {
			return nil, fmt.Errorf("failed to load collection %s: %w: %s", name, domain.ErrDuplicateKey, id)
		}
		c.put(id, doc)
	}
	if err := c.restoreIndexes(); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func documentID(doc domain.Document) (string, error) {
	raw, ok := doc[domain.IDField]
	if !ok {
		return "", fmt.Errorf("%w: document has no %s", domain.ErrInvalidArgument, domain.IDField)
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", domain.ErrInvalidArgument, domain.IDField)
	}
	return id, nil
}

// put appends a new record. Callers hold the write lock.
func (c *Collection) put(id string, doc domain.Document) {
	c.nextSeq++
	rec := indexing.Record{ID: id, Seq: c.nextSeq, Doc: doc}
	c.records[id] = rec
	c.order = append(c.order, id)
	c.indexes.UpdateIndexForDocument(id, rec.Seq, nil, doc)
}

// replace swaps in a new version of a stored document. Callers hold the write lock.
func (c *Collection) replace(id string, doc domain.Document) {
	rec := c.records[id]
	c.indexes.UpdateIndexForDocument(id, rec.Seq, rec.Doc, doc)
	rec.Doc = doc
	c.records[id] = rec
}

// removeAll deletes records and compacts the insertion order once.
// Callers hold the write lock.
func (c *Collection) removeAll(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		c.indexes.UpdateIndexForDocument(id, rec.Seq, rec.Doc, nil)
		delete(c.records, id)
		gone[id] = true
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
}

func (c *Collection) reset() {
	c.records = make(map[string]indexing.Record)
	c.order = nil
	c.indexes = indexing.NewIndexEngine()
	c.dropped = true
}

func (c *Collection) checkUsable() error {
	if c.dropped {
		return fmt.Errorf("%w: collection %s was dropped", domain.ErrNotFound, c.name)
	}
	return nil
}

// recordsInOrder returns every record in insertion order. Callers hold a lock.
func (c *Collection) recordsInOrder() []indexing.Record {
	out := make([]indexing.Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id])
	}
	return out
}

// candidates fetches the documents a plan must examine. Full scans and
// index scans that do not deliver the sort order are returned in insertion
// order, so every plan yields the same results. Callers hold a lock.
func (c *Collection) candidates(ctx context.Context, plan domain.Plan) ([]domain.Document, int, error) {
	if plan.IsFullScan() {
		docs := make([]domain.Document, 0, len(c.order))
		for _, id := range c.order {
			if err := domain.CheckContext(ctx); err != nil {
				return nil, 0, err
			}
			docs = append(docs, c.records[id].Doc)
		}
		return docs, 0, nil
	}

	ids, keysExamined, err := c.indexes.ScanPlan(plan)
	if err != nil {
		return nil, 0, err
	}
	recs := make([]indexing.Record, 0, len(ids))
	for _, id := range ids {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, 0, err
		}
		if rec, ok := c.records[id]; ok {
			recs = append(recs, rec)
		}
	}
	if !plan.SortCovered {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
	}
	docs := make([]domain.Document, len(recs))
	for i, rec := range recs {
		docs[i] = rec.Doc
	}
	return docs, keysExamined, nil
}
