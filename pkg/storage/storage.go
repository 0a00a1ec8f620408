// Package storage implements the record store: a StorageEngine owning named
// collections, each holding its documents, secondary indexes and a storage
// backend that every mutation is persisted to before it becomes visible.
package storage

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageEngine owns a set of named collections backed by one BackendProvider.
type StorageEngine struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	provider    domain.BackendProvider
	closed      bool

	// Configuration
	logger     *zap.Logger
	metrics    metrics.Recorder
	idGen      func() string
	pagination domain.PaginationOptions
}

// NewStorageEngine creates a new storage engine. Without WithBackendProvider
// collections live in memory only.
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections: make(map[string]*Collection),
		logger:      zap.NewNop(),
		metrics:     metrics.Nop(),
		idGen:       uuid.NewString,
		pagination:  *domain.DefaultPaginationOptions(),
	}

	for _, option := range options {
		option(engine)
	}

	if engine.provider == nil {
		engine.provider = NewMemoryProvider()
	}
	return engine
}

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ValidateCollectionName rejects names that cannot be used as file or key prefixes.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidArgument, name)
	}
	return nil
}

// CreateCollection creates an empty collection. It fails with ErrDuplicateKey
// if the collection is already loaded or known to the backend.
func (se *StorageEngine) CreateCollection(name string) (*Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.checkOpen(); err != nil {
		return nil, err
	}
	if _, exists := se.collections[name]; exists {
		return nil, fmt.Errorf("%w: collection %s already exists", domain.ErrDuplicateKey, name)
	}
	known, err := se.provider.Collections()
	if err != nil {
		return nil, domain.StorageError("list collections", err)
	}
	for _, k := range known {
		if k == name {
			return nil, fmt.Errorf("%w: collection %s already exists", domain.ErrDuplicateKey, name)
		}
	}
	return se.openLocked(name)
}

// Collection returns the named collection, loading it from the backend or
// creating it on first use.
func (se *StorageEngine) Collection(name string) (*Collection, error) {
	se.mu.RLock()
	coll, ok := se.collections[name]
	closed := se.closed
	se.mu.RUnlock()
	if ok {
		return coll, nil
	}
	if closed {
		return nil, se.checkOpen()
	}
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	se.mu.Lock()
	defer se.mu.Unlock()
	if err := se.checkOpen(); err != nil {
		return nil, err
	}
	// Double-check in case another goroutine loaded it
	if coll, ok := se.collections[name]; ok {
		return coll, nil
	}
	return se.openLocked(name)
}

// existing returns a collection only if it is loaded or known to the backend.
func (se *StorageEngine) existing(name string) (*Collection, error) {
	se.mu.RLock()
	coll, ok := se.collections[name]
	se.mu.RUnlock()
	if ok {
		return coll, nil
	}
	for _, k := range se.ListCollections() {
		if k == name {
			return se.Collection(name)
		}
	}
	return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
}

func (se *StorageEngine) openLocked(name string) (*Collection, error) {
	start := time.Now()
	backend, err := se.provider.Backend(name)
	if err != nil {
		return nil, domain.StorageError("open backend", err)
	}
	coll, err := openCollection(name, backend, se.logger, se.metrics, se.idGen)
	if err != nil {
		return nil, err
	}
	se.collections[name] = coll
	se.logger.Info("collection opened",
		zap.String("collection", name),
		zap.Int("documents", coll.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return coll, nil
}

// ListCollections returns the names of loaded and persisted collections, sorted.
func (se *StorageEngine) ListCollections() []string {
	se.mu.RLock()
	seen := make(map[string]bool, len(se.collections))
	for name := range se.collections {
		seen[name] = true
	}
	provider := se.provider
	se.mu.RUnlock()

	persisted, err := provider.Collections()
	if err != nil {
		se.logger.Warn("failed to list persisted collections", zap.Error(err))
	}
	for _, name := range persisted {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dropCollection removes a collection and all of its documents.
func (se *StorageEngine) dropCollection(name string) error {
	coll, err := se.existing(name)
	if err != nil {
		return err
	}

	coll.mu.Lock()
	defer coll.mu.Unlock()

	if dropper, ok := se.provider.(domain.CollectionDropper); ok {
		if err := dropper.Drop(name); err != nil {
			return domain.StorageError("drop collection", err)
		}
	} else {
		for _, id := range coll.order {
			if err := coll.backend.Remove(id); err != nil {
				return domain.StorageError("drop collection", err)
			}
		}
	}

	coll.reset()
	se.mu.Lock()
	delete(se.collections, name)
	se.mu.Unlock()

	se.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

// Close closes every backend. The engine cannot be used afterwards.
func (se *StorageEngine) Close() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	if se.closed {
		return nil
	}
	se.closed = true
	se.collections = make(map[string]*Collection)
	if err := se.provider.Close(); err != nil {
		return domain.StorageError("close", err)
	}
	return nil
}

func (se *StorageEngine) checkOpen() error {
	if se.closed {
		return fmt.Errorf("%w: storage engine is closed", domain.ErrStorageUnavailable)
	}
	return nil
}
