package domain

import (
	"context"
	"time"
)

// StorageBackend is the persistence layer beneath one collection's record store.
// Load is called once when the collection is opened; Persist and Remove are
// called synchronously inside every mutation.
type StorageBackend interface {
	Load() ([]Document, error)
	Persist(doc Document) error
	Remove(id string) error
	Close() error
}

// IndexCatalog is implemented by backends that persist a collection's index
// definitions. SaveIndexes replaces the stored list, which is kept in
// creation order.
type IndexCatalog interface {
	LoadIndexes() ([]IndexSpec, error)
	SaveIndexes(specs []IndexSpec) error
}

// BackendProvider hands out a StorageBackend per collection name.
type BackendProvider interface {
	Backend(collection string) (StorageBackend, error)
	Collections() ([]string, error)
	Close() error
}

// ExecutionStats reports what a query actually did.
type ExecutionStats struct {
	Plan          Plan          `json:"plan"`
	KeysExamined  int           `json:"keys_examined"`
	DocsExamined  int           `json:"docs_examined"`
	Returned      int           `json:"returned"`
	ExecutionTime time.Duration `json:"execution_time_ns"`
}

// DatabaseEngine is the collection-addressed surface served over HTTP and the CLI.
type DatabaseEngine interface {
	Insert(ctx context.Context, collName string, doc Document) (string, error)
	InsertMany(ctx context.Context, collName string, docs []Document) ([]string, error)
	GetById(ctx context.Context, collName, id string) (Document, error)
	UpdateById(ctx context.Context, collName, id string, patch Document) (Document, error)
	ReplaceById(ctx context.Context, collName, id string, doc Document) (Document, error)
	DeleteById(ctx context.Context, collName, id string) error
	UpdateWhere(ctx context.Context, collName string, filter FilterExpr, patch Document) (int, error)
	DeleteWhere(ctx context.Context, collName string, filter FilterExpr) (int, error)
	Find(ctx context.Context, collName string, q Query) ([]Document, error)
	FindPage(ctx context.Context, collName string, q Query, opts *PaginationOptions) (*PaginationResult, error)
	Aggregate(ctx context.Context, collName string, stages []Stage) ([]Document, error)
	CreateIndex(ctx context.Context, collName string, spec IndexSpec) (IndexHandle, error)
	DropIndex(ctx context.Context, collName, name string) error
	GetIndexes(ctx context.Context, collName string) ([]IndexInfo, error)
	FindByIndex(ctx context.Context, collName, indexName string, values ...interface{}) ([]Document, error)
	ExplainPlan(ctx context.Context, collName string, q Query) (Plan, error)
	Explain(ctx context.Context, collName string, q Query) (*ExecutionStats, error)
	ListCollections() []string
	DropCollection(ctx context.Context, collName string) error
}

// CollectionDropper is implemented by providers that can delete a
// collection's persisted data in one step. Drop also closes the backend.
type CollectionDropper interface {
	Drop(collection string) error
}
