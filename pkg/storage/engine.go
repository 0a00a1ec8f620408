package storage

import (
	"context"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

var _ domain.DatabaseEngine = (*StorageEngine)(nil)

// Insert inserts a document, creating the collection on first use.
func (se *StorageEngine) Insert(ctx context.Context, collName string, doc domain.Document) (string, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return "", err
	}
	return coll.Insert(ctx, doc)
}

// InsertMany inserts all documents or none, creating the collection on first use.
func (se *StorageEngine) InsertMany(ctx context.Context, collName string, docs []domain.Document) ([]string, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.InsertMany(ctx, docs)
}

// GetById retrieves a specific document by its ID
func (se *StorageEngine) GetById(ctx context.Context, collName, id string) (domain.Document, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.Get(id)
}

// UpdateById applies a patch to a specific document by its ID
func (se *StorageEngine) UpdateById(ctx context.Context, collName, id string, patch domain.Document) (domain.Document, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.UpdateByID(ctx, id, patch)
}

// ReplaceById replaces a specific document by its ID
func (se *StorageEngine) ReplaceById(ctx context.Context, collName, id string, doc domain.Document) (domain.Document, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.ReplaceByID(ctx, id, doc)
}

// DeleteById removes a specific document by its ID
func (se *StorageEngine) DeleteById(ctx context.Context, collName, id string) error {
	coll, err := se.existing(collName)
	if err != nil {
		return err
	}
	return coll.DeleteByID(ctx, id)
}

// UpdateWhere applies a patch to every matching document.
func (se *StorageEngine) UpdateWhere(ctx context.Context, collName string, filter domain.FilterExpr, patch domain.Document) (int, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return 0, err
	}
	return coll.UpdateWhere(ctx, filter, patch)
}

// DeleteWhere removes every matching document.
func (se *StorageEngine) DeleteWhere(ctx context.Context, collName string, filter domain.FilterExpr) (int, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return 0, err
	}
	return coll.DeleteWhere(ctx, filter)
}

// Find returns every document matching q.
func (se *StorageEngine) Find(ctx context.Context, collName string, q domain.Query) ([]domain.Document, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.FindAll(ctx, q)
}

// FindPage returns one page of documents matching q. Zero page fields take
// the engine defaults.
func (se *StorageEngine) FindPage(ctx context.Context, collName string, q domain.Query, opts *domain.PaginationOptions) (*domain.PaginationResult, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	resolved := se.pagination
	if opts != nil {
		if opts.Page != 0 {
			resolved.Page = opts.Page
		}
		if opts.PageSize != 0 {
			resolved.PageSize = opts.PageSize
		}
	}
	return coll.FindPage(ctx, q, &resolved)
}

// Aggregate runs a pipeline over a collection.
func (se *StorageEngine) Aggregate(ctx context.Context, collName string, stages []domain.Stage) ([]domain.Document, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.Aggregate(ctx, stages)
}

// CreateIndex creates an index, creating the collection on first use.
func (se *StorageEngine) CreateIndex(ctx context.Context, collName string, spec domain.IndexSpec) (domain.IndexHandle, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return domain.IndexHandle{}, err
	}
	return coll.CreateIndex(ctx, spec)
}

// FindByIndex returns the documents whose leading index fields equal values.
func (se *StorageEngine) FindByIndex(ctx context.Context, collName, indexName string, values ...interface{}) ([]domain.Document, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.FindByIndex(ctx, indexName, values...)
}

// DropIndex removes an index from a collection
func (se *StorageEngine) DropIndex(ctx context.Context, collName, name string) error {
	if err := domain.CheckContext(ctx); err != nil {
		return err
	}
	coll, err := se.existing(collName)
	if err != nil {
		return err
	}
	return coll.DropIndex(name)
}

// GetIndexes describes every index of a collection.
func (se *StorageEngine) GetIndexes(ctx context.Context, collName string) ([]domain.IndexInfo, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.GetIndexes(), nil
}

// ExplainPlan reports the plan q would use.
func (se *StorageEngine) ExplainPlan(ctx context.Context, collName string, q domain.Query) (domain.Plan, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return domain.Plan{}, err
	}
	coll, err := se.existing(collName)
	if err != nil {
		return domain.Plan{}, err
	}
	return coll.ExplainPlan(q)
}

// Explain runs q and reports execution statistics.
func (se *StorageEngine) Explain(ctx context.Context, collName string, q domain.Query) (*domain.ExecutionStats, error) {
	coll, err := se.existing(collName)
	if err != nil {
		return nil, err
	}
	return coll.Explain(ctx, q)
}

// DropCollection removes a collection and its persisted documents.
func (se *StorageEngine) DropCollection(ctx context.Context, collName string) error {
	if err := domain.CheckContext(ctx); err != nil {
		return err
	}
	return se.dropCollection(collName)
}
