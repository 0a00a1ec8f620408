package storage

import (
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/metrics"
	"go.uber.org/zap"
)

type StorageOption func(*StorageEngine)

// WithBackendProvider persists every collection through p.
func WithBackendProvider(p domain.BackendProvider) StorageOption {
	return func(engine *StorageEngine) {
		engine.provider = p
	}
}

func WithLogger(l *zap.Logger) StorageOption {
	return func(engine *StorageEngine) {
		if l != nil {
			engine.logger = l
		}
	}
}

// WithMetrics records operation counts, latencies and plan choices into r.
func WithMetrics(r metrics.Recorder) StorageOption {
	return func(engine *StorageEngine) {
		if r != nil {
			engine.metrics = r
		}
	}
}

// WithIDGenerator replaces the UUID generator used for documents without an _id.
func WithIDGenerator(gen func() string) StorageOption {
	return func(engine *StorageEngine) {
		if gen != nil {
			engine.idGen = gen
		}
	}
}

// WithPagination sets the default and maximum page sizes for FindPage.
func WithPagination(defaultPageSize, maxPageSize int) StorageOption {
	return func(engine *StorageEngine) {
		if defaultPageSize > 0 {
			engine.pagination.PageSize = defaultPageSize
		}
		if maxPageSize > 0 {
			engine.pagination.MaxPageSize = maxPageSize
		}
	}
}
