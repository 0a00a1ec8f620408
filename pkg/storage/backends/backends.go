// Package backends builds a BackendProvider from a backend name.
package backends

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/storage"
	"github.com/adfharrison1/go-docquery/pkg/storage/badgerstore"
	"github.com/adfharrison1/go-docquery/pkg/storage/filestore"
	"github.com/adfharrison1/go-docquery/pkg/storage/sqlitestore"
	"go.uber.org/zap"
)

const (
	Memory = "memory"
	File   = "file"
	Badger = "badger"
	SQLite = "sqlite"
)

// Options carries the settings the durable backends understand.
type Options struct {
	Durability         string
	CheckpointInterval time.Duration
	Logger             *zap.Logger
}

// New creates a provider for the named backend.
//
// Supported backends:
//
//	"memory" - in-process only (default)
//	"file"   - snapshot + write-ahead log files in dataDir
//	"badger" - BadgerDB in dataDir/badger
//	"sqlite" - SQLite database at dataDir/docquery.db
func New(backend, dataDir string, opts Options) (domain.BackendProvider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	durability, err := filestore.ParseDurability(opts.Durability)
	if err != nil {
		return nil, err
	}

	switch backend {
	case Memory, "":
		return storage.NewMemoryProvider(), nil
	case File:
		return filestore.New(dataDir,
			filestore.WithDurability(durability),
			filestore.WithCheckpointInterval(opts.CheckpointInterval),
			filestore.WithLogger(logger))
	case Badger:
		return badgerstore.Open(filepath.Join(dataDir, "badger"), badgerstore.Options{
			SyncWrites: durability == filestore.DurabilityFull,
			Logger:     logger,
		})
	case SQLite:
		return sqlitestore.Open(filepath.Join(dataDir, sqlitestore.FileName))
	default:
		return nil, fmt.Errorf("unknown storage backend: %q (supported: memory, file, badger, sqlite)", backend)
	}
}
