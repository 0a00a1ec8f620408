package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"go.uber.org/zap"
)

// Backend persists one collection as a snapshot file plus a write-ahead log.
// Every Persist and Remove is appended to the log before it returns;
// Checkpoint folds the log into a new snapshot.
type Backend struct {
	name string
	dir  string

	mu      sync.Mutex
	docs    map[string]domain.Document
	order   []string
	indexes []domain.IndexSpec
	lsn     uint64
	dirty  bool
	log    *wal
	closed bool

	logger *zap.Logger
}

var _ domain.StorageBackend = (*Backend)(nil)
var _ domain.IndexCatalog = (*Backend)(nil)

func snapshotPath(dir, name string) string {
	return filepath.Join(dir, name+SnapshotExtension)
}

func walPath(dir, name string) string {
	return filepath.Join(dir, name+WALExtension)
}

// OpenBackend recovers a collection from dir: the snapshot is read first and
// log entries newer than it are replayed on top.
func OpenBackend(dir, name string, durability Durability, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{
		name:   name,
		dir:    dir,
		docs:   make(map[string]domain.Document),
		logger: logger.With(zap.String("collection", name)),
	}

	start := time.Now()
	if err := b.loadSnapshot(); err != nil {
		return nil, err
	}
	replayed, torn, err := b.replay()
	if err != nil {
		return nil, err
	}

	log, err := openWAL(walPath(dir, name), durability)
	if err != nil {
		return nil, err
	}
	b.log = log
	b.log.entries = replayed
	b.dirty = replayed > 0 || torn
	if torn {
		if _, err := b.checkpointLocked(); err != nil {
			b.log.Close()
			return nil, err
		}
	}

	b.logger.Debug("collection recovered",
		zap.Int("documents", len(b.docs)),
		zap.Int("replayed", replayed),
		zap.Uint64("lsn", b.lsn),
		zap.Duration("elapsed", time.Since(start)))
	return b, nil
}

func (b *Backend) loadSnapshot() error {
	file, err := os.Open(snapshotPath(b.dir, b.name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	snap, err := DecodeSnapshot(file)
	if err != nil {
		return fmt.Errorf("failed to load snapshot for %s: %w", b.name, err)
	}
	for _, raw := range snap.Documents {
		b.put(domain.Document(raw))
	}
	b.indexes = snap.Indexes
	b.lsn = snap.LSN
	return nil
}

func (b *Backend) replay() (int, bool, error) {
	entries, skipped, err := ReadWAL(walPath(b.dir, b.name))
	if err != nil {
		return 0, false, err
	}
	if skipped {
		b.logger.Warn("ignoring torn write-ahead log tail", zap.Int("valid_entries", len(entries)))
	}
	replayed := 0
	for _, entry := range entries {
		if entry.LSN <= b.lsn {
			continue
		}
		switch entry.Op {
		case OpPut:
			b.put(domain.Document(entry.Document))
		case OpRemove:
			b.remove(entry.ID)
		case OpIndexes:
			b.indexes = entry.Indexes
		default:
			return 0, false, fmt.Errorf("unknown WAL operation %q at LSN %d", entry.Op, entry.LSN)
		}
		b.lsn = entry.LSN
		replayed++
	}
	return replayed, skipped, nil
}

func (b *Backend) put(doc domain.Document) {
	id := doc.ID()
	if _, exists := b.docs[id]; !exists {
		b.order = append(b.order, id)
	}
	b.docs[id] = doc
}

func (b *Backend) remove(id string) {
	if _, exists := b.docs[id]; !exists {
		return
	}
	delete(b.docs, id)
	for i, candidate := range b.order {
		if candidate == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Backend) checkOpen() error {
	if b.closed {
		return fmt.Errorf("file backend for %s is closed", b.name)
	}
	return nil
}

// Load returns copies of the recovered documents in first-write order.
func (b *Backend) Load() ([]domain.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(b.order))
	for _, id := range b.order {
		docs = append(docs, b.docs[id].Clone())
	}
	return docs, nil
}

// Persist logs doc and applies it to the in-memory image.
func (b *Backend) Persist(doc domain.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	stored := doc.Clone()
	entry := WALEntry{LSN: b.lsn + 1, Op: OpPut, ID: stored.ID(), Document: stored}
	if err := b.log.Append(entry); err != nil {
		return err
	}
	b.lsn = entry.LSN
	b.put(stored)
	b.dirty = true
	return nil
}

// Remove logs the removal of id. Removing an absent id is a no-op.
func (b *Backend) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	if _, exists := b.docs[id]; !exists {
		return nil
	}
	entry := WALEntry{LSN: b.lsn + 1, Op: OpRemove, ID: id}
	if err := b.log.Append(entry); err != nil {
		return err
	}
	b.lsn = entry.LSN
	b.remove(id)
	b.dirty = true
	return nil
}

// LoadIndexes returns the recovered index definitions in creation order.
func (b *Backend) LoadIndexes() ([]domain.IndexSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return domain.CloneIndexSpecs(b.indexes), nil
}

// SaveIndexes logs a new set of index definitions.
func (b *Backend) SaveIndexes(specs []domain.IndexSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	stored := domain.CloneIndexSpecs(specs)
	entry := WALEntry{LSN: b.lsn + 1, Op: OpIndexes, Indexes: stored}
	if err := b.log.Append(entry); err != nil {
		return err
	}
	b.lsn = entry.LSN
	b.indexes = stored
	b.dirty = true
	return nil
}

// Len returns the number of documents.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

// Checkpoint writes a new snapshot if anything changed since the last one and
// truncates the log. It reports whether a snapshot was written.
func (b *Backend) Checkpoint() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return false, err
	}
	return b.checkpointLocked()
}

func (b *Backend) checkpointLocked() (bool, error) {
	if !b.dirty {
		return false, nil
	}

	snap := &Snapshot{
		Collection: b.name,
		LSN:        b.lsn,
		Documents:  make([]map[string]interface{}, 0, len(b.order)),
		Indexes:    b.indexes,
	}
	for _, id := range b.order {
		snap.Documents = append(snap.Documents, b.docs[id])
	}

	path := snapshotPath(b.dir, b.name)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := EncodeSnapshot(file, snap); err != nil {
		file.Close()
		os.Remove(tmp)
		return false, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return false, fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("failed to close snapshot file: %w", err)
	}
	// Atomic rename
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	// Entries up to snap.LSN are skipped on replay, so a crash before the
	// truncate below loses nothing.
	if err := b.log.Truncate(); err != nil {
		return true, err
	}
	b.dirty = false
	return true, nil
}

// Close checkpoints and releases the log file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	_, cpErr := b.checkpointLocked()
	b.closed = true
	if err := b.log.Close(); err != nil {
		return err
	}
	return cpErr
}

// discard closes the log without checkpointing and deletes both files.
func (b *Backend) discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		if err := b.log.Close(); err != nil {
			return err
		}
	}
	for _, path := range []string{snapshotPath(b.dir, b.name), walPath(b.dir, b.name)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
