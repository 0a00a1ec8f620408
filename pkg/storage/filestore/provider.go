// Package filestore is a durable storage backend keeping one snapshot file
// and one write-ahead log per collection under a data directory.
//
// Snapshots are MessagePack documents compressed as an LZ4 block behind a
// small DOCQ header. Log entries are JSON lines carrying a CRC-32 checksum.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"go.uber.org/zap"
)

// Option configures a Provider.
type Option func(*Provider)

// WithDurability sets how log appends reach disk.
func WithDurability(d Durability) Option {
	return func(p *Provider) {
		p.durability = d
	}
}

// WithCheckpointInterval starts a background worker checkpointing every
// collection at the given interval. Zero disables it.
func WithCheckpointInterval(interval time.Duration) Option {
	return func(p *Provider) {
		p.interval = interval
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// Provider hands out file backends rooted at one directory.
type Provider struct {
	dir        string
	durability Durability
	interval   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	backends map[string]*Backend
	closed   bool

	stopChan     chan struct{}
	backgroundWg sync.WaitGroup
}

var _ domain.BackendProvider = (*Provider)(nil)
var _ domain.CollectionDropper = (*Provider)(nil)

// New creates the data directory if needed and starts the checkpoint worker.
func New(dir string, options ...Option) (*Provider, error) {
	p := &Provider{
		dir:        dir,
		durability: DurabilityOS,
		logger:     zap.NewNop(),
		backends:   make(map[string]*Backend),
		stopChan:   make(chan struct{}),
	}
	for _, option := range options {
		option(p)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	p.startBackgroundWorker()
	return p, nil
}

func (p *Provider) Backend(collection string) (domain.StorageBackend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("file provider is closed")
	}
	if b, ok := p.backends[collection]; ok {
		return b, nil
	}
	b, err := OpenBackend(p.dir, collection, p.durability, p.logger)
	if err != nil {
		return nil, err
	}
	p.backends[collection] = b
	return b, nil
}

// Collections lists every collection with a snapshot or log on disk.
func (p *Provider) Collections() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, ext := range []string{SnapshotExtension, WALExtension} {
			if strings.HasSuffix(name, ext) {
				seen[strings.TrimSuffix(name, ext)] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Drop deletes a collection's files.
func (p *Provider) Drop(collection string) error {
	p.mu.Lock()
	b, ok := p.backends[collection]
	delete(p.backends, collection)
	p.mu.Unlock()

	if ok {
		return b.discard()
	}
	for _, path := range []string{snapshotPath(p.dir, collection), walPath(p.dir, collection)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// CheckpointAll checkpoints every open backend and returns how many wrote
// a new snapshot.
func (p *Provider) CheckpointAll() (int, error) {
	p.mu.Lock()
	backends := make([]*Backend, 0, len(p.backends))
	for _, b := range p.backends {
		backends = append(backends, b)
	}
	p.mu.Unlock()

	written := 0
	var firstErr error
	for _, b := range backends {
		ok, err := b.Checkpoint()
		if err != nil {
			p.logger.Error("checkpoint failed", zap.String("collection", b.name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			written++
		}
	}
	return written, firstErr
}

func (p *Provider) startBackgroundWorker() {
	if p.interval <= 0 {
		return
	}

	p.backgroundWg.Add(1)
	go func() {
		defer p.backgroundWg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				start := time.Now()
				if n, _ := p.CheckpointAll(); n > 0 {
					p.logger.Info("checkpoint completed",
						zap.Int("collections", n),
						zap.Duration("elapsed", time.Since(start)))
				}
			case <-p.stopChan:
				return
			}
		}
	}()
}

// Close stops the checkpoint worker and closes every backend, which
// checkpoints it one last time.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopChan)
	backends := p.backends
	p.backends = make(map[string]*Backend)
	p.mu.Unlock()

	p.backgroundWg.Wait()

	var firstErr error
	for name, b := range backends {
		if err := b.Close(); err != nil {
			p.logger.Error("failed to close collection", zap.String("collection", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
