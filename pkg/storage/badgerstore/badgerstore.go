// Package badgerstore persists collections in one BadgerDB key-value store.
//
// Keys are laid out as
//
//	coll:{collection}          collection marker
//	doc:{collection}:{id}      MessagePack record {seq, doc}
//	idx:{collection}           MessagePack list of index specs
//
// The sequence number keeps first-write order across restarts.
package badgerstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	collPrefix  = "coll:"
	docPrefix   = "doc:"
	indexPrefix = "idx:"
)

func collKey(collection string) []byte {
	return []byte(collPrefix + collection)
}

func indexKey(collection string) []byte {
	return []byte(indexPrefix + collection)
}

func docKeyPrefix(collection string) []byte {
	return []byte(docPrefix + collection + ":")
}

func docKey(collection, id string) []byte {
	return []byte(docPrefix + collection + ":" + id)
}

type record struct {
	Seq uint64                 `msgpack:"seq"`
	Doc map[string]interface{} `msgpack:"doc"`
}

// Options configures the underlying database.
type Options struct {
	// InMemory keeps everything in memory; Dir is ignored.
	InMemory bool
	// SyncWrites fsyncs every write transaction.
	SyncWrites bool
	Logger     *zap.Logger
}

// Provider hands out one Backend per collection over a shared database.
type Provider struct {
	db     *badger.DB
	logger *zap.Logger

	mu       sync.Mutex
	backends map[string]*Backend
}

var _ domain.BackendProvider = (*Provider)(nil)
var _ domain.CollectionDropper = (*Provider)(nil)
var _ domain.IndexCatalog = (*Backend)(nil)

// Open opens or creates the database in dir.
func Open(dir string, o Options) (*Provider, error) {
	opts := badger.DefaultOptions(dir)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.NumVersionsToKeep = 1
	opts.SyncWrites = o.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{db: db, logger: logger, backends: make(map[string]*Backend)}, nil
}

func (p *Provider) Backend(collection string) (domain.StorageBackend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.backends[collection]; ok && !b.isClosed() {
		return b, nil
	}

	b := &Backend{db: p.db, collection: collection, seqs: make(map[string]uint64)}
	if err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collKey(collection), nil)
	}); err != nil {
		return nil, fmt.Errorf("failed to register collection %s: %w", collection, err)
	}
	p.backends[collection] = b
	return b, nil
}

// Collections lists every registered collection.
func (p *Provider) Collections() ([]string, error) {
	var names []string
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(collPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), collPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Drop deletes a collection's documents and marker.
func (p *Provider) Drop(collection string) error {
	p.mu.Lock()
	if b, ok := p.backends[collection]; ok {
		b.Close()
		delete(p.backends, collection)
	}
	p.mu.Unlock()

	if err := p.db.DropPrefix(docKeyPrefix(collection)); err != nil {
		return fmt.Errorf("failed to drop documents of %s: %w", collection, err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(indexKey(collection)); err != nil {
			return err
		}
		return txn.Delete(collKey(collection))
	})
}

// Close closes the database.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.backends {
		b.Close()
	}
	p.backends = make(map[string]*Backend)
	if p.db.IsClosed() {
		return nil
	}
	return p.db.Close()
}

// Backend stores one collection's documents.
type Backend struct {
	db         *badger.DB
	collection string

	mu      sync.Mutex
	seqs    map[string]uint64
	nextSeq uint64
	closed  bool
}

func (b *Backend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) checkOpen() error {
	if b.closed {
		return fmt.Errorf("badger backend for %s is closed", b.collection)
	}
	return nil
}

// Load reads every document of the collection in first-write order.
func (b *Backend) Load() ([]domain.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var records []record
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := docKeyPrefix(b.collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec record
				if err := msgpack.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("failed to decode %s: %w", item.Key(), err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	docs := make([]domain.Document, len(records))
	for i, rec := range records {
		doc := domain.Document(rec.Doc)
		docs[i] = doc
		b.seqs[doc.ID()] = rec.Seq
		if rec.Seq > b.nextSeq {
			b.nextSeq = rec.Seq
		}
	}
	return docs, nil
}

// Persist writes doc, keeping the sequence number of an earlier version.
func (b *Backend) Persist(doc domain.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}

	id := doc.ID()
	seq, exists := b.seqs[id]
	if !exists {
		seq = b.nextSeq + 1
	}
	data, err := msgpack.Marshal(record{Seq: seq, Doc: doc})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(b.collection, id), data)
	}); err != nil {
		return err
	}
	if !exists {
		b.seqs[id] = seq
		b.nextSeq = seq
	}
	return nil
}

// Remove deletes the document with id. Removing an absent id is a no-op.
func (b *Backend) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(b.collection, id))
	}); err != nil {
		return err
	}
	delete(b.seqs, id)
	return nil
}

// LoadIndexes reads the collection's index definitions.
func (b *Backend) LoadIndexes() ([]domain.IndexSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var specs []domain.IndexSpec
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(b.collection))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &specs)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load indexes of %s: %w", b.collection, err)
	}
	return specs, nil
}

// SaveIndexes replaces the collection's index definitions.
func (b *Backend) SaveIndexes(specs []domain.IndexSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(specs)
	if err != nil {
		return fmt.Errorf("failed to encode indexes of %s: %w", b.collection, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(indexKey(b.collection), data)
	})
}

// Close detaches the backend. The shared database stays open until the
// provider closes.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
