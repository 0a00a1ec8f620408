package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// MemoryBackend keeps persisted documents in process memory, in the order
// they were first written.
type MemoryBackend struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	order   []string
	indexes []domain.IndexSpec
	closed  bool
}

var _ domain.IndexCatalog = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]domain.Document)}
}

// Load returns copies of every document in first-write order.
func (m *MemoryBackend) Load() ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("memory backend is closed")
	}
	docs := make([]domain.Document, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.docs[id].Clone())
	}
	return docs, nil
}

// Persist stores a copy of doc, replacing any document with the same _id.
func (m *MemoryBackend) Persist(doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("memory backend is closed")
	}
	id := doc.ID()
	if _, exists := m.docs[id]; !exists {
		m.order = append(m.order, id)
	}
	m.docs[id] = doc.Clone()
	return nil
}

// Remove deletes the document with id. Removing an absent id is a no-op.
func (m *MemoryBackend) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("memory backend is closed")
	}
	if _, exists := m.docs[id]; !exists {
		return nil
	}
	delete(m.docs, id)
	for i, candidate := range m.order {
		if candidate == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// LoadIndexes returns the saved index definitions.
func (m *MemoryBackend) LoadIndexes() ([]domain.IndexSpec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("memory backend is closed")
	}
	return domain.CloneIndexSpecs(m.indexes), nil
}

// SaveIndexes replaces the saved index definitions.
func (m *MemoryBackend) SaveIndexes(specs []domain.IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("memory backend is closed")
	}
	m.indexes = domain.CloneIndexSpecs(specs)
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemoryBackend) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryProvider hands out one MemoryBackend per collection.
type MemoryProvider struct {
	mu       sync.Mutex
	backends map[string]*MemoryBackend
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{backends: make(map[string]*MemoryBackend)}
}

func (p *MemoryProvider) Backend(collection string) (domain.StorageBackend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[collection]
	if !ok || b.isClosed() {
		b = NewMemoryBackend()
		p.backends[collection] = b
	}
	return b, nil
}

func (p *MemoryProvider) Collections() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.backends))
	for name := range p.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Drop discards a collection's documents.
func (p *MemoryProvider) Drop(collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.backends[collection]; ok {
		_ = b.Close()
		delete(p.backends, collection)
	}
	return nil
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.backends {
		_ = b.Close()
	}
	return nil
}
