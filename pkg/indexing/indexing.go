package indexing

import (
	"fmt"
	"sort"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Record is a stored document together with its key and insertion sequence.
type Record struct {
	ID  string
	Seq uint64
	Doc domain.Document
}

// IndexEngine holds the secondary indexes of one collection.
// It is not safe for concurrent use; the owning collection serializes access.
type IndexEngine struct {
	indexes []*Index // creation order
	byName  map[string]*Index
}

// NewIndexEngine creates a new index engine
func NewIndexEngine() *IndexEngine {
	return &IndexEngine{
		byName: make(map[string]*Index),
	}
}

type entry struct {
	key []interface{}
	seq uint64
	id  string
}

// Index stores document keys ordered by an ordered tuple of field values.
type Index struct {
	handle  domain.IndexHandle
	entries []entry
}

// NewIndex creates an empty index for spec.
func NewIndex(spec domain.IndexSpec) *Index {
	s := make(domain.IndexSpec, len(spec))
	copy(s, spec)
	return &Index{handle: domain.IndexHandle{Name: s.Name(), Spec: s}}
}

// Handle returns the index's identity.
func (idx *Index) Handle() domain.IndexHandle {
	return idx.handle
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

func (idx *Index) keyFor(doc domain.Document) []interface{} {
	key := make([]interface{}, len(idx.handle.Spec))
	for i, f := range idx.handle.Spec {
		key[i] = domain.LookupValue(doc, f.Field)
	}
	return key
}

// compareKeys orders key tuples with each field's direction applied.
func (idx *Index) compareKeys(a, b []interface{}, n int) int {
	for i := 0; i < n; i++ {
		c := domain.CompareValues(a[i], b[i])
		if c != 0 {
			return c * int(idx.handle.Spec[i].Direction)
		}
	}
	return 0
}

func (idx *Index) compareEntry(e entry, key []interface{}, seq uint64) int {
	if c := idx.compareKeys(e.key, key, len(key)); c != 0 {
		return c
	}
	switch {
	case e.seq < seq:
		return -1
	case e.seq > seq:
		return 1
	}
	return 0
}

// BuildIndex indexes all records.
func (idx *Index) BuildIndex(records []Record) {
	idx.entries = make([]entry, 0, len(records))
	for _, r := range records {
		idx.entries = append(idx.entries, entry{key: idx.keyFor(r.Doc), seq: r.Seq, id: r.ID})
	}
	sort.SliceStable(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		return idx.compareEntry(a, b.key, b.seq) < 0
	})
}

func (idx *Index) insert(id string, seq uint64, doc domain.Document) {
	key := idx.keyFor(doc)
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compareEntry(idx.entries[i], key, seq) >= 0
	})
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = entry{key: key, seq: seq, id: id}
}

func (idx *Index) remove(id string, seq uint64, doc domain.Document) bool {
	key := idx.keyFor(doc)
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compareEntry(idx.entries[i], key, seq) >= 0
	})
	if pos < len(idx.entries) && idx.entries[pos].id == id {
		idx.entries = append(idx.entries[:pos], idx.entries[pos+1:]...)
		return true
	}
	// Fall back to a linear search if the stored key no longer matches doc.
	for i, e := range idx.entries {
		if e.id == id {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateIndex updates index after an insert/update/delete operation.
// oldDoc is nil for inserts and newDoc is nil for deletes.
func (idx *Index) UpdateIndex(id string, seq uint64, oldDoc, newDoc domain.Document) {
	if oldDoc != nil && newDoc != nil {
		oldKey, newKey := idx.keyFor(oldDoc), idx.keyFor(newDoc)
		if idx.compareKeys(oldKey, newKey, len(oldKey)) == 0 && sameKinds(oldKey, newKey) {
			return
		}
	}
	if oldDoc != nil {
		idx.remove(id, seq, oldDoc)
	}
	if newDoc != nil {
		idx.insert(id, seq, newDoc)
	}
}

// sameKinds guards against 1 and 1.0-style keys that compare equal but
// should still be re-stored with the new value.
func sameKinds(a, b []interface{}) bool {
	for i := range a {
		if domain.KindOf(a[i]) != domain.KindOf(b[i]) {
			return false
		}
	}
	return true
}

// Scan returns document ids in index order for an equality prefix and an
// optional range on the following field, plus the number of keys examined.
func (idx *Index) Scan(eq []interface{}, rng *domain.KeyRange) ([]string, int) {
	n := len(eq)
	lo := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compareKeys(idx.entries[i].key, eq, n) >= 0
	})
	hi := lo + sort.Search(len(idx.entries)-lo, func(i int) bool {
		return idx.compareKeys(idx.entries[lo+i].key, eq, n) > 0
	})

	if rng != nil && n < len(idx.handle.Spec) {
		dir := int(idx.handle.Spec[n].Direction)
		block := idx.entries[lo:hi]
		start := sort.Search(len(block), func(i int) bool {
			return rangePosition(block[i].key[n], rng)*dir >= 0
		})
		end := sort.Search(len(block), func(i int) bool {
			return rangePosition(block[i].key[n], rng)*dir > 0
		})
		if end < start {
			end = start
		}
		lo, hi = lo+start, lo+end
	}

	ids := make([]string, 0, hi-lo)
	for _, e := range idx.entries[lo:hi] {
		ids = append(ids, e.id)
	}
	return ids, hi - lo
}

// rangePosition places v before (-1), inside (0) or after (1) the range in
// ascending value order. Only values of the bound's kind can be inside.
func rangePosition(v interface{}, rng *domain.KeyRange) int {
	var kind domain.Kind
	switch {
	case rng.Low != nil:
		kind = domain.KindOf(rng.Low.Value)
	case rng.High != nil:
		kind = domain.KindOf(rng.High.Value)
	default:
		return 0
	}
	kv := domain.KindOf(v)
	if kv < kind {
		return -1
	}
	if kv > kind {
		return 1
	}
	if rng.Low != nil {
		c := domain.CompareValues(v, rng.Low.Value)
		if c < 0 || (c == 0 && !rng.Low.Inclusive) {
			return -1
		}
	}
	if rng.High != nil {
		if domain.KindOf(rng.High.Value) != kind {
			return 1
		}
		c := domain.CompareValues(v, rng.High.Value)
		if c > 0 || (c == 0 && !rng.High.Inclusive) {
			return 1
		}
	}
	return 0
}

// CreateIndex creates an index and builds it from records. Creating an index
// whose field sequence already exists returns the existing handle and false.
func (ie *IndexEngine) CreateIndex(spec domain.IndexSpec, records []Record) (domain.IndexHandle, bool, error) {
	if err := spec.Validate(); err != nil {
		return domain.IndexHandle{}, false, err
	}
	for _, existing := range ie.indexes {
		if existing.handle.Spec.Equal(spec) {
			return existing.handle, false, nil
		}
	}
	index := NewIndex(spec)
	index.handle.Name = ie.uniqueName(index.handle.Name)
	index.BuildIndex(records)
	ie.indexes = append(ie.indexes, index)
	ie.byName[index.handle.Name] = index
	return index.handle, true, nil
}

// uniqueName suffixes name when a different spec already derived it, as
// ["a_1_b"] and ["a", "b"] both do.
func (ie *IndexEngine) uniqueName(name string) string {
	if _, taken := ie.byName[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if _, taken := ie.byName[candidate]; !taken {
			return candidate
		}
	}
}

// DropIndex removes an index from the collection
func (ie *IndexEngine) DropIndex(name string) error {
	index, exists := ie.byName[name]
	if !exists {
		return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	delete(ie.byName, name)
	for i, candidate := range ie.indexes {
		if candidate == index {
			ie.indexes = append(ie.indexes[:i], ie.indexes[i+1:]...)
			break
		}
	}
	return nil
}

// GetIndex returns the index with the given name.
func (ie *IndexEngine) GetIndex(name string) (*Index, bool) {
	index, ok := ie.byName[name]
	return index, ok
}

// GetIndexes describes all indexes in creation order.
func (ie *IndexEngine) GetIndexes() []domain.IndexInfo {
	infos := make([]domain.IndexInfo, 0, len(ie.indexes))
	for _, index := range ie.indexes {
		infos = append(infos, domain.IndexInfo{IndexHandle: index.handle, Entries: index.Len()})
	}
	return infos
}

// Specs returns the specs of all indexes in creation order.
func (ie *IndexEngine) Specs() []domain.IndexSpec {
	specs := make([]domain.IndexSpec, 0, len(ie.indexes))
	for _, index := range ie.indexes {
		specs = append(specs, index.handle.Spec)
	}
	return specs
}

// UpdateIndexForDocument updates every index when a document changes.
func (ie *IndexEngine) UpdateIndexForDocument(id string, seq uint64, oldDoc, newDoc domain.Document) {
	for _, index := range ie.indexes {
		index.UpdateIndex(id, seq, oldDoc, newDoc)
	}
}

// ScanPlan executes the index part of an IndexScan plan.
func (ie *IndexEngine) ScanPlan(plan domain.Plan) ([]string, int, error) {
	if plan.Kind != domain.IndexScan || plan.Index == nil {
		return nil, 0, fmt.Errorf("%w: plan %s is not an index scan", domain.ErrInvalidArgument, plan)
	}
	index, ok := ie.byName[plan.Index.Name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: index %s", domain.ErrNotFound, plan.Index.Name)
	}
	ids, examined := index.Scan(plan.Equality, plan.Range)
	return ids, examined, nil
}
