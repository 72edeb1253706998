package annotations

import (
	"sort"
	"sync"
)

// Store maps controller identities to their annotation records. Each
// application owns one.
type Store struct {
	mu      sync.RWMutex
	records map[ID]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[ID]*Record)}
}

// Put replaces the record for id.
func (s *Store) Put(id ID, rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
}

// Get returns a copy of the record for id.
func (s *Store) Get(id ID) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Define mutates the record for id in place, creating it if needed.
func (s *Store) Define(id ID, fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		rec = NewRecord()
		s.records[id] = rec
	}
	fn(rec)
}

// Declare builds a fresh record for id through a Declaration and replaces
// whatever was stored before.
func (s *Store) Declare(id ID, fn func(*Declaration)) {
	d := newDeclaration()
	fn(d)
	s.Put(id, d.rec)
}

// Annotate stores the declarations of a self-describing controller and
// returns its identity.
func (s *Store) Annotate(ctrl Annotator) ID {
	id := IDOf(ctrl)
	s.Declare(id, ctrl.Annotate)
	return id
}

// Delete forgets id.
func (s *Store) Delete(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// IDs returns every stored identity, sorted.
func (s *Store) IDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
