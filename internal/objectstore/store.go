// Package objectstore implements the process-wide typed object collection
// (C2): an ordered-by-type index plus an id index, guarded by a single
// reader-writer lock per §5.
package objectstore

import "sync"

// idEntry is one by_id index entry: the object and the type it was
// stored under.
type idEntry struct {
	typeName string
	object   map[string]any
}

// Store is the process-wide object store. The zero value is not usable;
// construct with New.
type Store struct {
	mu     sync.RWMutex
	byType map[string][]map[string]any
	byID   map[string]idEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byType: make(map[string][]map[string]any),
		byID:   make(map[string]idEntry),
	}
}

// Put appends object to the type's insertion-ordered list, and indexes it
// by id when the object carries a string "id" field. Last writer wins on
// id collision within by_id; the collision is not itself an error.
func (s *Store) Put(typeName string, object map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byType[typeName] = append(s.byType[typeName], object)

	if id, ok := object["id"].(string); ok && id != "" {
		s.byID[id] = idEntry{typeName: typeName, object: object}
	}
}

// lookupByID returns the by_id entry for id. Callers must already hold
// s.mu for reading.
func (s *Store) lookupByID(id string) (idEntry, bool) {
	entry, ok := s.byID[id]
	return entry, ok
}

// LookupByID resolves an id across every type, ignoring type grouping
// entirely. GetByID consults the same index via lookupByID before
// falling back to a linear scan of by_type[typeName].
func (s *Store) LookupByID(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.lookupByID(id)
	if !ok {
		return nil, false
	}
	return entry.object, true
}

// GetAll returns every object stored under typeName, in insertion order.
// The returned slice is a copy; mutating it does not affect the store.
func (s *Store) GetAll(typeName string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.byType[typeName]
	out := make([]map[string]any, len(items))
	copy(out, items)
	return out
}

// Snapshot returns a copy of every type's object list, taken under a
// single read lock so the script bridge (C6) observes one consistent
// view of the store for the lifetime of one script invocation (§5).
func (s *Store) Snapshot() map[string][]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]map[string]any, len(s.byType))
	for typeName, items := range s.byType {
		cp := make([]map[string]any, len(items))
		copy(cp, items)
		out[typeName] = cp
	}
	return out
}

// GetFieldAcross returns the value at the dotted field path from every
// object of typeName, in insertion order (§4.2 get_field_across).
// Objects missing any segment of the path contribute JSON null.
func (s *Store) GetFieldAcross(typeName string, path ...string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.byType[typeName]
	out := make([]any, len(items))
	for i, obj := range items {
		val, _ := walkFieldPath(obj, path)
		out[i] = val
	}
	return out
}

// GetByID returns the object of typeName with the given id, or (nil,
// false) if no such object exists. by_id does not constrain by type, so
// a hit there is only accepted once its own typeName matches; otherwise
// this falls back to a linear scan of by_type[typeName] directly (§4.2).
// The scan runs backward so that the most recently stored match wins,
// per the invariant that {objects.T[id]} returns the latest write.
func (s *Store) GetByID(typeName, id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.lookupByID(id); ok && entry.typeName == typeName {
		return entry.object, true
	}

	items := s.byType[typeName]
	for i := len(items) - 1; i >= 0; i-- {
		if idVal, ok := items[i]["id"].(string); ok && idVal == id {
			return items[i], true
		}
	}

	return nil, false
}

// GetFieldOf returns the value at the dotted field path of the object of
// typeName with the given id (§4.2 get_field_of). Not-found is returned
// if either the id or any segment of the path is missing.
func (s *Store) GetFieldOf(typeName, id string, path ...string) (any, bool) {
	obj, ok := s.GetByID(typeName, id)
	if !ok {
		return nil, false
	}
	return walkFieldPath(obj, path)
}

// walkFieldPath walks a dotted field path into a stored object, reporting
// not-found as soon as a segment is missing or the current value is not
// itself an object.
func walkFieldPath(obj map[string]any, path []string) (any, bool) {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[key]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Clear empties both indices atomically.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byType = make(map[string][]map[string]any)
	s.byID = make(map[string]idEntry)
}
