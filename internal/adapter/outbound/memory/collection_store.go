package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

// CollectionStore implements directory.CollectionStore with in-memory maps.
// Thread-safe for concurrent access via sync.RWMutex.
// Returns deep copies to prevent external mutation of stored data.
type CollectionStore struct {
	collections map[string]map[string]*directory.Record
	mu          sync.RWMutex
}

// NewCollectionStore creates a new in-memory collection store.
func NewCollectionStore() *CollectionStore {
	return &CollectionStore{
		collections: make(map[string]map[string]*directory.Record),
	}
}

// List returns the records of a collection ordered by creation time.
func (s *CollectionStore) List(ctx context.Context, collection string) ([]directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	result := make([]directory.Record, 0, len(records))
	for _, r := range records {
		result = append(result, *copyRecord(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Get returns a single record as a deep copy.
// Returns ErrRecordNotFound if the record does not exist.
func (s *CollectionStore) Get(ctx context.Context, collection, id string) (*directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.collections[collection][id]
	if !ok {
		return nil, directory.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

// Add stores a new record. Stores a deep copy to prevent external mutation.
func (s *CollectionStore) Add(ctx context.Context, collection string, r *directory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string]*directory.Record)
		s.collections[collection] = records
	}
	records[r.ID] = copyRecord(r)
	return nil
}

// Update replaces an existing record with a deep copy.
// Returns ErrRecordNotFound if the record does not exist.
func (s *CollectionStore) Update(ctx context.Context, collection string, r *directory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][r.ID]
	if !ok {
		return directory.ErrRecordNotFound
	}
	updated := copyRecord(r)
	updated.CreatedAt = existing.CreatedAt
	s.collections[collection][r.ID] = updated
	return nil
}

// Delete removes a record by ID.
// Returns ErrRecordNotFound if the record does not exist.
func (s *CollectionStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return directory.ErrRecordNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func copyRecord(r *directory.Record) *directory.Record {
	c := &directory.Record{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}
	return c
}

// Compile-time interface verification.
var _ directory.CollectionStore = (*CollectionStore)(nil)
