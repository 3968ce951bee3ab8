package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/locator"
)

// MemStore is an in-memory implementation of Storer for testing.
type MemStore struct {
	mu          sync.RWMutex
	annotations map[string]*annotation.Annotation
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		annotations: make(map[string]*annotation.Annotation),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Annotation CRUD
// =============================================================================

func (s *MemStore) CreateAnnotation(a *annotation.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.annotations[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, a.ID)
	}
	s.annotations[a.ID] = clone(a)
	return nil
}

func (s *MemStore) GetAnnotation(id string) (*annotation.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.annotations[id]; ok {
		return clone(a), nil
	}
	return nil, nil
}

func (s *MemStore) UpdateAnnotation(id string, p annotation.Patch) (*annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annotations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated, err := p.Apply(*a)
	if err != nil {
		return nil, err
	}
	s.annotations[id] = clone(&updated)
	return clone(&updated), nil
}

func (s *MemStore) DeleteAnnotation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.annotations, id)
	return nil
}

// =============================================================================
// Queries
// =============================================================================

func (s *MemStore) ListBySource(sourceID string) ([]*annotation.Annotation, error) {
	return s.filter(func(a *annotation.Annotation) bool { return a.SourceID == sourceID }), nil
}

func (s *MemStore) ListAll() ([]*annotation.Annotation, error) {
	return s.filter(func(*annotation.Annotation) bool { return true }), nil
}

func (s *MemStore) ListByCard(cardID string) ([]*annotation.Annotation, error) {
	return s.filter(func(a *annotation.Annotation) bool { return cardID != "" && a.CardID == cardID }), nil
}

func (s *MemStore) ListForPage(sourceID string, page int) ([]*annotation.Annotation, error) {
	return s.filter(func(a *annotation.Annotation) bool {
		return a.SourceID == sourceID && a.Locator.Type == locator.TypePageRect &&
			a.Locator.PageNumber() == page
	}), nil
}

func (s *MemStore) DeleteBySource(sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, a := range s.annotations {
		if a.SourceID == sourceID {
			delete(s.annotations, id)
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CountAnnotations() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.annotations), nil
}

// filter returns copies of the matching annotations, newest first.
func (s *MemStore) filter(keep func(*annotation.Annotation) bool) []*annotation.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*annotation.Annotation
	for _, a := range s.annotations {
		if keep(a) {
			result = append(result, clone(a))
		}
	}
	sortNewestFirst(result)
	return result
}

// sortNewestFirst orders by created_at descending, ties broken by id
// descending, matching the SQLite ORDER BY.
func sortNewestFirst(list []*annotation.Annotation) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID > list[j].ID
	})
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
