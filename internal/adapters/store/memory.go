package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

// InMemoryStore implements Store backed by a map, with sparse dot-product
// similarity. It stands in for the vector database in tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]model.Profile),
	}
}

// Get returns a copy of the stored profile for id.
func (s *InMemoryStore) Get(_ context.Context, id string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// UpsertBulk stores copies of all profiles atomically under one lock.
func (s *InMemoryStore) UpsertBulk(_ context.Context, profiles []model.Profile) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		stored := p.Clone()
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = time.Now().UTC()
		}
		s.profiles[p.ID] = stored
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// QuerySimilar ranks all other profiles by sparse dot product against the
// reference profile, best first. Zero-overlap profiles are skipped.
func (s *InMemoryStore) QuerySimilar(_ context.Context, id string, k int) ([]model.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", id, ErrNotFound)
	}

	type hit struct {
		id    string
		score float64
	}
	hits := make([]hit, 0, len(s.profiles))
	for otherID, other := range s.profiles {
		if otherID == id {
			continue
		}
		score := dot(ref.Entries, other.Entries)
		if score == 0 {
			continue
		}
		hits = append(hits, hit{id: otherID, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	neighbors := make([]model.Neighbor, len(hits))
	for i, h := range hits {
		p := s.profiles[h.id].Clone()
		neighbors[i] = model.Neighbor{
			ID:      h.id,
			Entries: p.Entries,
			Payload: map[string]any{"user_id": h.id, "score": h.score},
		}
	}
	return neighbors, nil
}

// Count returns the number of stored profiles.
func (s *InMemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// dot computes the sparse dot product by iterating the smaller map.
func dot(a, b map[int64]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for idx, av := range a {
		if bv, ok := b[idx]; ok {
			sum += av * bv
		}
	}
	return sum
}
