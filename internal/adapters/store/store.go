// Package store defines the profile store contract and its adapters.
//
// The store owns durable sparse vectors and similarity indexing; the core
// pipeline only ever reads a profile, stages a replacement, and writes it
// back in bulk. Sparse vectors cross the wire as parallel (index, value)
// pairs of equal length.
package store

import (
	"context"

	"github.com/okian/affinity/internal/domain/model"
)

// Store provides read/write access to user profiles and similarity queries.
type Store interface {
	// Get returns the profile for id. Returns ErrNotFound if the id has
	// no stored vector.
	Get(ctx context.Context, id string) (model.Profile, error)

	// UpsertBulk writes all profiles in one store call and returns the
	// ids written. A failure fails the whole call; callers decide whether
	// to retry the batch.
	UpsertBulk(ctx context.Context, profiles []model.Profile) ([]string, error)

	// QuerySimilar returns up to k neighbors of id, ordered by the
	// store's similarity metric, best first. The reference point itself
	// is not included.
	QuerySimilar(ctx context.Context, id string, k int) ([]model.Neighbor, error)
}
