// Package recommend orchestrates the read-only recommendation path:
// neighbor query, self-profile fetch, aggregation.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/affinity/internal/adapters/store"
	"github.com/okian/affinity/internal/domain/aggregate"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// Default query sizes.
const (
	defaultNeighborCount = 5
	defaultTopK          = 10
)

// Recommender produces ranked item lists for users. It never mutates
// stored state and may run fully concurrently with batch processing.
type Recommender struct {
	store         store.Store
	aggregator    *aggregate.Aggregator
	neighborCount int
	topK          int
	logger        logger.Logger
}

// Option applies a configuration option to the Recommender.
type Option func(*Recommender)

// WithNeighborCount sets how many similar users feed each recommendation.
func WithNeighborCount(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.neighborCount = n
		}
	}
}

// WithTopK caps the length of returned item lists.
func WithTopK(k int) Option {
	return func(r *Recommender) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithAggregator replaces the aggregation strategy.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(r *Recommender) {
		if a != nil {
			r.aggregator = a
		}
	}
}

// New creates a Recommender over the given store.
func New(st store.Store, opts ...Option) *Recommender {
	r := &Recommender{
		store:         st,
		aggregator:    aggregate.New(),
		neighborCount: defaultNeighborCount,
		topK:          defaultTopK,
		logger:        logger.Get().Named("recommend"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Recommend returns up to topK item ids for the user, best first. Items
// the user has already interacted with are excluded. Returns a
// store.ErrNotFound-wrapping error for users with no stored profile; the
// similarity query is skipped in that case.
func (r *Recommender) Recommend(ctx context.Context, userID string) ([]int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRecommendationLatency(float64(time.Since(start).Milliseconds()))
	}()

	// The self profile doubles as the existence check and the exclusion
	// set; fetching it first keeps unknown users from costing a
	// similarity query.
	self, err := r.store.Get(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			metrics.RecordRecommendationMiss()
			return nil, fmt.Errorf("user %s: %w", userID, err)
		}
		metrics.RecordStoreError("get")
		return nil, fmt.Errorf("fetch profile for %s: %w", userID, err)
	}

	neighbors, err := r.store.QuerySimilar(ctx, userID, r.neighborCount)
	if err != nil {
		metrics.RecordStoreError("query_similar")
		return nil, fmt.Errorf("similar users for %s: %w", userID, err)
	}

	exclude := make(map[int64]struct{}, len(self.Entries))
	for item := range self.Entries {
		exclude[item] = struct{}{}
	}

	items := r.aggregator.Aggregate(neighbors, exclude, r.topK)
	metrics.RecordRecommendationServed()
	metrics.RecordRecommendationListSize(len(items))

	r.logger.Debug(ctx, "recommendation generated",
		logger.String("userID", userID),
		logger.Int("neighbors", len(neighbors)),
		logger.Int("items", len(items)),
	)
	return items, nil
}
