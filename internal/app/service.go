// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"

	"github.com/okian/affinity/internal/adapters/mq/envelope"
	"github.com/okian/affinity/internal/adapters/store"
	"github.com/okian/affinity/internal/domain/aggregate"
	"github.com/okian/affinity/internal/domain/decay"
	"github.com/okian/affinity/internal/domain/dedupe"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/weights"
	"github.com/okian/affinity/internal/processor"
	"github.com/okian/affinity/internal/recommend"
	"github.com/okian/affinity/pkg/keylock"
	"github.com/okian/affinity/pkg/logger"
)

// Default service configuration constants.
const (
	defaultAlpha            = 0.5
	defaultLockShards       = 256
	defaultWorkerMultiplier = 4
	defaultDedupeSize       = 100_000
	defaultNeighborCount    = 5
	defaultTopK             = 10
)

// Service wires the profile-update pipeline and the recommendation path.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       store.Store
	processor   *processor.Processor
	recommender *recommend.Recommender
	decoder     *envelope.Decoder
	deduper     dedupe.Deduper

	// Configuration
	alpha         float64
	eventWeights  map[model.ActivityType]float64
	lockShards    int
	batchWorkers  int
	dedupeSize    int
	neighborCount int
	topK          int
	aggregateMode aggregate.Mode

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a profile store. When unset, Start builds an in-memory
// store; production wiring passes the vector-store adapter.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithAlpha sets the EMA smoothing factor.
func WithAlpha(alpha float64) Option {
	return func(s *Service) {
		if alpha > 0 && alpha <= 1 {
			s.alpha = alpha
		}
	}
}

// WithEventWeights overrides the activity weight vocabulary.
func WithEventWeights(w map[string]float64) Option {
	return func(s *Service) {
		if len(w) == 0 {
			return
		}
		s.eventWeights = make(map[model.ActivityType]float64, len(w))
		for activity, weight := range w {
			s.eventWeights[model.ActivityType(activity)] = weight
		}
	}
}

// WithLockShards sizes the per-user lock table.
func WithLockShards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockShards = n
		}
	}
}

// WithBatchWorkers bounds per-batch update concurrency.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// WithDedupeSize bounds the event-id idempotency cache.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithNeighborCount sets how many similar users feed a recommendation.
func WithNeighborCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.neighborCount = n
		}
	}
}

// WithTopK caps recommendation list lengths.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithAggregateMode selects sum or average aggregation.
func WithAggregateMode(mode string) Option {
	return func(s *Service) {
		if m := aggregate.Mode(mode); m.Valid() {
			s.aggregateMode = m
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		alpha:         defaultAlpha,
		lockShards:    defaultLockShards,
		batchWorkers:  runtime.NumCPU() * defaultWorkerMultiplier,
		dedupeSize:    defaultDedupeSize,
		neighborCount: defaultNeighborCount,
		topK:          defaultTopK,
		aggregateMode: aggregate.ModeSum,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting affinity service...")

	if s.store == nil {
		s.store = store.NewInMemoryStore()
		s.logger.Info(ctx, "using in-memory profile store")
	}

	table := weights.NewTable(weights.WithWeights(s.eventWeights))
	updater := decay.NewUpdater(decay.WithAlpha(s.alpha))
	s.deduper = dedupe.NewRingDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.processor = processor.New(s.store, updater, table,
		processor.WithWorkers(s.batchWorkers),
		processor.WithLockRing(keylock.NewRing(keylock.WithShardCount(s.lockShards))),
		processor.WithDeduper(s.deduper),
	)
	s.recommender = recommend.New(s.store,
		recommend.WithNeighborCount(s.neighborCount),
		recommend.WithTopK(s.topK),
		recommend.WithAggregator(aggregate.New(aggregate.WithMode(s.aggregateMode))),
	)
	s.decoder = envelope.NewDecoder()

	s.started = true
	s.logger.Info(ctx, "affinity service started",
		logger.Float64("alpha", s.alpha),
		logger.Int("lockShards", s.lockShards),
		logger.Int("batchWorkers", s.batchWorkers),
		logger.Int("neighborCount", s.neighborCount),
		logger.Int("topK", s.topK),
	)
	return nil
}

// Stop marks the service stopped. Batches in flight finish on their own
// contexts; there is nothing else to tear down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "affinity service stopped")
}

// ProcessBatch applies a decoded event batch to stored profiles.
func (s *Service) ProcessBatch(ctx context.Context, events []model.RawEvent) (processor.Result, error) {
	return s.processor.Process(ctx, events)
}

// ProcessEnvelope decodes a transport envelope and applies the resulting
// events. The dropped count reports records lost during decoding.
func (s *Service) ProcessEnvelope(ctx context.Context, payload []byte) (processor.Result, int, error) {
	batch, err := s.decoder.Decode(ctx, payload)
	if err != nil {
		return processor.Result{}, 0, err
	}
	res, err := s.processor.Process(ctx, batch.Events)
	return res, batch.Dropped, err
}

// Recommend returns a ranked item list for the user.
func (s *Service) Recommend(ctx context.Context, userID string) ([]int64, error) {
	return s.recommender.Recommend(ctx, userID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"alpha":         s.alpha,
		"lockShards":    s.lockShards,
		"batchWorkers":  s.batchWorkers,
		"neighborCount": s.neighborCount,
		"topK":          s.topK,
		"aggregateMode": string(s.aggregateMode),
	}

	if s.deduper != nil {
		stats["dedupeSize"] = s.deduper.Size()
	}
	if counter, ok := s.store.(interface{ Count(context.Context) int }); ok && s.started {
		stats["totalProfiles"] = counter.Count(context.Background())
	}
	return stats
}
