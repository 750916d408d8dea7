// Package processor drives the incremental profile-update pipeline: filter,
// group by user, fetch-update-stage under per-user locks, one bulk write.
package processor

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/okian/affinity/internal/adapters/store"
	"github.com/okian/affinity/internal/domain/decay"
	"github.com/okian/affinity/internal/domain/dedupe"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/weights"
	"github.com/okian/affinity/pkg/keylock"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// defaultWorkerMultiplier scales per-batch update concurrency off the CPU
// count.
const defaultWorkerMultiplier = 4

// Result summarizes one processed batch.
type Result struct {
	Accepted   int      // events that passed validation and the weight table
	Rejected   int      // events discarded before grouping
	Duplicates int      // redelivered events skipped by the deduper
	Upserted   []string // user ids written by the bulk upsert
	Failed     []string // user ids whose fetch or update failed
}

// Processor applies batches of raw events to stored profiles.
type Processor struct {
	store   store.Store
	updater *decay.Updater
	table   *weights.Table
	locks   *keylock.Ring
	deduper dedupe.Deduper
	workers int
	logger  logger.Logger
}

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithWorkers bounds how many per-user updates run concurrently within one
// batch. Non-positive values are ignored.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDeduper enables at-most-once handling of redelivered event ids.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Processor) {
		if d != nil {
			p.deduper = d
		}
	}
}

// WithLockRing replaces the per-user lock table.
func WithLockRing(r *keylock.Ring) Option {
	return func(p *Processor) {
		if r != nil {
			p.locks = r
		}
	}
}

// New creates a Processor over the given store, updater, and weight table.
func New(st store.Store, updater *decay.Updater, table *weights.Table, opts ...Option) *Processor {
	p := &Processor{
		store:   st,
		updater: updater,
		table:   table,
		locks:   keylock.NewRing(),
		workers: runtime.NumCPU() * defaultWorkerMultiplier,
		logger:  logger.Get().Named("processor"),
	}

	for _, opt := range opts {
		opt(p)
	}

	metrics.UpdateBatchWorkers(p.workers)
	metrics.UpdateLockShards(p.locks.ShardCount())
	return p
}

// userGroup holds one user's surviving events in arrival order.
type userGroup struct {
	userID   string
	events   []decay.WeightedEvent
	eventIDs []string
}

// Process applies one batch. Per-user failures are isolated and reported in
// Result.Failed; a bulk-upsert failure fails the whole batch and returns an
// error so the ingestion layer can redeliver. A batch with no valid events
// is a no-op: no store I/O at all.
func (p *Processor) Process(ctx context.Context, events []model.RawEvent) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBatchLatency(float64(time.Since(start).Milliseconds()))
	}()
	metrics.RecordBatchEvents(len(events))

	groups, res := p.filterAndGroup(ctx, events)
	if len(groups) == 0 {
		return res, nil
	}

	staged := p.stage(ctx, groups, &res)

	if err := ctx.Err(); err != nil {
		// Cancelled batches never reach the store; discard staged state
		// and release the event ids for redelivery.
		p.unrecordAll(ctx, groups)
		return res, fmt.Errorf("batch cancelled: %w", err)
	}
	if len(staged) == 0 {
		return res, nil
	}

	ids, err := p.store.UpsertBulk(ctx, staged)
	if err != nil {
		metrics.RecordBatchFailure()
		metrics.RecordStoreError("upsert_bulk")
		p.unrecordAll(ctx, groups)
		return res, fmt.Errorf("bulk upsert of %d profiles: %w", len(staged), err)
	}
	res.Upserted = ids
	metrics.RecordProfilesUpserted(len(ids))

	p.logger.Info(ctx, "batch processed",
		logger.Int("accepted", res.Accepted),
		logger.Int("rejected", res.Rejected),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("upserted", len(res.Upserted)),
		logger.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// filterAndGroup validates events against the weight table and groups the
// survivors by user, preserving arrival order within each group.
func (p *Processor) filterAndGroup(ctx context.Context, events []model.RawEvent) ([]*userGroup, Result) {
	var res Result
	byUser := make(map[string]*userGroup)
	var order []*userGroup

	for _, e := range events {
		if !e.Valid() {
			res.Rejected++
			metrics.RecordEventRejected()
			continue
		}
		weight, ok := p.table.Lookup(e.ActivityType)
		if !ok {
			res.Rejected++
			metrics.RecordEventRejected()
			p.logger.Debug(ctx, "unrecognized activity type",
				logger.String("activityType", string(e.ActivityType)),
				logger.String("userID", e.UserID),
			)
			continue
		}
		if p.deduper != nil && p.deduper.SeenAndRecord(ctx, e.EventID) {
			res.Duplicates++
			metrics.RecordEventDuplicate()
			continue
		}

		res.Accepted++
		metrics.RecordEventAccepted()

		g, exists := byUser[e.UserID]
		if !exists {
			g = &userGroup{userID: e.UserID}
			byUser[e.UserID] = g
			order = append(order, g)
		}
		g.events = append(g.events, decay.WeightedEvent{ProductID: e.ProductID, Weight: weight})
		g.eventIDs = append(g.eventIDs, e.EventID)
	}
	return order, res
}

// stage runs the fetch-update-stage step for every group, fanning out
// across at most p.workers goroutines. Each user's read-modify-stage runs
// under that user's lock shard, so concurrent batches touching the same
// user serialize instead of interleaving.
func (p *Processor) stage(ctx context.Context, groups []*userGroup, res *Result) []model.Profile {
	type outcome struct {
		profile model.Profile
		err     error
	}
	outcomes := make([]outcome, len(groups))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, g *userGroup) {
			defer wg.Done()
			defer func() { <-sem }()
			profile, err := p.stageUser(ctx, g)
			outcomes[i] = outcome{profile: profile, err: err}
		}(i, g)
	}
	wg.Wait()

	staged := make([]model.Profile, 0, len(groups))
	for i, g := range groups {
		if outcomes[i].err != nil {
			res.Failed = append(res.Failed, g.userID)
			metrics.RecordUserUpdateFailure()
			p.unrecordGroup(ctx, g)
			p.logger.Error(ctx, "user update failed, omitting from bulk write",
				logger.String("userID", g.userID),
				logger.Error(outcomes[i].err),
			)
			continue
		}
		staged = append(staged, outcomes[i].profile)
	}
	sort.Strings(res.Failed)
	return staged
}

// stageUser fetches the current profile and folds the user's events into it
// under the user's lock shard. An unknown user starts from an empty map.
func (p *Processor) stageUser(ctx context.Context, g *userGroup) (model.Profile, error) {
	var staged model.Profile
	var stageErr error

	p.locks.Do(g.userID, func() {
		current, err := p.store.Get(ctx, g.userID)
		switch {
		case err == nil:
		case store.IsNotFound(err):
			current = model.Profile{ID: g.userID}
		default:
			metrics.RecordStoreError("get")
			stageErr = fmt.Errorf("fetch profile: %w", err)
			return
		}

		current.Entries = p.updater.Apply(current.Entries, g.events)
		current.UpdatedAt = time.Now().UTC()
		staged = current
	})
	return staged, stageErr
}

// unrecordGroup releases a group's event ids so a redelivery can retry them.
func (p *Processor) unrecordGroup(ctx context.Context, g *userGroup) {
	if p.deduper == nil {
		return
	}
	for _, id := range g.eventIDs {
		p.deduper.Unrecord(ctx, id)
	}
}

func (p *Processor) unrecordAll(ctx context.Context, groups []*userGroup) {
	for _, g := range groups {
		p.unrecordGroup(ctx, g)
	}
}
