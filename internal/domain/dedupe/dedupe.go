// Package dedupe defines the interface for idempotency tracking.
//
// The ingestion transport redelivers messages at-least-once; tracking seen
// event ids keeps replayed activity from being folded into a profile twice.
package dedupe

import (
	"context"
	"sync"
)

// Default bound on remembered event ids.
const defaultMaxSize = 100_000

// Deduper records seen event IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	// Used when an event was recorded but its batch failed to commit.
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of remembered ids.
	Size() int64
}

// ringDeduper implements Deduper with a map for membership and a ring of
// insertion order for FIFO eviction once maxSize is reached. maxSize <= 0
// disables eviction.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	head    int
	maxSize int
}

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of remembered ids. Oldest ids are evicted
// first. maxSize <= 0 keeps every id for the process lifetime.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}

// NewRingDeduper creates a bounded in-memory deduper.
func NewRingDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		if len(d.order) < d.maxSize {
			d.order = append(d.order, id)
		} else {
			// Ring is full: evict the oldest slot and reuse it.
			evicted := d.order[d.head]
			if evicted != "" {
				delete(d.seen, evicted)
			}
			d.order[d.head] = id
			d.head = (d.head + 1) % d.maxSize
		}
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	// The ring slot keeps the stale id; eviction skips ids no longer in
	// the map, so correctness is unaffected.
	for i := range d.order {
		if d.order[i] == id {
			d.order[i] = ""
			break
		}
	}
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
