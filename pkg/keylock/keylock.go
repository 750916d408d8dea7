// Package keylock provides per-key mutual exclusion over a fixed-size
// sharded lock table.
//
// Two calls for the same key never overlap; calls for different keys only
// contend when their hashes land on the same shard. The table is sized at
// construction and never grows, which bounds memory regardless of key
// cardinality, at the cost of rare false contention between unrelated keys
// sharing a shard.
package keylock

import (
	"hash/fnv"
	"sync"
)

// defaultShardCount balances contention against memory for typical
// active-user populations.
const defaultShardCount = 256

// Ring is a fixed-size table of mutexes indexed by hash(key) mod N.
type Ring struct {
	shards []sync.Mutex
}

// Option applies a configuration option to the Ring.
type Option func(*Ring)

// WithShardCount sets the number of lock shards. Non-positive values are
// ignored.
func WithShardCount(n int) Option {
	return func(r *Ring) {
		if n > 0 {
			r.shards = make([]sync.Mutex, n)
		}
	}
}

// NewRing creates a lock ring with the default shard count.
func NewRing(opts ...Option) *Ring {
	r := &Ring{
		shards: make([]sync.Mutex, defaultShardCount),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ShardCount returns the number of shards in the ring.
func (r *Ring) ShardCount() int {
	return len(r.shards)
}

// Do runs fn while holding the shard for key. It never deadlocks as long
// as fn does not call back into Do: each invocation holds at most one
// shard.
func (r *Ring) Do(key string, fn func()) {
	shard := &r.shards[r.index(key)]
	shard.Lock()
	defer shard.Unlock()
	fn()
}

// index maps a key onto a shard slot using FNV-1a.
func (r *Ring) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(r.shards))
}
