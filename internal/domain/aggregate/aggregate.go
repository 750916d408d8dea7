// Package aggregate combines neighbor profiles into ranked item
// recommendations.
package aggregate

import (
	"sort"

	"github.com/okian/affinity/internal/domain/model"
)

// Mode selects how contributions from multiple neighbors are combined.
type Mode string

// Supported aggregation modes.
const (
	ModeSum     Mode = "sum"
	ModeAverage Mode = "average"
)

// Valid reports whether m is a supported aggregation mode.
func (m Mode) Valid() bool {
	return m == ModeSum || m == ModeAverage
}

// Aggregator turns a set of neighbor profiles into a ranked item list. It
// is a pure component: no I/O, safe for concurrent use.
type Aggregator struct {
	mode Mode
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMode sets the aggregation mode. Invalid modes are ignored.
func WithMode(mode Mode) Option {
	return func(a *Aggregator) {
		if mode.Valid() {
			a.mode = mode
		}
	}
}

// New creates an Aggregator. The default mode is sum.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{mode: ModeSum}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Mode returns the configured aggregation mode.
func (a *Aggregator) Mode() Mode {
	return a.mode
}

// Aggregate scores every item contributed by the neighbors, drops items in
// exclude, and returns up to topK item ids ordered by score descending with
// ascending-id tie-breaking for determinism.
//
// Only non-zero neighbor entries contribute; under average mode the divisor
// is the number of contributing neighbors, not the total neighbor count.
func (a *Aggregator) Aggregate(neighbors []model.Neighbor, exclude map[int64]struct{}, topK int) []int64 {
	if topK <= 0 || len(neighbors) == 0 {
		return nil
	}

	contributions := make(map[int64][]float64)
	for _, n := range neighbors {
		for item, w := range n.Entries {
			if w == 0 {
				continue
			}
			contributions[item] = append(contributions[item], w)
		}
	}

	type scored struct {
		item  int64
		score float64
	}
	ranked := make([]scored, 0, len(contributions))
	for item, vals := range contributions {
		if _, skip := exclude[item]; skip {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		score := sum
		if a.mode == ModeAverage {
			score = sum / float64(len(vals))
		}
		ranked = append(ranked, scored{item: item, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].item < ranked[j].item
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	items := make([]int64, len(ranked))
	for i, s := range ranked {
		items[i] = s.item
	}
	return items
}
