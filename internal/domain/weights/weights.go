// Package weights defines the static activity-to-weight vocabulary used to
// turn raw events into profile contributions.
package weights

import "github.com/okian/affinity/internal/domain/model"

// Default event weights. An activity type missing from the table makes the
// event invalid; it is never defaulted to zero. REMOVE_FROM_CART carries an
// explicit zero weight so the EMA drives the entry toward zero while
// keeping its recency information.
const (
	defaultViewWeight       = 1
	defaultAddToCartWeight  = 2
	defaultUpdateQtyWeight  = 1
	defaultRemoveCartWeight = 0
	defaultOrderWeight      = 5
)

// Table maps recognized activity types to non-negative weights.
type Table struct {
	weights map[model.ActivityType]float64
}

// Option applies a configuration option to the Table.
type Option func(*Table)

// WithWeights replaces the recognized vocabulary with the given mapping.
// Negative weights are dropped; the table must stay non-negative so profile
// entries remain in the reachable EMA range.
func WithWeights(weights map[model.ActivityType]float64) Option {
	return func(t *Table) {
		if len(weights) == 0 {
			return
		}
		t.weights = make(map[model.ActivityType]float64, len(weights))
		for activity, w := range weights {
			if w >= 0 {
				t.weights[activity] = w
			}
		}
	}
}

// NewTable creates a weight table with the default vocabulary.
func NewTable(opts ...Option) *Table {
	t := &Table{
		weights: map[model.ActivityType]float64{
			model.ActivityView:               defaultViewWeight,
			model.ActivityAddToCart:          defaultAddToCartWeight,
			model.ActivityUpdateCartQuantity: defaultUpdateQtyWeight,
			model.ActivityRemoveFromCart:     defaultRemoveCartWeight,
			model.ActivityOrder:              defaultOrderWeight,
		},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Lookup returns the weight for an activity type and whether the type is
// part of the recognized vocabulary.
func (t *Table) Lookup(activity model.ActivityType) (float64, bool) {
	w, ok := t.weights[activity]
	return w, ok
}

// Max returns the largest weight in the table. Profile entries can never
// exceed it under repeated EMA application.
func (t *Table) Max() float64 {
	var max float64
	for _, w := range t.weights {
		if w > max {
			max = w
		}
	}
	return max
}

// Len returns the number of recognized activity types.
func (t *Table) Len() int {
	return len(t.weights)
}
