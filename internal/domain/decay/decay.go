// Package decay implements the exponential-moving-average profile updater.
//
// The updater is a pure fold over an ordered event sequence: it performs no
// I/O and takes no locks. Callers serialize per-user application through
// the keylock guard.
package decay

// Default smoothing factor.
const defaultAlpha = 0.5

// WeightedEvent is one profile contribution: a product id plus the weight
// assigned to the originating activity type.
type WeightedEvent struct {
	ProductID int64
	Weight    float64
}

// Updater folds weighted events into sparse profiles using an EMA.
type Updater struct {
	alpha float64
}

// Option applies a configuration option to the Updater.
type Option func(*Updater)

// WithAlpha sets the smoothing factor. Values outside (0,1] are ignored.
func WithAlpha(alpha float64) Option {
	return func(u *Updater) {
		if alpha > 0 && alpha <= 1 {
			u.alpha = alpha
		}
	}
}

// NewUpdater creates an Updater with the default smoothing factor.
func NewUpdater(opts ...Option) *Updater {
	u := &Updater{alpha: defaultAlpha}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Alpha returns the configured smoothing factor.
func (u *Updater) Alpha() float64 {
	return u.alpha
}

// Apply folds events into entries in arrival order and returns the updated
// map. The input map is mutated and returned; a nil map is allocated.
//
// Each step computes new = alpha*weight + (1-alpha)*old where old defaults
// to zero for unseen products. Later events for the same product dominate
// more strongly, matching true EMA semantics. Entries are never removed: a
// zero-weight event decays the value toward zero asymptotically instead of
// deleting the key, deliberately preserving recency information.
func (u *Updater) Apply(entries map[int64]float64, events []WeightedEvent) map[int64]float64 {
	if entries == nil {
		entries = make(map[int64]float64, len(events))
	}
	for _, e := range events {
		old := entries[e.ProductID]
		entries[e.ProductID] = u.alpha*e.Weight + (1-u.alpha)*old
	}
	return entries
}
