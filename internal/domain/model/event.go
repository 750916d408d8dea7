// Package model contains domain models passed between layers.
package model

import "time"

// ActivityType enumerates the recognized user-activity kinds.
type ActivityType string

// Recognized activity types. The weight table in the weights package is
// total over this set; anything else is rejected before grouping.
const (
	ActivityView               ActivityType = "VIEW"
	ActivityAddToCart          ActivityType = "ADD_TO_CART"
	ActivityUpdateCartQuantity ActivityType = "UPDATE_CART_QUANTITY"
	ActivityRemoveFromCart     ActivityType = "REMOVE_FROM_CART"
	ActivityOrder              ActivityType = "ORDER"
)

// RawEvent represents one user-activity record after envelope decoding.
type RawEvent struct {
	EventID      string       // unique id for idempotency
	UserID       string       // subject identifier
	ProductID    int64        // item the activity refers to
	ActivityType ActivityType // one of the Activity* constants
	CreatedAt    time.Time    // event timestamp
}

// Valid reports whether the event carries the fields the pipeline needs.
// Weight-table membership is checked separately by the processor.
func (e RawEvent) Valid() bool {
	return e.UserID != "" && e.ProductID != 0 && e.ActivityType != ""
}

// Profile is one user's sparse interaction vector: product id -> weight.
// Absent keys are implicit zeros. Entries are only mutated through the
// decay updater while the user's lock shard is held.
type Profile struct {
	ID        string
	Entries   map[int64]float64
	UpdatedAt time.Time
}

// Clone returns a deep copy so staged updates never alias store state.
func (p Profile) Clone() Profile {
	entries := make(map[int64]float64, len(p.Entries))
	for id, w := range p.Entries {
		entries[id] = w
	}
	return Profile{ID: p.ID, Entries: entries, UpdatedAt: p.UpdatedAt}
}

// Neighbor is one similarity-query hit: another user's profile plus the
// opaque payload stored alongside it. Neighbors arrive ranked by the
// store's own similarity metric and are never re-ranked here.
type Neighbor struct {
	ID      string
	Entries map[int64]float64
	Payload map[string]any
}
