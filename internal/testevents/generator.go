package testevents

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Activity mix for generated traffic. Views dominate, orders are rare,
// roughly mirroring a storefront feed.
var activityMix = []struct {
	activity string
	weight   int
}{
	{"VIEW", 60},
	{"ADD_TO_CART", 15},
	{"UPDATE_CART_QUANTITY", 10},
	{"REMOVE_FROM_CART", 5},
	{"ORDER", 10},
}

// Event mirrors the /events request schema.
type Event struct {
	EventID      string `json:"event_id"`
	UserID       string `json:"user_id"`
	ProductID    int64  `json:"product_id"`
	ActivityType string `json:"activity_type"`
	CreatedAt    string `json:"created_at"`
}

// generateEvents builds the synthetic event stream. Users get uuid ids so
// repeated runs against one instance do not collide; product ids are drawn
// from a Zipf-ish skew so some items are popular enough to recommend.
func generateEvents(cfg *Config, rng *rand.Rand) ([]Event, []string) {
	userIDs := make([]string, cfg.Users)
	for i := range userIDs {
		userIDs[i] = "test-" + uuid.New().String()
	}

	zipf := rand.NewZipf(rng, 1.2, 1.0, uint64(cfg.Products-1))

	events := make([]Event, cfg.NumEvents)
	now := time.Now().UTC()
	for i := range events {
		events[i] = Event{
			EventID:      uuid.New().String(),
			UserID:       userIDs[rng.Intn(len(userIDs))],
			ProductID:    int64(zipf.Uint64()) + 1,
			ActivityType: pickActivity(rng),
			CreatedAt:    now.Add(time.Duration(i) * time.Millisecond).Format(time.RFC3339),
		}
	}
	return events, userIDs
}

// pickActivity samples the activity mix.
func pickActivity(rng *rand.Rand) string {
	total := 0
	for _, m := range activityMix {
		total += m.weight
	}
	n := rng.Intn(total)
	for _, m := range activityMix {
		if n < m.weight {
			return m.activity
		}
		n -= m.weight
	}
	return activityMix[0].activity
}
