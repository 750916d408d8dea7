// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Default configuration constants.
const (
	defaultAlpha            = 0.5
	defaultLockShards       = 256
	defaultWorkerMultiplier = 4
	defaultDedupeSize       = 100_000
	defaultNeighborCount    = 5
	defaultTopK             = 10
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// EMAAlpha is the smoothing factor for profile updates, in (0,1].
	EMAAlpha float64 `koanf:"ema_alpha"`

	// EventWeights overrides the activity-to-weight vocabulary.
	EventWeights map[string]float64 `koanf:"event_weights"`

	// LockShards sizes the per-user lock table.
	LockShards int `koanf:"lock_shards"`

	// BatchWorkers bounds per-batch update concurrency.
	BatchWorkers int `koanf:"batch_workers"`

	// DedupeSize bounds the event-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// NeighborCount is how many similar users feed a recommendation.
	NeighborCount int `koanf:"neighbor_count"`

	// TopK caps the length of returned recommendation lists.
	TopK int `koanf:"top_k"`

	// AggregateMode selects how neighbor scores combine: sum or average.
	AggregateMode string `koanf:"aggregate_mode"`

	// StoreURL points at the vector store, e.g. http://localhost:6333.
	// Empty selects the in-memory store (local runs and tests).
	StoreURL string `koanf:"store_url"`

	// StoreAPIKey authenticates against the vector store, if required.
	StoreAPIKey string `koanf:"store_api_key"`

	// StoreCollection names the profile collection.
	StoreCollection string `koanf:"store_collection"`

	// StoreSparseName names the sparse vector inside the collection.
	StoreSparseName string `koanf:"store_sparse_name"`

	// AuthEnabled toggles bearer-token validation on inbound requests.
	AuthEnabled bool `koanf:"auth_enabled"`

	// JWTSecret is the HMAC secret for token validation.
	JWTSecret string `koanf:"jwt_secret"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9090",
		EMAAlpha:        defaultAlpha,
		LockShards:      defaultLockShards,
		BatchWorkers:    runtime.NumCPU() * defaultWorkerMultiplier,
		DedupeSize:      defaultDedupeSize,
		NeighborCount:   defaultNeighborCount,
		TopK:            defaultTopK,
		AggregateMode:   "sum",
		StoreCollection: "user_profiles",
		StoreSparseName: "sparse",
	}
}
