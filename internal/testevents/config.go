// Package testevents generates synthetic user-activity traffic and drives
// it against a running instance, then samples recommendations to verify the
// pipeline end to end.
package testevents

import "time"

// Default tool configuration constants.
const (
	defaultUsers     = 100
	defaultProducts  = 500
	defaultEvents    = 10_000
	defaultBatchSize = 100
	defaultTimeout   = 30 * time.Second
)

// Config controls a test run.
type Config struct {
	BaseURL   string        // service base URL
	AuthToken string        // optional bearer token
	Users     int           // distinct synthetic users
	Products  int           // distinct product ids
	NumEvents int           // total events to generate
	BatchSize int           // events per POST /events call
	Sample    int           // users to fetch recommendations for
	Timeout   time.Duration // per-request timeout
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:9090",
		Users:     defaultUsers,
		Products:  defaultProducts,
		NumEvents: defaultEvents,
		BatchSize: defaultBatchSize,
		Sample:    10,
		Timeout:   defaultTimeout,
	}
}

// Stats accumulates the outcome of a run.
type Stats struct {
	Submitted       int
	Accepted        int
	Rejected        int
	Duplicates      int
	FailedBatches   int
	Recommendations int
	EmptyResults    int
}
