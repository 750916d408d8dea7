package testevents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/pkg/logger"
)

// Run generates events, submits them in batches, and samples
// recommendations for a subset of the generated users.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("testevents")
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic traffic for reproducible runs

	events, userIDs := generateEvents(cfg, rng)
	log.Info(ctx, "generated events",
		logger.Int("events", len(events)),
		logger.Int("users", len(userIDs)),
	)

	client := &http.Client{Timeout: cfg.Timeout}
	stats := &Stats{}

	for start := 0; start < len(events); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(events) {
			end = len(events)
		}
		if err := submitBatch(ctx, client, cfg, events[start:end], stats); err != nil {
			stats.FailedBatches++
			log.Error(ctx, "batch submission failed", logger.Error(err))
		}
	}

	sample := cfg.Sample
	if sample > len(userIDs) {
		sample = len(userIDs)
	}
	for _, userID := range userIDs[:sample] {
		items, err := fetchRecommendations(ctx, client, cfg, userID)
		if err != nil {
			log.Warn(ctx, "recommendation fetch failed",
				logger.String("userID", userID),
				logger.Error(err),
			)
			continue
		}
		stats.Recommendations++
		if len(items) == 0 {
			stats.EmptyResults++
		}
	}

	log.Info(ctx, "run complete",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failedBatches", stats.FailedBatches),
		logger.Int("recommendations", stats.Recommendations),
		logger.Int("emptyResults", stats.EmptyResults),
	)
	return stats, nil
}

// submitBatch posts one batch to /events and folds the response counts
// into stats.
func submitBatch(ctx context.Context, client *http.Client, cfg *Config, batch []Event, stats *Stats) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post events: %w", err)
	}
	defer resp.Body.Close()

	stats.Submitted += len(batch)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post events: status %d", resp.StatusCode)
	}

	var out struct {
		Accepted   int `json:"accepted"`
		Rejected   int `json:"rejected"`
		Duplicates int `json:"duplicates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	stats.Accepted += out.Accepted
	stats.Rejected += out.Rejected
	stats.Duplicates += out.Duplicates
	return nil
}

// fetchRecommendations retrieves the ranked list for one user.
func fetchRecommendations(ctx context.Context, client *http.Client, cfg *Config, userID string) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/recommendations/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get recommendations: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Recommended []int64 `json:"recommended"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Recommended, nil
}
