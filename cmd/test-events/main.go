package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/affinity/internal/testevents"
	"github.com/okian/affinity/pkg/logger"
)

// defaultRunTimeout bounds the whole test run.
const defaultRunTimeout = 10 * time.Minute

func main() {
	cfg := testevents.NewConfig()
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	flag.StringVar(&cfg.AuthToken, "token", "", "Bearer token when auth is enabled")
	flag.IntVar(&cfg.Users, "users", cfg.Users, "Number of distinct synthetic users")
	flag.IntVar(&cfg.Products, "products", cfg.Products, "Number of distinct product ids")
	flag.IntVar(&cfg.NumEvents, "events", cfg.NumEvents, "Total events to generate and submit")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Events per POST /events call")
	flag.IntVar(&cfg.Sample, "sample", cfg.Sample, "Users to fetch recommendations for")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	stats, err := testevents.Run(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("test run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if stats.FailedBatches > 0 {
		os.Exit(1)
	}
}
