// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/processor"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ProcessBatch applies a flat event batch to stored profiles.
	ProcessBatch(ctx context.Context, events []model.RawEvent) (processor.Result, error)

	// ProcessEnvelope decodes a transport envelope and applies it.
	ProcessEnvelope(ctx context.Context, payload []byte) (processor.Result, int, error)

	// Recommend returns a ranked item list for a user.
	Recommend(ctx context.Context, userID string) ([]int64, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	eventsHandler *EventsHandler
	recosHandler  *RecommendationsHandler
	authenticator *Authenticator
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithAuthenticator enables bearer-token validation on business routes.
func WithAuthenticator(a *Authenticator) ServerOption {
	return func(s *Server) {
		s.authenticator = a
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		eventsHandler: NewEventsHandler(deps),
		recosHandler:  NewRecommendationsHandler(deps),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", s.protect(MetricsMiddleware(s.eventsHandler.HandlePostEvents, "events")))
	mux.HandleFunc("/recommendations/", s.protect(MetricsMiddleware(s.recosHandler.HandleGetRecommendations, "recommendations")))
}

// protect wraps a handler with token validation when configured.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	if s.authenticator == nil {
		return next
	}
	return s.authenticator.Middleware(next)
}

// eventRequest mirrors the public schema for one activity record.
type eventRequest struct {
	EventID      string          `json:"event_id"`
	UserID       string          `json:"user_id"`
	ProductID    json.RawMessage `json:"product_id"`
	ActivityType string          `json:"activity_type"`
	CreatedAt    string          `json:"created_at"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return NewKind("api.event", ErrBadRequest)
	case len(e.ProductID) == 0:
		return NewKind("api.event", ErrBadRequest)
	case strings.TrimSpace(e.ActivityType) == "":
		return NewKind("api.event", ErrBadRequest)
	}
	if e.CreatedAt != "" {
		if _, err := time.Parse(time.RFC3339, e.CreatedAt); err != nil {
			return NewKind("api.event", ErrBadRequest)
		}
	}
	return nil
}

// batchResponse reports the outcome of a processed batch.
type batchResponse struct {
	Accepted   int      `json:"accepted"`
	Rejected   int      `json:"rejected"`
	Duplicates int      `json:"duplicates"`
	Dropped    int      `json:"dropped"`
	Upserted   []string `json:"upserted"`
	Failed     []string `json:"failed,omitempty"`
}

// recommendationResponse is the success shape of the recommendation route.
type recommendationResponse struct {
	UserID      string  `json:"user_id"`
	Recommended []int64 `json:"recommended"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
