package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// Default Qdrant client configuration constants.
const (
	defaultSparseName  = "sparse"
	defaultHTTPTimeout = 5 * time.Second
)

// Qdrant talks to a Qdrant collection of sparse named vectors over REST.
type Qdrant struct {
	endpoint   string // e.g. http://localhost:6333
	collection string
	sparseName string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// QdrantOption applies a configuration option to the Qdrant client.
type QdrantOption func(*Qdrant)

// WithSparseName sets the named sparse vector used in the collection.
func WithSparseName(name string) QdrantOption {
	return func(q *Qdrant) {
		if name != "" {
			q.sparseName = name
		}
	}
}

// WithAPIKey sets the api-key header sent on every request.
func WithAPIKey(key string) QdrantOption {
	return func(q *Qdrant) {
		q.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) QdrantOption {
	return func(q *Qdrant) {
		if c != nil {
			q.httpClient = c
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) QdrantOption {
	return func(q *Qdrant) {
		if d > 0 {
			q.httpClient.Timeout = d
		}
	}
}

// NewQdrant creates a client and ensures the collection exists with a
// sparse vector index, creating it on first use.
func NewQdrant(ctx context.Context, endpoint, collection string, opts ...QdrantOption) (*Qdrant, error) {
	q := &Qdrant{
		endpoint:   endpoint,
		collection: collection,
		sparseName: defaultSparseName,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger.Get().Named("qdrant"),
	}

	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// sparseVector is the wire shape of a sparse vector: parallel slices of
// equal length.
type sparseVector struct {
	Indices []int64   `json:"indices"`
	Values  []float64 `json:"values"`
}

func (v sparseVector) toEntries() (map[int64]float64, error) {
	if len(v.Indices) != len(v.Values) {
		return nil, fmt.Errorf("%w: %d indices, %d values", ErrMalformedVector, len(v.Indices), len(v.Values))
	}
	entries := make(map[int64]float64, len(v.Indices))
	for i, idx := range v.Indices {
		entries[idx] = v.Values[i]
	}
	return entries, nil
}

// entriesToSparse flattens a profile map into sorted parallel slices.
// Sorting keeps the wire form deterministic for a given profile.
func entriesToSparse(entries map[int64]float64) sparseVector {
	indices := make([]int64, 0, len(entries))
	for idx := range entries {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = entries[idx]
	}
	return sparseVector{Indices: indices, Values: values}
}

// Get retrieves a profile by point id.
func (q *Qdrant) Get(ctx context.Context, id string) (model.Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreGetLatency(float64(time.Since(start).Milliseconds()))
	}()

	url := fmt.Sprintf("%s/collections/%s/points/%s", q.endpoint, q.collection, id)
	var out struct {
		Result struct {
			ID      any                     `json:"id"`
			Payload map[string]any          `json:"payload"`
			Vector  map[string]sparseVector `json:"vector"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodGet, url, nil, &out)
	if err != nil {
		return model.Profile{}, err
	}
	if status == http.StatusNotFound {
		return model.Profile{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if status >= 300 {
		return model.Profile{}, fmt.Errorf("%w: get status %d", ErrUnavailable, status)
	}

	entries, err := out.Result.Vector[q.sparseName].toEntries()
	if err != nil {
		return model.Profile{}, fmt.Errorf("get %s: %w", id, err)
	}
	p := model.Profile{ID: id, Entries: entries}
	if ts, ok := out.Result.Payload["timestamp"].(string); ok {
		if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
			p.UpdatedAt = t
		}
	}
	return p, nil
}

// UpsertBulk writes all profiles as one points upsert.
func (q *Qdrant) UpsertBulk(ctx context.Context, profiles []model.Profile) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpsertLatency(float64(time.Since(start).Milliseconds()))
	}()

	type point struct {
		ID      string                  `json:"id"`
		Vector  map[string]sparseVector `json:"vector"`
		Payload map[string]any          `json:"payload"`
	}
	points := make([]point, 0, len(profiles))
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		updatedAt := p.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		points = append(points, point{
			ID:     p.ID,
			Vector: map[string]sparseVector{q.sparseName: entriesToSparse(p.Entries)},
			Payload: map[string]any{
				"user_id":   p.ID,
				"timestamp": updatedAt.Format(time.RFC3339),
			},
		})
		ids = append(ids, p.ID)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.endpoint, q.collection)
	status, err := q.do(ctx, http.MethodPut, url, map[string]any{"points": points}, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: upsert status %d", ErrUnavailable, status)
	}
	return ids, nil
}

// QuerySimilar runs a recommendation-by-point-id query against the sparse
// index and returns the neighbors with their vectors and payloads.
func (q *Qdrant) QuerySimilar(ctx context.Context, id string, k int) ([]model.Neighbor, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if k <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"query":        id,
		"using":        q.sparseName,
		"limit":        k,
		"with_vector":  true,
		"with_payload": true,
	}
	url := fmt.Sprintf("%s/collections/%s/points/query", q.endpoint, q.collection)
	var out struct {
		Result struct {
			Points []struct {
				ID      any                     `json:"id"`
				Payload map[string]any          `json:"payload"`
				Vector  map[string]sparseVector `json:"vector"`
			} `json:"points"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, url, body, &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: query status %d", ErrUnavailable, status)
	}

	neighbors := make([]model.Neighbor, 0, len(out.Result.Points))
	for _, hit := range out.Result.Points {
		entries, verr := hit.Vector[q.sparseName].toEntries()
		if verr != nil {
			// A single malformed hit is dropped; the rest of the result
			// set is still usable.
			q.logger.Warn(ctx, "dropping malformed neighbor vector",
				logger.Any("id", hit.ID),
				logger.Error(verr),
			)
			continue
		}
		neighbors = append(neighbors, model.Neighbor{
			ID:      fmt.Sprintf("%v", hit.ID),
			Entries: entries,
			Payload: hit.Payload,
		})
	}
	return neighbors, nil
}

// ensureCollection creates the collection with a sparse vector config if it
// does not exist yet.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collection)
	status, err := q.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return err
	}
	if status < 300 {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("%w: collection check status %d", ErrUnavailable, status)
	}

	body := map[string]any{
		"sparse_vectors": map[string]any{
			q.sparseName: map[string]any{},
		},
	}
	status, err = q.do(ctx, http.MethodPut, url, body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("%w: collection create status %d", ErrUnavailable, status)
	}
	q.logger.Info(ctx, "created collection", logger.String("collection", q.collection))
	return nil
}

// do issues one request and decodes the response into out when non-nil.
// Transport failures are wrapped as ErrUnavailable; HTTP status handling is
// left to the caller.
func (q *Qdrant) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return resp.StatusCode, nil
}
