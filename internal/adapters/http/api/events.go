// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/model"
)

// maxEventBodyBytes caps how much of a request body the events route reads.
const maxEventBodyBytes = 4 << 20

// EventsHandler handles activity-event submissions.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvents handles POST /events requests. The body is either a
// JSON array of activity records or a queue transport envelope; the latter
// supports replaying captured deliveries against a running instance.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_events"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if trimmed[0] == '{' {
		// Envelope form: {"Records": [...]}
		res, dropped, perr := h.deps.ProcessEnvelope(r.Context(), trimmed)
		if perr != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", perr)
			return
		}
		writeJSON(w, http.StatusOK, batchResponse{
			Accepted:   res.Accepted,
			Rejected:   res.Rejected,
			Duplicates: res.Duplicates,
			Dropped:    dropped,
			Upserted:   res.Upserted,
			Failed:     res.Failed,
		})
		return
	}

	var reqs []eventRequest
	if err := json.Unmarshal(trimmed, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	events := make([]model.RawEvent, 0, len(reqs))
	rejected := 0
	for _, req := range reqs {
		event, ok := req.toEvent()
		if !ok {
			// Malformed records are dropped, not fatal to the batch.
			rejected++
			continue
		}
		events = append(events, event)
	}

	res, err := h.deps.ProcessBatch(r.Context(), events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Accepted:   res.Accepted,
		Rejected:   res.Rejected + rejected,
		Duplicates: res.Duplicates,
		Upserted:   res.Upserted,
		Failed:     res.Failed,
	})
}

// toEvent converts a request record into the domain event, coercing the
// product id from either a JSON number or a numeric string.
func (e eventRequest) toEvent() (model.RawEvent, bool) {
	if err := e.validate(); err != nil {
		return model.RawEvent{}, false
	}

	var productID int64
	var asString string
	if err := json.Unmarshal(e.ProductID, &asString); err == nil {
		id, perr := strconv.ParseInt(asString, 10, 64)
		if perr != nil {
			return model.RawEvent{}, false
		}
		productID = id
	} else if err := json.Unmarshal(e.ProductID, &productID); err != nil {
		return model.RawEvent{}, false
	}

	event := model.RawEvent{
		EventID:      e.EventID,
		UserID:       e.UserID,
		ProductID:    productID,
		ActivityType: model.ActivityType(e.ActivityType),
	}
	if e.CreatedAt != "" {
		ts, _ := time.Parse(time.RFC3339, e.CreatedAt)
		event.CreatedAt = ts
	}
	return event, event.Valid()
}
