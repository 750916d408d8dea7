// Package envelope decodes queue transport envelopes into raw events.
//
// The upstream activity feed publishes to a topic whose subscription wraps
// every activity record twice: the queue record body carries the topic
// envelope as a JSON string, and the topic envelope's Message field carries
// the activity record as another JSON string. This package unwraps both
// layers and yields a flat, ordered event sequence. Malformed records are
// dropped with a logged reason and counted, never fatal to the batch.
package envelope

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// Batch is the decoded form of one transport delivery.
type Batch struct {
	Events  []model.RawEvent // valid records, in arrival order
	Dropped int              // records discarded during decoding
}

// queueEvent mirrors the transport delivery shape.
type queueEvent struct {
	Records []struct {
		MessageID string `json:"messageId"`
		Body      string `json:"body"`
	} `json:"Records"`
}

// topicEnvelope mirrors the pub/sub wrapping inside a queue record body.
type topicEnvelope struct {
	Message string `json:"Message"`
}

// activityRecord mirrors the activity feed's published schema. ProductID
// arrives as either a JSON number or a string depending on the producer.
type activityRecord struct {
	ActivityID   string          `json:"activity_id"`
	UserID       string          `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	ProductID    json.RawMessage `json:"product_id"`
	CreatedAt    string          `json:"created_at"`
}

// Decoder turns raw transport deliveries into event batches.
type Decoder struct {
	logger logger.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{logger: logger.Get().Named("envelope")}
}

// Decode unwraps a transport delivery into a Batch. An empty Records list
// yields an empty batch; only a body that is not valid JSON at the outer
// layer returns an error.
func (d *Decoder) Decode(ctx context.Context, payload []byte) (Batch, error) {
	var qe queueEvent
	if err := json.Unmarshal(payload, &qe); err != nil {
		return Batch{}, fmt.Errorf("decode transport payload: %w", err)
	}

	batch := Batch{Events: make([]model.RawEvent, 0, len(qe.Records))}
	for _, rec := range qe.Records {
		event, err := d.decodeRecord([]byte(rec.Body))
		if err != nil {
			batch.Dropped++
			d.logger.Warn(ctx, "dropping malformed record",
				logger.String("messageID", rec.MessageID),
				logger.Error(err),
			)
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	return batch, nil
}

// decodeRecord unwraps one queue record body into a RawEvent.
func (d *Decoder) decodeRecord(body []byte) (model.RawEvent, error) {
	var te topicEnvelope
	if err := json.Unmarshal(body, &te); err != nil {
		return model.RawEvent{}, fmt.Errorf("topic envelope: %w", err)
	}

	var act activityRecord
	if err := json.Unmarshal([]byte(te.Message), &act); err != nil {
		return model.RawEvent{}, fmt.Errorf("activity record: %w", err)
	}

	productID, err := coerceProductID(act.ProductID)
	if err != nil {
		return model.RawEvent{}, err
	}

	event := model.RawEvent{
		EventID:      act.ActivityID,
		UserID:       act.UserID,
		ProductID:    productID,
		ActivityType: model.ActivityType(act.ActivityType),
	}
	if event.EventID == "" {
		// Records published before activity ids were introduced; give
		// them a synthetic id so the deduper still has a key.
		event.EventID = uuid.New().String()
	}
	if act.CreatedAt != "" {
		if ts, perr := time.Parse(time.RFC3339, act.CreatedAt); perr == nil {
			event.CreatedAt = ts
		}
	}
	if !event.Valid() {
		return model.RawEvent{}, fmt.Errorf("missing user_id, product_id, or activity_type")
	}
	return event, nil
}

// coerceProductID accepts a JSON number or a quoted numeric string.
func coerceProductID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing product_id")
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		id, perr := strconv.ParseInt(asString, 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("product_id %q is not numeric", asString)
		}
		return id, nil
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, fmt.Errorf("product_id: %w", err)
	}
	return asNumber, nil
}
