package envelope_test

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"github.com/okian/affinity/internal/adapters/mq/envelope"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// wrap builds a transport payload from activity records, applying both
// layers of JSON-in-string wrapping.
func wrap(activities ...map[string]any) []byte {
	records := make([]map[string]any, 0, len(activities))
	for i, act := range activities {
		msg, _ := json.Marshal(act)
		body, _ := json.Marshal(map[string]any{"Message": string(msg)})
		records = append(records, map[string]any{
			"messageId": string(rune('a' + i)),
			"body":      string(body),
		})
	}
	payload, _ := json.Marshal(map[string]any{"Records": records})
	return payload
}

func TestDecoder(t *testing.T) {
	ctx := context.Background()

	Convey("Given an envelope decoder", t, func() {
		d := envelope.NewDecoder()

		Convey("When decoding a well-formed delivery", func() {
			payload := wrap(
				map[string]any{
					"activity_id":   "evt-1",
					"user_id":       "u1",
					"activity_type": "VIEW",
					"product_id":    42,
					"created_at":    "2026-03-01T12:00:00Z",
				},
				map[string]any{
					"activity_id":   "evt-2",
					"user_id":       "u2",
					"activity_type": "ORDER",
					"product_id":    "7",
				},
			)
			batch, err := d.Decode(ctx, payload)

			Convey("Then both records should be unwrapped in order", func() {
				So(err, ShouldBeNil)
				So(batch.Dropped, ShouldEqual, 0)
				So(len(batch.Events), ShouldEqual, 2)
				So(batch.Events[0].EventID, ShouldEqual, "evt-1")
				So(batch.Events[0].UserID, ShouldEqual, "u1")
				So(batch.Events[0].ProductID, ShouldEqual, 42)
				So(batch.Events[0].ActivityType, ShouldEqual, model.ActivityView)
				So(batch.Events[0].CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And a string product id should be coerced", func() {
				So(err, ShouldBeNil)
				So(batch.Events[1].ProductID, ShouldEqual, 7)
			})
		})

		Convey("When a record has no activity id", func() {
			payload := wrap(map[string]any{
				"user_id":       "u1",
				"activity_type": "VIEW",
				"product_id":    1,
			})
			batch, err := d.Decode(ctx, payload)

			Convey("Then a synthetic id should be assigned", func() {
				So(err, ShouldBeNil)
				So(len(batch.Events), ShouldEqual, 1)
				So(batch.Events[0].EventID, ShouldNotBeEmpty)
			})
		})

		Convey("When a record carries a non-numeric product id", func() {
			payload := wrap(
				map[string]any{
					"activity_id":   "evt-1",
					"user_id":       "u1",
					"activity_type": "VIEW",
					"product_id":    "not-a-number",
				},
				map[string]any{
					"activity_id":   "evt-2",
					"user_id":       "u2",
					"activity_type": "VIEW",
					"product_id":    2,
				},
			)
			batch, err := d.Decode(ctx, payload)

			Convey("Then only that record should be dropped", func() {
				So(err, ShouldBeNil)
				So(batch.Dropped, ShouldEqual, 1)
				So(len(batch.Events), ShouldEqual, 1)
				So(batch.Events[0].EventID, ShouldEqual, "evt-2")
			})
		})

		Convey("When a record body is not a topic envelope", func() {
			payload, _ := json.Marshal(map[string]any{
				"Records": []map[string]any{
					{"messageId": "a", "body": "not json"},
				},
			})
			batch, err := d.Decode(ctx, payload)

			Convey("Then the record should be dropped without failing the batch", func() {
				So(err, ShouldBeNil)
				So(batch.Dropped, ShouldEqual, 1)
				So(batch.Events, ShouldBeEmpty)
			})
		})

		Convey("When a record is missing required fields", func() {
			payload := wrap(map[string]any{
				"activity_id":   "evt-1",
				"activity_type": "VIEW",
				"product_id":    1,
			})
			batch, err := d.Decode(ctx, payload)

			Convey("Then it should be dropped", func() {
				So(err, ShouldBeNil)
				So(batch.Dropped, ShouldEqual, 1)
			})
		})

		Convey("When the delivery has no records", func() {
			batch, err := d.Decode(ctx, []byte(`{"Records": []}`))

			Convey("Then the batch should be empty", func() {
				So(err, ShouldBeNil)
				So(batch.Events, ShouldBeEmpty)
				So(batch.Dropped, ShouldEqual, 0)
			})
		})

		Convey("When the payload is not JSON", func() {
			_, err := d.Decode(ctx, []byte("garbage"))

			Convey("Then decoding should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
