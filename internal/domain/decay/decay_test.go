package decay_test

import (
	"testing"

	"github.com/okian/affinity/internal/domain/decay"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewUpdater(t *testing.T) {
	Convey("Given a new updater with default options", t, func() {
		u := decay.NewUpdater()

		Convey("Then it should use the default smoothing factor", func() {
			So(u.Alpha(), ShouldEqual, 0.5)
		})
	})

	Convey("Given a custom smoothing factor", t, func() {
		u := decay.NewUpdater(decay.WithAlpha(0.3))

		Convey("Then it should be applied", func() {
			So(u.Alpha(), ShouldEqual, 0.3)
		})
	})

	Convey("Given an out-of-range smoothing factor", t, func() {
		Convey("Then zero should be ignored", func() {
			So(decay.NewUpdater(decay.WithAlpha(0)).Alpha(), ShouldEqual, 0.5)
		})

		Convey("And values above one should be ignored", func() {
			So(decay.NewUpdater(decay.WithAlpha(1.5)).Alpha(), ShouldEqual, 0.5)
		})

		Convey("And exactly one should be accepted", func() {
			So(decay.NewUpdater(decay.WithAlpha(1)).Alpha(), ShouldEqual, 1.0)
		})
	})
}

func TestUpdater_Apply(t *testing.T) {
	Convey("Given an updater with alpha 0.5", t, func() {
		u := decay.NewUpdater(decay.WithAlpha(0.5))

		Convey("When applying one event to an empty profile", func() {
			entries := u.Apply(nil, []decay.WeightedEvent{{ProductID: 7, Weight: 2.0}})

			Convey("Then the value should be exactly alpha times the weight", func() {
				So(entries[7], ShouldEqual, 1.0)
			})
		})

		Convey("When applying two events for the same product", func() {
			entries := u.Apply(nil, []decay.WeightedEvent{
				{ProductID: 7, Weight: 2.0},
				{ProductID: 7, Weight: 4.0},
			})

			Convey("Then later events should dominate more strongly", func() {
				// 0.5*2 = 1, then 0.5*4 + 0.5*1 = 2.5
				So(entries[7], ShouldEqual, 2.5)
			})
		})

		Convey("When applying a zero-weight event to an existing entry", func() {
			entries := map[int64]float64{7: 2.0}
			entries = u.Apply(entries, []decay.WeightedEvent{{ProductID: 7, Weight: 0}})

			Convey("Then the entry should decay toward zero without being removed", func() {
				So(entries[7], ShouldEqual, 1.0)
				_, present := entries[7]
				So(present, ShouldBeTrue)
			})
		})

		Convey("When splitting a sequence into two adjacent sub-sequences", func() {
			events := []decay.WeightedEvent{
				{ProductID: 1, Weight: 1.0},
				{ProductID: 2, Weight: 2.0},
				{ProductID: 1, Weight: 5.0},
				{ProductID: 3, Weight: 0.5},
				{ProductID: 2, Weight: 1.0},
				{ProductID: 1, Weight: 2.0},
			}

			oneShot := u.Apply(nil, events)

			split := u.Apply(nil, events[:3])
			split = u.Apply(split, events[3:])

			Convey("Then both applications should yield the same entries", func() {
				So(split, ShouldResemble, oneShot)
			})
		})

		Convey("When events only carry non-negative weights", func() {
			entries := u.Apply(nil, []decay.WeightedEvent{
				{ProductID: 1, Weight: 5.0},
				{ProductID: 1, Weight: 5.0},
				{ProductID: 1, Weight: 5.0},
				{ProductID: 2, Weight: 0},
			})

			Convey("Then every value should stay within [0, maxWeight]", func() {
				for _, v := range entries {
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
					So(v, ShouldBeLessThanOrEqualTo, 5.0)
				}
			})
		})

		Convey("When the event sequence is empty", func() {
			entries := map[int64]float64{1: 0.5}
			out := u.Apply(entries, nil)

			Convey("Then the entries should be unchanged", func() {
				So(out, ShouldResemble, map[int64]float64{1: 0.5})
			})
		})
	})
}
