package aggregate_test

import (
	"testing"

	"github.com/okian/affinity/internal/domain/aggregate"
	"github.com/okian/affinity/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func neighbors(entries ...map[int64]float64) []model.Neighbor {
	out := make([]model.Neighbor, len(entries))
	for i, e := range entries {
		out[i] = model.Neighbor{ID: "n", Entries: e}
	}
	return out
}

func TestAggregator_Aggregate(t *testing.T) {
	Convey("Given a sum aggregator", t, func() {
		agg := aggregate.New(aggregate.WithMode(aggregate.ModeSum))

		ns := neighbors(
			map[int64]float64{1: 2.0},
			map[int64]float64{1: 3.0},
			map[int64]float64{2: 1.0},
		)

		Convey("When aggregating with no exclusions", func() {
			items := agg.Aggregate(ns, nil, 10)

			Convey("Then items should rank by summed contribution", func() {
				// item 1 scores 5.0, item 2 scores 1.0
				So(items, ShouldResemble, []int64{1, 2})
			})
		})

		Convey("When the top item is excluded", func() {
			items := agg.Aggregate(ns, map[int64]struct{}{1: {}}, 10)

			Convey("Then only the remaining item should be returned", func() {
				So(items, ShouldResemble, []int64{2})
			})
		})

		Convey("When every candidate is excluded", func() {
			exclude := map[int64]struct{}{1: {}, 2: {}}

			Convey("Then the result should be empty", func() {
				So(agg.Aggregate(ns, exclude, 10), ShouldBeEmpty)
			})
		})

		Convey("When top_k is zero or negative", func() {
			Convey("Then the result should be empty for any input", func() {
				So(agg.Aggregate(ns, nil, 0), ShouldBeEmpty)
				So(agg.Aggregate(ns, nil, -3), ShouldBeEmpty)
			})
		})

		Convey("When the neighbor list is empty", func() {
			Convey("Then the result should be empty", func() {
				So(agg.Aggregate(nil, nil, 10), ShouldBeEmpty)
			})
		})

		Convey("When top_k is smaller than the candidate set", func() {
			items := agg.Aggregate(ns, nil, 1)

			Convey("Then only the best item should be returned", func() {
				So(items, ShouldResemble, []int64{1})
			})
		})

		Convey("When two items tie on score", func() {
			tied := neighbors(
				map[int64]float64{9: 2.0, 3: 2.0},
			)
			items := agg.Aggregate(tied, nil, 10)

			Convey("Then ties should break by ascending item id", func() {
				So(items, ShouldResemble, []int64{3, 9})
			})
		})

		Convey("When a neighbor carries a zero entry", func() {
			withZero := neighbors(
				map[int64]float64{1: 0, 2: 1.0},
			)
			items := agg.Aggregate(withZero, nil, 10)

			Convey("Then zero entries should not contribute", func() {
				So(items, ShouldResemble, []int64{2})
			})
		})
	})

	Convey("Given an average aggregator", t, func() {
		agg := aggregate.New(aggregate.WithMode(aggregate.ModeAverage))

		Convey("When one item has many small contributions and another a single large one", func() {
			ns := neighbors(
				map[int64]float64{1: 1.0},
				map[int64]float64{1: 1.0},
				map[int64]float64{1: 1.0},
				map[int64]float64{2: 2.0},
			)
			items := agg.Aggregate(ns, nil, 10)

			Convey("Then the mean should decide the order", func() {
				// item 1 averages 1.0 over three contributors, item 2 is 2.0
				So(items, ShouldResemble, []int64{2, 1})
			})
		})
	})

	Convey("Given an invalid mode", t, func() {
		agg := aggregate.New(aggregate.WithMode("median"))

		Convey("Then the aggregator should fall back to sum", func() {
			So(agg.Mode(), ShouldEqual, aggregate.ModeSum)
		})
	})
}
