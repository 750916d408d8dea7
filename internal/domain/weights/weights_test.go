package weights_test

import (
	"testing"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/weights"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewTable(t *testing.T) {
	Convey("Given a table with default weights", t, func() {
		table := weights.NewTable()

		Convey("Then every recognized activity type should be present", func() {
			for _, activity := range []model.ActivityType{
				model.ActivityView,
				model.ActivityAddToCart,
				model.ActivityUpdateCartQuantity,
				model.ActivityRemoveFromCart,
				model.ActivityOrder,
			} {
				_, ok := table.Lookup(activity)
				So(ok, ShouldBeTrue)
			}
			So(table.Len(), ShouldEqual, 5)
		})

		Convey("And orders should outweigh views", func() {
			order, _ := table.Lookup(model.ActivityOrder)
			view, _ := table.Lookup(model.ActivityView)
			So(order, ShouldBeGreaterThan, view)
		})

		Convey("And remove-from-cart should carry an explicit zero weight", func() {
			w, ok := table.Lookup(model.ActivityRemoveFromCart)
			So(ok, ShouldBeTrue)
			So(w, ShouldEqual, 0)
		})

		Convey("And an unknown activity type should not resolve", func() {
			_, ok := table.Lookup("WISHLIST")
			So(ok, ShouldBeFalse)
		})

		Convey("And the max weight should be the order weight", func() {
			So(table.Max(), ShouldEqual, 5)
		})
	})

	Convey("Given a table with custom weights", t, func() {
		table := weights.NewTable(weights.WithWeights(map[model.ActivityType]float64{
			model.ActivityView:  0.5,
			model.ActivityOrder: 10,
			"RETURN":            -1,
		}))

		Convey("Then the custom vocabulary should replace the defaults", func() {
			So(table.Len(), ShouldEqual, 2)
			w, ok := table.Lookup(model.ActivityView)
			So(ok, ShouldBeTrue)
			So(w, ShouldEqual, 0.5)
		})

		Convey("And default-only types should no longer resolve", func() {
			_, ok := table.Lookup(model.ActivityAddToCart)
			So(ok, ShouldBeFalse)
		})

		Convey("And negative weights should be dropped", func() {
			_, ok := table.Lookup("RETURN")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given an empty custom weights map", t, func() {
		table := weights.NewTable(weights.WithWeights(nil))

		Convey("Then the defaults should be kept", func() {
			So(table.Len(), ShouldEqual, 5)
		})
	})
}
