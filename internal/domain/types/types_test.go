package types_test

import (
	"testing"

	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPointConversion(t *testing.T) {
	Convey("Given records from both sources", t, func() {
		pinned := model.CityRecord{
			ID: "sao_paulo_-23.5500_-46.6300", City: "São Paulo", Country: "Brazil",
			Label: "São Paulo, Brazil", Lat: -23.55, Lng: -46.63, IsPinned: true, Brand: model.BrandPlaza,
		}
		overlay := model.OverlayRecord{City: "Sao Paulo", Country: "Brazil", Lat: -23.55, Lng: -46.63, Richest: true}

		Convey("When converted to points", func() {
			p := types.FromCity(pinned, types.SourcePinned)
			o := types.FromOverlay(overlay)

			Convey("Then both share the canonical key", func() {
				So(p.Key, ShouldEqual, o.Key)
				So(p.Pinned, ShouldBeTrue)
				So(p.Brand, ShouldEqual, model.BrandPlaza)
				So(o.Richest, ShouldBeTrue)
				So(o.Label, ShouldEqual, "Sao Paulo, Brazil")
				So(o.Source, ShouldEqual, types.SourceOverlay)
			})
		})

		Convey("When a stored record has no id", func() {
			pinned.ID = ""
			So(types.FromCity(pinned, types.SourceCatalog).Key, ShouldEqual, "sao_paulo_-23.5500_-46.6300")
		})
	})
}
