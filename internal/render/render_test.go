package render_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/render"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPinSize(t *testing.T) {
	Convey("Given display hints", t, func() {
		So(render.PinSize(render.Hints{Mobile: true, Embedded: true}), ShouldEqual, 36)
		So(render.PinSize(render.Hints{Mobile: true}), ShouldEqual, 40)
		So(render.PinSize(render.Hints{Embedded: true}), ShouldEqual, 52)
		So(render.PinSize(render.Hints{}), ShouldEqual, 46)

		Convey("When iconsize overrides", func() {
			So(render.PinSize(render.Hints{Mobile: true, IconSize: "48"}), ShouldEqual, 48)
			So(render.PinSize(render.Hints{IconSize: "4"}), ShouldEqual, 12)
			So(render.PinSize(render.Hints{IconSize: "500"}), ShouldEqual, 128)
			So(render.PinSize(render.Hints{IconSize: "64px"}), ShouldEqual, 64)
			So(render.PinSize(render.Hints{IconSize: "big"}), ShouldEqual, 46)
			So(render.PinSize(render.HintsFromQuery(url.Values{"iconsize": {"-3"}}, false, false)), ShouldEqual, 12)
		})
	})
}

func TestJSONSink(t *testing.T) {
	Convey("Given a JSON sink", t, func() {
		var buf bytes.Buffer
		sink := render.NewJSONSink(&buf, render.Hints{Embedded: true})
		points := []types.Point{
			{Key: "tokyo_35.6762_139.6503", Label: "Tokyo", Lat: 35.6762, Lng: 139.6503, Pinned: true, Brand: model.BrandAcademy, Source: types.SourcePinned},
			{Key: "oslo_59.9139_10.7522", Label: "Oslo", Lat: 59.9139, Lng: 10.7522, Richest: true, Source: types.SourceOverlay},
		}

		Convey("When rendering", func() {
			So(sink.Render(context.Background(), points), ShouldBeNil)

			var got struct {
				Type    string           `json:"type"`
				Markers []map[string]any `json:"markers"`
			}
			So(json.Unmarshal(buf.Bytes(), &got), ShouldBeNil)

			Convey("Then markers carry icon, size and geohash", func() {
				So(got.Type, ShouldEqual, "render")
				So(got.Markers, ShouldHaveLength, 2)
				So(got.Markers[0]["icon"], ShouldEqual, "brand-academy")
				So(got.Markers[0]["size"], ShouldEqual, 52)
				So(got.Markers[0]["geohash"], ShouldEqual, "xn76cyd")
				So(got.Markers[1]["icon"], ShouldEqual, "richest")
				So(got.Markers[1]["key"], ShouldEqual, "oslo_59.9139_10.7522")
			})
		})

		Convey("When focusing", func() {
			So(sink.Focus(context.Background(), render.Focus{Point: points[0], Actions: []string{"unpin"}}), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `"type":"focus"`)
			So(buf.String(), ShouldContainSubstring, `"unpin"`)
		})
	})
}

func TestIcon(t *testing.T) {
	cases := map[string]types.Point{
		"pin":  {Pinned: true},
		"city": {},
	}
	for want, p := range cases {
		if got := render.Icon(p); got != want {
			t.Errorf("Icon(%+v) = %q, want %q", p, got, want)
		}
	}
}
