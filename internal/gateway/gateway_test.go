package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/globepins/internal/adapters/docstore"
	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/gateway"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedGate bool

func (g fixedGate) Check(op string) error {
	if g {
		return nil
	}
	return errkind.New(op, errkind.ErrPermissionDenied)
}

var clock = func() time.Time { return time.Date(2026, 10, 2, 8, 30, 0, 0, time.UTC) }

func oslo() model.CityRecord {
	return model.CityRecord{ID: "oslo_59.9139_10.7522", City: "Oslo", Country: "Norway", Label: "Oslo, Norway", Lat: 59.9139, Lng: 10.7522}
}

func TestGatewayMutations(t *testing.T) {
	Convey("Given a gateway with an open gate", t, func() {
		ctx := context.Background()
		store := docstore.NewMemStore()
		defer store.Close()
		store.Seed(oslo())
		gw := gateway.New(store, fixedGate(true), gateway.WithClock(clock))

		Convey("When toggling a pin twice", func() {
			first, err := gw.TogglePin(ctx, oslo().ID)
			So(err, ShouldBeNil)
			second, err := gw.TogglePin(ctx, oslo().ID)
			So(err, ShouldBeNil)

			Convey("Then the flag returns to its original value", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				rec, _ := gw.Get(ctx, oslo().ID)
				So(rec.IsPinned, ShouldBeFalse)
				So(rec.UpdatedAt, ShouldEqual, "2026-10-02T08:30:00Z")
			})
		})

		Convey("When toggling a missing city", func() {
			_, err := gw.TogglePin(ctx, "atlantis_0.0000_0.0000")
			So(errors.Is(err, errkind.ErrNotFound), ShouldBeTrue)
		})

		Convey("When assigning a brand", func() {
			So(gw.SetBrand(ctx, oslo().ID, "Plaza"), ShouldBeNil)
			rec, _ := gw.Get(ctx, oslo().ID)
			So(rec.Brand, ShouldEqual, model.BrandPlaza)
			So(rec.IsPinned, ShouldBeFalse)

			Convey("And an invalid brand is rejected before any write", func() {
				writes := store.Writes()
				err := gw.SetBrand(ctx, oslo().ID, "gold")
				So(errors.Is(err, errkind.ErrInvalidBrand), ShouldBeTrue)
				So(store.Writes(), ShouldEqual, writes)
			})
		})

		Convey("When assigning a brand with a pin", func() {
			So(gw.SetBrandAndPin(ctx, oslo().ID, "academy", true), ShouldBeNil)
			rec, _ := gw.Get(ctx, oslo().ID)
			So(rec.Brand, ShouldEqual, model.BrandAcademy)
			So(rec.IsPinned, ShouldBeTrue)
		})

		Convey("When clearing a brand", func() {
			So(gw.SetBrandAndPin(ctx, oslo().ID, "academy", true), ShouldBeNil)
			So(gw.ClearBrand(ctx, oslo().ID), ShouldBeNil)
			rec, _ := gw.Get(ctx, oslo().ID)
			So(rec.Brand, ShouldEqual, model.BrandNone)
			So(rec.IsPinned, ShouldBeTrue)

			Convey("And a missing document is not created", func() {
				err := gw.ClearBrand(ctx, "missing")
				So(errors.Is(err, errkind.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When pinning a city that is not stored yet", func() {
			rec := model.CityRecord{ID: "lima_-12.0464_-77.0428", City: "Lima", Label: "Lima", Lat: -12.0464, Lng: -77.0428}
			So(gw.PinRecord(ctx, rec), ShouldBeNil)

			Convey("Then a full pinned document exists", func() {
				got, err := gw.Get(ctx, rec.ID)
				So(err, ShouldBeNil)
				So(got.IsPinned, ShouldBeTrue)
				So(got.City, ShouldEqual, "Lima")
				n, _ := gw.Count(ctx)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestGatewayGate(t *testing.T) {
	Convey("Given a gateway with a closed gate", t, func() {
		ctx := context.Background()
		store := docstore.NewMemStore()
		defer store.Close()
		store.Seed(oslo())
		gw := gateway.New(store, fixedGate(false))

		Convey("When any mutation is attempted", func() {
			_, errToggle := gw.TogglePin(ctx, oslo().ID)
			errs := []error{
				errToggle,
				gw.SetPin(ctx, oslo().ID, true),
				gw.SetBrand(ctx, oslo().ID, "plaza"),
				gw.SetBrandAndPin(ctx, oslo().ID, "plaza", true),
				gw.ClearBrand(ctx, oslo().ID),
				gw.PinRecord(ctx, oslo()),
				gw.MergeSet(ctx, oslo().ID, docstore.PinPatch(true, clock())),
				gw.Update(ctx, oslo().ID, docstore.PinPatch(true, clock())),
				gw.Commit(ctx, []docstore.Op{{ID: oslo().ID, Patch: docstore.PinPatch(true, clock())}}),
			}

			Convey("Then each is denied and the store sees no write", func() {
				for _, err := range errs {
					So(errors.Is(err, errkind.ErrPermissionDenied), ShouldBeTrue)
				}
				So(store.Writes(), ShouldEqual, 0)
			})
		})

		Convey("When reading", func() {
			rec, err := gw.Get(ctx, oslo().ID)
			So(err, ShouldBeNil)
			So(rec.City, ShouldEqual, "Oslo")
		})
	})
}

func TestGatewayStreams(t *testing.T) {
	Convey("Given a pinned stream", t, func() {
		ctx := context.Background()
		store := docstore.NewMemStore()
		defer store.Close()
		store.Seed(oslo())
		gw := gateway.New(store, fixedGate(true))

		stream, err := gw.SubscribePinned(ctx)
		So(err, ShouldBeNil)
		defer stream.Close()

		Convey("When the city gets pinned", func() {
			So(<-stream.C(), ShouldBeEmpty)
			So(gw.SetPin(ctx, oslo().ID, true), ShouldBeNil)

			Convey("Then the next value holds it", func() {
				select {
				case recs := <-stream.C():
					So(recs, ShouldHaveLength, 1)
					So(recs[0].ID, ShouldEqual, oslo().ID)
				case <-time.After(time.Second):
					t.Fatal("no update")
				}
			})
		})
	})
}
