package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/globepins/internal/adapters/checkpoint"
	"github.com/okian/globepins/internal/adapters/docstore"
	service "github.com/okian/globepins/internal/app"
	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/gateway"
	"github.com/okian/globepins/internal/ingest"
	"github.com/okian/globepins/internal/reconcile"
	"github.com/okian/globepins/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

type fixedGate bool

func (g fixedGate) CanMutate() bool { return bool(g) }

func (g fixedGate) Check(op string) error {
	if g {
		return nil
	}
	return errkind.New(op, errkind.ErrPermissionDenied)
}

var (
	tokyo = model.CityRecord{ID: "tokyo_35.6762_139.6503", City: "Tokyo", Country: "Japan", Label: "Tokyo, Japan", Lat: 35.6762, Lng: 139.6503, IsPinned: true}
	osaka = model.CityRecord{ID: "osaka_34.6937_135.5023", City: "Osaka", Country: "Japan", Label: "Osaka, Japan", Lat: 34.6937, Lng: 135.5023}
	lima  = model.OverlayRecord{City: "Lima", Country: "Peru", Lat: -12.0464, Lng: -77.0428, Richest: true}
	// same identity as the pinned Tokyo record
	tokyoOverlay = model.OverlayRecord{City: "Tokyo", Country: "JP", Lat: 35.6762, Lng: 139.6503, Richest: true}
)

type fixture struct {
	mem   *docstore.MemStore
	gw    *gateway.Gateway
	views *reconcile.Store
	ctl   *service.Controller
}

func newFixture(open bool, opts ...service.Option) *fixture {
	ctx := context.Background()
	mem := docstore.NewMemStore()
	mem.Seed(tokyo, osaka)
	gate := fixedGate(open)
	gw := gateway.New(mem, gate)
	views := reconcile.New(gw, reconcile.WithOverlayVisible(true))
	if err := views.Init(ctx); err != nil {
		panic(err)
	}
	if err := views.LoadOverlay(ctx, []model.OverlayRecord{tokyoOverlay, lima}); err != nil {
		panic(err)
	}
	in := ingest.New(gw, checkpoint.NewMemory(), gate, ingest.WithInterBatchDelay(0))
	f := &fixture{mem: mem, gw: gw, views: views, ctl: service.NewController(views, gw, in, gate, opts...)}
	eventually(func() bool { return len(views.View().Points) == 2 })
	return f
}

func (f *fixture) close() {
	f.views.Dispose()
	_ = f.mem.Close()
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestControllerMutations(t *testing.T) {
	Convey("Given a controller with mutation rights", t, func() {
		ctx := context.Background()
		f := newFixture(true)
		defer f.close()

		Convey("When toggling a pin twice", func() {
			first, err := f.ctl.TogglePin(ctx, osaka.ID)
			So(err, ShouldBeNil)
			second, err := f.ctl.TogglePin(ctx, osaka.ID)
			So(err, ShouldBeNil)

			Convey("Then the record returns to its original state", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				rec, err := f.mem.Get(ctx, osaka.ID)
				So(err, ShouldBeNil)
				So(rec.IsPinned, ShouldBeFalse)
			})
		})

		Convey("When toggling a city only the overlay knows twice in a row", func() {
			first, err := f.ctl.TogglePin(ctx, "lima_-12.0464_-77.0428")
			So(err, ShouldBeNil)
			second, err := f.ctl.TogglePin(ctx, "lima_-12.0464_-77.0428")
			So(err, ShouldBeNil)

			Convey("Then the stored record ends unpinned", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				rec, err := f.mem.Get(ctx, "lima_-12.0464_-77.0428")
				So(err, ShouldBeNil)
				So(rec.IsPinned, ShouldBeFalse)
				So(rec.City, ShouldEqual, "Lima")
			})
		})

		Convey("When toggling a pinned city the overlay also lists", func() {
			pinned, err := f.ctl.TogglePin(ctx, tokyo.ID)
			So(err, ShouldBeNil)

			Convey("Then the stored pin is inverted", func() {
				So(pinned, ShouldBeFalse)
				rec, _ := f.mem.Get(ctx, tokyo.ID)
				So(rec.IsPinned, ShouldBeFalse)
			})
		})

		Convey("When toggling a key nobody knows", func() {
			_, err := f.ctl.TogglePin(ctx, "atlantis_0.0000_0.0000")
			So(errors.Is(err, service.ErrUnknownCity), ShouldBeTrue)
			So(f.mem.Writes(), ShouldEqual, 0)
		})

		Convey("When pinning a city only the overlay knows", func() {
			pinned, err := f.ctl.TogglePin(ctx, "lima_-12.0464_-77.0428")
			So(err, ShouldBeNil)
			So(pinned, ShouldBeTrue)

			Convey("Then a full document is written", func() {
				rec, err := f.mem.Get(ctx, "lima_-12.0464_-77.0428")
				So(err, ShouldBeNil)
				So(rec.IsPinned, ShouldBeTrue)
				So(rec.City, ShouldEqual, "Lima")
				So(rec.Lat, ShouldEqual, -12.0464)
			})

			Convey("Then the merged view moves it to the pinned source", func() {
				So(eventually(func() bool {
					for _, p := range f.views.View().Points {
						if p.Key == "lima_-12.0464_-77.0428" {
							return p.Source == types.SourcePinned
						}
					}
					return false
				}), ShouldBeTrue)
			})
		})

		Convey("When assigning a brand to an unpinned overlay city", func() {
			So(f.ctl.AssignBrand(ctx, "lima_-12.0464_-77.0428", "plaza"), ShouldBeNil)

			Convey("Then brand and pin land in one write", func() {
				rec, err := f.mem.Get(ctx, "lima_-12.0464_-77.0428")
				So(err, ShouldBeNil)
				So(rec.IsPinned, ShouldBeTrue)
				So(rec.Brand, ShouldEqual, model.BrandPlaza)
				So(f.mem.Writes(), ShouldEqual, 1)
			})
		})

		Convey("When assigning a brand to a pinned city", func() {
			So(f.ctl.AssignBrand(ctx, tokyo.ID, "Federation"), ShouldBeNil)
			rec, _ := f.mem.Get(ctx, tokyo.ID)
			So(rec.Brand, ShouldEqual, model.BrandFederation)
			So(rec.IsPinned, ShouldBeTrue)
		})

		Convey("When clearing the brand of a branded city", func() {
			So(f.ctl.AssignBrand(ctx, tokyo.ID, "academy"), ShouldBeNil)
			So(f.ctl.AssignBrand(ctx, tokyo.ID, ""), ShouldBeNil)

			Convey("Then the brand is gone and the pin stays", func() {
				rec, _ := f.mem.Get(ctx, tokyo.ID)
				So(rec.Brand, ShouldEqual, model.BrandNone)
				So(rec.IsPinned, ShouldBeTrue)
			})
		})

		Convey("When assigning an unknown brand", func() {
			err := f.ctl.AssignBrand(ctx, tokyo.ID, "museum")
			So(errors.Is(err, errkind.ErrInvalidBrand), ShouldBeTrue)
			So(f.mem.Writes(), ShouldEqual, 0)
		})

		Convey("When unpinning", func() {
			So(f.ctl.Unpin(ctx, tokyo.ID), ShouldBeNil)
			rec, _ := f.mem.Get(ctx, tokyo.ID)
			So(rec.IsPinned, ShouldBeFalse)
		})

		Convey("When selecting a pinned city", func() {
			sel, err := f.ctl.Select(ctx, tokyo.ID)
			So(err, ShouldBeNil)
			So(sel.Point.Source, ShouldEqual, types.SourcePinned)
			So(sel.Actions, ShouldResemble, []string{service.ActionAssignBrand, service.ActionUnpin})
			So(f.ctl.State(), ShouldEqual, service.StateIdle)
		})

		Convey("When selecting an unknown key", func() {
			_, err := f.ctl.Select(ctx, "atlantis_0.0000_0.0000")
			So(errors.Is(err, service.ErrUnknownCity), ShouldBeTrue)
		})

		Convey("When importing a file", func() {
			done := make(chan ingest.Outcome, 1)
			err := f.ctl.Import(ctx, "city,lat,lng\nTokyo,35.6762,139.6503\nKyoto,35.0116,135.7681\n", nil, func(o ingest.Outcome) { done <- o })
			So(err, ShouldBeNil)

			Convey("Then the run completes and keeps the existing pin", func() {
				var out ingest.Outcome
				select {
				case out = <-done:
				case <-time.After(2 * time.Second):
				}
				So(out.Status, ShouldEqual, ingest.StatusSuccess)
				So(out.Written, ShouldEqual, 2)
				rec, _ := f.mem.Get(ctx, tokyo.ID)
				So(rec.IsPinned, ShouldBeTrue)
			})
		})
	})
}

func TestControllerGate(t *testing.T) {
	Convey("Given a controller without mutation rights", t, func() {
		ctx := context.Background()
		f := newFixture(false)
		defer f.close()

		Convey("When any mutation is attempted", func() {
			_, toggleErr := f.ctl.TogglePin(ctx, tokyo.ID)
			pinErr := f.ctl.SetPin(ctx, osaka.ID, true)
			brandErr := f.ctl.AssignBrand(ctx, tokyo.ID, "academy")
			importErr := f.ctl.Import(ctx, "city,lat,lng\nOslo,59.9,10.7\n", nil, nil)

			Convey("Then each is rejected before reaching the store", func() {
				for _, err := range []error{toggleErr, pinErr, brandErr, importErr} {
					So(errors.Is(err, errkind.ErrPermissionDenied), ShouldBeTrue)
				}
				So(f.mem.Writes(), ShouldEqual, 0)
			})
		})

		Convey("When selecting a city", func() {
			sel, err := f.ctl.Select(ctx, tokyo.ID)
			So(err, ShouldBeNil)
			So(sel.Actions, ShouldBeEmpty)
		})
	})
}

func TestControllerSearch(t *testing.T) {
	Convey("Given a controller over pinned, overlay and catalog cities", t, func() {
		ctx := context.Background()
		f := newFixture(true)
		defer f.close()

		Convey("When searching for a city in both the pinned set and the overlay", func() {
			results := f.ctl.Search(ctx, "TOKYO")

			Convey("Then only the pinned record is returned", func() {
				So(results, ShouldHaveLength, 1)
				So(results[0].Source, ShouldEqual, types.SourcePinned)
				So(results[0].Country, ShouldEqual, "Japan")
			})
		})

		Convey("When searching a query the catalog answers", func() {
			results := f.ctl.Search(ctx, "japan")

			Convey("Then pinned cities come first and each key appears once", func() {
				So(results, ShouldHaveLength, 2)
				So(results[0].Key, ShouldEqual, tokyo.ID)
				So(results[1].Key, ShouldEqual, osaka.ID)
			})
		})

		Convey("When the query is blank", func() {
			So(f.ctl.Search(ctx, "   "), ShouldBeEmpty)
		})
	})

	Convey("Given a search limit", t, func() {
		ctx := context.Background()
		f := newFixture(true, service.WithSearchLimit(1))
		defer f.close()

		results := f.ctl.Search(ctx, "a")
		So(results, ShouldHaveLength, 1)
		So(results[0].Pinned, ShouldBeTrue)
	})
}

func TestControllerDebounce(t *testing.T) {
	Convey("Given a controller with a short debounce", t, func() {
		ctx := context.Background()
		var (
			mu      sync.Mutex
			queries []string
		)
		got := make(chan []types.Point, 4)
		f := newFixture(true,
			service.WithDebounce(30*time.Millisecond),
			service.WithResults(func(q string, res []types.Point) {
				mu.Lock()
				queries = append(queries, q)
				mu.Unlock()
				got <- res
			}),
		)
		defer f.close()

		Convey("When typing several keystrokes quickly", func() {
			f.ctl.Type(ctx, "l")
			f.ctl.Type(ctx, "li")
			So(f.ctl.State(), ShouldEqual, service.StateDebounced)
			f.ctl.Type(ctx, "lim")

			Convey("Then only the last query runs", func() {
				var res []types.Point
				select {
				case res = <-got:
				case <-time.After(2 * time.Second):
				}
				So(res, ShouldHaveLength, 1)
				So(res[0].City, ShouldEqual, "Lima")
				So(f.ctl.State(), ShouldEqual, service.StateResults)

				time.Sleep(60 * time.Millisecond)
				mu.Lock()
				defer mu.Unlock()
				So(queries, ShouldResemble, []string{"lim"})
			})
		})

		Convey("When the first query of the session names a stored unpinned city", func() {
			f.ctl.Type(ctx, "osaka")

			Convey("Then the delivered results include it from the catalog", func() {
				var res []types.Point
				select {
				case res = <-got:
				case <-time.After(2 * time.Second):
				}
				So(res, ShouldHaveLength, 1)
				So(res[0].Key, ShouldEqual, osaka.ID)
				So(res[0].Source, ShouldEqual, types.SourceCatalog)
			})
		})

		Convey("When the query is cleared", func() {
			f.ctl.Type(ctx, "tok")
			f.ctl.Type(ctx, "")

			Convey("Then the interaction returns to idle with no results", func() {
				So(f.ctl.State(), ShouldEqual, service.StateIdle)
				So(<-got, ShouldBeEmpty)
			})
		})
	})
}
