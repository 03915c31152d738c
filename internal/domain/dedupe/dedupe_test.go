package dedupe_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/okian/globepins/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeduper(t *testing.T) {
	Convey("Given a new Deduper", t, func() {
		d := dedupe.New(dedupe.WithCapacity(8))

		Convey("When recording keys", func() {
			first := d.SeenAndRecord("tokyo_35.6762_139.6503")
			other := d.SeenAndRecord("oslo_59.9139_10.7522")
			again := d.SeenAndRecord("tokyo_35.6762_139.6503")

			Convey("Then only the repeat is reported as seen", func() {
				So(first, ShouldBeFalse)
				So(other, ShouldBeFalse)
				So(again, ShouldBeTrue)
			})
		})

		Convey("When keys are recorded concurrently", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(fmt.Sprintf("k%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each key is new exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.SeenAndRecord("k99"), ShouldBeTrue)
			})
		})
	})
}
