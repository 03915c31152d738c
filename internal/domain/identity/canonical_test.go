package identity_test

import (
	"testing"

	"github.com/okian/globepins/internal/domain/identity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCanonicalID(t *testing.T) {
	Convey("Given city names and coordinates", t, func() {
		Convey("When the input is plain ASCII", func() {
			So(identity.CanonicalID("Tokyo", 35.6762, 139.6503), ShouldEqual, "tokyo_35.6762_139.6503")
		})

		Convey("When inputs differ only by diacritics, case, suffix or precision", func() {
			a := identity.CanonicalID("São Paulo, Brazil", -23.55, -46.63)
			b := identity.CanonicalID("sao paulo", -23.5500, -46.6300)

			Convey("Then they collapse to one identity", func() {
				So(a, ShouldEqual, b)
				So(a, ShouldEqual, "sao_paulo_-23.5500_-46.6300")
			})
		})

		Convey("When coordinates differ beyond the fourth decimal", func() {
			So(identity.CanonicalID("Oslo", 59.91391, 10.75451), ShouldEqual, identity.CanonicalID("Oslo", 59.913911, 10.754512))
		})

		Convey("When rounding produces negative zero", func() {
			So(identity.CanonicalID("Null Island", -0.00001, 0.00001), ShouldEqual, "null_island_0.0000_0.0000")
		})

		Convey("When punctuation surrounds the name", func() {
			So(identity.CanonicalID("  --St. John's!!  ", 1, 2), ShouldEqual, "st_john_s_1.0000_2.0000")
		})
	})
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Zürich", "zurich"},
		{"Reykjavík", "reykjavik"},
		{"Ho Chi Minh City", "ho_chi_minh_city"},
		{"__a__b__", "a_b"},
		{"", ""},
		{"Ｔｏｋｙｏ", "tokyo"},
	}
	for _, c := range cases {
		if got := identity.Slug(c.in); got != c.want {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKeyOf(t *testing.T) {
	Convey("Given a record key lookup", t, func() {
		So(identity.KeyOf("custom_id", "Tokyo", 1, 2), ShouldEqual, "custom_id")
		So(identity.KeyOf(" ", "Tokyo, Japan", 1, 2), ShouldEqual, "tokyo_1.0000_2.0000")
	})
}
