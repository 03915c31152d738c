package gencities

import (
	"bytes"
	"context"
	"testing"

	"github.com/okian/globepins/internal/ingest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a generator configuration", t, func() {
		ctx := context.Background()
		cfg := &Config{Rows: 500, MalformedRatio: 0.1, DuplicateRatio: 0.1, Seed: 42}

		for style := range headers {
			Convey("When generating with header layout "+headers[style][0], func() {
				cfg.HeaderStyle = style
				var buf bytes.Buffer
				stats, err := Generate(ctx, cfg, &buf)
				So(err, ShouldBeNil)

				Convey("Then ingestion counts the same rows", func() {
					parsed, err := ingest.Parse(buf.String())
					So(err, ShouldBeNil)
					So(parsed.Rows, ShouldEqual, 500)
					So(parsed.Malformed, ShouldEqual, stats.Malformed)
					So(parsed.Duplicates, ShouldEqual, stats.Duplicates)
					So(len(parsed.Candidates), ShouldEqual, stats.Unique)
					So(stats.Malformed, ShouldBeGreaterThan, 0)
					So(stats.Duplicates, ShouldBeGreaterThan, 0)
				})
			})
		}

		Convey("When generating twice with the same seed", func() {
			var a, b bytes.Buffer
			_, err := Generate(ctx, cfg, &a)
			So(err, ShouldBeNil)
			_, err = Generate(ctx, cfg, &b)
			So(err, ShouldBeNil)
			So(a.String(), ShouldEqual, b.String())
		})

		Convey("When the ratios are invalid", func() {
			cfg.MalformedRatio = 0.8
			cfg.DuplicateRatio = 0.5
			_, err := Generate(ctx, cfg, &bytes.Buffer{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMalformedRowsCycle(t *testing.T) {
	seen := map[string]bool{}
	cfg := &Config{Rows: 8, MalformedRatio: 1, Seed: 7}
	var buf bytes.Buffer
	stats, err := Generate(context.Background(), cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Malformed != 8 || stats.Unique != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for _, s := range []string{"200", "east", "NaN"} {
		seen[s] = bytes.Contains(buf.Bytes(), []byte(s))
	}
	for s, ok := range seen {
		if !ok {
			t.Errorf("expected a row with %q", s)
		}
	}
}
