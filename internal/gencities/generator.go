// Package gencities writes synthetic city CSV files for exercising the
// ingestion pipeline: mixed header synonyms, quoted fields, malformed rows
// and repeated cities.
package gencities

import (
	"context"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/globepins/pkg/logger"
)

// Coordinate ranges for generated cities.
const (
	maxLat = 85.0
	maxLng = 180.0
)

// Header layouts, each a valid synonym set in a different column order.
var headers = [][]string{
	{"city", "country", "lat", "lng"},
	{"Name", "Latitude", "Longitude", "Country_Name"},
	{"lon", "lat", "town", "iso2", "population"},
}

var prefixes = []string{"Port", "San", "New", "Lake", "Fort", "Saint", "North", "Mount"}

var countries = []string{"Norway", "Japan", "Peru", "Korea, Republic of", "Brazil", "Bolivia, Plurinational State of", "Kenya", ""}

type field int

const (
	fieldCity field = iota
	fieldCountry
	fieldLat
	fieldLng
	fieldExtra
)

func layout(header []string) []field {
	out := make([]field, len(header))
	for i, h := range header {
		switch strings.ToLower(h) {
		case "city", "name", "town":
			out[i] = fieldCity
		case "country", "country_name", "iso2":
			out[i] = fieldCountry
		case "lat", "latitude":
			out[i] = fieldLat
		case "lng", "lon", "longitude":
			out[i] = fieldLng
		default:
			out[i] = fieldExtra
		}
	}
	return out
}

type row struct {
	city, country string
	lat, lng      string
}

// Generate writes cfg.Rows data rows after a header to w.
func Generate(ctx context.Context, cfg *Config, w io.Writer) (Stats, error) {
	if cfg.Rows < 0 {
		return Stats{}, fmt.Errorf("rows must not be negative, got %d", cfg.Rows)
	}
	if cfg.MalformedRatio < 0 || cfg.DuplicateRatio < 0 || cfg.MalformedRatio+cfg.DuplicateRatio > 1 {
		return Stats{}, fmt.Errorf("ratios must be non-negative and sum to at most 1")
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], cfg.Seed)
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	style := cfg.HeaderStyle
	if style < 0 || style >= len(headers) {
		style = rng.IntN(len(headers))
	}
	header := headers[style]
	fields := layout(header)
	stats := Stats{Header: header}

	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return stats, err
	}

	var good []row
	for i := 0; i < cfg.Rows; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		var r row
		switch p := rng.Float64(); {
		case p < cfg.MalformedRatio:
			r = malformed(rng, i)
			stats.Malformed++
		case p < cfg.MalformedRatio+cfg.DuplicateRatio && len(good) > 0:
			r = good[rng.IntN(len(good))]
			stats.Duplicates++
		default:
			var err error
			if r, err = fresh(rng, src); err != nil {
				return stats, err
			}
			good = append(good, r)
			stats.Unique++
		}
		if err := out.Write(r.record(fields)); err != nil {
			return stats, err
		}
		stats.Rows++
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return stats, err
	}

	logger.Default().Debug(ctx, "generated cities",
		logger.Int("rows", stats.Rows),
		logger.Int("unique", stats.Unique),
		logger.Int("malformed", stats.Malformed),
		logger.Int("duplicates", stats.Duplicates),
	)
	return stats, nil
}

// fresh invents a city with a unique name.
func fresh(rng *rand.Rand, src io.Reader) (row, error) {
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return row{}, err
	}
	name := prefixes[rng.IntN(len(prefixes))] + " " + strings.ToUpper(id.String()[:8])
	return row{
		city:    name,
		country: countries[rng.IntN(len(countries))],
		lat:     coord(rng.Float64()*2*maxLat - maxLat),
		lng:     coord(rng.Float64()*2*maxLng - maxLng),
	}, nil
}

// malformed returns a row ingestion must reject, cycling through defects.
func malformed(rng *rand.Rand, i int) row {
	r := row{city: "Broken " + strconv.Itoa(i), country: "Nowhere", lat: coord(rng.Float64() * 10), lng: coord(rng.Float64() * 10)}
	switch i % 4 {
	case 0:
		r.lat = "200"
	case 1:
		r.city = ""
	case 2:
		r.lng = "east"
	default:
		r.lat = "NaN"
	}
	return r
}

func coord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', 4, 64)
}

func (r row) record(fields []field) []string {
	rec := make([]string, len(fields))
	for i, f := range fields {
		switch f {
		case fieldCity:
			rec[i] = r.city
		case fieldCountry:
			rec[i] = r.country
		case fieldLat:
			rec[i] = r.lat
		case fieldLng:
			rec[i] = r.lng
		case fieldExtra:
			rec[i] = "0"
		}
	}
	return rec
}
