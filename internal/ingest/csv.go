package ingest

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/identity"
	"github.com/okian/globepins/internal/domain/model"
)

// Header synonyms, tried in order.
var (
	cityColumns    = []string{"city", "name", "town"}
	latColumns     = []string{"lat", "latitude", "y"}
	lngColumns     = []string{"lng", "lon", "long", "longitude", "x"}
	countryColumns = []string{"country", "country_name", "iso2", "iso3"}
)

// Parsed is the validated content of one CSV file.
type Parsed struct {
	// Candidates are unique by canonical id, in first-seen order.
	Candidates []model.CityRecord
	// Rows is the number of data rows after blank lines were dropped.
	Rows int
	// Malformed counts rejected rows.
	Malformed int
	// Duplicates counts rows merged into an earlier row with the same id.
	Duplicates int
}

type columns struct {
	city, lat, lng, country int
}

// Parse splits content into validated candidate records. Row defects are
// counted, never returned; only a structurally unusable file is an error.
func Parse(content string) (Parsed, error) {
	const op = "ingest.parse"

	lines := splitLines(content)
	if len(lines) < 2 {
		return Parsed{}, errkind.Newf(op, errkind.ErrMalformedInput, "need a header and at least one data row, got %d non-blank lines", len(lines))
	}

	header, err := splitFields(lines[0])
	if err != nil {
		return Parsed{}, errkind.Wrap(op, errkind.ErrMalformedInput, err)
	}
	for i := range header {
		header[i] = strings.ToLower(header[i])
	}
	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return Parsed{}, errkind.Newf(op, errkind.ErrMissingColumns, "need city, lat, lng (country optional); missing %s", strings.Join(missing, ", "))
	}

	out := Parsed{Rows: len(lines) - 1}
	index := make(map[string]int, len(lines))
	for _, line := range lines[1:] {
		rec, ok := parseRow(line, cols)
		if !ok {
			out.Malformed++
			continue
		}
		if pos, seen := index[rec.ID]; seen {
			out.Candidates[pos] = rec
			out.Duplicates++
			continue
		}
		index[rec.ID] = len(out.Candidates)
		out.Candidates = append(out.Candidates, rec)
	}
	return out, nil
}

func splitLines(content string) []string {
	raw := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	lines := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSuffix(l, "\r"))
		}
	}
	return lines
}

// splitFields splits one line on commas. A field may be double-quoted to
// carry commas; empty fields keep their position.
func splitFields(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields, nil
}

func resolveColumns(header []string) (columns, []string) {
	cols := columns{
		city:    findColumn(header, cityColumns),
		lat:     findColumn(header, latColumns),
		lng:     findColumn(header, lngColumns),
		country: findColumn(header, countryColumns),
	}
	var missing []string
	if cols.city < 0 {
		missing = append(missing, "city")
	}
	if cols.lat < 0 {
		missing = append(missing, "lat")
	}
	if cols.lng < 0 {
		missing = append(missing, "lng")
	}
	return cols, missing
}

// findColumn returns the index of the first header matching a synonym,
// trying synonyms in order.
func findColumn(header, synonyms []string) int {
	for _, s := range synonyms {
		for i, h := range header {
			if h == s {
				return i
			}
		}
	}
	return -1
}

func parseRow(line string, cols columns) (model.CityRecord, bool) {
	v, err := splitFields(line)
	if err != nil {
		return model.CityRecord{}, false
	}
	need := max(cols.city, cols.lat, cols.lng)
	if len(v) <= need {
		return model.CityRecord{}, false
	}

	city := v[cols.city]
	if city == "" {
		return model.CityRecord{}, false
	}
	lat, ok := parseCoord(v[cols.lat])
	if !ok {
		return model.CityRecord{}, false
	}
	lng, ok := parseCoord(v[cols.lng])
	if !ok {
		return model.CityRecord{}, false
	}
	if !model.ValidCoordinates(lat, lng) {
		return model.CityRecord{}, false
	}

	var country string
	if cols.country >= 0 && cols.country < len(v) {
		country = v[cols.country]
	}
	return model.CityRecord{
		ID:      identity.CanonicalID(city, lat, lng),
		City:    city,
		Country: country,
		Label:   model.Label(city, country),
		Lat:     lat,
		Lng:     lng,
	}, true
}

func parseCoord(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
