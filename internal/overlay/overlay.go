// Package overlay loads the static reference dataset shown next to pinned
// cities. It is read once per session and never written back.
package overlay

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/logger"
)

//go:embed richest_cities.json
var embedded []byte

// Embedded names the built-in dataset.
const Embedded = "embedded"

const maxBody = 8 << 20

// ErrSource is returned when the dataset cannot be fetched or decoded.
var ErrSource = errors.New("overlay source unavailable")

// Loader reads the dataset from the built-in copy, a file or an HTTP(S) URL.
type Loader struct {
	source string
	client *http.Client
	log    logger.Logger
}

// NewLoader returns a loader for source. An empty source means Embedded.
func NewLoader(source string, opts ...Option) *Loader {
	if source == "" {
		source = Embedded
	}
	l := &Loader{source: source, client: http.DefaultClient, log: logger.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches and decodes the dataset. Entries without a name or with
// coordinates out of range are dropped. Every entry is tagged Richest.
func (l *Loader) Load(ctx context.Context) ([]model.OverlayRecord, error) {
	raw, err := l.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSource, l.source, err)
	}
	recs, skipped, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSource, l.source, err)
	}
	if skipped > 0 {
		l.log.Warn(ctx, "overlay entries skipped", logger.String("source", l.source), logger.Int("skipped", skipped))
	}
	return recs, nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	switch {
	case l.source == Embedded:
		return embedded, nil
	case strings.HasPrefix(l.source, "http://"), strings.HasPrefix(l.source, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxBody))
	default:
		return os.ReadFile(l.source)
	}
}

// entry accepts both the {city, country} shape and the older
// {label, iconUrl} shape where the label reads "City - note".
type entry struct {
	City    string   `json:"city"`
	Name    string   `json:"name"`
	Country string   `json:"country"`
	Label   string   `json:"label"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// Decode parses a JSON array of overlay entries and reports how many were
// dropped.
func Decode(raw []byte) ([]model.OverlayRecord, int, error) {
	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, err
	}
	out := make([]model.OverlayRecord, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		city := firstNonEmpty(e.City, e.Name, labelCity(e.Label))
		if city == "" || e.Lat == nil || e.Lng == nil || !model.ValidCoordinates(*e.Lat, *e.Lng) {
			skipped++
			continue
		}
		out = append(out, model.OverlayRecord{
			City:    city,
			Country: strings.TrimSpace(e.Country),
			Label:   strings.TrimSpace(e.Label),
			Lat:     *e.Lat,
			Lng:     *e.Lng,
			Richest: true,
		})
	}
	return out, skipped, nil
}

func labelCity(label string) string {
	city, _, _ := strings.Cut(label, " - ")
	city, _, _ = strings.Cut(city, ",")
	return city
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
