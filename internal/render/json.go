package render

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
)

const geohashPrecision = 7

// Marker is one drawable pin.
type Marker struct {
	types.Point
	Icon    string `json:"icon"`
	Size    int    `json:"size"`
	Geohash string `json:"geohash"`
}

// NewMarker decorates p for drawing.
func NewMarker(p types.Point, size int) Marker {
	return Marker{Point: p, Icon: Icon(p), Size: size, Geohash: Geohash(p.Lat, p.Lng)}
}

// Icon picks the icon key: brand first, then pin, then reference dataset.
func Icon(p types.Point) string {
	switch {
	case p.Brand != model.BrandNone:
		return "brand-" + string(p.Brand)
	case p.Pinned:
		return "pin"
	case p.Richest:
		return "richest"
	default:
		return "city"
	}
}

// Geohash encodes the coordinates at marker precision.
func Geohash(lat, lng float64) string {
	h := geohash.Encode(lat, lng)
	if len(h) > geohashPrecision {
		h = h[:geohashPrecision]
	}
	return h
}

type frame struct {
	Type    string   `json:"type"`
	Markers []Marker `json:"markers,omitempty"`
	Focus   *Focus   `json:"focus,omitempty"`
}

// JSONSink writes one JSON document per frame to w.
type JSONSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	size int
}

// NewJSONSink writes frames sized for h to w.
func NewJSONSink(w io.Writer, h Hints) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), size: PinSize(h)}
}

// Render implements Sink.
func (s *JSONSink) Render(ctx context.Context, points []types.Point) error {
	markers := make([]Marker, len(points))
	for i, p := range points {
		markers[i] = NewMarker(p, s.size)
	}
	return s.write(frame{Type: "render", Markers: markers})
}

// Focus implements Sink.
func (s *JSONSink) Focus(ctx context.Context, f Focus) error {
	return s.write(frame{Type: "focus", Focus: &f})
}

func (s *JSONSink) write(f frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(f)
}
