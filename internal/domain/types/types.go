// Package types contains common types used across the application
package types

import (
	"github.com/okian/globepins/internal/domain/identity"
	"github.com/okian/globepins/internal/domain/model"
)

// Source tells where a merged view entry came from.
type Source string

// Sources.
const (
	SourcePinned  Source = "pinned"
	SourceCatalog Source = "catalog"
	SourceOverlay Source = "overlay"
)

// Point is one render-ready entry of the merged view.
type Point struct {
	Key     string      `json:"key"`
	City    string      `json:"city"`
	Country string      `json:"country,omitempty"`
	Label   string      `json:"label"`
	Lat     float64     `json:"lat"`
	Lng     float64     `json:"lng"`
	Pinned  bool        `json:"is_pinned"`
	Brand   model.Brand `json:"brand,omitempty"`
	Richest bool        `json:"richest,omitempty"`
	Source  Source      `json:"source"`
}

// FromCity converts a stored record into a Point.
func FromCity(r model.CityRecord, src Source) Point {
	return Point{
		Key:     identity.KeyOf(r.ID, r.DisplayName(), r.Lat, r.Lng),
		City:    r.City,
		Country: r.Country,
		Label:   r.DisplayName(),
		Lat:     r.Lat,
		Lng:     r.Lng,
		Pinned:  r.IsPinned,
		Brand:   r.Brand,
		Source:  src,
	}
}

// FromOverlay converts a reference dataset entry into a Point.
func FromOverlay(o model.OverlayRecord) Point {
	name := o.City
	if name == "" {
		name = o.Label
	}
	return Point{
		Key:     identity.CanonicalID(name, o.Lat, o.Lng),
		City:    o.City,
		Country: o.Country,
		Label:   o.DisplayName(),
		Lat:     o.Lat,
		Lng:     o.Lng,
		Richest: o.Richest,
		Source:  SourceOverlay,
	}
}
