// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/okian/globepins/internal/domain/errkind"
)

// Collection is the remote collection holding CityRecords.
const Collection = "all_cities"

// Brand classifies a pinned city. The zero value means unset.
type Brand string

// Allowed brands.
const (
	BrandNone       Brand = ""
	BrandAcademy    Brand = "academy"
	BrandFederation Brand = "federation"
	BrandPlaza      Brand = "plaza"
)

// Brands lists the assignable brands in display order.
var Brands = []Brand{BrandAcademy, BrandFederation, BrandPlaza}

// ParseBrand normalizes s and checks it against the allowed set.
func ParseBrand(s string) (Brand, error) {
	b := Brand(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return BrandNone, errkind.Newf("model.parse_brand", errkind.ErrInvalidBrand, "%q (use academy | federation | plaza)", s)
	}
	return b, nil
}

// Valid reports whether b is one of the assignable brands.
func (b Brand) Valid() bool {
	switch b {
	case BrandAcademy, BrandFederation, BrandPlaza:
		return true
	}
	return false
}

// CityRecord is the authoritative document stored in the "all_cities" collection.
type CityRecord struct {
	ID        string  `json:"id"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Label     string  `json:"label"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	IsPinned  bool    `json:"is_pinned"`
	Brand     Brand   `json:"brand,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

// UnmarshalJSON accepts documents written by older clients: is_pinned may be
// true, "true" or 1 and brand may be null or mixed case.
func (r *CityRecord) UnmarshalJSON(data []byte) error {
	type plain CityRecord
	aux := struct {
		*plain
		IsPinned any     `json:"is_pinned"`
		Brand    *string `json:"brand"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.IsPinned = truthy(aux.IsPinned)
	r.Brand = BrandNone
	if aux.Brand != nil {
		r.Brand = Brand(strings.ToLower(strings.TrimSpace(*aux.Brand)))
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	case float64:
		return t == 1
	}
	return false
}

// Validate checks the required fields and coordinate ranges.
func (r CityRecord) Validate() error {
	const op = "model.validate_city"
	switch {
	case strings.TrimSpace(r.ID) == "":
		return errkind.Newf(op, errkind.ErrRowInvalid, "missing id")
	case strings.TrimSpace(r.City) == "" && strings.TrimSpace(r.Label) == "":
		return errkind.Newf(op, errkind.ErrRowInvalid, "missing city")
	case !ValidCoordinates(r.Lat, r.Lng):
		return errkind.Newf(op, errkind.ErrRowInvalid, "coordinates %v,%v out of range", r.Lat, r.Lng)
	}
	return nil
}

// DisplayName returns the label, falling back to the city.
func (r CityRecord) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}
	return r.City
}

// OverlayRecord is an entry of the static reference dataset. It is never
// written back and carries no pin or brand state.
type OverlayRecord struct {
	City    string  `json:"city"`
	Country string  `json:"country,omitempty"`
	Label   string  `json:"label,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Richest bool    `json:"richest"`
}

// DisplayName returns the label, deriving it from city and country when unset.
func (o OverlayRecord) DisplayName() string {
	if o.Label != "" {
		return o.Label
	}
	return Label(o.City, o.Country)
}

// Label builds the display string "{city}, {country}" or city alone.
func Label(city, country string) string {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if country == "" {
		return city
	}
	return fmt.Sprintf("%s, %s", city, country)
}

// ValidCoordinates reports whether lat and lng name a point on the sphere:
// both finite, lat in [-90, 90] and lng in [-180, 180].
func ValidCoordinates(lat, lng float64) bool {
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}

// Checkpoint records ingestion progress so an interrupted import can resume.
type Checkpoint struct {
	NextRowOffset int `json:"nextRowOffset"`
}
