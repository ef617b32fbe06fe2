package domain

import (
	"context"
	"fmt"
)

// GeocodingResult contains location data returned by a geocoding provider.
// Zero coordinates mean the provider found nothing.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Found reports whether the result carries coordinates.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Geocoder resolves city names to coordinates.
type Geocoder interface {
	// ForwardGeocode converts a normalized city name and region code to coordinates.
	ForwardGeocode(ctx context.Context, city, region string) (GeocodingResult, error)
}

// CoordinateTable is the static city → coordinate reference data. Keys are
// normalized city names.
type CoordinateTable map[string]GeoPoint

// NewCoordinateTable normalizes keys and validates coordinates. Two spellings
// folding to the same key must agree on the point.
func NewCoordinateTable(raw map[string]GeoPoint) (CoordinateTable, error) {
	t := make(CoordinateTable, len(raw))
	for name, p := range raw {
		key := NormalizeCity(name)
		if key == "" {
			return nil, &ConfigurationError{Param: "coordinates", Reason: fmt.Sprintf("empty city name %q", name)}
		}
		if !p.Valid() {
			return nil, &ConfigurationError{Param: "coordinates", Reason: fmt.Sprintf("%s: point (%g, %g) out of range", name, p.Lat, p.Lon)}
		}
		if prev, ok := t[key]; ok && prev != p {
			return nil, &ConfigurationError{Param: "coordinates", Reason: fmt.Sprintf("conflicting points for %q", key)}
		}
		t[key] = p
	}
	return t, nil
}

// DefaultCoordinates is the built-in table for the state of São Paulo.
func DefaultCoordinates() CoordinateTable {
	return CoordinateTable{
		"sao paulo":      {Lat: -23.55052, Lon: -46.633308},
		"campinas":       {Lat: -22.909938, Lon: -47.062633},
		"santos":         {Lat: -23.960833, Lon: -46.333889},
		"sorocaba":       {Lat: -23.5015, Lon: -47.4526},
		"ribeirao preto": {Lat: -21.1775, Lon: -47.8103},
	}
}

// Lookup returns the point for a normalized city name.
func (t CoordinateTable) Lookup(city string) (GeoPoint, bool) {
	p, ok := t[city]
	return p, ok
}

