package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ExclusionPolicy decides what happens to demand for cities without
// coordinates.
type ExclusionPolicy string

const (
	PolicyDrop ExclusionPolicy = "drop" // exclude silently
	PolicyWarn ExclusionPolicy = "warn" // exclude and log a DataLossWarning
	PolicyFail ExclusionPolicy = "fail" // abort the run
)

// ParseExclusionPolicy maps a configuration string to a policy.
func ParseExclusionPolicy(s string) (ExclusionPolicy, error) {
	switch p := ExclusionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyDrop, PolicyWarn, PolicyFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown exclusion policy %q (want drop, warn or fail)", s)
	}
}

// GeocodeDemand joins demand records with coordinates. The static table is
// consulted first; fallback, when non-nil, is asked for the rest. A fallback
// failure is logged and the city treated as unknown.
//
// The returned warning is nil when nothing was excluded. Under PolicyFail a
// non-empty exclusion is returned as an error wrapping ErrUngeocodedDemand.
func GeocodeDemand(
	ctx context.Context,
	demand []DemandRecord,
	table CoordinateTable,
	fallback Geocoder,
	region string,
	policy ExclusionPolicy,
	logger *slog.Logger,
) ([]GeocodedDemand, *DataLossWarning, error) {
	out := make([]GeocodedDemand, 0, len(demand))
	var excluded []ExcludedCity

	for _, rec := range demand {
		if p, ok := table.Lookup(rec.City); ok {
			out = append(out, GeocodedDemand{DemandRecord: rec, Location: p})
			continue
		}
		if p, ok := fallbackLookup(ctx, fallback, rec.City, region, logger); ok {
			out = append(out, GeocodedDemand{DemandRecord: rec, Location: p})
			continue
		}
		excluded = append(excluded, ExcludedCity(rec))
	}

	if len(excluded) == 0 {
		return out, nil, nil
	}

	warning := &DataLossWarning{Cities: excluded}
	for _, c := range excluded {
		warning.Orders += c.OrderCount
		warning.Value += c.TotalValue
	}

	switch policy {
	case PolicyFail:
		return nil, warning, fmt.Errorf("%w: %w", ErrUngeocodedDemand, warning)
	case PolicyWarn:
		logger.Warn("demand excluded: cities without coordinates",
			"cities", warning.CityNames(),
			"city_count", len(warning.Cities),
			"orders_dropped", warning.Orders,
			"value_dropped", warning.Value,
		)
	case PolicyDrop:
		logger.Debug("demand excluded: cities without coordinates", "city_count", len(warning.Cities))
	}
	return out, warning, nil
}

func fallbackLookup(ctx context.Context, geocoder Geocoder, city, region string, logger *slog.Logger) (GeoPoint, bool) {
	if geocoder == nil {
		return GeoPoint{}, false
	}

	result, err := geocoder.ForwardGeocode(ctx, city, region)
	if err != nil {
		logger.Warn("fallback geocoding failed",
			"city", city,
			"region", region,
			"error", err,
		)
		return GeoPoint{}, false
	}
	if !result.Found() {
		return GeoPoint{}, false
	}

	p := GeoPoint{Lat: result.Lat, Lon: result.Lon}
	if !p.Valid() {
		logger.Warn("fallback geocoder returned out-of-range point", "city", city, "lat", p.Lat, "lon", p.Lon)
		return GeoPoint{}, false
	}
	logger.Info("city geocoded by fallback",
		"city", city,
		"lat", p.Lat,
		"lon", p.Lon,
		"place", result.FormattedAddress,
		"confidence", result.Confidence,
	)
	return p, true
}
