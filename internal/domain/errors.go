package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUngeocodedDemand is returned under the fail exclusion policy when demand
// exists for cities without coordinates.
var ErrUngeocodedDemand = errors.New("demand for cities without coordinates")

// SchemaError reports a required field absent from an input table header.
type SchemaError struct {
	Source string
	Field  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s is missing required field %q", e.Source, e.Field)
}

// ConfigurationError reports an invalid parameter, usually one that conflicts
// with the shape of the input.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Param, e.Reason)
}

// ExcludedCity is demand dropped because the city has no coordinates.
type ExcludedCity struct {
	City       string  `json:"city"`
	OrderCount int     `json:"order_count"`
	TotalValue float64 `json:"total_value"`
}

// DataLossWarning lists demand excluded by the geocoding lookup. It is an error
// value so the fail policy can return it; under drop and warn it is only
// reported.
type DataLossWarning struct {
	Cities []ExcludedCity `json:"cities"`
	Orders int            `json:"orders"`
	Value  float64        `json:"value"`
}

func (w *DataLossWarning) Error() string {
	return fmt.Sprintf("%d cities without coordinates (%d orders, %.2f value dropped): %s",
		len(w.Cities), w.Orders, w.Value, strings.Join(w.CityNames(), ", "))
}

// CityNames returns the excluded city names in order.
func (w *DataLossWarning) CityNames() []string {
	names := make([]string, len(w.Cities))
	for i, c := range w.Cities {
		names[i] = c.City
	}
	return names
}
