package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadCoordinates returns the coordinate table at path, or the built-in table
// when path is empty. The file is a YAML mapping of city name to {lat, lon}:
//
//	São Paulo: {lat: -23.55052, lon: -46.633308}
//	campinas:  {lat: -22.909938, lon: -47.062633}
func LoadCoordinates(path string) (domain.CoordinateTable, error) {
	if path == "" {
		return domain.DefaultCoordinates(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coordinates: %w", err)
	}
	return ParseCoordinates(data)
}

// ParseCoordinates decodes a YAML coordinate table.
func ParseCoordinates(data []byte) (domain.CoordinateTable, error) {
	var raw map[string]domain.GeoPoint
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}
	if len(raw) == 0 {
		return nil, &domain.ConfigurationError{Param: "coordinates", Reason: "table is empty"}
	}
	return domain.NewCoordinateTable(raw)
}

// MarshalCoordinates encodes a table in the format ParseCoordinates reads.
func MarshalCoordinates(t domain.CoordinateTable) ([]byte, error) {
	return yaml.Marshal(map[string]domain.GeoPoint(t))
}
