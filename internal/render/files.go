package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/demand-siting/internal/domain"
)

// FileWriter writes the map, chart and optional GeoJSON into a directory.
type FileWriter struct {
	Dir         string
	MapFile     string
	ChartFile   string
	GeoJSONFile string // empty skips the GeoJSON artifact
	Map         MapOptions
}

// WriteArtifacts renders everything in memory first so a render failure
// leaves no partial files behind. It returns the paths written.
func (fw FileWriter) WriteArtifacts(demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) ([]string, error) {
	type artifact struct {
		name   string
		render func(io.Writer) error
	}
	artifacts := []artifact{
		{fw.MapFile, func(w io.Writer) error { return Map(w, demand, facilities, fw.Map) }},
		{fw.ChartFile, func(w io.Writer) error { return Chart(w, demand) }},
	}
	if fw.GeoJSONFile != "" {
		artifacts = append(artifacts, artifact{fw.GeoJSONFile, func(w io.Writer) error { return GeoJSON(w, demand, facilities) }})
	}

	rendered := make([][]byte, len(artifacts))
	for i, a := range artifacts {
		var buf bytes.Buffer
		if err := a.render(&buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", a.name, err)
		}
		rendered[i] = buf.Bytes()
	}

	if err := os.MkdirAll(fw.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for i, a := range artifacts {
		path := filepath.Join(fw.Dir, a.name)
		if err := os.WriteFile(path, rendered[i], 0o644); err != nil { //nolint:gosec // artifacts are meant to be shared
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
