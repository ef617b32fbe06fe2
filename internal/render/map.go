package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/couchcryptid/demand-siting/internal/domain"
)

// MapOptions controls the map page.
type MapOptions struct {
	Title string
	Zoom  int
}

// DefaultMapOptions is a statewide view of São Paulo.
func DefaultMapOptions() MapOptions {
	return MapOptions{Title: "Centros de Distribuição Sugeridos", Zoom: 7}
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.facility-icon { color: #c62828; font-size: 28px; line-height: 28px; text-align: center; text-shadow: 0 0 3px #fff; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var data = {{.Features}};
var map = L.map('map').setView([{{.Center.Lat}}, {{.Center.Lon}}], {{.Zoom}});
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  maxZoom: 19,
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
L.geoJSON(data, {
  pointToLayer: function (feature, latlng) {
    if (feature.properties.kind === 'facility') {
      return L.marker(latlng, {
        icon: L.divIcon({className: 'facility-icon', html: '★', iconSize: [28, 28]}),
        zIndexOffset: 1000
      });
    }
    return L.circleMarker(latlng, {
      radius: feature.properties.radius,
      color: 'blue',
      fillColor: 'blue',
      fillOpacity: 0.4,
      weight: 1
    });
  },
  onEachFeature: function (feature, layer) {
    layer.bindPopup(feature.properties.popup);
  }
}).addTo(map);
</script>
</body>
</html>
`))

type mapPage struct {
	Title    string
	Center   domain.GeoPoint
	Zoom     int
	Features template.JS
}

// Map writes a self-contained Leaflet page with a circle marker per city and
// a star marker per facility.
func Map(w io.Writer, demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate, opts MapOptions) error {
	if opts.Zoom <= 0 {
		opts.Zoom = DefaultMapOptions().Zoom
	}
	if opts.Title == "" {
		opts.Title = DefaultMapOptions().Title
	}

	// encoding/json escapes <, > and & so the collection is safe inside <script>.
	features, err := FeatureCollection(demand, facilities).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal map features: %w", err)
	}

	return mapTemplate.Execute(w, mapPage{
		Title:    opts.Title,
		Center:   mapCenter(demand, facilities),
		Zoom:     opts.Zoom,
		Features: template.JS(features), //nolint:gosec // JSON produced above, HTML-escaped
	})
}
