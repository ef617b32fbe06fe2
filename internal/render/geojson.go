// Package render turns geocoded demand and facility candidates into the
// run's artifacts: a Leaflet map, a bar chart, GeoJSON and text tables.
// Renderers only read their inputs.
package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"sort"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Feature kinds carried in the "kind" property.
const (
	KindCity     = "city"
	KindFacility = "facility"
)

var (
	titleCaser = cases.Title(language.BrazilianPortuguese)
	printer    = message.NewPrinter(language.BrazilianPortuguese)
)

// MarkerRadius is the circle radius, in pixels, for a city with the given
// demand value.
func MarkerRadius(value float64) float64 {
	return 6 + math.Log1p(math.Max(value, 0))/2
}

// CityLabel formats a normalized city name for display.
func CityLabel(city string) string {
	return titleCaser.String(city)
}

func formatMoney(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

// FeatureCollection builds one point feature per city followed by one per
// facility.
func FeatureCollection(demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, d := range demand {
		f := geojson.NewFeature(orb.Point{d.Location.Lon, d.Location.Lat})
		f.Properties["kind"] = KindCity
		f.Properties["city"] = d.City
		f.Properties["orders"] = d.OrderCount
		f.Properties["value"] = d.TotalValue
		f.Properties["radius"] = MarkerRadius(d.TotalValue)
		f.Properties["popup"] = fmt.Sprintf("Cidade: %s<br>Total de Pedidos: %d<br>Valor Total: %s",
			html.EscapeString(CityLabel(d.City)), d.OrderCount, formatMoney(d.TotalValue))
		fc.Append(f)
	}

	for _, c := range facilities {
		f := geojson.NewFeature(orb.Point{c.Location.Lon, c.Location.Lat})
		f.ID = c.ID
		f.Properties["kind"] = KindFacility
		f.Properties["id"] = c.ID
		f.Properties["rank"] = c.Rank
		f.Properties["assigned_value"] = c.AssignedWeightMass
		f.Properties["assigned_orders"] = c.AssignedOrders
		f.Properties["cities"] = c.Cities
		f.Properties["popup"] = fmt.Sprintf("Centro de Distribuição Sugerido #%d", c.Rank)
		fc.Append(f)
	}
	return fc
}

// GeoJSON writes the feature collection for demand and facilities.
func GeoJSON(w io.Writer, demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) error {
	data, err := FeatureCollection(demand, facilities).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ByValue returns a copy of demand sorted by total value descending, then
// city ascending.
func ByValue(demand []domain.GeocodedDemand) []domain.GeocodedDemand {
	out := make([]domain.GeocodedDemand, len(demand))
	copy(out, demand)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalValue != out[j].TotalValue {
			return out[i].TotalValue > out[j].TotalValue
		}
		return out[i].City < out[j].City
	})
	return out
}

// mapCenter is the center of the demand bounding box, falling back to the
// facilities and then to São Paulo.
func mapCenter(demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) domain.GeoPoint {
	var mp orb.MultiPoint
	for _, d := range demand {
		mp = append(mp, orb.Point{d.Location.Lon, d.Location.Lat})
	}
	if len(mp) == 0 {
		for _, f := range facilities {
			mp = append(mp, orb.Point{f.Location.Lon, f.Location.Lat})
		}
	}
	if len(mp) == 0 {
		return domain.GeoPoint{Lat: -23.55052, Lon: -46.633308}
	}
	c := mp.Bound().Center()
	return domain.GeoPoint{Lat: c.Lat(), Lon: c.Lon()}
}
