package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Table writes city, order count and total value, largest value first.
func Table(w io.Writer, demand []domain.GeocodedDemand) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "customer_city\ttotal_count\ttotal_value\t")
	for _, d := range ByValue(demand) {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t\n", d.City, d.OrderCount, d.TotalValue)
	}
	return tw.Flush()
}

// FacilityTable writes one line per facility with its location, the demand
// it serves and the demand-weighted mean great-circle distance to its cities.
func FacilityTable(w io.Writer, demand []domain.GeocodedDemand, facilities []domain.FacilityCandidate) error {
	byCity := make(map[string]domain.GeocodedDemand, len(demand))
	for _, d := range demand {
		byCity[d.City] = d
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "rank\tid\tlat\tlon\torders\tvalue\tmean_km\tcities")
	for _, f := range facilities {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%d\t%.2f\t%.1f\t%s\n",
			f.Rank, f.ID, f.Location.Lat, f.Location.Lon,
			f.AssignedOrders, f.AssignedWeightMass,
			MeanDistanceKm(f, byCity),
			strings.Join(f.Cities, ", "),
		)
	}
	return tw.Flush()
}

// MeanDistanceKm is the value-weighted mean great-circle distance from a
// facility to the cities assigned to it. Unweighted when every value is zero.
func MeanDistanceKm(f domain.FacilityCandidate, byCity map[string]domain.GeocodedDemand) float64 {
	center := orb.Point{f.Location.Lon, f.Location.Lat}

	var sum, weight, plain float64
	var n int
	for _, name := range f.Cities {
		d, ok := byCity[name]
		if !ok {
			continue
		}
		km := geo.Distance(center, orb.Point{d.Location.Lon, d.Location.Lat}) / 1000
		sum += km * d.TotalValue
		weight += d.TotalValue
		plain += km
		n++
	}
	switch {
	case weight > 0:
		return sum / weight
	case n > 0:
		return plain / float64(n)
	default:
		return 0
	}
}
