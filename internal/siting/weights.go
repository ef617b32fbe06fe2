package siting

import (
	"math"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// sample is one clustering point. rec indexes the originating demand record.
type sample struct {
	pt  orb.Point
	w   float64
	rec int
}

// Multiplicities converts demand values into replication counts:
// ceil(v / max * scale), never below 1. When no value is positive every
// count is 1.
func Multiplicities(values []float64, scale float64) []int {
	out := make([]int, len(values))
	if len(values) == 0 {
		return out
	}

	maxValue := floats.Max(values)
	for i, v := range values {
		if maxValue <= 0 {
			out[i] = 1
			continue
		}
		n := int(math.Ceil(v / maxValue * scale))
		if n < 1 {
			n = 1
		}
		out[i] = n
	}
	return out
}

// replicatedSamples is the replicate-mode sample count for demand.
func replicatedSamples(demand []domain.GeocodedDemand, scale float64) int {
	total := 0
	for _, n := range Multiplicities(demandValues(demand), scale) {
		total += n
	}
	return total
}

func demandValues(demand []domain.GeocodedDemand) []float64 {
	values := make([]float64, len(demand))
	for i, d := range demand {
		values[i] = d.TotalValue
	}
	return values
}

// buildSamples turns demand into weighted clustering points for the chosen
// weighting.
func buildSamples(demand []domain.GeocodedDemand, p Params) []sample {
	values := demandValues(demand)

	if p.Weighting == WeightingReplicate {
		counts := Multiplicities(values, p.ReplicationScale)
		total := 0
		for _, n := range counts {
			total += n
		}
		out := make([]sample, 0, total)
		for i, d := range demand {
			pt := toPoint(d.Location)
			for j := 0; j < counts[i]; j++ {
				out = append(out, sample{pt: pt, w: 1, rec: i})
			}
		}
		return out
	}

	uniform := floats.Max(values) <= 0
	out := make([]sample, len(demand))
	for i, d := range demand {
		w := values[i]
		if uniform {
			w = 1
		}
		out[i] = sample{pt: toPoint(d.Location), w: w, rec: i}
	}
	return out
}

func toPoint(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}
