// Package siting proposes distribution-center locations from geocoded demand
// by weighted k-means clustering.
//
// Each city is a point at its (lat, lon) carrying its demand value as weight.
// Centers are initialized with seeded k-means++ and refined with Lloyd
// iterations; distance is Euclidean on raw degrees, which is only a fair
// approximation over a compact region such as a single state.
//
// Two weighting mechanisms are available:
//
//	weighted   one point per city, update step is the weight-weighted mean.
//	replicate  each city repeated ceil(value/max*scale) times (at least once)
//	           and clustered unweighted. Rounding gives near-equal cities
//	           different multiplicities, and the floor of one copy gives tiny
//	           cities more pull than their demand warrants.
package siting

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// facilityCellLevel is the S2 level used for facility ids (~150m cells).
const facilityCellLevel = 16

// Weighting selects how demand value turns into clustering pull.
type Weighting string

const (
	WeightingNative    Weighting = "weighted"
	WeightingReplicate Weighting = "replicate"
)

// ParseWeighting maps a configuration string to a Weighting.
func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(s); w {
	case WeightingNative, WeightingReplicate:
		return w, nil
	default:
		return "", fmt.Errorf("unknown weighting %q (want weighted or replicate)", s)
	}
}

// Params controls a siting run.
type Params struct {
	K                int
	Seed             uint64
	MaxIterations    int
	Tolerance        float64 // largest center movement, in degrees, that counts as converged
	Restarts         int     // independent initializations; lowest inertia wins
	Weighting        Weighting
	ReplicationScale float64 // replicate mode: copies given to the largest city
}

// Bounds on replicate-mode sampling.
const (
	MaxReplicationScale  = 1e6
	MaxReplicatedSamples = 10_000_000
)

// DefaultParams returns three facilities, seed 42, 300 iterations, 10 restarts,
// native weighting.
func DefaultParams() Params {
	return Params{
		K:                3,
		Seed:             42,
		MaxIterations:    300,
		Tolerance:        1e-6,
		Restarts:         10,
		Weighting:        WeightingNative,
		ReplicationScale: 100,
	}
}

// Diagnostics describes the winning clustering run.
type Diagnostics struct {
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Inertia    float64 `json:"inertia"` // weighted sum of squared distances to assigned centers
	Restart    int     `json:"restart"`
	Samples    int     `json:"samples"` // points clustered after weighting
}

// Result is the output of Site.
type Result struct {
	Facilities  []domain.FacilityCandidate
	Assignments []int // per input record, index into Facilities
	Diagnostics Diagnostics
}

// Validate checks params against the demand they would cluster.
func (p Params) Validate(demand []domain.GeocodedDemand) error {
	switch {
	case p.K < 1:
		return configErr("K", "must be at least 1, got %d", p.K)
	case p.MaxIterations < 1:
		return configErr("max_iterations", "must be at least 1, got %d", p.MaxIterations)
	case p.Restarts < 1:
		return configErr("restarts", "must be at least 1, got %d", p.Restarts)
	case p.Tolerance < 0 || math.IsNaN(p.Tolerance):
		return configErr("tolerance", "must be non-negative, got %g", p.Tolerance)
	case p.Weighting != WeightingNative && p.Weighting != WeightingReplicate:
		return configErr("weighting", "unknown mode %q", p.Weighting)
	case p.Weighting == WeightingReplicate && !(p.ReplicationScale > 0 && p.ReplicationScale <= MaxReplicationScale):
		return configErr("replication_scale", "must be in (0, %g], got %g", float64(MaxReplicationScale), p.ReplicationScale)
	case len(demand) == 0:
		return configErr("demand", "no geocoded cities to cluster")
	}

	cities := make(map[string]struct{}, len(demand))
	points := make(map[domain.GeoPoint]struct{}, len(demand))
	for _, d := range demand {
		if d.TotalValue < 0 || math.IsNaN(d.TotalValue) || math.IsInf(d.TotalValue, 0) {
			return configErr("total_value", "%s: must be finite and non-negative, got %g", d.City, d.TotalValue)
		}
		if !d.Location.Valid() {
			return configErr("location", "%s: (%g, %g) out of range", d.City, d.Location.Lat, d.Location.Lon)
		}
		cities[d.City] = struct{}{}
		points[d.Location] = struct{}{}
	}

	if p.Weighting == WeightingReplicate {
		if n := replicatedSamples(demand, p.ReplicationScale); n > MaxReplicatedSamples {
			return configErr("replication_scale", "%g would replicate %d samples, limit %d", p.ReplicationScale, n, MaxReplicatedSamples)
		}
	}

	if p.K > len(cities) {
		return configErr("K", "%d facilities requested but only %d distinct geocoded cities", p.K, len(cities))
	}
	if p.K > len(points) {
		return configErr("K", "%d facilities requested but only %d distinct locations", p.K, len(points))
	}
	return nil
}

// Site clusters demand into p.K facility candidates. Inputs are not modified.
func Site(demand []domain.GeocodedDemand, p Params) (Result, error) {
	if err := p.Validate(demand); err != nil {
		return Result{}, err
	}

	samples := buildSamples(demand, p)

	var best run
	bestRestart := -1
	for r := 0; r < p.Restarts; r++ {
		rr := cluster(samples, p.K, newRNG(p.Seed, r), p.MaxIterations, p.Tolerance)
		if bestRestart < 0 || rr.inertia < best.inertia {
			best = rr
			bestRestart = r
		}
	}

	facilities, assignments := candidates(demand, best.centers)
	return Result{
		Facilities:  facilities,
		Assignments: assignments,
		Diagnostics: Diagnostics{
			Iterations: best.iterations,
			Converged:  best.converged,
			Inertia:    best.inertia,
			Restart:    bestRestart,
			Samples:    len(samples),
		},
	}, nil
}

// Siter binds Params and a logger for use as a pipeline stage.
type Siter struct {
	params Params
	logger *slog.Logger
}

// New creates a Siter.
func New(params Params, logger *slog.Logger) *Siter {
	return &Siter{params: params, logger: logger}
}

// Params returns the bound parameters.
func (s *Siter) Params() Params { return s.params }

// Site runs Site with the bound parameters and logs the outcome.
func (s *Siter) Site(demand []domain.GeocodedDemand) (Result, error) {
	res, err := Site(demand, s.params)
	if err != nil {
		return Result{}, err
	}

	if !res.Diagnostics.Converged {
		s.logger.Warn("clustering hit iteration cap before converging",
			"max_iterations", s.params.MaxIterations,
			"tolerance", s.params.Tolerance,
		)
	}
	s.logger.Info("facilities sited",
		"k", s.params.K,
		"cities", len(demand),
		"weighting", s.params.Weighting,
		"samples", res.Diagnostics.Samples,
		"iterations", res.Diagnostics.Iterations,
		"inertia", res.Diagnostics.Inertia,
		"restart", res.Diagnostics.Restart,
	)
	return res, nil
}

// candidates assigns each demand record to its nearest final center and
// builds one FacilityCandidate per center, ordered by latitude then longitude.
func candidates(demand []domain.GeocodedDemand, centers []orb.Point) ([]domain.FacilityCandidate, []int) {
	order := make([]int, len(centers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := centers[order[a]], centers[order[b]]
		if ca.Lat() != cb.Lat() {
			return ca.Lat() < cb.Lat()
		}
		return ca.Lon() < cb.Lon()
	})
	rankOf := make([]int, len(centers))
	for rank, ci := range order {
		rankOf[ci] = rank
	}

	out := make([]domain.FacilityCandidate, len(centers))
	seenIDs := make(map[string]int, len(centers))
	for rank, ci := range order {
		c := centers[ci]
		loc := domain.GeoPoint{Lat: c.Lat(), Lon: c.Lon()}
		id := cellToken(loc)
		if n := seenIDs[id]; n > 0 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		seenIDs[cellToken(loc)]++
		out[rank] = domain.FacilityCandidate{
			ID:       id,
			Rank:     rank + 1,
			Location: loc,
			Cities:   []string{},
		}
	}

	assignments := make([]int, len(demand))
	for i, d := range demand {
		ci := nearest(toPoint(d.Location), centers)
		f := &out[rankOf[ci]]
		f.AssignedWeightMass += d.TotalValue
		f.AssignedOrders += d.OrderCount
		f.Cities = append(f.Cities, d.City)
		assignments[i] = rankOf[ci]
	}
	return out, assignments
}

func cellToken(p domain.GeoPoint) string {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)).Parent(facilityCellLevel).ToToken()
}

func configErr(param, format string, args ...any) error {
	return &domain.ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
