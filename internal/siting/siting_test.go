package siting

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func city(name string, lat, lon, value float64, orders int) domain.GeocodedDemand {
	return domain.GeocodedDemand{
		DemandRecord: domain.DemandRecord{City: name, OrderCount: orders, TotalValue: value},
		Location:     domain.GeoPoint{Lat: lat, Lon: lon},
	}
}

// evenCities returns n cities of equal value on a line of latitudes.
func evenCities(n int) []domain.GeocodedDemand {
	out := make([]domain.GeocodedDemand, n)
	for i := range out {
		out[i] = city(fmt.Sprintf("c%02d", i), -20-float64(i)*0.1, -47, 100, 1)
	}
	return out
}

// spCities is a small state-shaped fixture with three visible groups.
func spCities() []domain.GeocodedDemand {
	return []domain.GeocodedDemand{
		city("sao paulo", -23.55052, -46.633308, 5200, 40),
		city("guarulhos", -23.4538, -46.5333, 900, 8),
		city("osasco", -23.5329, -46.7917, 650, 6),
		city("campinas", -22.909938, -47.062633, 1800, 15),
		city("jundiai", -23.1857, -46.8978, 400, 4),
		city("ribeirao preto", -21.1775, -47.8103, 1100, 9),
		city("franca", -20.5352, -47.4039, 300, 3),
		city("santos", -23.960833, -46.333889, 700, 5),
		city("sorocaba", -23.5015, -47.4526, 800, 7),
	}
}

func bothModes(t *testing.T, fn func(t *testing.T, p Params)) {
	t.Helper()
	for _, w := range []Weighting{WeightingNative, WeightingReplicate} {
		t.Run(string(w), func(t *testing.T) {
			p := DefaultParams()
			p.Weighting = w
			fn(t, p)
		})
	}
}

func TestSite_ReturnsKFacilities(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		for k := 1; k <= 5; k++ {
			p.K = k
			res, err := Site(spCities(), p)
			require.NoError(t, err)
			assert.Len(t, res.Facilities, k)

			for i, f := range res.Facilities {
				assert.Equal(t, i+1, f.Rank)
				assert.True(t, f.Location.Valid())
				assert.NotEmpty(t, f.ID)
			}
		}
	})
}

func TestSite_ConservesMass(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		demand := spCities()
		res, err := Site(demand, p)
		require.NoError(t, err)

		var mass float64
		var orders, cities int
		for _, f := range res.Facilities {
			mass += f.AssignedWeightMass
			orders += f.AssignedOrders
			cities += len(f.Cities)
		}
		assert.InDelta(t, domain.TotalValue(demand), mass, 1e-6)
		assert.Equal(t, 97, orders)
		assert.Equal(t, len(demand), cities)
		require.Len(t, res.Assignments, len(demand))
	})
}

func TestSite_Deterministic(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		first, err := Site(spCities(), p)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Site(spCities(), p)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestSite_KEqualsCitiesPlacesCentersOnCities(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		demand := spCities()[:4]
		p.K = len(demand)

		res, err := Site(demand, p)
		require.NoError(t, err)

		got := make(map[domain.GeoPoint]bool)
		for _, f := range res.Facilities {
			got[f.Location] = true
			assert.Len(t, f.Cities, 1)
		}
		for _, d := range demand {
			assert.True(t, got[d.Location], "no facility at %s", d.City)
		}
		assert.InDelta(t, 0, res.Diagnostics.Inertia, 1e-12)
	})
}

func TestSite_HeavyCityPullsCenter(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		heavy := city("heavy", -23.0, -46.0, 10000, 1)
		light := city("light", -22.0, -47.0, 10, 1)
		p.K = 1

		res, err := Site([]domain.GeocodedDemand{heavy, light}, p)
		require.NoError(t, err)

		loc := res.Facilities[0].Location
		assert.Less(t, abs(loc.Lat-heavy.Location.Lat), abs(loc.Lat-light.Location.Lat))
		assert.Less(t, abs(loc.Lon-heavy.Location.Lon), abs(loc.Lon-light.Location.Lon))
	})
}

func TestSite_SingleCenterLeansTowardLargestCity(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		demand := []domain.GeocodedDemand{
			city("sao paulo", -23.55052, -46.633308, 100, 10),
			city("campinas", -22.909938, -47.062633, 50, 5),
			city("ribeirao preto", -21.1775, -47.8103, 10, 1),
		}
		p.K = 1

		res, err := Site(demand, p)
		require.NoError(t, err)
		require.Len(t, res.Facilities, 1)

		loc := res.Facilities[0].Location
		assert.Less(t, dist(loc, demand[0].Location), dist(loc, demand[2].Location))
		assert.InDelta(t, 160, res.Facilities[0].AssignedWeightMass, 1e-9)
	})
}

func dist(a, b domain.GeoPoint) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

func TestSite_NativeWeightedMean(t *testing.T) {
	p := DefaultParams()
	p.K = 1
	demand := []domain.GeocodedDemand{
		city("a", -20, -46, 3, 1),
		city("b", -24, -50, 1, 1),
	}

	res, err := Site(demand, p)
	require.NoError(t, err)
	assert.InDelta(t, -21.0, res.Facilities[0].Location.Lat, 1e-9)
	assert.InDelta(t, -47.0, res.Facilities[0].Location.Lon, 1e-9)
}

func TestSite_SingleCity(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		p.K = 1
		only := city("campinas", -22.909938, -47.062633, 42, 2)

		res, err := Site([]domain.GeocodedDemand{only}, p)
		require.NoError(t, err)
		require.Len(t, res.Facilities, 1)
		assert.Equal(t, only.Location, res.Facilities[0].Location)
		assert.Equal(t, []string{"campinas"}, res.Facilities[0].Cities)
		assert.True(t, res.Diagnostics.Converged)
	})
}

func TestSite_AllValuesZero(t *testing.T) {
	bothModes(t, func(t *testing.T, p Params) {
		demand := spCities()
		for i := range demand {
			demand[i].TotalValue = 0
		}
		p.K = 3

		res, err := Site(demand, p)
		require.NoError(t, err)
		assert.Len(t, res.Facilities, 3)
	})
}

func TestSite_DoesNotMutateInput(t *testing.T) {
	demand := spCities()
	before := spCities()
	_, err := Site(demand, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, before, demand)
}

func TestSite_FacilityIDsUnique(t *testing.T) {
	res, err := Site(spCities(), Params{
		K: 5, Seed: 7, MaxIterations: 100, Tolerance: 1e-9, Restarts: 3,
		Weighting: WeightingNative, ReplicationScale: 100,
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, f := range res.Facilities {
		assert.False(t, seen[f.ID], "duplicate id %s", f.ID)
		seen[f.ID] = true
	}
}

func TestParams_Validate(t *testing.T) {
	demand := spCities()

	tests := []struct {
		name   string
		mutate func(p *Params)
		demand []domain.GeocodedDemand
		param  string
	}{
		{name: "zero K", mutate: func(p *Params) { p.K = 0 }, param: "K"},
		{name: "K above cities", mutate: func(p *Params) { p.K = 10 }, param: "K"},
		{name: "zero iterations", mutate: func(p *Params) { p.MaxIterations = 0 }, param: "max_iterations"},
		{name: "zero restarts", mutate: func(p *Params) { p.Restarts = 0 }, param: "restarts"},
		{name: "negative tolerance", mutate: func(p *Params) { p.Tolerance = -1 }, param: "tolerance"},
		{name: "unknown weighting", mutate: func(p *Params) { p.Weighting = "median" }, param: "weighting"},
		{
			name:   "replicate without scale",
			mutate: func(p *Params) { p.Weighting = WeightingReplicate; p.ReplicationScale = 0 },
			param:  "replication_scale",
		},
		{
			name:   "replication scale too large",
			mutate: func(p *Params) { p.Weighting = WeightingReplicate; p.ReplicationScale = 1e12 },
			param:  "replication_scale",
		},
		{
			name:   "replicated sample count too large",
			mutate: func(p *Params) { p.Weighting = WeightingReplicate; p.ReplicationScale = MaxReplicationScale },
			demand: evenCities(11),
			param:  "replication_scale",
		},
		{name: "no demand", mutate: func(*Params) {}, demand: []domain.GeocodedDemand{}, param: "demand"},
		{
			name:   "negative value",
			mutate: func(*Params) {},
			demand: []domain.GeocodedDemand{city("x", -23, -46, -1, 1)},
			param:  "total_value",
		},
		{
			name:   "out of range location",
			mutate: func(*Params) {},
			demand: []domain.GeocodedDemand{city("x", 123, -46, 1, 1)},
			param:  "location",
		},
		{
			name:   "shared location",
			mutate: func(p *Params) { p.K = 2 },
			demand: []domain.GeocodedDemand{city("a", -23, -46, 1, 1), city("b", -23, -46, 2, 1)},
			param:  "K",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			d := demand
			if tt.demand != nil {
				d = tt.demand
			}

			_, err := Site(d, p)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.param, cfgErr.Param)
		})
	}
}

func TestParseWeighting(t *testing.T) {
	w, err := ParseWeighting("replicate")
	require.NoError(t, err)
	assert.Equal(t, WeightingReplicate, w)

	_, err = ParseWeighting("bogus")
	assert.Error(t, err)
}

func TestSiter_Site(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(DefaultParams(), logger)

	res, err := s.Site(spCities())
	require.NoError(t, err)
	assert.Len(t, res.Facilities, s.Params().K)

	_, err = s.Site(nil)
	assert.Error(t, err)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
