package siting

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// run is the outcome of one initialization followed by Lloyd iterations.
type run struct {
	centers    []orb.Point
	labels     []int
	iterations int
	converged  bool
	inertia    float64
}

// newRNG derives the generator for one restart from the caller's seed.
func newRNG(seed uint64, restart int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(restart)))
}

// cluster runs k-means++ seeding and Lloyd iterations until the largest
// center movement is at most tol or maxIter iterations have run.
func cluster(samples []sample, k int, rng *rand.Rand, maxIter int, tol float64) run {
	centers := seedCenters(samples, k, rng)
	labels := make([]int, len(samples))

	r := run{}
	for iter := 1; iter <= maxIter; iter++ {
		assign(samples, centers, labels)
		next := updateCenters(samples, labels, centers)

		shift := 0.0
		for i := range centers {
			shift = math.Max(shift, planar.Distance(centers[i], next[i]))
		}
		centers = next
		r.iterations = iter
		if shift <= tol {
			r.converged = true
			break
		}
	}

	r.inertia = assign(samples, centers, labels)
	r.centers = centers
	r.labels = labels
	return r
}

// seedCenters picks k initial centers with k-means++: the first in proportion
// to weight, each next in proportion to weight times squared distance to the
// nearest chosen center.
func seedCenters(samples []sample, k int, rng *rand.Rand) []orb.Point {
	n := len(samples)
	scores := make([]float64, n)
	for i, s := range samples {
		scores[i] = s.w
	}
	first := weightedPick(rng, scores)
	if first < 0 {
		first = rng.IntN(n)
	}

	centers := make([]orb.Point, 0, k)
	centers = append(centers, samples[first].pt)

	d2 := make([]float64, n)
	for i, s := range samples {
		d2[i] = planar.DistanceSquared(s.pt, centers[0])
	}

	for len(centers) < k {
		for i, s := range samples {
			scores[i] = s.w * d2[i]
		}
		next := weightedPick(rng, scores)
		if next < 0 {
			// Every remaining point has zero weight; take the first one not
			// already a center.
			next = firstUncovered(d2)
		}
		c := samples[next].pt
		centers = append(centers, c)
		for i, s := range samples {
			d2[i] = math.Min(d2[i], planar.DistanceSquared(s.pt, c))
		}
	}
	return centers
}

// weightedPick draws an index with probability proportional to scores, or -1
// when no score is positive.
func weightedPick(rng *rand.Rand, scores []float64) int {
	total := floats.Sum(scores)
	if !(total > 0) {
		return -1
	}

	target := rng.Float64() * total
	last := -1
	var acc float64
	for i, s := range scores {
		if s <= 0 {
			continue
		}
		acc += s
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

func firstUncovered(d2 []float64) int {
	for i, d := range d2 {
		if d > 0 {
			return i
		}
	}
	return 0
}

// assign labels every sample with its nearest center and returns the weighted
// inertia.
func assign(samples []sample, centers []orb.Point, labels []int) float64 {
	var inertia float64
	for i, s := range samples {
		c := nearest(s.pt, centers)
		labels[i] = c
		inertia += s.w * planar.DistanceSquared(s.pt, centers[c])
	}
	return inertia
}

// nearest returns the index of the closest center; ties go to the lowest index.
func nearest(p orb.Point, centers []orb.Point) int {
	best, bestD := 0, math.Inf(1)
	for i, c := range centers {
		if d := planar.DistanceSquared(p, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// updateCenters moves each center to the weighted mean of its members. A
// center whose members all share one location snaps to it exactly. An empty
// center is re-seeded at the sample farthest from its own center.
func updateCenters(samples []sample, labels []int, centers []orb.Point) []orb.Point {
	k := len(centers)
	members := make([][]int, k)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}

	next := make([]orb.Point, k)
	taken := make(map[int]struct{})
	for c := 0; c < k; c++ {
		idx := members[c]
		switch {
		case len(idx) == 0:
			far := farthestSample(samples, labels, centers, taken)
			taken[far] = struct{}{}
			next[c] = samples[far].pt
		case sameLocation(samples, idx):
			next[c] = samples[idx[0]].pt
		default:
			next[c] = weightedMean(samples, idx)
		}
	}
	return next
}

func weightedMean(samples []sample, idx []int) orb.Point {
	lons := make([]float64, len(idx))
	lats := make([]float64, len(idx))
	ws := make([]float64, len(idx))
	for j, i := range idx {
		lons[j] = samples[i].pt.Lon()
		lats[j] = samples[i].pt.Lat()
		ws[j] = samples[i].w
	}
	if !(floats.Sum(ws) > 0) {
		ws = nil
	}
	return orb.Point{stat.Mean(lons, ws), stat.Mean(lats, ws)}
}

func sameLocation(samples []sample, idx []int) bool {
	first := samples[idx[0]].pt
	for _, i := range idx[1:] {
		if samples[i].pt != first {
			return false
		}
	}
	return true
}

func farthestSample(samples []sample, labels []int, centers []orb.Point, taken map[int]struct{}) int {
	best, bestD := 0, -1.0
	for i, s := range samples {
		if _, ok := taken[i]; ok {
			continue
		}
		if d := planar.DistanceSquared(s.pt, centers[labels[i]]); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}
