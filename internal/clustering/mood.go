// Package clustering groups tracks by audio feature similarity using
// seeded k-means over the schema-scaled feature space.
package clustering

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/muesli/clusters"
	"gonum.org/v1/gonum/floats"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
)

// K is the number of clusters, one per mood.
const K = 2

const clusterStream = 0x5eed_0003

// Config holds clustering parameters.
type Config struct {
	Seed          uint64
	Restarts      int // independent k-means++ initialisations, best inertia wins
	MaxIterations int // Lloyd iterations per restart
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{Seed: 42, Restarts: 10, MaxIterations: 300}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.Restarts < 1 {
		return &domain.ConfigurationError{Field: "cluster.restarts", Reason: fmt.Sprintf("%d must be at least 1", c.Restarts)}
	}
	if c.MaxIterations < 1 {
		return &domain.ConfigurationError{Field: "cluster.max_iterations", Reason: fmt.Sprintf("%d must be at least 1", c.MaxIterations)}
	}
	return nil
}

// Result is the outcome of clustering. Cluster indices are numbered by the
// first member in input order.
type Result struct {
	Assignments []domain.Assignment
	Centroids   [][]float64 // scaled space, indexed by cluster
	Sizes       []int
	Inertia     float64 // sum of squared distances to the assigned centroid
}

// rowObservation wraps a scaled row to implement clusters.Observation.
type rowObservation struct {
	coords clusters.Coordinates
}

func (o rowObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

// Distance is the metric used for assignment. Only its ordering matters.
func (o rowObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Cluster partitions rows into K groups. The schema must be standardized.
// Results depend only on the rows, the schema and cfg.
func Cluster(rows []domain.FeatureRow, schema *features.Schema, cfg Config) (*Result, error) {
	if err := schema.RequireStandardized(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(rows) < K {
		return nil, &domain.InsufficientDataError{Stage: "cluster", Have: len(rows), Need: K}
	}

	obs := make(clusters.Observations, len(rows))
	for i, r := range rows {
		if len(r.Values) != schema.Dim() {
			return nil, fmt.Errorf("row %s has %d values, schema has %d", r.TrackID, len(r.Values), schema.Dim())
		}
		obs[i] = rowObservation{coords: schema.Apply(r.Values)}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, clusterStream))
	var best *run
	for range cfg.Restarts {
		r := lloyd(obs, seedCenters(obs, K, rng), cfg.MaxIterations)
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	return best.result(rows, obs), nil
}

// run is the state of one k-means restart.
type run struct {
	assign  []int
	cs      clusters.Clusters
	inertia float64
}

// seedCenters picks k initial centers with k-means++: the first uniformly,
// each next one with probability proportional to its squared distance to
// the closest center already picked.
func seedCenters(obs clusters.Observations, k int, rng *rand.Rand) []clusters.Coordinates {
	centers := []clusters.Coordinates{obs[rng.IntN(len(obs))].Coordinates()}
	dist := make([]float64, len(obs))
	for len(centers) < k {
		var total float64
		for i, o := range obs {
			d := math.Inf(1)
			for _, c := range centers {
				e := euclidean(o.Coordinates(), c)
				d = math.Min(d, e*e)
			}
			dist[i] = d
			total += d
		}

		pick := rng.IntN(len(obs))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target < 0 {
					pick = i
					break
				}
			}
		}
		centers = append(centers, obs[pick].Coordinates())
	}
	return centers
}

func lloyd(obs clusters.Observations, centers []clusters.Coordinates, maxIterations int) *run {
	cs := make(clusters.Clusters, len(centers))
	for i, c := range centers {
		cs[i].Center = append(clusters.Coordinates(nil), c...)
	}
	assign := make([]int, len(obs))
	for i := range assign {
		assign[i] = -1
	}

	for range maxIterations {
		changed := false
		for i, o := range obs {
			if c := cs.Nearest(o); c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if fillEmpty(cs, obs, assign) {
			changed = true
		}
		rebuild(cs, obs, assign)
		if !changed {
			break
		}
		cs.Recenter()
	}

	r := &run{assign: assign, cs: cs}
	for i, o := range obs {
		d := euclidean(o.Coordinates(), cs[assign[i]].Center)
		r.inertia += d * d
	}
	return r
}

// fillEmpty moves the point farthest from its centroid into each empty
// cluster, taking only from clusters with more than one member.
func fillEmpty(cs clusters.Clusters, obs clusters.Observations, assign []int) bool {
	moved := false
	for {
		sizes := make([]int, len(cs))
		for _, c := range assign {
			sizes[c]++
		}
		empty := -1
		for j, n := range sizes {
			if n == 0 {
				empty = j
				break
			}
		}
		if empty < 0 {
			return moved
		}

		far, farDist := -1, -1.0
		for i, o := range obs {
			if sizes[assign[i]] < 2 {
				continue
			}
			if d := o.Distance(cs[assign[i]].Center); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return moved
		}
		assign[far] = empty
		cs[empty].Center = append(clusters.Coordinates(nil), obs[far].Coordinates()...)
		moved = true
	}
}

func euclidean(a, b clusters.Coordinates) float64 {
	return floats.Distance(a, b, 2)
}

func rebuild(cs clusters.Clusters, obs clusters.Observations, assign []int) {
	cs.Reset()
	for i, o := range obs {
		cs[assign[i]].Append(o)
	}
}

// result relabels clusters by first member in input order and reports
// Euclidean distances.
func (r *run) result(rows []domain.FeatureRow, obs clusters.Observations) *Result {
	label := make([]int, len(r.cs))
	for j := range label {
		label[j] = -1
	}
	next := 0
	for _, c := range r.assign {
		if label[c] < 0 {
			label[c] = next
			next++
		}
	}
	for j := range label {
		if label[j] < 0 {
			label[j] = next
			next++
		}
	}

	res := &Result{
		Assignments: make([]domain.Assignment, len(rows)),
		Centroids:   make([][]float64, len(r.cs)),
		Sizes:       make([]int, len(r.cs)),
		Inertia:     r.inertia,
	}
	for j, c := range r.cs {
		res.Centroids[label[j]] = append([]float64(nil), c.Center...)
	}
	for i, c := range r.assign {
		res.Sizes[label[c]]++
		res.Assignments[i] = domain.Assignment{
			TrackID:  rows[i].TrackID,
			Cluster:  label[c],
			Distance: euclidean(obs[i].Coordinates(), r.cs[c].Center),
		}
	}
	return res
}
