package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
)

// MinTrainRowsPerClass is the fewest training rows a mood needs.
const MinTrainRowsPerClass = 2

// Params are the forest hyperparameters.
type Params struct {
	Trees          int
	MaxDepth       int // 0 means unbounded
	MinSamplesLeaf int
	Seed           uint64
}

// DefaultParams returns the recommended hyperparameters.
func DefaultParams() Params {
	return Params{Trees: 100, MaxDepth: 0, MinSamplesLeaf: 1, Seed: 42}
}

// Validate checks the hyperparameters.
func (p Params) Validate() error {
	switch {
	case p.Trees < 1:
		return &domain.ConfigurationError{Field: "classifier.trees", Reason: fmt.Sprintf("%d must be at least 1", p.Trees)}
	case p.MaxDepth < 0:
		return &domain.ConfigurationError{Field: "classifier.max_depth", Reason: fmt.Sprintf("%d must not be negative", p.MaxDepth)}
	case p.MinSamplesLeaf < 1:
		return &domain.ConfigurationError{Field: "classifier.min_samples_leaf", Reason: fmt.Sprintf("%d must be at least 1", p.MinSamplesLeaf)}
	}
	return nil
}

// Model is a trained random forest bound to the schema it was trained with.
type Model struct {
	Schema     *features.Schema
	Params     Params
	Trees      []Tree
	Importance []float64
}

// Train fits a forest on rows scaled by schema. Every mood needs at least
// MinTrainRowsPerClass rows.
func Train(rows []domain.FeatureRow, schema *features.Schema, params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if schema.Dim() == 0 {
		return nil, &domain.ConfigurationError{Field: "schema", Reason: "cannot train on zero features"}
	}

	counts := make(map[domain.Mood]int)
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		if len(r.Values) != schema.Dim() {
			return nil, fmt.Errorf("row %s has %d values, schema has %d", r.TrackID, len(r.Values), schema.Dim())
		}
		if !r.Mood.Valid() {
			return nil, fmt.Errorf("row %s has no mood", r.TrackID)
		}
		counts[r.Mood]++
		x[i] = schema.Apply(r.Values)
		y[i] = r.Mood.Index()
	}
	for _, m := range domain.Moods() {
		if counts[m] < MinTrainRowsPerClass {
			return nil, &domain.TrainingError{Class: m, Have: counts[m], Need: MinTrainRowsPerClass}
		}
	}

	p := schema.Dim()
	maxFeatures := max(1, int(math.Round(math.Sqrt(float64(p)))))

	trees := make([]Tree, params.Trees)
	importances := make([][]float64, params.Trees)

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for t := range trees {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			// Each tree draws from its own stream so the forest does not
			// depend on goroutine scheduling.
			rng := rand.New(rand.NewPCG(params.Seed, forestStream+uint64(t)))
			sample := make([]int, len(rows))
			for i := range sample {
				sample[i] = rng.IntN(len(rows))
			}

			g := &grower{
				x:          x,
				y:          y,
				maxDepth:   params.MaxDepth,
				minLeaf:    params.MinSamplesLeaf,
				maxFeature: maxFeatures,
				rng:        rng,
				importance: make([]float64, p),
			}
			g.grow(sample, 0)
			trees[t] = Tree{Nodes: g.nodes}
			importances[t] = g.importance
		}()
	}
	wg.Wait()

	return &Model{
		Schema:     schema,
		Params:     params,
		Trees:      trees,
		Importance: combineImportances(importances, p),
	}, nil
}

// combineImportances normalises each tree's decreases, averages them and
// normalises the result to sum to 1. A forest of single leaves gives
// uniform importances.
func combineImportances(perTree [][]float64, p int) []float64 {
	out := make([]float64, p)
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / total
		}
	}

	var total float64
	for _, v := range out {
		total += v
	}
	for j := range out {
		if total == 0 {
			out[j] = 1 / float64(p)
		} else {
			out[j] /= total
		}
	}
	return out
}

// Importances maps feature names to mean decrease in impurity. Values sum to 1.
func (m *Model) Importances() map[string]float64 {
	out := make(map[string]float64, len(m.Importance))
	for j, name := range m.Schema.Names {
		out[name] = m.Importance[j]
	}
	return out
}

// Probabilities returns the averaged leaf probabilities for a raw row,
// indexed like domain.Moods().
func (m *Model) Probabilities(values []float64) ([]float64, error) {
	if len(values) != m.Schema.Dim() {
		return nil, fmt.Errorf("row has %d values, schema has %d", len(values), m.Schema.Dim())
	}
	x := m.Schema.Apply(values)
	probs := make([]float64, numClasses)
	for i := range m.Trees {
		p := m.Trees[i].predict(x)
		for c := range probs {
			probs[c] += p[c]
		}
	}
	for c := range probs {
		probs[c] /= float64(len(m.Trees))
	}
	return probs, nil
}

// Predict returns the most probable mood of a raw row and its probability.
// Ties go to the mood listed first in domain.Moods().
func (m *Model) Predict(values []float64) (domain.Mood, float64, error) {
	probs, err := m.Probabilities(values)
	if err != nil {
		return "", 0, err
	}
	moods := domain.Moods()
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return moods[best], probs[best], nil
}

// PredictRows scores rows and tags every prediction with split.
func (m *Model) PredictRows(rows []domain.FeatureRow, split domain.Split) ([]domain.Prediction, error) {
	out := make([]domain.Prediction, len(rows))
	for i, r := range rows {
		mood, conf, err := m.Predict(r.Values)
		if err != nil {
			return nil, fmt.Errorf("predicting %s: %w", r.TrackID, err)
		}
		out[i] = domain.Prediction{TrackID: r.TrackID, Mood: mood, Confidence: conf, Split: split}
	}
	return out, nil
}
