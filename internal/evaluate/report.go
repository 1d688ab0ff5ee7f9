// Package evaluate scores predictions and cluster assignments against
// ground-truth moods.
package evaluate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

// Scope selects which predictions are scored.
type Scope string

const (
	ScopeTest Scope = "test" // only rows held out from training
	ScopeAll  Scope = "all"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeTest, ScopeAll:
		return Scope(s), nil
	}
	return "", &domain.ConfigurationError{Field: "evaluate.scope", Reason: fmt.Sprintf("%q is not one of test, all", s)}
}

// Options controls an evaluation.
type Options struct {
	Scope             Scope
	K                 int
	SchemaFingerprint string
}

// ClassMetrics holds per-class scores. Zero denominators give 0.
type ClassMetrics struct {
	Mood      domain.Mood `json:"mood" yaml:"mood"`
	Precision float64     `json:"precision" yaml:"precision"`
	Recall    float64     `json:"recall" yaml:"recall"`
	F1        float64     `json:"f1" yaml:"f1"`
	Support   int         `json:"support" yaml:"support"`
}

// Averages holds unweighted and support-weighted means of class metrics.
type Averages struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
}

// Classification summarises the supervised predictions.
type Classification struct {
	Rows      int            `json:"rows" yaml:"rows"`
	Accuracy  float64        `json:"accuracy" yaml:"accuracy"`
	Confusion [][]int        `json:"confusion" yaml:"confusion"` // [true][predicted], axes in domain.Moods() order
	Classes   []ClassMetrics `json:"classes" yaml:"classes"`
	Macro     Averages       `json:"macro" yaml:"macro"`
	Weighted  Averages       `json:"weighted" yaml:"weighted"`
	Unmatched int            `json:"predictions_without_truth" yaml:"predictions_without_truth"`
}

// ClusterPurity is the majority share of one cluster. Empty clusters have
// no majority and no purity.
type ClusterPurity struct {
	Index    int                 `json:"index" yaml:"index"`
	Size     int                 `json:"size" yaml:"size"`
	Counts   map[domain.Mood]int `json:"counts" yaml:"counts"`
	Majority domain.Mood         `json:"majority,omitempty" yaml:"majority,omitempty"`
	Purity   *float64            `json:"purity,omitempty" yaml:"purity,omitempty"`
}

// Clustering summarises the cluster assignments.
type Clustering struct {
	Rows           int                 `json:"rows" yaml:"rows"`
	Clusters       []ClusterPurity     `json:"clusters" yaml:"clusters"`
	WeightedPurity float64             `json:"weighted_purity" yaml:"weighted_purity"`
	Mapping        map[int]domain.Mood `json:"mapping" yaml:"mapping"`
	Unmatched      int                 `json:"assignments_without_truth" yaml:"assignments_without_truth"`
}

// Report is the outcome of one evaluation.
type Report struct {
	RunID             uuid.UUID       `json:"run_id" yaml:"run_id"`
	GeneratedAt       time.Time       `json:"generated_at" yaml:"generated_at"`
	Scope             Scope           `json:"scope" yaml:"scope"`
	SchemaFingerprint string          `json:"schema_fingerprint,omitempty" yaml:"schema_fingerprint,omitempty"`
	Classification    *Classification `json:"classification,omitempty" yaml:"classification,omitempty"`
	Clustering        *Clustering     `json:"clustering,omitempty" yaml:"clustering,omitempty"`
}

// Evaluate scores predictions and assignments against truth. Either input
// may be nil to skip that half of the report. Rows without truth are
// counted and excluded.
func Evaluate(truth map[string]domain.Mood, preds []domain.Prediction, assignments []domain.Assignment, opts Options) (*Report, error) {
	if opts.Scope == "" {
		opts.Scope = ScopeTest
	}
	if _, err := ParseScope(string(opts.Scope)); err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		opts.K = 2
	}

	r := &Report{
		RunID:             uuid.New(),
		GeneratedAt:       time.Now().UTC(),
		Scope:             opts.Scope,
		SchemaFingerprint: opts.SchemaFingerprint,
	}
	if preds != nil {
		c, err := classify(truth, preds, opts.Scope)
		if err != nil {
			return nil, err
		}
		r.Classification = c
	}
	if assignments != nil {
		c, err := purity(truth, assignments, opts.K)
		if err != nil {
			return nil, err
		}
		r.Clustering = c
	}
	return r, nil
}

func classify(truth map[string]domain.Mood, preds []domain.Prediction, scope Scope) (*Classification, error) {
	moods := domain.Moods()
	c := &Classification{Confusion: make([][]int, len(moods))}
	for i := range c.Confusion {
		c.Confusion[i] = make([]int, len(moods))
	}

	correct := 0
	for _, p := range preds {
		if scope == ScopeTest && p.Split != domain.SplitTest {
			continue
		}
		want, ok := truth[p.TrackID]
		if !ok {
			c.Unmatched++
			continue
		}
		if !p.Mood.Valid() {
			return nil, fmt.Errorf("prediction for %s has invalid mood %q", p.TrackID, p.Mood)
		}
		c.Confusion[want.Index()][p.Mood.Index()]++
		c.Rows++
		if want == p.Mood {
			correct++
		}
	}
	c.Accuracy = ratio(correct, c.Rows)

	for i, m := range moods {
		var predicted, actual int
		for j := range moods {
			predicted += c.Confusion[j][i]
			actual += c.Confusion[i][j]
		}
		tp := c.Confusion[i][i]
		cm := ClassMetrics{
			Mood:      m,
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, actual),
			Support:   actual,
		}
		if sum := cm.Precision + cm.Recall; sum > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / sum
		}
		c.Classes = append(c.Classes, cm)

		n := float64(len(moods))
		w := ratio(actual, c.Rows)
		c.Macro.Precision += cm.Precision / n
		c.Macro.Recall += cm.Recall / n
		c.Macro.F1 += cm.F1 / n
		c.Weighted.Precision += cm.Precision * w
		c.Weighted.Recall += cm.Recall * w
		c.Weighted.F1 += cm.F1 * w
	}
	return c, nil
}

func purity(truth map[string]domain.Mood, assignments []domain.Assignment, k int) (*Clustering, error) {
	c := &Clustering{Mapping: make(map[int]domain.Mood)}
	for i := range k {
		c.Clusters = append(c.Clusters, ClusterPurity{Index: i, Counts: make(map[domain.Mood]int)})
	}

	for _, a := range assignments {
		if a.Cluster < 0 || a.Cluster >= k {
			return nil, fmt.Errorf("track %s has cluster index %d outside [0, %d)", a.TrackID, a.Cluster, k)
		}
		m, ok := truth[a.TrackID]
		if !ok {
			c.Unmatched++
			continue
		}
		c.Clusters[a.Cluster].Counts[m]++
		c.Clusters[a.Cluster].Size++
		c.Rows++
	}

	var majorities int
	for i := range c.Clusters {
		cp := &c.Clusters[i]
		if cp.Size == 0 {
			continue
		}
		best := -1
		for _, m := range domain.Moods() {
			if n := cp.Counts[m]; n > best {
				best = n
				cp.Majority = m
			}
		}
		p := float64(best) / float64(cp.Size)
		cp.Purity = &p
		c.Mapping[cp.Index] = cp.Majority
		majorities += best
	}
	if c.Rows > 0 {
		c.WeightedPurity = float64(majorities) / float64(c.Rows)
	}
	return c, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
