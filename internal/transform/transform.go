// Package transform joins extracted features with ground-truth labels and
// fits the feature schema.
package transform

import (
	"math"
	"slices"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
	"github.com/justestif/go-mood-classifier/internal/table"
)

// MinRowsPerClass is the fewest rows each mood needs after filtering.
const MinRowsPerClass = 2

// Options controls a transform.
type Options struct {
	Standardize bool
}

// Stats counts what happened to the input rows.
type Stats struct {
	FeatureRows          int                 `json:"feature_rows" yaml:"feature_rows"`
	LabelRows            int                 `json:"label_rows" yaml:"label_rows"`
	InvalidLabels        int                 `json:"invalid_labels" yaml:"invalid_labels"`
	ConflictingLabels    int                 `json:"conflicting_labels" yaml:"conflicting_labels"`
	DuplicateRows        int                 `json:"duplicate_rows" yaml:"duplicate_rows"`
	FeaturesWithoutLabel int                 `json:"features_without_label" yaml:"features_without_label"`
	LabelsWithoutFeature int                 `json:"labels_without_features" yaml:"labels_without_features"`
	MissingValues        int                 `json:"missing_values" yaml:"missing_values"`
	OutputRows           int                 `json:"output_rows" yaml:"output_rows"`
	Classes              map[domain.Mood]int `json:"classes" yaml:"classes"`
}

// Result is the labeled table and the schema fitted on it.
type Result struct {
	Table  *table.Features
	Schema *features.Schema
	Stats  Stats
}

// Transform inner-joins feature rows with labels on track ID. Rows with
// missing or non-finite values are dropped, never imputed. Output rows keep
// cleaned raw values in input order; scaling lives only in the schema.
//
// When a mood has fewer than MinRowsPerClass rows the result is returned
// together with an InsufficientDataError so callers can report the counts.
func Transform(in *table.Features, labels []domain.Label, opts Options) (*Result, error) {
	stats := Stats{
		FeatureRows: len(in.Rows),
		LabelRows:   len(labels),
		Classes:     make(map[domain.Mood]int),
	}

	truth := resolveLabels(labels, &stats)
	rows, err := dedupe(in.Rows, &stats)
	if err != nil {
		return nil, err
	}

	out := &table.Features{Names: slices.Clone(in.Names), Labeled: true}
	matched := make(map[string]struct{}, len(truth))
	for _, r := range rows {
		mood, ok := truth[r.TrackID]
		if !ok {
			stats.FeaturesWithoutLabel++
			continue
		}
		matched[r.TrackID] = struct{}{}
		if !finite(r.Values) || len(r.Values) != len(in.Names) {
			stats.MissingValues++
			continue
		}
		out.Rows = append(out.Rows, domain.FeatureRow{
			TrackID: r.TrackID,
			Values:  slices.Clone(r.Values),
			Mood:    mood,
		})
		stats.Classes[mood]++
	}
	stats.LabelsWithoutFeature = len(truth) - len(matched)
	stats.OutputRows = len(out.Rows)

	res := &Result{Table: out, Stats: stats}
	for _, m := range domain.Moods() {
		if n := stats.Classes[m]; n < MinRowsPerClass {
			return res, &domain.InsufficientDataError{Stage: "transform", Class: m, Have: n, Need: MinRowsPerClass}
		}
	}

	schema, err := features.FitSchema(out.Names, out.Matrix(), opts.Standardize)
	if err != nil {
		return res, err
	}
	res.Schema = schema
	return res, nil
}

// resolveLabels validates moods and drops every label of an ID that is
// labeled with more than one mood.
func resolveLabels(labels []domain.Label, stats *Stats) map[string]domain.Mood {
	truth := make(map[string]domain.Mood, len(labels))
	rowsPerID := make(map[string]int, len(labels))
	conflicted := make(map[string]bool)
	for _, l := range labels {
		m, err := domain.ParseMood(l.Mood)
		if err != nil || l.TrackID == "" {
			stats.InvalidLabels++
			continue
		}
		rowsPerID[l.TrackID]++
		if prev, seen := truth[l.TrackID]; seen && prev != m {
			conflicted[l.TrackID] = true
		}
		truth[l.TrackID] = m
	}
	for id := range conflicted {
		stats.ConflictingLabels += rowsPerID[id]
		delete(truth, id)
	}
	return truth
}

// dedupe drops exact duplicate feature rows. The same ID with different
// values cannot be resolved and is an error.
func dedupe(rows []domain.FeatureRow, stats *Stats) ([]domain.FeatureRow, error) {
	seen := make(map[string][]float64, len(rows))
	out := make([]domain.FeatureRow, 0, len(rows))
	for _, r := range rows {
		if prev, ok := seen[r.TrackID]; ok {
			if !sameValues(prev, r.Values) {
				return nil, &domain.DuplicateTrackError{TrackID: r.TrackID, Table: "feature table"}
			}
			stats.DuplicateRows++
			continue
		}
		seen[r.TrackID] = r.Values
		out = append(out, r)
	}
	return out, nil
}

func sameValues(a, b []float64) bool {
	return slices.EqualFunc(a, b, func(x, y float64) bool {
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	})
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
