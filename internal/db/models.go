package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
)

// Run is one published evaluation.
type Run struct {
	ID                uuid.UUID
	GeneratedAt       time.Time
	Scope             string
	SchemaFingerprint string
	RowsClassified    *int     // nullable
	Accuracy          *float64 // nullable
	MacroF1           *float64 // nullable
	WeightedF1        *float64 // nullable
	RowsClustered     *int     // nullable
	WeightedPurity    *float64 // nullable
	PublishedAt       time.Time
}

// classColumns holds evaluation_classes rows as parallel arrays for unnest.
type classColumns struct {
	moods      []string
	precisions []float64
	recalls    []float64
	f1s        []float64
	supports   []int
}

type clusterColumns struct {
	indices    []int
	sizes      []int
	happy      []int
	sad        []int
	majorities []*string
	purities   []*float64
}

type predictionColumns struct {
	trackIDs    []string
	moods       []string
	confidences []float64
	splits      []string
}

func runFromReport(r *evaluate.Report) Run {
	run := Run{
		ID:                r.RunID,
		GeneratedAt:       r.GeneratedAt,
		Scope:             string(r.Scope),
		SchemaFingerprint: r.SchemaFingerprint,
	}
	if c := r.Classification; c != nil {
		run.RowsClassified = &c.Rows
		run.Accuracy = &c.Accuracy
		run.MacroF1 = &c.Macro.F1
		run.WeightedF1 = &c.Weighted.F1
	}
	if c := r.Clustering; c != nil {
		run.RowsClustered = &c.Rows
		run.WeightedPurity = &c.WeightedPurity
	}
	return run
}

func classRows(c *evaluate.Classification) classColumns {
	var cols classColumns
	if c == nil {
		return cols
	}
	for _, cm := range c.Classes {
		cols.moods = append(cols.moods, cm.Mood.String())
		cols.precisions = append(cols.precisions, cm.Precision)
		cols.recalls = append(cols.recalls, cm.Recall)
		cols.f1s = append(cols.f1s, cm.F1)
		cols.supports = append(cols.supports, cm.Support)
	}
	return cols
}

func clusterRows(c *evaluate.Clustering) clusterColumns {
	var cols clusterColumns
	if c == nil {
		return cols
	}
	for _, cp := range c.Clusters {
		cols.indices = append(cols.indices, cp.Index)
		cols.sizes = append(cols.sizes, cp.Size)
		cols.happy = append(cols.happy, cp.Counts[domain.Happy])
		cols.sad = append(cols.sad, cp.Counts[domain.Sad])
		if cp.Purity != nil {
			majority := cp.Majority.String()
			cols.majorities = append(cols.majorities, &majority)
		} else {
			cols.majorities = append(cols.majorities, nil)
		}
		cols.purities = append(cols.purities, cp.Purity)
	}
	return cols
}

// predictionRows keeps the last prediction per track so the primary key holds.
func predictionRows(preds []domain.Prediction) predictionColumns {
	var cols predictionColumns
	index := make(map[string]int, len(preds))
	for _, p := range preds {
		if i, ok := index[p.TrackID]; ok {
			cols.moods[i] = p.Mood.String()
			cols.confidences[i] = p.Confidence
			cols.splits[i] = string(p.Split)
			continue
		}
		index[p.TrackID] = len(cols.trackIDs)
		cols.trackIDs = append(cols.trackIDs, p.TrackID)
		cols.moods = append(cols.moods, p.Mood.String())
		cols.confidences = append(cols.confidences, p.Confidence)
		cols.splits = append(cols.splits, string(p.Split))
	}
	return cols
}
