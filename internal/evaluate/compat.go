package evaluate

import (
	"fmt"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
)

// CheckCompatible verifies that predictions and cluster assignments were
// produced from the same feature schema.
func CheckCompatible(predictions, clusters table.Meta) error {
	if predictions.SchemaFingerprint == "" || clusters.SchemaFingerprint == "" {
		return &domain.ConfigurationError{
			Field:  "schema",
			Reason: "predictions and clusters must both record the schema they were built with",
		}
	}
	if predictions.SchemaFingerprint != clusters.SchemaFingerprint {
		return &domain.ConfigurationError{
			Field: "schema",
			Reason: fmt.Sprintf("predictions use schema %s but clusters use %s",
				predictions.SchemaFingerprint, clusters.SchemaFingerprint),
		}
	}
	return nil
}

// Truth builds the ground-truth lookup from a labeled table.
func Truth(t *table.Features) map[string]domain.Mood {
	truth := make(map[string]domain.Mood, len(t.Rows))
	for _, r := range t.Rows {
		if r.Mood.Valid() {
			truth[r.TrackID] = r.Mood
		}
	}
	return truth
}
