package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

// Schema fixes the ordered feature names and the scaling parameters fitted
// by the transformer. Both the classifier and the clusterer scale through
// the same Schema so distances mean the same thing in both.
type Schema struct {
	ID           uuid.UUID `json:"id"`
	Names        []string  `json:"names"`
	Standardized bool      `json:"standardized"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
	CreatedAt    time.Time `json:"created_at"`
}

// FitSchema computes population mean and standard deviation of each column.
// A zero deviation is stored as 1 so constant columns scale to 0. When
// standardize is false the parameters are identity. At least one feature
// name is required.
func FitSchema(names []string, rows [][]float64, standardize bool) (*Schema, error) {
	if len(names) == 0 {
		return nil, &domain.ConfigurationError{Field: "schema", Reason: "the feature table has no feature columns"}
	}
	s := &Schema{
		ID:           uuid.New(),
		Names:        slices.Clone(names),
		Standardized: standardize,
		Mean:         make([]float64, len(names)),
		Std:          make([]float64, len(names)),
		CreatedAt:    time.Now().UTC(),
	}
	for j := range s.Std {
		s.Std[j] = 1
	}
	if !standardize {
		return s, nil
	}
	if len(rows) == 0 {
		return nil, &domain.InsufficientDataError{Stage: "transform", Have: 0, Need: 1}
	}

	col := make([]float64, len(rows))
	for j := range names {
		for i, row := range rows {
			if len(row) != len(names) {
				return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(names))
			}
			col[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		if std := math.Sqrt(variance); std > 0 {
			s.Std[j] = std
		}
	}
	return s, nil
}

// Dim returns the number of features.
func (s *Schema) Dim() int { return len(s.Names) }

// Apply returns row scaled by the schema's parameters.
func (s *Schema) Apply(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// Invert maps a scaled vector back to raw units.
func (s *Schema) Invert(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for j, v := range scaled {
		out[j] = v*s.Std[j] + s.Mean[j]
	}
	return out
}

// Index returns the position of a feature name, or -1.
func (s *Schema) Index(name string) int {
	return slices.Index(s.Names, name)
}

// Fingerprint hashes the names and scaling parameters. Two schemas with the
// same fingerprint scale identically regardless of their IDs.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	for _, name := range s.Names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	if s.Standardized {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, params := range [][]float64{s.Mean, s.Std} {
		for _, v := range params {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Check verifies that a table's feature columns match the schema exactly.
func (s *Schema) Check(columns []string) error {
	if !slices.Equal(s.Names, columns) {
		return &domain.ConfigurationError{
			Field:  "schema",
			Reason: fmt.Sprintf("table columns %v do not match schema features %v", columns, s.Names),
		}
	}
	return nil
}

// RequireStandardized fails unless the schema carries fitted scaling.
func (s *Schema) RequireStandardized() error {
	if !s.Standardized {
		return &domain.ConfigurationError{
			Field:  "transform.standardize",
			Reason: "clustering needs standardized features",
		}
	}
	return nil
}
