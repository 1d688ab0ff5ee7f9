package table

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
)

// Meta describes the run that produced a stage output. It is stored next
// to the output as <output>.meta.json.
type Meta struct {
	RunID             uuid.UUID `json:"run_id"`
	Stage             string    `json:"stage"`
	SchemaFingerprint string    `json:"schema_fingerprint,omitempty"`
	Rows              int       `json:"rows"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewMeta creates metadata for a stage output.
func NewMeta(runID uuid.UUID, stage string, schema *features.Schema, rows int) Meta {
	m := Meta{RunID: runID, Stage: stage, Rows: rows, CreatedAt: time.Now().UTC()}
	if schema != nil {
		m.SchemaFingerprint = schema.Fingerprint()
	}
	return m
}

// MetaPath returns the sidecar path of an output file.
func MetaPath(output string) string {
	return output + ".meta.json"
}

// WriteMeta writes the sidecar of output.
func WriteMeta(output string, m Meta) error {
	return WriteAtomicAll(MetaOutput(output, m))
}

// MetaOutput stages the sidecar of output for WriteAtomicAll.
func MetaOutput(output string, m Meta) Output {
	return Output{Path: MetaPath(output), Write: encodeJSON(m)}
}

// ReadMeta reads the sidecar of output.
func ReadMeta(output string) (Meta, error) {
	var m Meta
	if err := readJSON(MetaPath(output), &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// CheckSchema verifies that the output described by m was produced with s.
func (m Meta) CheckSchema(s *features.Schema) error {
	if m.SchemaFingerprint != s.Fingerprint() {
		return &domain.ConfigurationError{
			Field:  "schema",
			Reason: fmt.Sprintf("%s output was built with schema %s, have %s", m.Stage, m.SchemaFingerprint, s.Fingerprint()),
		}
	}
	return nil
}

// WriteSchema stores a feature schema as JSON.
func WriteSchema(path string, s *features.Schema) error {
	return WriteAtomicAll(SchemaOutput(path, s))
}

// SchemaOutput stages a feature schema for WriteAtomicAll.
func SchemaOutput(path string, s *features.Schema) Output {
	return Output{Path: path, Write: encodeJSON(s)}
}

// ReadSchema loads a feature schema.
func ReadSchema(path string) (*features.Schema, error) {
	var s features.Schema
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if len(s.Mean) != len(s.Names) || len(s.Std) != len(s.Names) {
		return nil, fmt.Errorf("%s: schema parameters do not match %d features", path, len(s.Names))
	}
	return &s, nil
}

func encodeJSON(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
