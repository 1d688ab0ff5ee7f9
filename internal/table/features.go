package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

const (
	idColumn   = "id"
	moodColumn = "mood"
)

// Features is a feature table: one row per track, one column per feature,
// with an optional trailing mood column.
type Features struct {
	Names   []string
	Labeled bool
	Rows    []domain.FeatureRow
}

// Find returns the row with the given track ID.
func (f *Features) Find(id string) (domain.FeatureRow, bool) {
	for _, r := range f.Rows {
		if r.TrackID == id {
			return r, true
		}
	}
	return domain.FeatureRow{}, false
}

// Matrix returns the value slices of all rows.
func (f *Features) Matrix() [][]float64 {
	out := make([][]float64, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Values
	}
	return out
}

// WriteFeatures writes t as CSV to path atomically.
func WriteFeatures(path string, t *Features) error {
	return WriteAtomicAll(FeaturesOutput(path, t))
}

// FeaturesOutput stages a feature table for WriteAtomicAll.
func FeaturesOutput(path string, t *Features) Output {
	return Output{Path: path, Write: func(w io.Writer) error {
		return EncodeFeatures(w, t)
	}}
}

// EncodeFeatures writes the CSV form of t.
func EncodeFeatures(w io.Writer, t *Features) error {
	cw := csv.NewWriter(w)

	header := append([]string{idColumn}, t.Names...)
	if t.Labeled {
		header = append(header, moodColumn)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, r := range t.Rows {
		if len(r.Values) != len(t.Names) {
			return fmt.Errorf("row %s has %d values, want %d", r.TrackID, len(r.Values), len(t.Names))
		}
		record[0] = r.TrackID
		for j, v := range r.Values {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if t.Labeled {
			record[len(record)-1] = r.Mood.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFeatures reads a feature table from path.
func ReadFeatures(path string) (*Features, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := DecodeFeatures(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// DecodeFeatures parses a feature table. Empty or unparsable cells become
// NaN so callers can count and drop them. An invalid mood is an error.
func DecodeFeatures(r io.Reader) (*Features, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty feature table")
	}
	if err != nil {
		return nil, err
	}

	idIdx := slices.Index(header, idColumn)
	if idIdx < 0 {
		return nil, fmt.Errorf("missing %q column", idColumn)
	}
	moodIdx := slices.Index(header, moodColumn)

	t := &Features{Labeled: moodIdx >= 0}
	var cols []int
	for i, name := range header {
		if i == idIdx || i == moodIdx {
			continue
		}
		t.Names = append(t.Names, name)
		cols = append(cols, i)
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(record), len(header))
		}

		row := domain.FeatureRow{TrackID: record[idIdx], Values: make([]float64, len(cols))}
		for j, c := range cols {
			row.Values[j] = parseCell(record[c])
		}
		if moodIdx >= 0 && record[moodIdx] != "" {
			m, err := domain.ParseMood(record[moodIdx])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row.Mood = m
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
