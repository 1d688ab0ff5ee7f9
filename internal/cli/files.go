package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
	"github.com/justestif/go-mood-classifier/internal/table"
)

// labeledInput is the transform output both models consume.
type labeledInput struct {
	table  *table.Features
	schema *features.Schema
}

// readLabeled loads the labeled table and the schema, and checks that the
// table was produced with that schema.
func (a *app) readLabeled() (*labeledInput, error) {
	schema, err := table.ReadSchema(a.cfg.Paths.Schema)
	if err != nil {
		return nil, fmt.Errorf("reading feature schema: %w", err)
	}
	t, err := table.ReadFeatures(a.cfg.Paths.Labeled)
	if err != nil {
		return nil, fmt.Errorf("reading labeled table: %w", err)
	}
	if !t.Labeled {
		return nil, fmt.Errorf("%s has no mood column", a.cfg.Paths.Labeled)
	}
	if err := schema.Check(t.Names); err != nil {
		return nil, err
	}
	meta, err := table.ReadMeta(a.cfg.Paths.Labeled)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := meta.CheckSchema(schema); err != nil {
			return nil, err
		}
	}
	return &labeledInput{table: t, schema: schema}, nil
}

// writeMeta stores a stage output's sidecar.
func (a *app) writeMeta(output, stage string, schema *features.Schema, rows int) error {
	return table.WriteMeta(output, table.NewMeta(a.runID, stage, schema, rows))
}

// readLabels collects the ground-truth labels: the labels table when it
// exists, plus any moods carried by the manifest.
func (a *app) readLabels(manifest []domain.TrackRecord) ([]domain.Label, error) {
	var labels []domain.Label
	for _, t := range manifest {
		if t.Mood != nil {
			labels = append(labels, domain.Label{TrackID: t.ID, Mood: t.Mood.String()})
		}
	}

	records, err := table.ReadLabels(a.cfg.Paths.Labels)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if len(labels) == 0 {
			return nil, fmt.Errorf("no labels: %s does not exist and the manifest carries no moods", a.cfg.Paths.Labels)
		}
		return labels, nil
	case err != nil:
		return nil, fmt.Errorf("reading labels: %w", err)
	}

	resolved, unmatched := table.ResolveLabels(records, manifest)
	if unmatched > 0 {
		a.stage("transform").Warn("labels without a track id or manifest match", "count", unmatched)
	}
	return append(labels, resolved...), nil
}
