package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
	"github.com/justestif/go-mood-classifier/internal/transform"
)

func newTransformCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Joins features with labels and fits the feature schema",
		Long: `Inner-joins the raw features table with the mood labels, drops duplicate
and incomplete rows, and writes the labeled table and the feature schema.
Every drop is counted and reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transform()
		},
	}

	f := cmd.Flags()
	f.Bool("standardize", true, "scale features to zero mean and unit variance")
	f.String("labels", "", "labels CSV (default <data-dir>/provided/mood_relation.csv)")
	a.bind(f, "transform.standardize", "standardize")
	a.bind(f, "paths.labels", "labels")
	return cmd
}

func (a *app) transform() error {
	log := a.stage("transform")

	in, err := table.ReadFeatures(a.cfg.Paths.Features)
	if err != nil {
		return fmt.Errorf("reading features: %w", err)
	}

	manifest, err := table.ReadManifest(a.cfg.Paths.Manifest)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading manifest: %w", err)
	}
	labels, err := a.readLabels(manifest)
	if err != nil {
		return err
	}

	res, err := transform.Transform(in, labels, transform.Options{Standardize: a.cfg.Transform.Standardize})
	if res != nil {
		a.printStats(res.Stats)
		if s := res.Stats; s.FeaturesWithoutLabel+s.LabelsWithoutFeature > 0 {
			log.Warn("rows dropped by the join",
				"features_without_label", s.FeaturesWithoutLabel,
				"labels_without_features", s.LabelsWithoutFeature,
				"error", joinMismatch(s.FeaturesWithoutLabel+s.LabelsWithoutFeature, "rows without a partner"),
			)
		}
	}
	if err != nil {
		return err
	}

	// The labeled table and the schema are only valid as a pair.
	p := a.cfg.Paths
	meta := table.NewMeta(a.runID, "transform", res.Schema, len(res.Table.Rows))
	if err := table.WriteAtomicAll(
		table.FeaturesOutput(p.Labeled, res.Table),
		table.MetaOutput(p.Labeled, meta),
		table.SchemaOutput(p.Schema, res.Schema),
	); err != nil {
		return fmt.Errorf("writing labeled table: %w", err)
	}

	s := res.Stats
	log.Info("transformed features",
		"rows", s.OutputRows,
		"happy", s.Classes[domain.Happy],
		"sad", s.Classes[domain.Sad],
		"standardized", res.Schema.Standardized,
		"schema", res.Schema.Fingerprint(),
		"output", a.cfg.Paths.Labeled,
	)
	return nil
}

func joinMismatch(n int, what string) error {
	return fmt.Errorf("%w: %d %s", domain.ErrJoinMismatch, n, what)
}

// printStats renders the filtering counts.
func (a *app) printStats(s transform.Stats) {
	rows := [][]string{
		{"feature rows", strconv.Itoa(s.FeatureRows)},
		{"label rows", strconv.Itoa(s.LabelRows)},
		{"invalid labels", strconv.Itoa(s.InvalidLabels)},
		{"conflicting labels", strconv.Itoa(s.ConflictingLabels)},
		{"duplicate rows", strconv.Itoa(s.DuplicateRows)},
		{"features without label", strconv.Itoa(s.FeaturesWithoutLabel)},
		{"labels without features", strconv.Itoa(s.LabelsWithoutFeature)},
		{"missing values", strconv.Itoa(s.MissingValues)},
		{"output rows", strconv.Itoa(s.OutputRows)},
	}
	for _, m := range domain.Moods() {
		rows = append(rows, []string{m.String() + " rows", strconv.Itoa(s.Classes[m])})
	}

	tw := tablewriter.NewWriter(a.out)
	tw.Header([]string{"Transform", "Count"})
	for _, r := range rows {
		if err := tw.Append(r); err != nil {
			return
		}
	}
	_ = tw.Render()
}
