package cli

import (
	"cmp"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/classifier"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newTrainCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Trains the random forest and predicts every labeled track",
		Long: `Splits the labeled table into stratified train and test partitions, fits a
random forest on the training rows, saves the model, and writes one
prediction per row tagged with the partition it came from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.train()
		},
	}

	cp := classifier.DefaultParams()
	f := cmd.Flags()
	f.Int("trees", cp.Trees, "number of trees in the forest")
	f.Int("max-depth", cp.MaxDepth, "maximum tree depth (0 is unlimited)")
	f.Int("min-samples-leaf", cp.MinSamplesLeaf, "fewest rows a leaf may hold")
	f.Float64("test-ratio", 0.2, "share of each mood held out for testing")
	f.Uint64("seed", cp.Seed, "random seed for the split and the forest")
	a.bind(f, "classifier.trees", "trees")
	a.bind(f, "classifier.max_depth", "max-depth")
	a.bind(f, "classifier.min_samples_leaf", "min-samples-leaf")
	a.bind(f, "classifier.test_ratio", "test-ratio")
	a.bind(f, "classifier.seed", "seed")
	return cmd
}

func (a *app) train() error {
	log := a.stage("train")

	in, err := a.readLabeled()
	if err != nil {
		return err
	}

	c := a.cfg.Classifier
	trainRows, testRows, err := classifier.Split(in.table.Rows, c.TestRatio, c.Seed)
	if err != nil {
		return err
	}

	model, err := classifier.Train(trainRows, in.schema, a.cfg.ForestParams())
	if err != nil {
		return err
	}
	if err := model.Save(a.cfg.Paths.Model); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}

	trainPreds, err := model.PredictRows(trainRows, domain.SplitTrain)
	if err != nil {
		return err
	}
	testPreds, err := model.PredictRows(testRows, domain.SplitTest)
	if err != nil {
		return err
	}
	preds := append(trainPreds, testPreds...)

	if err := table.WritePredictions(a.cfg.Paths.Predictions, preds); err != nil {
		return fmt.Errorf("writing predictions: %w", err)
	}
	if err := a.writeMeta(a.cfg.Paths.Predictions, "train", in.schema, len(preds)); err != nil {
		return err
	}

	a.printImportances(model.Importances())
	log.Info("trained classifier",
		"train_rows", len(trainRows),
		"test_rows", len(testRows),
		"trees", c.Trees,
		"model", a.cfg.Paths.Model,
		"output", a.cfg.Paths.Predictions,
	)
	return nil
}

// printImportances lists features from most to least important.
func (a *app) printImportances(imp map[string]float64) {
	names := make([]string, 0, len(imp))
	for name := range imp {
		names = append(names, name)
	}
	slices.SortFunc(names, func(x, y string) int {
		if c := cmp.Compare(imp[y], imp[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})

	tw := tablewriter.NewWriter(a.out)
	tw.Header([]string{"Feature", "Importance"})
	for _, name := range names {
		if err := tw.Append([]string{name, strconv.FormatFloat(imp[name], 'f', 4, 64)}); err != nil {
			return
		}
	}
	_ = tw.Render()
}

func newPredictCommand(a *app) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Scores a features table with the saved model",
		Long: `Loads the trained model and scores every row of a features table, labeled
or not. Rows with missing values are skipped. Predictions are written
with split "none".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = a.cfg.Paths.Features
			}
			if output == "" {
				output = filepath.Join(a.cfg.Paths.DataDir, "outputs", "scored_moods.csv")
			}
			return a.predict(input, output)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "features table to score (default is the extracted features)")
	cmd.Flags().StringVar(&output, "output", "", "where to write the predictions (default <data-dir>/outputs/scored_moods.csv)")
	return cmd
}

func (a *app) predict(input, output string) error {
	log := a.stage("predict")

	schema, err := table.ReadSchema(a.cfg.Paths.Schema)
	if err != nil {
		return fmt.Errorf("reading feature schema: %w", err)
	}
	model, err := classifier.Load(a.cfg.Paths.Model, schema)
	if err != nil {
		return err
	}

	in, err := table.ReadFeatures(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}
	rows, err := alignRows(in, schema)
	if err != nil {
		return err
	}
	skipped := len(in.Rows) - len(rows)

	preds, err := model.PredictRows(rows, domain.SplitNone)
	if err != nil {
		return err
	}
	if err := table.WritePredictions(output, preds); err != nil {
		return fmt.Errorf("writing predictions: %w", err)
	}
	if err := a.writeMeta(output, "predict", schema, len(preds)); err != nil {
		return err
	}

	log.Info("scored tracks", "rows", len(preds), "skipped", skipped, "output", output)
	return nil
}

// alignRows reorders the columns of t to the schema's order and drops rows
// with missing or non-finite values.
func alignRows(t *table.Features, schema *features.Schema) ([]domain.FeatureRow, error) {
	cols := make([]int, schema.Dim())
	index := make(map[string]int, len(t.Names))
	for i, name := range t.Names {
		index[name] = i
	}
	for j, name := range schema.Names {
		i, ok := index[name]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "schema", Reason: fmt.Sprintf("input has no %q column", name)}
		}
		cols[j] = i
	}

	out := make([]domain.FeatureRow, 0, len(t.Rows))
rows:
	for _, r := range t.Rows {
		values := make([]float64, len(cols))
		for j, i := range cols {
			v := r.Values[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue rows
			}
			values[j] = v
		}
		out = append(out, domain.FeatureRow{TrackID: r.TrackID, Values: values, Mood: r.Mood})
	}
	return out, nil
}
