package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/clustering"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newEvaluateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Scores the predictions and clusters against the labels",
		Long: `Computes accuracy, per-mood precision, recall and F1, and a confusion
matrix for the classifier, plus per-cluster purity for k-means. Either
output may be missing, in which case its half of the report is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.evaluate()
		},
	}

	f := cmd.Flags()
	f.String("scope", "test", "classification rows to score: test or all")
	f.String("xlsx", "", "also export the report as an Excel workbook")
	a.bind(f, "evaluate.scope", "scope")
	a.bind(f, "evaluate.xlsx", "xlsx")
	return cmd
}

// stageOutput is a predictions or clusters file with its sidecar.
type stageOutput struct {
	present bool
	meta    table.Meta
}

func (a *app) evaluate() error {
	log := a.stage("evaluate")

	in, err := a.readLabeled()
	if err != nil {
		return err
	}
	truth := evaluate.Truth(in.table)
	p := a.cfg.Paths

	var preds []domain.Prediction
	predOut, err := a.readOutput(p.Predictions, func() error {
		var err error
		preds, err = table.ReadPredictions(p.Predictions)
		return err
	})
	if err != nil {
		return fmt.Errorf("reading predictions: %w", err)
	}

	var assignments []domain.Assignment
	clusterOut, err := a.readOutput(p.Clusters, func() error {
		var err error
		assignments, err = table.ReadAssignments(p.Clusters)
		return err
	})
	if err != nil {
		return fmt.Errorf("reading clusters: %w", err)
	}

	if !predOut.present && !clusterOut.present {
		return fmt.Errorf("nothing to evaluate: neither %s nor %s exists", p.Predictions, p.Clusters)
	}
	if predOut.present && clusterOut.present {
		if err := evaluate.CheckCompatible(predOut.meta, clusterOut.meta); err != nil {
			return err
		}
	}
	for _, o := range []stageOutput{predOut, clusterOut} {
		if o.present {
			if err := o.meta.CheckSchema(in.schema); err != nil {
				return err
			}
		}
	}

	report, err := evaluate.Evaluate(truth, preds, assignments, evaluate.Options{
		Scope:             a.cfg.Scope(),
		K:                 clustering.K,
		SchemaFingerprint: in.schema.Fingerprint(),
	})
	if err != nil {
		return err
	}
	report.RunID = a.runID

	if err := evaluate.WriteFile(p.Report, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if x := a.cfg.Evaluate.XLSX; x != "" {
		if err := evaluate.WriteXLSX(x, report); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		log.Info("exported workbook", "path", x)
	}
	if err := evaluate.Render(a.out, report); err != nil {
		return err
	}

	attrs := []any{"scope", report.Scope, "output", p.Report}
	unmatched := 0
	if c := report.Classification; c != nil {
		attrs = append(attrs, "accuracy", c.Accuracy, "classified", c.Rows)
		unmatched += c.Unmatched
	}
	if c := report.Clustering; c != nil {
		attrs = append(attrs, "weighted_purity", c.WeightedPurity, "clustered", c.Rows)
		unmatched += c.Unmatched
	}
	if unmatched > 0 {
		log.Warn("outputs contain tracks without labels", "error", joinMismatch(unmatched, "rows without truth"))
	}
	log.Info("evaluated models", attrs...)
	return nil
}

// readOutput runs read when output exists and loads its sidecar. A missing
// output is reported as not present.
func (a *app) readOutput(output string, read func() error) (stageOutput, error) {
	if err := read(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.stage("evaluate").Warn("stage output missing, skipping", "path", output)
			return stageOutput{}, nil
		}
		return stageOutput{}, err
	}
	meta, err := table.ReadMeta(output)
	if err != nil {
		return stageOutput{}, fmt.Errorf("reading metadata of %s: %w", output, err)
	}
	return stageOutput{present: true, meta: meta}, nil
}
