package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/db"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newPublishCommand(a *app) *cobra.Command {
	var (
		list, latest bool
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Stores the evaluation report and predictions in PostgreSQL",
		Long: `Reads the evaluation report and the predictions and saves them as one run
in PostgreSQL, creating the tables on first use. Publishing the same run
twice replaces it.

With --list it prints the runs already published instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return a.listRuns(cmd.Context(), latest, limit)
			}
			return a.publish(cmd.Context())
		},
	}
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	a.bind(cmd.Flags(), "database.url", "database-url")
	cmd.Flags().BoolVar(&list, "list", false, "list published runs, newest first")
	cmd.Flags().BoolVar(&latest, "latest", false, "with --list, show only the most recent run")
	cmd.Flags().IntVar(&limit, "limit", 10, "with --list, maximum number of runs to show")
	return cmd
}

func (a *app) publish(ctx context.Context) error {
	log := a.stage("publish")
	p := a.cfg.Paths

	report, err := evaluate.ReadFile(p.Report)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	preds, err := table.ReadPredictions(p.Predictions)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		preds = []domain.Prediction{}
	case err != nil:
		return fmt.Errorf("reading predictions: %w", err)
	}

	database, err := db.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := database.Runs().Save(ctx, report, preds); err != nil {
		return err
	}

	log.Info("published run", "run_id", report.RunID, "predictions", len(preds))
	return nil
}

func (a *app) listRuns(ctx context.Context, latest bool, limit int) error {
	if limit < 1 {
		return &domain.ConfigurationError{Field: "limit", Reason: "must be at least 1"}
	}

	database, err := db.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	var runs []db.Run
	if latest {
		run, err := database.Runs().Latest(ctx)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return err
		default:
			runs = []db.Run{*run}
		}
	} else {
		runs, err = database.Runs().List(ctx, limit)
		if err != nil {
			return err
		}
	}
	return printRuns(a.out, runs)
}

// printRuns renders runs as a table. Metrics a run did not score print as n/a.
func printRuns(w io.Writer, runs []db.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no published runs")
		return err
	}

	tw := tablewriter.NewWriter(w)
	tw.Header([]string{"Run", "Generated", "Scope", "Schema", "Rows", "Accuracy", "Macro F1", "Clustered", "Purity"})
	for _, r := range runs {
		row := []string{
			r.ID.String(),
			r.GeneratedAt.UTC().Format(time.RFC3339),
			r.Scope,
			r.SchemaFingerprint,
			optInt(r.RowsClassified),
			optFloat(r.Accuracy),
			optFloat(r.MacroF1),
			optInt(r.RowsClustered),
			optFloat(r.WeightedPurity),
		}
		if err := tw.Append(row); err != nil {
			return err
		}
	}
	return tw.Render()
}

func optInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}
