package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
)

// RunRepository handles evaluation run database operations.
type RunRepository struct {
	pool *pgxpool.Pool
}

// Save stores a report and the predictions it scored in one transaction.
// Saving the same run id twice replaces the earlier copy.
func (r *RunRepository) Save(ctx context.Context, report *evaluate.Report, preds []domain.Prediction) error {
	if report == nil {
		return errors.New("cannot save nil report")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM evaluation_runs WHERE id = $1`, report.RunID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}

	run := runFromReport(report)
	runQuery := `
		INSERT INTO evaluation_runs (id, generated_at, scope, schema_fingerprint,
			rows_classified, accuracy, macro_f1, weighted_f1, rows_clustered, weighted_purity, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err = tx.Exec(ctx, runQuery,
		run.ID,
		run.GeneratedAt,
		run.Scope,
		run.SchemaFingerprint,
		run.RowsClassified,
		run.Accuracy,
		run.MacroF1,
		run.WeightedF1,
		run.RowsClustered,
		run.WeightedPurity,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	if cols := classRows(report.Classification); len(cols.moods) > 0 {
		query := `
			INSERT INTO evaluation_classes (run_id, mood, precision, recall, f1, support)
			SELECT $1, * FROM unnest($2::text[], $3::float8[], $4::float8[], $5::float8[], $6::int[])
		`
		if _, err := tx.Exec(ctx, query, run.ID, cols.moods, cols.precisions, cols.recalls, cols.f1s, cols.supports); err != nil {
			return fmt.Errorf("inserting class metrics: %w", err)
		}
	}

	if cols := clusterRows(report.Clustering); len(cols.indices) > 0 {
		query := `
			INSERT INTO evaluation_clusters (run_id, cluster_index, size, happy, sad, majority, purity)
			SELECT $1, * FROM unnest($2::int[], $3::int[], $4::int[], $5::int[], $6::text[], $7::float8[])
		`
		if _, err := tx.Exec(ctx, query, run.ID, cols.indices, cols.sizes, cols.happy, cols.sad, cols.majorities, cols.purities); err != nil {
			return fmt.Errorf("inserting cluster purity: %w", err)
		}
	}

	if cols := predictionRows(preds); len(cols.trackIDs) > 0 {
		query := `
			INSERT INTO evaluation_predictions (run_id, track_id, mood, confidence, split)
			SELECT $1, * FROM unnest($2::text[], $3::text[], $4::float8[], $5::text[])
		`
		if _, err := tx.Exec(ctx, query, run.ID, cols.trackIDs, cols.moods, cols.confidences, cols.splits); err != nil {
			return fmt.Errorf("inserting predictions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const runColumns = `id, generated_at, scope, schema_fingerprint, rows_classified, accuracy,
	macro_f1, weighted_f1, rows_clustered, weighted_purity, published_at`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.GeneratedAt,
		&run.Scope,
		&run.SchemaFingerprint,
		&run.RowsClassified,
		&run.Accuracy,
		&run.MacroF1,
		&run.WeightedF1,
		&run.RowsClustered,
		&run.WeightedPurity,
		&run.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Latest returns the most recently generated run.
func (r *RunRepository) Latest(ctx context.Context) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM evaluation_runs ORDER BY generated_at DESC LIMIT 1`
	run, err := scanRun(r.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM evaluation_runs ORDER BY generated_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
