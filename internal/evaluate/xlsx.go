package evaluate

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
)

// WriteXLSX exports the report as a workbook with Summary, Confusion,
// Classes and Clusters sheets.
func WriteXLSX(path string, r *Report) error {
	return table.WriteAtomic(path, func(w io.Writer) error {
		return EncodeXLSX(w, r)
	})
}

// EncodeXLSX writes the workbook form of r.
func EncodeXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return err
	}
	summary := [][]any{
		{"run_id", r.RunID.String()},
		{"generated_at", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"scope", string(r.Scope)},
		{"schema_fingerprint", r.SchemaFingerprint},
	}
	if c := r.Classification; c != nil {
		summary = append(summary, []any{"rows_classified", c.Rows}, []any{"accuracy", c.Accuracy})
	}
	if c := r.Clustering; c != nil {
		summary = append(summary, []any{"rows_clustered", c.Rows}, []any{"weighted_purity", c.WeightedPurity})
	}
	if err := writeRows(f, "Summary", summary); err != nil {
		return err
	}

	if c := r.Classification; c != nil {
		header := []any{"true \\ predicted"}
		for _, m := range domain.Moods() {
			header = append(header, m.String())
		}
		confusion := [][]any{header}
		for i, m := range domain.Moods() {
			row := []any{m.String()}
			for _, n := range c.Confusion[i] {
				row = append(row, n)
			}
			confusion = append(confusion, row)
		}
		if err := addSheet(f, "Confusion", confusion); err != nil {
			return err
		}

		classes := [][]any{{"mood", "precision", "recall", "f1", "support"}}
		for _, cm := range c.Classes {
			classes = append(classes, []any{cm.Mood.String(), cm.Precision, cm.Recall, cm.F1, cm.Support})
		}
		classes = append(classes,
			[]any{"macro avg", c.Macro.Precision, c.Macro.Recall, c.Macro.F1, c.Rows},
			[]any{"weighted avg", c.Weighted.Precision, c.Weighted.Recall, c.Weighted.F1, c.Rows},
		)
		if err := addSheet(f, "Classes", classes); err != nil {
			return err
		}
	}

	if c := r.Clustering; c != nil {
		header := []any{"cluster", "size"}
		for _, m := range domain.Moods() {
			header = append(header, m.String())
		}
		rows := [][]any{append(header, "majority", "purity")}
		for _, cp := range c.Clusters {
			row := []any{cp.Index, cp.Size}
			for _, m := range domain.Moods() {
				row = append(row, cp.Counts[m])
			}
			if cp.Purity != nil {
				row = append(row, cp.Majority.String(), *cp.Purity)
			} else {
				row = append(row, "", "")
			}
			rows = append(rows, row)
		}
		if err := addSheet(f, "Clusters", rows); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
