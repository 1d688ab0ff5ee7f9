package evaluate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// Render writes the report as terminal tables.
func Render(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Evaluation %s (scope %s)\n", r.RunID, r.Scope)

	if c := r.Classification; c != nil {
		fmt.Fprintf(w, "\nClassification: %d rows, accuracy %s", c.Rows, pct(c.Accuracy))
		if c.Unmatched > 0 {
			fmt.Fprintf(w, " (%d predictions without truth)", c.Unmatched)
		}
		fmt.Fprintln(w)

		confusion := tablewriter.NewWriter(w)
		header := []string{"true \\ predicted"}
		for _, m := range domain.Moods() {
			header = append(header, m.String())
		}
		confusion.Header(header)
		for i, m := range domain.Moods() {
			row := []string{m.String()}
			for _, n := range c.Confusion[i] {
				row = append(row, strconv.Itoa(n))
			}
			if err := confusion.Append(row); err != nil {
				return err
			}
		}
		if err := confusion.Render(); err != nil {
			return err
		}

		classes := tablewriter.NewWriter(w)
		classes.Header([]string{"Mood", "Precision", "Recall", "F1", "Support"})
		for _, cm := range c.Classes {
			if err := classes.Append([]string{cm.Mood.String(), pct(cm.Precision), pct(cm.Recall), pct(cm.F1), strconv.Itoa(cm.Support)}); err != nil {
				return err
			}
		}
		for _, avg := range []struct {
			name string
			a    Averages
		}{{"macro avg", c.Macro}, {"weighted avg", c.Weighted}} {
			if err := classes.Append([]string{avg.name, pct(avg.a.Precision), pct(avg.a.Recall), pct(avg.a.F1), strconv.Itoa(c.Rows)}); err != nil {
				return err
			}
		}
		if err := classes.Render(); err != nil {
			return err
		}
	}

	if c := r.Clustering; c != nil {
		fmt.Fprintf(w, "\nClustering: %d rows, weighted purity %s", c.Rows, pct(c.WeightedPurity))
		if c.Unmatched > 0 {
			fmt.Fprintf(w, " (%d assignments without truth)", c.Unmatched)
		}
		fmt.Fprintln(w)

		clusters := tablewriter.NewWriter(w)
		header := []string{"Cluster", "Size"}
		for _, m := range domain.Moods() {
			header = append(header, m.String())
		}
		clusters.Header(append(header, "Majority", "Purity"))
		for _, cp := range c.Clusters {
			row := []string{strconv.Itoa(cp.Index), strconv.Itoa(cp.Size)}
			for _, m := range domain.Moods() {
				row = append(row, strconv.Itoa(cp.Counts[m]))
			}
			majority, purity := "-", "-"
			if cp.Purity != nil {
				majority, purity = cp.Majority.String(), pct(*cp.Purity)
			}
			if err := clusters.Append(append(row, majority, purity)); err != nil {
				return err
			}
		}
		if err := clusters.Render(); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile stores the report as JSON when path ends in .json and as YAML
// otherwise.
func WriteFile(path string, r *Report) error {
	return table.WriteAtomic(path, func(w io.Writer) error {
		if isJSON(path) {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if isJSON(path) {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
