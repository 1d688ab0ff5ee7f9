package evaluate

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
)

var truth = map[string]domain.Mood{
	"a": domain.Happy, "b": domain.Happy, "c": domain.Happy,
	"d": domain.Sad, "e": domain.Sad,
}

func pred(id string, m domain.Mood, split domain.Split) domain.Prediction {
	return domain.Prediction{TrackID: id, Mood: m, Confidence: 0.9, Split: split}
}

func TestClassificationMetrics(t *testing.T) {
	preds := []domain.Prediction{
		pred("a", domain.Happy, domain.SplitTest),
		pred("b", domain.Happy, domain.SplitTest),
		pred("c", domain.Sad, domain.SplitTest),
		pred("d", domain.Sad, domain.SplitTest),
		pred("e", domain.Happy, domain.SplitTest),
		pred("x", domain.Happy, domain.SplitTest),
		pred("a", domain.Sad, domain.SplitTrain),
	}

	r, err := Evaluate(truth, preds, nil, Options{Scope: ScopeTest})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	c := r.Classification
	if c.Rows != 5 || c.Unmatched != 1 {
		t.Errorf("Rows = %d, Unmatched = %d, want 5 and 1", c.Rows, c.Unmatched)
	}

	total := 0
	for _, row := range c.Confusion {
		for _, n := range row {
			total += n
		}
	}
	if total != c.Rows {
		t.Errorf("confusion sums to %d, want %d", total, c.Rows)
	}
	if c.Confusion[0][0] != 2 || c.Confusion[0][1] != 1 || c.Confusion[1][0] != 1 || c.Confusion[1][1] != 1 {
		t.Errorf("Confusion = %v", c.Confusion)
	}
	if c.Accuracy != 0.6 {
		t.Errorf("Accuracy = %v, want 0.6", c.Accuracy)
	}

	happy := c.Classes[0]
	if math.Abs(happy.Precision-2.0/3) > 1e-12 || math.Abs(happy.Recall-2.0/3) > 1e-12 || happy.Support != 3 {
		t.Errorf("Happy metrics = %+v", happy)
	}
	sad := c.Classes[1]
	if sad.Precision != 0.5 || sad.Recall != 0.5 || sad.F1 != 0.5 {
		t.Errorf("Sad metrics = %+v", sad)
	}
	wantWeightedF1 := (2.0/3)*0.6 + 0.5*0.4
	if math.Abs(c.Weighted.F1-wantWeightedF1) > 1e-12 {
		t.Errorf("weighted F1 = %v, want %v", c.Weighted.F1, wantWeightedF1)
	}
}

func TestClassificationZeroDenominators(t *testing.T) {
	preds := []domain.Prediction{
		pred("a", domain.Happy, domain.SplitTest),
		pred("d", domain.Happy, domain.SplitTest),
	}
	r, err := Evaluate(truth, preds, nil, Options{Scope: ScopeAll})
	if err != nil {
		t.Fatal(err)
	}
	sad := r.Classification.Classes[1]
	if sad.Precision != 0 || sad.Recall != 0 || sad.F1 != 0 {
		t.Errorf("Sad metrics = %+v, want all 0", sad)
	}
	for _, cm := range r.Classification.Classes {
		for _, v := range []float64{cm.Precision, cm.Recall, cm.F1} {
			if v < 0 || v > 1 {
				t.Errorf("%s metric %v outside [0, 1]", cm.Mood, v)
			}
		}
	}
}

func TestScopeAllIncludesTraining(t *testing.T) {
	preds := []domain.Prediction{
		pred("a", domain.Happy, domain.SplitTrain),
		pred("d", domain.Sad, domain.SplitTest),
	}
	test, _ := Evaluate(truth, preds, nil, Options{Scope: ScopeTest})
	all, _ := Evaluate(truth, preds, nil, Options{Scope: ScopeAll})
	if test.Classification.Rows != 1 || all.Classification.Rows != 2 {
		t.Errorf("rows = %d (test) and %d (all), want 1 and 2", test.Classification.Rows, all.Classification.Rows)
	}

	if _, err := Evaluate(truth, preds, nil, Options{Scope: "train"}); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown scope error = %v, want configuration error", err)
	}
}

func TestPurity(t *testing.T) {
	tests := []struct {
		name        string
		assignments []domain.Assignment
		k           int
		wantPurity  float64
		wantMapping map[int]domain.Mood
	}{
		{
			name: "homogeneous clusters",
			assignments: []domain.Assignment{
				{TrackID: "a", Cluster: 1}, {TrackID: "b", Cluster: 1}, {TrackID: "c", Cluster: 1},
				{TrackID: "d", Cluster: 0}, {TrackID: "e", Cluster: 0},
			},
			k:           2,
			wantPurity:  1,
			wantMapping: map[int]domain.Mood{0: domain.Sad, 1: domain.Happy},
		},
		{
			name: "mixed cluster",
			assignments: []domain.Assignment{
				{TrackID: "a", Cluster: 0}, {TrackID: "b", Cluster: 0}, {TrackID: "d", Cluster: 0},
				{TrackID: "c", Cluster: 1}, {TrackID: "e", Cluster: 1},
			},
			k:           2,
			wantPurity:  0.6,
			wantMapping: map[int]domain.Mood{0: domain.Happy, 1: domain.Happy},
		},
		{
			name: "empty cluster excluded",
			assignments: []domain.Assignment{
				{TrackID: "a", Cluster: 0}, {TrackID: "d", Cluster: 0},
				{TrackID: "b", Cluster: 2},
			},
			k:           3,
			wantPurity:  2.0 / 3,
			wantMapping: map[int]domain.Mood{0: domain.Happy, 2: domain.Happy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Evaluate(truth, nil, tt.assignments, Options{K: tt.k})
			if err != nil {
				t.Fatalf("Evaluate() error: %v", err)
			}
			c := r.Clustering
			if math.Abs(c.WeightedPurity-tt.wantPurity) > 1e-12 {
				t.Errorf("WeightedPurity = %v, want %v", c.WeightedPurity, tt.wantPurity)
			}
			if len(c.Clusters) != tt.k {
				t.Errorf("len(Clusters) = %d, want %d", len(c.Clusters), tt.k)
			}
			if len(c.Mapping) != len(tt.wantMapping) {
				t.Errorf("Mapping = %v, want %v", c.Mapping, tt.wantMapping)
			}
			for idx, m := range tt.wantMapping {
				if c.Mapping[idx] != m {
					t.Errorf("Mapping[%d] = %s, want %s", idx, c.Mapping[idx], m)
				}
			}
			for _, cp := range c.Clusters {
				if cp.Size == 0 && cp.Purity != nil {
					t.Errorf("empty cluster %d has purity %v", cp.Index, *cp.Purity)
				}
			}
		})
	}
}

func TestPurityRejectsOutOfRangeIndex(t *testing.T) {
	_, err := Evaluate(truth, nil, []domain.Assignment{{TrackID: "a", Cluster: 5}}, Options{K: 2})
	if err == nil {
		t.Error("Evaluate() should reject cluster index 5 with k=2")
	}
}

func TestMajorityTieGoesToFirstMood(t *testing.T) {
	r, err := Evaluate(truth, nil, []domain.Assignment{{TrackID: "a", Cluster: 0}, {TrackID: "d", Cluster: 0}}, Options{K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Clustering.Clusters[0].Majority; got != domain.Happy {
		t.Errorf("Majority = %s, want Happy", got)
	}
	if got := *r.Clustering.Clusters[0].Purity; got != 0.5 {
		t.Errorf("Purity = %v, want 0.5", got)
	}
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	preds := []domain.Prediction{pred("a", domain.Happy, domain.SplitTest), pred("d", domain.Sad, domain.SplitTest)}
	assignments := []domain.Assignment{{TrackID: "a", Cluster: 0}, {TrackID: "d", Cluster: 1}}
	r, err := Evaluate(truth, preds, assignments, Options{K: 2, SchemaFingerprint: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleReport(t)); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"accuracy 1.000", "weighted purity 1.000", "Happy", "Sad"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReadFile(t *testing.T) {
	r := sampleReport(t)
	for _, name := range []string{"report.yaml", "report.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteFile(path, r); err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error: %v", err)
			}
			if got.RunID != r.RunID || got.Classification.Accuracy != 1 || got.Clustering.WeightedPurity != 1 {
				t.Errorf("round trip lost data: %+v", got)
			}
			if got.Clustering.Mapping[1] != domain.Sad {
				t.Errorf("Mapping = %v", got.Clustering.Mapping)
			}
		})
	}
}

func TestEncodeXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeXLSX(&buf, sampleReport(t)); err != nil {
		t.Fatalf("EncodeXLSX() error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Summary", "Confusion", "Classes", "Clusters"}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}
	v, err := f.GetCellValue("Summary", "B4")
	if err != nil || v != "abc" {
		t.Errorf("schema fingerprint cell = %q (%v), want abc", v, err)
	}
}

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		name    string
		pred    string
		cluster string
		wantErr bool
	}{
		{name: "same schema", pred: "abc", cluster: "abc"},
		{name: "different schema", pred: "abc", cluster: "def", wantErr: true},
		{name: "missing fingerprint", pred: "", cluster: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCompatible(table.Meta{SchemaFingerprint: tt.pred}, table.Meta{SchemaFingerprint: tt.cluster})
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckCompatible() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("error %v should be a configuration error", err)
			}
		})
	}
}
