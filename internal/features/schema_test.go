package features

import (
	"errors"
	"math"
	"testing"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

func TestFitSchema(t *testing.T) {
	rows := [][]float64{
		{1, 10, 5},
		{3, 10, 5},
		{5, 10, 5},
	}
	s, err := FitSchema([]string{"a", "b", "c"}, rows, true)
	if err != nil {
		t.Fatalf("FitSchema() error: %v", err)
	}

	if s.Mean[0] != 3 {
		t.Errorf("Mean[0] = %v, want 3", s.Mean[0])
	}
	if want := math.Sqrt(8.0 / 3); math.Abs(s.Std[0]-want) > 1e-12 {
		t.Errorf("Std[0] = %v, want %v", s.Std[0], want)
	}
	if s.Std[1] != 1 || s.Std[2] != 1 {
		t.Errorf("constant columns should get std 1, got %v", s.Std)
	}

	scaled := s.Apply([]float64{3, 10, 7})
	if scaled[0] != 0 || scaled[1] != 0 || scaled[2] != 2 {
		t.Errorf("Apply() = %v, want [0 0 2]", scaled)
	}
	back := s.Invert(scaled)
	if back[0] != 3 || back[2] != 7 {
		t.Errorf("Invert() = %v", back)
	}
}

func TestFitSchemaUnstandardized(t *testing.T) {
	s, err := FitSchema([]string{"a"}, [][]float64{{4}, {8}}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Apply([]float64{4}); got[0] != 4 {
		t.Errorf("unstandardized Apply() = %v, want identity", got)
	}
	if err := s.RequireStandardized(); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("RequireStandardized() = %v, want configuration error", err)
	}
}

func TestFitSchemaRejectsNoFeatures(t *testing.T) {
	for _, standardize := range []bool{true, false} {
		_, err := FitSchema(nil, [][]float64{{}, {}}, standardize)
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("FitSchema(standardize=%v) error = %v, want configuration error", standardize, err)
		}
	}
}

func TestFitSchemaRejectsRaggedRows(t *testing.T) {
	if _, err := FitSchema([]string{"a", "b"}, [][]float64{{1, 2}, {3}}, true); err == nil {
		t.Error("FitSchema() should reject rows of the wrong width")
	}
}

func TestSchemaFingerprint(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}
	a, _ := FitSchema([]string{"x", "y"}, rows, true)
	b, _ := FitSchema([]string{"x", "y"}, rows, true)

	if a.ID == b.ID {
		t.Error("schemas should get distinct IDs")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical parameters should give identical fingerprints")
	}

	c, _ := FitSchema([]string{"x", "y"}, [][]float64{{1, 2}, {5, 4}}, true)
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different means should change the fingerprint")
	}
	d, _ := FitSchema([]string{"x", "z"}, rows, true)
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("different names should change the fingerprint")
	}
}

func TestSchemaCheck(t *testing.T) {
	s, _ := FitSchema([]string{"x", "y"}, [][]float64{{1, 2}}, true)

	if err := s.Check([]string{"x", "y"}); err != nil {
		t.Errorf("Check() of matching columns: %v", err)
	}
	for _, cols := range [][]string{{"y", "x"}, {"x"}, {"x", "y", "z"}} {
		if err := s.Check(cols); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("Check(%v) = %v, want configuration error", cols, err)
		}
	}
}
