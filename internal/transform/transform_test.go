package transform

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func featureTable(rows ...domain.FeatureRow) *table.Features {
	return &table.Features{Names: []string{"tempo", "rms_mean"}, Rows: rows}
}

func row(id string, values ...float64) domain.FeatureRow {
	return domain.FeatureRow{TrackID: id, Values: values}
}

func TestTransformJoinsAndCounts(t *testing.T) {
	in := featureTable(
		row("a", 120, 0.5),
		row("b", 80, 0.2),
		row("c", 130, 0.6),
		row("d", 70, 0.1),
		row("e", 100, math.NaN()),
		row("f", 90, 0.3),
		row("a", 120, 0.5),
	)
	labels := []domain.Label{
		{TrackID: "a", Mood: "Happy"},
		{TrackID: "b", Mood: "sad"},
		{TrackID: "c", Mood: "HAPPY"},
		{TrackID: "d", Mood: "Sad"},
		{TrackID: "e", Mood: "Happy"},
		{TrackID: "g", Mood: "Sad"},
		{TrackID: "h", Mood: "angry"},
	}

	res, err := Transform(in, labels, Options{Standardize: true})
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	want := Stats{
		FeatureRows:          7,
		LabelRows:            7,
		InvalidLabels:        1,
		DuplicateRows:        1,
		FeaturesWithoutLabel: 1,
		LabelsWithoutFeature: 1,
		MissingValues:        1,
		OutputRows:           4,
	}
	got := res.Stats
	got.Classes = nil
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	if res.Stats.Classes[domain.Happy] != 2 || res.Stats.Classes[domain.Sad] != 2 {
		t.Errorf("Classes = %v, want 2 and 2", res.Stats.Classes)
	}

	ids := make([]string, len(res.Table.Rows))
	for i, r := range res.Table.Rows {
		ids[i] = r.TrackID
	}
	if len(ids) != 4 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" || ids[3] != "d" {
		t.Errorf("output ids = %v, want [a b c d] in input order", ids)
	}

	if r, _ := res.Table.Find("a"); r.Values[0] != 120 || r.Mood != domain.Happy {
		t.Errorf("row a = %+v, want raw values with mood Happy", r)
	}
	if !res.Schema.Standardized || res.Schema.Mean[0] != 100 {
		t.Errorf("schema mean = %v, want tempo mean 100", res.Schema.Mean)
	}
}

func TestTransformEveryRowLabeledAndFinite(t *testing.T) {
	in := featureTable(
		row("a", 1, 2), row("b", 3, math.Inf(1)), row("c", 5, 6),
		row("d", 7, 8), row("e", 9, 10),
	)
	labels := []domain.Label{
		{TrackID: "a", Mood: "Happy"}, {TrackID: "b", Mood: "Happy"},
		{TrackID: "c", Mood: "Happy"}, {TrackID: "d", Mood: "Sad"},
		{TrackID: "e", Mood: "Sad"},
	}
	res, err := Transform(in, labels, Options{Standardize: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Table.Rows {
		if !r.Mood.Valid() {
			t.Errorf("row %s has no mood", r.TrackID)
		}
		for _, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("row %s has non-finite value %v", r.TrackID, v)
			}
		}
	}
	if res.Stats.MissingValues != 1 {
		t.Errorf("MissingValues = %d, want 1", res.Stats.MissingValues)
	}
}

func TestTransformDropsConflictingLabels(t *testing.T) {
	in := featureTable(row("a", 1, 1), row("b", 2, 2), row("c", 3, 3), row("d", 4, 4), row("e", 5, 5))
	labels := []domain.Label{
		{TrackID: "a", Mood: "Happy"},
		{TrackID: "a", Mood: "Sad"},
		{TrackID: "b", Mood: "Happy"},
		{TrackID: "c", Mood: "Happy"},
		{TrackID: "d", Mood: "Sad"},
		{TrackID: "e", Mood: "Sad"},
	}
	res, err := Transform(in, labels, Options{Standardize: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.ConflictingLabels != 2 {
		t.Errorf("ConflictingLabels = %d, want 2", res.Stats.ConflictingLabels)
	}
	if _, ok := res.Table.Find("a"); ok {
		t.Error("conflicting track a should be dropped")
	}
}

func TestTransformInsufficientData(t *testing.T) {
	in := featureTable(row("a", 1, 1), row("b", 2, 2), row("c", 3, 3))
	labels := []domain.Label{{TrackID: "a", Mood: "Happy"}}

	res, err := Transform(in, labels, Options{Standardize: true})
	var insufficient *domain.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Transform() error = %v, want InsufficientDataError", err)
	}
	if insufficient.Stage != "transform" {
		t.Errorf("Stage = %q, want transform", insufficient.Stage)
	}
	if res == nil || res.Stats.OutputRows != 1 {
		t.Errorf("stats should still be reported, got %+v", res)
	}
}

func TestTransformRejectsDivergentDuplicates(t *testing.T) {
	in := featureTable(row("a", 1, 1), row("a", 1, 2))
	_, err := Transform(in, nil, Options{})
	if !errors.Is(err, domain.ErrDuplicateTrack) {
		t.Errorf("Transform() error = %v, want duplicate track", err)
	}
}

func TestTransformUnstandardized(t *testing.T) {
	in := featureTable(row("a", 1, 1), row("b", 2, 2), row("c", 3, 3), row("d", 4, 4))
	labels := []domain.Label{
		{TrackID: "a", Mood: "Happy"}, {TrackID: "b", Mood: "Happy"},
		{TrackID: "c", Mood: "Sad"}, {TrackID: "d", Mood: "Sad"},
	}
	res, err := Transform(in, labels, Options{Standardize: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Schema.Standardized {
		t.Error("schema should not be standardized")
	}
	if err := res.Schema.RequireStandardized(); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("RequireStandardized() = %v, want configuration error", err)
	}
}
