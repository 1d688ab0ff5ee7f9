package table

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

// ManifestRecord is one line of the track manifest.
type ManifestRecord struct {
	ID      string `csv:"id"`
	Source  string `csv:"source"`
	Name    string `csv:"name"`
	Artists string `csv:"artists"`
	Mood    string `csv:"mood"`
}

// LabelRecord is one line of the ground-truth labels table.
type LabelRecord struct {
	ID      string `csv:"id"`
	Mood    string `csv:"mood"`
	Name    string `csv:"name"`
	Artists string `csv:"artists"`
}

// PredictionRecord is one line of the predictions table.
type PredictionRecord struct {
	ID         string  `csv:"id"`
	Mood       string  `csv:"predicted_mood"`
	Confidence float64 `csv:"confidence"`
	Split      string  `csv:"split"`
}

// ClusterRecord is one line of the cluster assignments table.
type ClusterRecord struct {
	ID       string  `csv:"id"`
	Cluster  int     `csv:"cluster_index"`
	Distance float64 `csv:"distance"`
}

// LabelKey normalises a name/artists pair for matching labels that carry
// no track ID.
func LabelKey(name, artists string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(artists))
}

func readRecords[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	if err := gocsv.Unmarshal(f, &out); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

func writeRecords[T any](path string, records []T) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return gocsv.Marshal(records, w)
	})
}

// ReadManifest reads the track manifest. Track IDs must be unique and
// non-empty; a mood, when present, must be valid.
func ReadManifest(path string) ([]domain.TrackRecord, error) {
	records, err := readRecords[ManifestRecord](path)
	if err != nil {
		return nil, err
	}

	tracks := make([]domain.TrackRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("%s: row %d has no id", path, i+1)
		}
		if _, ok := seen[id]; ok {
			return nil, &domain.DuplicateTrackError{TrackID: id, Table: path}
		}
		seen[id] = struct{}{}

		t := domain.TrackRecord{ID: id, Source: strings.TrimSpace(r.Source), Name: r.Name, Artists: r.Artists}
		if r.Mood != "" {
			m, err := domain.ParseMood(r.Mood)
			if err != nil {
				return nil, fmt.Errorf("%s: track %s: %w", path, id, err)
			}
			t.Mood = &m
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// WriteManifest writes tracks as a manifest.
func WriteManifest(path string, tracks []domain.TrackRecord) error {
	records := make([]ManifestRecord, len(tracks))
	for i, t := range tracks {
		records[i] = ManifestRecord{ID: t.ID, Source: t.Source, Name: t.Name, Artists: t.Artists}
		if t.Mood != nil {
			records[i].Mood = t.Mood.String()
		}
	}
	return writeRecords(path, records)
}

// ReadLabels reads the labels table without validating moods.
func ReadLabels(path string) ([]LabelRecord, error) {
	return readRecords[LabelRecord](path)
}

// ResolveLabels converts label records to raw labels. Records without an
// ID are matched to the manifest by name and artists; unmatched ones are
// returned separately.
func ResolveLabels(records []LabelRecord, manifest []domain.TrackRecord) (labels []domain.Label, unmatched int) {
	byKey := make(map[string]string, len(manifest))
	for _, t := range manifest {
		if t.Name != "" {
			byKey[LabelKey(t.Name, t.Artists)] = t.ID
		}
	}

	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			var ok bool
			if id, ok = byKey[LabelKey(r.Name, r.Artists)]; !ok {
				unmatched++
				continue
			}
		}
		labels = append(labels, domain.Label{TrackID: id, Mood: r.Mood})
	}
	return labels, unmatched
}

// WritePredictions writes prediction records.
func WritePredictions(path string, preds []domain.Prediction) error {
	records := make([]PredictionRecord, len(preds))
	for i, p := range preds {
		records[i] = PredictionRecord{ID: p.TrackID, Mood: p.Mood.String(), Confidence: p.Confidence, Split: string(p.Split)}
	}
	return writeRecords(path, records)
}

// ReadPredictions reads prediction records.
func ReadPredictions(path string) ([]domain.Prediction, error) {
	records, err := readRecords[PredictionRecord](path)
	if err != nil {
		return nil, err
	}
	preds := make([]domain.Prediction, len(records))
	for i, r := range records {
		m, err := domain.ParseMood(r.Mood)
		if err != nil {
			return nil, fmt.Errorf("%s: track %s: %w", path, r.ID, err)
		}
		split := domain.Split(r.Split)
		if split == "" {
			split = domain.SplitNone
		}
		preds[i] = domain.Prediction{TrackID: r.ID, Mood: m, Confidence: r.Confidence, Split: split}
	}
	return preds, nil
}

// WriteAssignments writes cluster assignment records.
func WriteAssignments(path string, assignments []domain.Assignment) error {
	records := make([]ClusterRecord, len(assignments))
	for i, a := range assignments {
		records[i] = ClusterRecord{ID: a.TrackID, Cluster: a.Cluster, Distance: a.Distance}
	}
	return writeRecords(path, records)
}

// ReadAssignments reads cluster assignment records.
func ReadAssignments(path string) ([]domain.Assignment, error) {
	records, err := readRecords[ClusterRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, len(records))
	for i, r := range records {
		out[i] = domain.Assignment{TrackID: r.ID, Cluster: r.Cluster, Distance: r.Distance}
	}
	return out, nil
}
