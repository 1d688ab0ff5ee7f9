package domain

// TrackRecord identifies one track and where its audio can be read from.
type TrackRecord struct {
	ID      string
	Source  string // local path or http(s) URL
	Name    string
	Artists string
	Mood    *Mood // nil when unlabeled
}

// FeatureRow is one track's feature values, ordered by the owning table's columns.
type FeatureRow struct {
	TrackID string
	Values  []float64
	Mood    Mood // empty when unlabeled
}

// Split names the partition a prediction was made on.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
	SplitNone  Split = "none" // scored outside of training
)

// Prediction is the classifier's verdict for one track.
type Prediction struct {
	TrackID    string
	Mood       Mood
	Confidence float64 // probability of Mood, in [0,1]
	Split      Split
}

// Assignment places one track in a cluster.
type Assignment struct {
	TrackID  string
	Cluster  int     // in [0, k-1]
	Distance float64 // Euclidean distance to the centroid in scaled space
}

// Label is a raw ground-truth entry before validation: Mood is the text as
// found in the labels table.
type Label struct {
	TrackID string
	Mood    string
}
