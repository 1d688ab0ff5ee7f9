package clustering

import (
	"fmt"
	"strings"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

const sampleTrackCount = 3

// FormatSummary returns a human-readable summary of a clustering result.
// Shows size, profile, and the first 3 member tracks of each cluster.
func FormatSummary(res *Result, profiles []Profile) string {
	var sb strings.Builder

	total := len(res.Assignments)
	clusterWord := "cluster"
	if len(res.Centroids) > 1 {
		clusterWord = "clusters"
	}
	sb.WriteString(fmt.Sprintf("Formed %d %s from %d tracks (inertia %.3f)\n",
		len(res.Centroids), clusterWord, total, res.Inertia))

	members := make([][]domain.Assignment, len(res.Centroids))
	for _, a := range res.Assignments {
		members[a.Cluster] = append(members[a.Cluster], a)
	}

	for j, p := range profiles {
		sb.WriteString("\n")
		sb.WriteString(formatCluster(p, members[j]))
	}
	return sb.String()
}

// formatCluster formats a single cluster with its sample tracks.
func formatCluster(p Profile, members []domain.Assignment) string {
	var sb strings.Builder

	trackWord := "track"
	if p.Size != 1 {
		trackWord = "tracks"
	}
	sb.WriteString(fmt.Sprintf("Cluster %d: %s (%d %s)\n", p.Index, p.Name, p.Size, trackWord))
	sb.WriteString(fmt.Sprintf("  tempo %.1f BPM, chroma %.3f, rms %.4f\n", p.Tempo, p.Chroma, p.Loudness))

	sampleCount := min(sampleTrackCount, len(members))
	for i := 0; i < sampleCount; i++ {
		sb.WriteString(fmt.Sprintf("  • %s (distance %.3f)\n", members[i].TrackID, members[i].Distance))
	}

	remaining := len(members) - sampleTrackCount
	if remaining > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", remaining))
	}
	return sb.String()
}
