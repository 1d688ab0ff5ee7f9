package clustering

import "github.com/justestif/go-mood-classifier/internal/features"

// Profile describes a cluster centroid. Names are descriptive only and are
// never used as mood labels.
type Profile struct {
	Index       int
	Size        int
	Name        string
	Description string
	Tempo       float64 // BPM
	Chroma      float64 // mean chroma activation
	Loudness    float64 // mean RMS
	TempoZ      float64
	ChromaZ     float64
	LoudnessZ   float64
}

// generateName picks a name from a 2x2 tempo/chroma quadrant, using the
// z-scores of the centroid.
//
// Quadrants:
//   - Fast + Bright = "Bright & Upbeat"
//   - Fast + Dark   = "Driving & Dark"
//   - Slow + Bright = "Calm & Warm"
//   - Slow + Dark   = "Dark & Subdued"
//
// Loudness modifier: beyond one deviation appends "(Loud)" or "(Quiet)".
func generateName(tempoZ, chromaZ, loudnessZ float64) string {
	fast := tempoZ > 0
	bright := chromaZ > 0

	var base string
	switch {
	case fast && bright:
		base = "Bright & Upbeat"
	case fast && !bright:
		base = "Driving & Dark"
	case !fast && bright:
		base = "Calm & Warm"
	default:
		base = "Dark & Subdued"
	}

	switch {
	case loudnessZ > 1:
		return base + " (Loud)"
	case loudnessZ < -1:
		return base + " (Quiet)"
	}
	return base
}

func describe(tempoZ, chromaZ float64) string {
	switch {
	case tempoZ > 0 && chromaZ > 0:
		return "Faster tempo with strong tonal content"
	case tempoZ > 0:
		return "Faster tempo with diffuse tonal content"
	case chromaZ > 0:
		return "Slower tempo with strong tonal content"
	default:
		return "Slower tempo with diffuse tonal content"
	}
}

// Profiles describes every centroid of a result in raw and scaled units.
func Profiles(res *Result, schema *features.Schema) []Profile {
	out := make([]Profile, len(res.Centroids))
	for j, c := range res.Centroids {
		raw := schema.Invert(c)
		at := func(values []float64, name string) float64 {
			if i := schema.Index(name); i >= 0 {
				return values[i]
			}
			return 0
		}

		p := Profile{
			Index:     j,
			Size:      res.Sizes[j],
			Tempo:     at(raw, features.Tempo),
			Chroma:    at(raw, features.ChromaMean),
			Loudness:  at(raw, features.RMSMean),
			TempoZ:    at(c, features.Tempo),
			ChromaZ:   at(c, features.ChromaMean),
			LoudnessZ: at(c, features.RMSMean),
		}
		p.Name = generateName(p.TempoZ, p.ChromaZ, p.LoudnessZ)
		p.Description = describe(p.TempoZ, p.ChromaZ)
		out[j] = p
	}
	return out
}
