// Package domain holds the records shared by every pipeline stage.
package domain

import (
	"fmt"
	"strings"
)

// Mood is the binary emotional label attached to a track.
type Mood string

// Supported moods.
const (
	Happy Mood = "Happy"
	Sad   Mood = "Sad"
)

// Moods returns the supported moods in their canonical order.
// Confusion matrix axes and every tie-break follow this order.
func Moods() []Mood {
	return []Mood{Happy, Sad}
}

// Index returns the position of m in Moods(), or -1.
func (m Mood) Index() int {
	switch m {
	case Happy:
		return 0
	case Sad:
		return 1
	default:
		return -1
	}
}

// Valid reports whether m is one of the supported moods.
func (m Mood) Valid() bool {
	return m.Index() >= 0
}

func (m Mood) String() string {
	return string(m)
}

// ParseMood converts a label cell into a Mood, ignoring case and surrounding space.
func ParseMood(s string) (Mood, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "happy":
		return Happy, nil
	case "sad":
		return Sad, nil
	default:
		return "", fmt.Errorf("unknown mood %q", s)
	}
}
