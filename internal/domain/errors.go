package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below match these through errors.Is.
var (
	ErrDecode           = errors.New("decode failed")
	ErrNonFinite        = errors.New("non-finite feature value")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConfiguration    = errors.New("configuration error")
	ErrTraining         = errors.New("training failed")
	ErrDuplicateTrack   = errors.New("duplicate track identifier")
	ErrJoinMismatch     = errors.New("join mismatch")
)

// DecodeError reports an audio source that could not be turned into a waveform.
type DecodeError struct {
	TrackID string
	Source  string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s (%s): %v", e.TrackID, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// InsufficientDataError reports a mood class with too few rows at a stage boundary.
type InsufficientDataError struct {
	Stage string
	Class Mood // empty when the shortfall is in total rows
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("%s: need at least %d rows, have %d", e.Stage, e.Need, e.Have)
	}
	return fmt.Sprintf("%s: class %s has %d rows, need at least %d", e.Stage, e.Class, e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// ConfigurationError reports inconsistent settings or mismatched feature schemas.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// TrainingError reports a training subset that cannot support a classifier.
type TrainingError struct {
	Class Mood
	Have  int
	Need  int
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training subset has %d %s examples, need at least %d", e.Have, e.Class, e.Need)
}

func (e *TrainingError) Unwrap() error { return ErrTraining }

// DuplicateTrackError reports a track identifier seen more than once in one table.
type DuplicateTrackError struct {
	TrackID string
	Table   string
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("track %q appears more than once in %s", e.TrackID, e.Table)
}

func (e *DuplicateTrackError) Unwrap() error { return ErrDuplicateTrack }
