package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/justestif/go-mood-classifier/internal/audio"
	"github.com/justestif/go-mood-classifier/internal/domain"
)

// Vector maps feature names to values for one track.
type Vector map[string]float64

// Ordered returns the values in the order of names.
func (v Vector) Ordered(names []string) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = v[name]
	}
	return out
}

// Validate reports missing keys and non-finite values.
func (v Vector) Validate(names []string) error {
	if len(v) != len(names) {
		return fmt.Errorf("vector has %d features, want %d", len(v), len(names))
	}
	for _, name := range names {
		value, ok := v[name]
		if !ok {
			return fmt.Errorf("missing feature %q", name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s = %v", domain.ErrNonFinite, name, value)
		}
	}
	return nil
}

// Compute derives the feature vector of a waveform. The result depends only
// on the samples, the sample rate and cfg.
func Compute(w audio.Waveform, cfg Config) (Vector, error) {
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, errors.New("empty waveform")
	}

	frames := stft(w.Samples, cfg.WindowSize, cfg.HopLength)
	bank := melFilterbank(cfg.NumMels, w.SampleRate, cfg.WindowSize)
	classes := pitchClasses(w.SampleRate, cfg.WindowSize)

	var zcr, energy, centroid, chroma float64
	mfcc := make([]float64, cfg.NumMFCC)
	for _, fr := range frames {
		zcr += zeroCrossingRate(fr.samples)
		energy += rms(fr.samples)
		centroid += spectralCentroid(fr.mag, w.SampleRate, cfg.WindowSize)
		chroma += chromaMean(fr.power, classes)
		for i, c := range cepstrum(bank, fr.power, cfg.NumMFCC) {
			mfcc[i] += c
		}
	}

	n := float64(len(frames))
	v := Vector{
		Tempo:            estimateTempo(onsetEnvelope(frames), w.SampleRate, cfg.HopLength),
		ChromaMean:       chroma / n,
		ZCRMean:          zcr / n,
		SpectralCentroid: centroid / n,
		RMSMean:          energy / n,
	}
	for i, c := range mfcc {
		v[fmt.Sprintf("mfcc_%d", i+1)] = c / n
	}
	return v, nil
}
