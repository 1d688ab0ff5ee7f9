// Package features computes fixed-dimension audio descriptors and carries the
// feature schema shared by the classifier and the clusterer.
package features

import (
	"fmt"
	"slices"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

var (
	windowSizes = []int{512, 1024, 2048, 4096}
	hopLengths  = []int{128, 256, 512, 1024}
)

const (
	maxMFCC = 40
	maxMels = 128
)

// Config holds the feature-computation parameters. They are fixed for a
// whole run so vectors stay comparable.
type Config struct {
	WindowSize int // STFT window in samples
	HopLength  int // samples between frame starts
	NumMFCC    int // cepstral coefficients kept
	NumMels    int // mel filters feeding the cepstrum
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize: 2048,
		HopLength:  512,
		NumMFCC:    13,
		NumMels:    40,
	}
}

// Validate checks the configuration against the recognised options.
func (c Config) Validate() error {
	if !slices.Contains(windowSizes, c.WindowSize) {
		return &domain.ConfigurationError{
			Field:  "extract.window_size",
			Reason: fmt.Sprintf("%d is not one of %v", c.WindowSize, windowSizes),
		}
	}
	if !slices.Contains(hopLengths, c.HopLength) {
		return &domain.ConfigurationError{
			Field:  "extract.hop_length",
			Reason: fmt.Sprintf("%d is not one of %v", c.HopLength, hopLengths),
		}
	}
	if c.HopLength > c.WindowSize {
		return &domain.ConfigurationError{
			Field:  "extract.hop_length",
			Reason: fmt.Sprintf("%d exceeds window size %d", c.HopLength, c.WindowSize),
		}
	}
	if c.NumMFCC < 1 || c.NumMFCC > maxMFCC {
		return &domain.ConfigurationError{
			Field:  "extract.n_mfcc",
			Reason: fmt.Sprintf("%d outside [1, %d]", c.NumMFCC, maxMFCC),
		}
	}
	if c.NumMels < c.NumMFCC || c.NumMels > maxMels {
		return &domain.ConfigurationError{
			Field:  "extract.n_mels",
			Reason: fmt.Sprintf("%d outside [%d, %d]", c.NumMels, c.NumMFCC, maxMels),
		}
	}
	return nil
}

// Feature names that do not depend on the configuration.
const (
	Tempo            = "tempo"
	ChromaMean       = "chroma_mean"
	ZCRMean          = "zcr_mean"
	SpectralCentroid = "spectral_centroid_mean"
	RMSMean          = "rms_mean"
)

// Names returns the ordered feature keys produced under cfg.
func Names(cfg Config) []string {
	names := make([]string, 0, cfg.NumMFCC+5)
	names = append(names, Tempo)
	for i := 1; i <= cfg.NumMFCC; i++ {
		names = append(names, fmt.Sprintf("mfcc_%d", i))
	}
	return append(names, ChromaMean, ZCRMean, SpectralCentroid, RMSMean)
}
