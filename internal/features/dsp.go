package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

const (
	powerFloor  = 1e-10
	chromaLowHz = 32.70 // C1
	minBPM      = 30.0
	maxBPM      = 240.0
	priorBPM    = 120.0
)

// frame holds the per-frame values every descriptor is computed from.
type frame struct {
	samples []float64 // raw samples, zero-padded to the window size
	mag     []float64 // |X[k]| for k in [0, window/2]
	power   []float64 // |X[k]|^2
}

// stft splits x into Hann-windowed frames. Signals shorter than one window
// are zero-padded into a single frame.
func stft(x []float64, window, hop int) []frame {
	n := 1
	if len(x) > window {
		n = 1 + (len(x)-window)/hop
	}

	win := hann(window)
	fft := fourier.NewFFT(window)
	buf := make([]float64, window)
	var coeffs []complex128

	frames := make([]frame, n)
	for i := range frames {
		start := i * hop
		raw := make([]float64, window)
		for k := 0; k < window; k++ {
			if start+k < len(x) {
				raw[k] = x[start+k]
			}
			buf[k] = raw[k] * win[k]
		}

		coeffs = fft.Coefficients(coeffs, buf)
		mag := make([]float64, len(coeffs))
		power := make([]float64, len(coeffs))
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
			power[k] = mag[k] * mag[k]
		}
		frames[i] = frame{samples: raw, mag: mag, power: power}
	}
	return frames
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// zeroCrossingRate is the fraction of adjacent sample pairs that change sign.
func zeroCrossingRate(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(x); i++ {
		if (x[i] >= 0) != (x[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(x)-1)
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// spectralCentroid returns the magnitude-weighted mean frequency in Hz,
// or 0 for a silent frame.
func spectralCentroid(mag []float64, sampleRate, window int) float64 {
	total := floats.Sum(mag)
	if total == 0 {
		return 0
	}
	var weighted float64
	for k, m := range mag {
		weighted += binFrequency(k, sampleRate, window) * m
	}
	return weighted / total
}

func binFrequency(k, sampleRate, window int) float64 {
	return float64(k) * float64(sampleRate) / float64(window)
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }
func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

// melFilterbank builds triangular filters spanning 0 Hz to Nyquist.
func melFilterbank(numMels, sampleRate, window int) [][]float64 {
	bins := window/2 + 1
	nyquist := float64(sampleRate) / 2
	maxMel := hzToMel(nyquist)

	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numMels+1))
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		lo, mid, hi := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, bins)
		for k := 0; k < bins; k++ {
			f := binFrequency(k, sampleRate, window)
			switch {
			case f > lo && f <= mid && mid > lo:
				filter[k] = (f - lo) / (mid - lo)
			case f > mid && f < hi && hi > mid:
				filter[k] = (hi - f) / (hi - mid)
			}
		}
		bank[m] = filter
	}
	return bank
}

// cepstrum applies log compression and an orthonormal DCT-II to mel energies
// and keeps the first n coefficients.
func cepstrum(bank [][]float64, power []float64, n int) []float64 {
	logMel := make([]float64, len(bank))
	for m, filter := range bank {
		logMel[m] = 10 * math.Log10(math.Max(floats.Dot(filter, power), powerFloor))
	}

	size := float64(len(logMel))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for m, v := range logMel {
			sum += v * math.Cos(math.Pi*float64(i)*(float64(m)+0.5)/size)
		}
		scale := math.Sqrt(2 / size)
		if i == 0 {
			scale = math.Sqrt(1 / size)
		}
		out[i] = scale * sum
	}
	return out
}

// pitchClasses maps each FFT bin to a pitch class (C=0), or -1 for bins
// below C1.
func pitchClasses(sampleRate, window int) []int {
	bins := window/2 + 1
	classes := make([]int, bins)
	for k := range classes {
		f := binFrequency(k, sampleRate, window)
		if f < chromaLowHz {
			classes[k] = -1
			continue
		}
		midi := 69 + 12*math.Log2(f/440)
		pc := int(math.Round(midi)) % 12
		if pc < 0 {
			pc += 12
		}
		classes[k] = pc
	}
	return classes
}

// chromaMean folds the power spectrum onto 12 pitch classes, normalises by
// the strongest class and returns the mean activation.
func chromaMean(power []float64, classes []int) float64 {
	var chroma [12]float64
	for k, pc := range classes {
		if pc >= 0 {
			chroma[pc] += power[k]
		}
	}
	peak := floats.Max(chroma[:])
	if peak == 0 {
		return 0
	}
	return floats.Sum(chroma[:]) / (12 * peak)
}

// onsetEnvelope is the half-wave rectified spectral flux of log magnitudes.
func onsetEnvelope(frames []frame) []float64 {
	env := make([]float64, len(frames))
	var prev []float64
	for t, fr := range frames {
		cur := make([]float64, len(fr.mag))
		for k, m := range fr.mag {
			cur[k] = math.Log1p(m)
		}
		if prev != nil {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			env[t] = flux
		}
		prev = cur
	}
	return env
}

// estimateTempo picks the autocorrelation lag of the onset envelope with the
// best score under a log-normal prior around 120 BPM. Flat envelopes give 0.
func estimateTempo(env []float64, sampleRate, hop int) float64 {
	if len(env) < 3 {
		return 0
	}
	frameRate := float64(sampleRate) / float64(hop)

	centered := make([]float64, len(env))
	copy(centered, env)
	floats.AddConst(-floats.Sum(env)/float64(len(env)), centered)
	if floats.Dot(centered, centered) == 0 {
		return 0
	}

	minLag := max(1, int(math.Ceil(60*frameRate/maxBPM)))
	maxLag := min(len(env)-1, int(math.Floor(60*frameRate/minBPM)))
	if maxLag < minLag {
		return 0
	}

	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for t := 0; t+lag < len(centered); t++ {
			ac += centered[t] * centered[t+lag]
		}
		bpm := 60 * frameRate / float64(lag)
		octaves := math.Log2(bpm / priorBPM)
		score := ac * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * frameRate / float64(bestLag)
}
