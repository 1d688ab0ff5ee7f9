package features

import (
	"math"
	"testing"

	"github.com/justestif/go-mood-classifier/internal/audio"
)

func sineWave(n, sampleRate int, freq float64) audio.Waveform {
	s := make([]float64, n)
	for i := range s {
		s[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.Waveform{Samples: s, SampleRate: sampleRate}
}

func TestNames(t *testing.T) {
	cfg := DefaultConfig()
	names := Names(cfg)

	if len(names) != cfg.NumMFCC+5 {
		t.Fatalf("len(Names) = %d, want %d", len(names), cfg.NumMFCC+5)
	}
	if names[0] != Tempo || names[1] != "mfcc_1" || names[cfg.NumMFCC] != "mfcc_13" {
		t.Errorf("unexpected leading names %v", names[:cfg.NumMFCC+1])
	}
	if names[len(names)-1] != RMSMean {
		t.Errorf("last name = %q, want %q", names[len(names)-1], RMSMean)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "odd window", mutate: func(c *Config) { c.WindowSize = 1000 }, wantErr: true},
		{name: "hop above window", mutate: func(c *Config) { c.WindowSize = 512; c.HopLength = 1024 }, wantErr: true},
		{name: "zero mfcc", mutate: func(c *Config) { c.NumMFCC = 0 }, wantErr: true},
		{name: "mels below mfcc", mutate: func(c *Config) { c.NumMels = 10 }, wantErr: true},
		{name: "small window", mutate: func(c *Config) { c.WindowSize = 512; c.HopLength = 128 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeSine(t *testing.T) {
	cfg := DefaultConfig()
	const sr = 22050
	v, err := Compute(sineWave(sr*2, sr, 440), cfg)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if err := v.Validate(Names(cfg)); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if c := v[SpectralCentroid]; math.Abs(c-440) > 60 {
		t.Errorf("spectral centroid = %.1f, want about 440", c)
	}
	wantZCR := 2 * 440.0 / sr
	if z := v[ZCRMean]; math.Abs(z-wantZCR) > 0.005 {
		t.Errorf("zcr = %.4f, want about %.4f", z, wantZCR)
	}
	wantRMS := 0.5 / math.Sqrt2
	if r := v[RMSMean]; math.Abs(r-wantRMS) > 0.02 {
		t.Errorf("rms = %.4f, want about %.4f", r, wantRMS)
	}
	if c := v[ChromaMean]; c <= 0 || c > 1 {
		t.Errorf("chroma mean = %v, want in (0, 1]", c)
	}
}

func TestComputeDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	w := sineWave(30000, 22050, 330)

	a, err := Compute(w, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(w, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range Names(cfg) {
		if a[name] != b[name] {
			t.Errorf("%s differs between runs: %v vs %v", name, a[name], b[name])
		}
	}
}

func TestComputeSilence(t *testing.T) {
	cfg := DefaultConfig()
	v, err := Compute(audio.Waveform{Samples: make([]float64, 10000), SampleRate: 22050}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(Names(cfg)); err != nil {
		t.Fatalf("silence should give finite features: %v", err)
	}
	for _, name := range []string{Tempo, RMSMean, ZCRMean, SpectralCentroid, ChromaMean} {
		if v[name] != 0 {
			t.Errorf("%s = %v, want 0", name, v[name])
		}
	}
}

func TestComputeShortSignal(t *testing.T) {
	cfg := DefaultConfig()
	v, err := Compute(sineWave(100, 8000, 200), cfg)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if err := v.Validate(Names(cfg)); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestComputeTempoOfClickTrack(t *testing.T) {
	cfg := DefaultConfig()
	const sr = 22050
	period := 20 * cfg.HopLength // 20 frames, about 129 BPM
	samples := make([]float64, sr*10)
	for i := 0; i < len(samples); i += period {
		samples[i] = 1
	}

	v, err := Compute(audio.Waveform{Samples: samples, SampleRate: sr}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := 60 * float64(sr) / float64(period)
	if got := v[Tempo]; math.Abs(got-want) > 5 {
		t.Errorf("tempo = %.1f, want about %.1f", got, want)
	}
}

func TestComputeRejectsEmpty(t *testing.T) {
	if _, err := Compute(audio.Waveform{SampleRate: 8000}, DefaultConfig()); err == nil {
		t.Error("Compute() of an empty waveform should fail")
	}
}

func TestVectorValidate(t *testing.T) {
	names := []string{"a", "b"}
	tests := []struct {
		name    string
		v       Vector
		wantErr bool
	}{
		{name: "ok", v: Vector{"a": 1, "b": 2}},
		{name: "missing", v: Vector{"a": 1, "c": 2}, wantErr: true},
		{name: "short", v: Vector{"a": 1}, wantErr: true},
		{name: "nan", v: Vector{"a": math.NaN(), "b": 2}, wantErr: true},
		{name: "inf", v: Vector{"a": 1, "b": math.Inf(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(names)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
