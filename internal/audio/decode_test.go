package audio

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV writes a 16-bit PCM WAV file with the given interleaved samples.
func writeTestWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing wav encoder: %v", err)
	}
}

func sine(n, sampleRate int, freq float64) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return data
}

func TestDecodeWAVMono(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, 8000, 1, sine(8000, 8000, 440))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := Decode("tone.wav", data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if w.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", w.SampleRate)
	}
	if len(w.Samples) != 8000 {
		t.Fatalf("len(Samples) = %d, want 8000", len(w.Samples))
	}
	if got := w.Duration(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Duration() = %v, want 1.0", got)
	}
	for i, s := range w.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d = %v outside [-1, 1]", i, s)
		}
	}
}

func TestDecodeWAVAveragesChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.wav")
	// Left and right cancel out.
	data := []int{16384, -16384, 8192, -8192, 0, 0}
	writeTestWAV(t, path, 8000, 2, data)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := Decode("stereo", raw) // no extension, detected by RIFF header
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(w.Samples) != 3 {
		t.Fatalf("len(Samples) = %d, want 3", len(w.Samples))
	}
	for i, s := range w.Samples {
		if s != 0 {
			t.Errorf("sample %d = %v, want 0", i, s)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{name: "garbage mp3", file: "broken.mp3", data: []byte("definitely not audio")},
		{name: "garbage wav", file: "broken.wav", data: []byte("RIFFxxxxWAVEjunk")},
		{name: "empty", file: "empty.mp3", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.file, tt.data); err == nil {
				t.Errorf("Decode(%s) should fail", tt.file)
			}
		})
	}
}

func TestOpenerResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "a.wav"), 8000, 1, sine(800, 8000, 220))

	o := NewOpener(dir, 1)
	w, err := o.Load(context.Background(), "a.wav")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(w.Samples) != 800 {
		t.Errorf("len(Samples) = %d, want 800", len(w.Samples))
	}

	if _, err := o.Load(context.Background(), "missing.wav"); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestOpenerRetriesServerErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remote.wav")
	writeTestWAV(t, path, 8000, 1, sine(400, 8000, 220))
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	o := NewOpener("", 3)
	o.RetryDelay = time.Millisecond

	w, err := o.Load(context.Background(), server.URL+"/tracks/remote.wav")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(w.Samples) != 400 {
		t.Errorf("len(Samples) = %d, want 400", len(w.Samples))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestOpenerDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	o := NewOpener("", 3)
	o.RetryDelay = time.Millisecond

	if _, _, err := o.Open(context.Background(), server.URL+"/missing.mp3"); err == nil {
		t.Fatal("Open() should fail on 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}
