package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/justestif/go-mood-classifier/internal/audio"
	"github.com/justestif/go-mood-classifier/internal/domain"
)

func writeWAV(t *testing.T, path string, freq float64) {
	t.Helper()

	const sr = 8000
	data := make([]int, sr)
	for i := range data {
		data[i] = int(12000 * math.Sin(2*math.Pi*freq*float64(i)/sr))
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sr, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sr},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func fixtureTracks(t *testing.T, valid int, corrupt ...string) (string, []domain.TrackRecord) {
	t.Helper()
	dir := t.TempDir()

	var tracks []domain.TrackRecord
	for i := range valid {
		name := fmt.Sprintf("t%d.wav", i)
		writeWAV(t, filepath.Join(dir, name), 200+float64(i)*100)
		tracks = append(tracks, domain.TrackRecord{ID: fmt.Sprintf("t%d", i), Source: name})
	}
	for _, id := range corrupt {
		name := id + ".wav"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF\x00\x00\x00\x00WAVEgarbage"), 0o644); err != nil {
			t.Fatal(err)
		}
		tracks = append(tracks, domain.TrackRecord{ID: id, Source: name})
	}
	return dir, tracks
}

func TestExtractSkipsCorruptTrack(t *testing.T) {
	dir, tracks := fixtureTracks(t, 4, "broken")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e := NewExtractor(audio.NewOpener(dir, 1), DefaultConfig(), WithWorkers(3), WithLogger(logger))
	res, err := e.Extract(context.Background(), tracks)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if len(res.Rows) != 4 {
		t.Errorf("len(Rows) = %d, want 4", len(res.Rows))
	}
	if len(res.Failures) != 1 {
		t.Fatalf("len(Failures) = %d, want 1", len(res.Failures))
	}
	f := res.Failures[0]
	if f.TrackID != "broken" || f.Kind != KindDecode {
		t.Errorf("failure = %+v, want broken/decode", f)
	}
	if !errors.Is(f.Err, domain.ErrDecode) {
		t.Errorf("failure error %v should be a decode error", f.Err)
	}
	if n := strings.Count(logs.String(), "kind=decode"); n != 1 {
		t.Errorf("logged %d decode failures, want 1:\n%s", n, logs.String())
	}

	for _, row := range res.Rows {
		if err := row.Values.Validate(res.Names); err != nil {
			t.Errorf("row %s: %v", row.TrackID, err)
		}
	}
}

func TestExtractMissingFileIsOpenFailure(t *testing.T) {
	dir, tracks := fixtureTracks(t, 1)
	tracks = append(tracks, domain.TrackRecord{ID: "gone", Source: "gone.wav"})

	e := NewExtractor(audio.NewOpener(dir, 1), DefaultConfig(), WithLogger(slog.New(slog.DiscardHandler)))
	res, err := e.Extract(context.Background(), tracks)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Counts()[KindOpen]; got != 1 {
		t.Errorf("open failures = %d, want 1", got)
	}
	if len(res.Rows) != 1 {
		t.Errorf("len(Rows) = %d, want 1", len(res.Rows))
	}
}

func TestExtractDeterministicAcrossWorkerCounts(t *testing.T) {
	dir, tracks := fixtureTracks(t, 5)
	opener := audio.NewOpener(dir, 1)

	serial, err := NewExtractor(opener, DefaultConfig(), WithWorkers(1)).Extract(context.Background(), tracks)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewExtractor(opener, DefaultConfig(), WithWorkers(4)).Extract(context.Background(), tracks)
	if err != nil {
		t.Fatal(err)
	}

	if len(serial.Rows) != len(parallel.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(serial.Rows), len(parallel.Rows))
	}
	for i := range serial.Rows {
		a, b := serial.Rows[i], parallel.Rows[i]
		if a.TrackID != b.TrackID {
			t.Fatalf("row %d: ids differ %s vs %s", i, a.TrackID, b.TrackID)
		}
		for _, name := range serial.Names {
			if a.Values[name] != b.Values[name] {
				t.Errorf("%s %s: %v vs %v", a.TrackID, name, a.Values[name], b.Values[name])
			}
		}
	}
}

func TestExtractRejectsDuplicateIDs(t *testing.T) {
	dir, tracks := fixtureTracks(t, 2)
	tracks[1].ID = tracks[0].ID

	_, err := NewExtractor(audio.NewOpener(dir, 1), DefaultConfig()).Extract(context.Background(), tracks)
	if !errors.Is(err, domain.ErrDuplicateTrack) {
		t.Errorf("Extract() error = %v, want duplicate track", err)
	}
}

func TestExtractReportsProgress(t *testing.T) {
	dir, tracks := fixtureTracks(t, 3)

	var calls atomic.Int32
	var last int
	e := NewExtractor(audio.NewOpener(dir, 1), DefaultConfig(), WithProgress(func(done, total int) {
		calls.Add(1)
		last = done
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}))
	if _, err := e.Extract(context.Background(), tracks); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 || last != 3 {
		t.Errorf("progress calls = %d, last = %d, want 3 and 3", calls.Load(), last)
	}
}

func TestExtractCancelled(t *testing.T) {
	dir, tracks := fixtureTracks(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(audio.NewOpener(dir, 1), DefaultConfig()).Extract(ctx, tracks)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestFeatureRowsCarryLabels(t *testing.T) {
	happy := domain.Happy
	res := &Result{
		Names: []string{"a", "b"},
		Rows: []Row{
			{TrackID: "x", Mood: &happy, Values: Vector{"a": 1, "b": 2}},
			{TrackID: "y", Values: Vector{"a": 3, "b": 4}},
		},
	}
	rows := res.FeatureRows()
	if rows[0].Mood != domain.Happy || rows[1].Mood != "" {
		t.Errorf("moods = %q, %q", rows[0].Mood, rows[1].Mood)
	}
	if rows[1].Values[0] != 3 || rows[1].Values[1] != 4 {
		t.Errorf("values = %v, want [3 4]", rows[1].Values)
	}
}
