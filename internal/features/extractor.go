package features

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/justestif/go-mood-classifier/internal/audio"
	"github.com/justestif/go-mood-classifier/internal/domain"
)

// Failure kinds.
const (
	KindOpen      = "open"
	KindDecode    = "decode"
	KindNonFinite = "non_finite"
)

// Source returns the raw bytes of an audio reference. *audio.Opener
// satisfies it.
type Source interface {
	Open(ctx context.Context, source string) (name string, data []byte, err error)
}

// Row is a successfully extracted track.
type Row struct {
	TrackID string
	Mood    *domain.Mood
	Values  Vector
}

// Failure is a track that produced no row.
type Failure struct {
	TrackID string
	Source  string
	Kind    string
	Err     error
}

// Result holds the outcome of one extraction run.
type Result struct {
	Names    []string
	Rows     []Row     // sorted by track ID
	Failures []Failure // sorted by track ID
}

// Extractor computes feature vectors for many tracks in parallel.
type Extractor struct {
	source     Source
	cfg        Config
	workers    int
	logger     *slog.Logger
	onProgress func(done, total int)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers bounds the number of tracks processed concurrently.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithLogger sets the logger used for per-track failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithProgress registers a callback invoked after each track completes.
// It is called from a single goroutine.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Extractor) {
		e.onProgress = fn
	}
}

// NewExtractor creates an Extractor reading audio through source.
func NewExtractor(source Source, cfg Config, opts ...Option) *Extractor {
	e := &Extractor{
		source: source,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

type outcome struct {
	row     *Row
	failure *Failure
}

// Extract computes one row per track whose audio decodes to finite features.
// Failing tracks are logged and reported in Result.Failures; they never
// abort the run. Duplicate track IDs are rejected before any work starts.
func (e *Extractor) Extract(ctx context.Context, tracks []domain.TrackRecord) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			return nil, &domain.DuplicateTrackError{TrackID: t.ID, Table: "track manifest"}
		}
		seen[t.ID] = struct{}{}
	}

	names := Names(e.cfg)
	jobs := make(chan domain.TrackRecord)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for range min(e.workers, max(len(tracks), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				results <- e.process(ctx, t, names)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tracks {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := &Result{Names: names}
	done := 0
	for o := range results {
		done++
		if o.row != nil {
			res.Rows = append(res.Rows, *o.row)
		} else {
			f := o.failure
			res.Failures = append(res.Failures, *f)
			e.logger.Warn("skipping track",
				"track_id", f.TrackID,
				"source", f.Source,
				"kind", f.Kind,
				"error", f.Err,
			)
		}
		if e.onProgress != nil {
			e.onProgress(done, len(tracks))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(res.Rows, func(a, b Row) int { return cmp.Compare(a.TrackID, b.TrackID) })
	slices.SortFunc(res.Failures, func(a, b Failure) int { return cmp.Compare(a.TrackID, b.TrackID) })
	return res, nil
}

func (e *Extractor) process(ctx context.Context, t domain.TrackRecord, names []string) outcome {
	fail := func(kind string, err error) outcome {
		return outcome{failure: &Failure{
			TrackID: t.ID,
			Source:  t.Source,
			Kind:    kind,
			Err:     &domain.DecodeError{TrackID: t.ID, Source: t.Source, Err: err},
		}}
	}

	name, data, err := e.source.Open(ctx, t.Source)
	if err != nil {
		return fail(KindOpen, err)
	}
	w, err := audio.Decode(name, data)
	if err != nil {
		return fail(KindDecode, err)
	}
	v, err := Compute(w, e.cfg)
	if err != nil {
		return fail(KindDecode, err)
	}
	if err := v.Validate(names); err != nil {
		kind := KindDecode
		if errors.Is(err, domain.ErrNonFinite) {
			kind = KindNonFinite
		}
		return outcome{failure: &Failure{TrackID: t.ID, Source: t.Source, Kind: kind, Err: err}}
	}
	return outcome{row: &Row{TrackID: t.ID, Mood: t.Mood, Values: v}}
}

// Counts summarises failures by kind.
func (r *Result) Counts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// FeatureRows converts the result to ordered rows.
func (r *Result) FeatureRows() []domain.FeatureRow {
	out := make([]domain.FeatureRow, len(r.Rows))
	for i, row := range r.Rows {
		fr := domain.FeatureRow{TrackID: row.TrackID, Values: row.Values.Ordered(r.Names)}
		if row.Mood != nil {
			fr.Mood = *row.Mood
		}
		out[i] = fr
	}
	return out
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %s: %v", f.TrackID, f.Source, f.Kind, f.Err)
}
