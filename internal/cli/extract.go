package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/audio"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newExtractCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Computes audio features for every track in the manifest",
		Long: `Decodes each track's audio and writes one feature row per track to the
raw features table. Tracks that cannot be opened or decoded, or whose
features are not finite, are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.extract(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.Int("workers", 0, "tracks decoded concurrently (0 uses every CPU)")
	f.Bool("progress", true, "draw a progress bar on stderr")
	f.String("manifest", "", "track manifest CSV (default <data-dir>/provided/tracks.csv)")
	a.bind(f, "extract.workers", "workers")
	a.bind(f, "extract.progress", "progress")
	a.bind(f, "paths.manifest", "manifest")
	return cmd
}

func (a *app) extract(ctx context.Context) error {
	log := a.stage("extract")

	tracks, err := table.ReadManifest(a.cfg.Paths.Manifest)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	opts := []features.Option{
		features.WithWorkers(a.cfg.Extract.Workers),
		features.WithLogger(log),
	}
	bar := &progress{}
	if a.cfg.Extract.Progress {
		bar = newProgress(ctx, a.errOut, len(tracks))
		opts = append(opts, features.WithProgress(bar.update))
	}

	opener := audio.NewOpener(a.cfg.Paths.AudioDir, a.cfg.Extract.FetchAttempts)
	res, err := features.NewExtractor(opener, a.cfg.Features(), opts...).Extract(ctx, tracks)
	bar.finish()
	if err != nil {
		return err
	}
	if len(res.Rows) == 0 {
		return &domain.InsufficientDataError{Stage: "extract", Have: 0, Need: 1}
	}

	out := &table.Features{Names: res.Names, Rows: res.FeatureRows()}
	if err := table.WriteFeatures(a.cfg.Paths.Features, out); err != nil {
		return fmt.Errorf("writing features: %w", err)
	}
	if err := a.writeMeta(a.cfg.Paths.Features, "extract", nil, len(out.Rows)); err != nil {
		return err
	}

	counts := res.Counts()
	log.Info("extracted features",
		"tracks", len(tracks),
		"rows", len(out.Rows),
		"open_failures", counts[features.KindOpen],
		"decode_failures", counts[features.KindDecode],
		"non_finite", counts[features.KindNonFinite],
		"output", a.cfg.Paths.Features,
	)
	return nil
}
