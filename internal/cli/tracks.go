package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/auth"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/spotify"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newTracksCommand(a *app) *cobra.Command {
	var logout bool
	cmd := &cobra.Command{
		Use:   "tracks [playlist-id]",
		Short: "Builds the track manifest from a Spotify playlist",
		Long: `Fetches every track of a Spotify playlist and writes the manifest. Audio
sources point to "<name> - <artists>.mp3" under the audio directory, where
the audio files are expected to be placed.

Moods already recorded in an existing manifest are kept.

Requires SPOTIFY_ID and SPOTIFY_SECRET.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			playlist := a.cfg.Spotify.Playlist
			if len(args) == 1 {
				playlist = args[0]
			}
			return a.tracks(cmd.Context(), playlist, logout)
		},
	}
	cmd.Flags().BoolVar(&logout, "logout", false, "delete the cached Spotify token first")
	return cmd
}

func (a *app) tracks(ctx context.Context, playlist string, logout bool) error {
	log := a.stage("tracks")

	cache, err := auth.DefaultTokenCache()
	if err != nil {
		return err
	}
	authenticator, err := auth.New(a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret,
		auth.WithCache(cache), auth.WithLogger(log))
	if err != nil {
		return err
	}
	if logout {
		if err := authenticator.Logout(); err != nil {
			return err
		}
	}
	api, err := authenticator.Client(ctx)
	if err != nil {
		return fmt.Errorf("authenticating with Spotify: %w", err)
	}

	client := spotify.New(api,
		spotify.WithAttempts(a.cfg.Extract.FetchAttempts),
		spotify.WithAudioDir(a.cfg.Paths.AudioDir),
		spotify.WithLogger(log))
	tracks, err := client.FetchPlaylistTracks(ctx, playlist)
	if err != nil {
		return err
	}

	kept, err := keepMoods(a.cfg.Paths.Manifest, tracks)
	if err != nil {
		return err
	}
	if err := table.WriteManifest(a.cfg.Paths.Manifest, tracks); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	log.Info("wrote manifest", "playlist", playlist, "tracks", len(tracks), "moods_kept", kept, "output", a.cfg.Paths.Manifest)
	return nil
}

// keepMoods copies the moods of an existing manifest onto tracks with the
// same ID and returns how many were copied.
func keepMoods(path string, tracks []domain.TrackRecord) (int, error) {
	old, err := table.ReadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading existing manifest: %w", err)
	}

	moods := make(map[string]*domain.Mood, len(old))
	for _, t := range old {
		if t.Mood != nil {
			moods[t.ID] = t.Mood
		}
	}
	kept := 0
	for i := range tracks {
		if m, ok := moods[tracks[i].ID]; ok {
			tracks[i].Mood = m
			kept++
		}
	}
	return kept, nil
}
