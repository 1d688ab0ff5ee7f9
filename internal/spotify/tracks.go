package spotify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/avast/retry-go"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

// FetchPlaylistTracks pages through a playlist and returns one unlabeled
// record per track. Local files and podcast episodes are skipped, as are
// repeats of a track already seen.
func (c *Client) FetchPlaylistTracks(ctx context.Context, playlistID string) ([]domain.TrackRecord, error) {
	if playlistID == "" {
		return nil, &domain.ConfigurationError{Field: "spotify.playlist", Reason: "a playlist id is required"}
	}

	var page *spotify.PlaylistItemPage
	err := c.do(ctx, func() error {
		var err error
		page, err = c.api.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(maxItemsPerPage))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching playlist %s: %w", playlistID, err)
	}

	var (
		records []domain.TrackRecord
		seen    = make(map[string]bool)
		skipped int
	)
	for {
		for _, item := range page.Items {
			rec, ok := c.convertItem(item)
			if !ok || seen[rec.ID] {
				skipped++
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
		}
		c.logger.Debug("fetched playlist page", "playlist", playlistID, "tracks", len(records))

		err = c.do(ctx, func() error { return c.api.NextPage(ctx, page) })
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}

	c.logger.Info("fetched playlist", "playlist", playlistID, "tracks", len(records), "skipped", skipped)
	return records, nil
}

// do runs one rate-limited, retried API call.
func (c *Client) do(ctx context.Context, fn func() error) error {
	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			return fn()
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}

// convertItem turns a playlist entry into a track record.
func (c *Client) convertItem(item spotify.PlaylistItem) (domain.TrackRecord, bool) {
	track := item.Track.Track
	if item.IsLocal || track == nil || track.ID == "" {
		return domain.TrackRecord{}, false
	}

	// Join artist names
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}
	joined := strings.Join(artists, ", ")

	return domain.TrackRecord{
		ID:      track.ID.String(),
		Name:    track.Name,
		Artists: joined,
		Source:  filepath.Join(c.audioDir, SourceName(track.Name, joined)),
	}, true
}

// SourceName derives the audio file name for a track: "name - artists.mp3"
// with path separators and control characters replaced.
func SourceName(name, artists string) string {
	base := strings.TrimSpace(name)
	if artists != "" {
		base += " - " + strings.TrimSpace(artists)
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, base)
	clean = strings.Trim(clean, ". ")
	if clean == "" {
		clean = "untitled"
	}
	return clean + ".mp3"
}
