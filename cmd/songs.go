package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SongsSearch searches the TIDAL catalog.
func (r *Runner) SongsSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if err := r.ready(); err != nil {
		return err
	}

	batch, err := r.client.SearchTracks(ctx, cmd.Int64("user"), query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(batch.Tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q", query))
	for i, t := range batch.Tracks {
		r.writePlain("%2d. %s - %s [%s] (id %s)\n", i+1, t.Artist, t.Title, shared.FormatDuration(t.Duration), t.RemoteID)
	}
	if batch.Skipped > 0 {
		r.logger.Warn("skipped malformed search results", "count", batch.Skipped)
	}
	return nil
}

// SongsAdd appends a track to a local playlist and pushes it to TIDAL when the playlist is linked.
func (r *Runner) SongsAdd(ctx context.Context, cmd *cli.Command) error {
	trackID, err := parseTrackID(cmd.StringArg("track"))
	if err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	playlistID := cmd.Int64("playlist")
	song, err := r.engine.PushAddSong(ctx, cmd.Int64("user"), playlistID, trackID)
	if err != nil {
		if song != nil {
			r.writePlain("⚠ %s - %s was added locally only\n", song.Artist, song.Title)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Added %s - %s to playlist %d\n", song.Artist, song.Title, playlistID)
}

// SongsRemove removes a track from a local playlist and pushes the removal to TIDAL when the playlist is linked.
func (r *Runner) SongsRemove(ctx context.Context, cmd *cli.Command) error {
	trackID, err := parseTrackID(cmd.StringArg("track"))
	if err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	playlistID := cmd.Int64("playlist")
	if err := r.engine.PushRemoveSong(ctx, cmd.Int64("user"), playlistID, trackID); err != nil {
		return err
	}
	return r.writePlain("✓ Removed track %s from playlist %d\n", trackID, playlistID)
}

// SongsRefresh re-fetches a song's metadata from TIDAL.
func (r *Runner) SongsRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	song, err := r.engine.RefreshSong(ctx, cmd.Int64("user"), cmd.Int64("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Refreshed %s\n", songLine(*song))
}

// parseTrackID accepts a bare TIDAL track id or a share link such as https://tidal.com/browse/track/123.
func parseTrackID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if !strings.Contains(arg, "://") {
		return arg, nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "track" && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no track id in %s", shared.ErrInvalidInput, arg)
}

func songLine(s models.Song) string {
	line := fmt.Sprintf("%s - %s", s.Artist, s.Title)
	if s.Album != "" {
		line += fmt.Sprintf(" (%s)", s.Album)
	}
	line += fmt.Sprintf(" [%s]", shared.FormatDuration(s.Duration))
	if !s.Available {
		line += " " + shared.AvailabilityString(false)
	}
	return line
}
