package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the user's local playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	playlists, err := r.store.ListPlaylists(ctx, cmd.Int64("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists yet. Run `tidx sync all` to mirror your TIDAL library.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d playlist(s)", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%4d  %-40s  %s\n", p.ID, p.Name, playlistSource(p))
	}
	return nil
}

// PlaylistsShow prints one playlist with its songs in link order.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	export, err := r.loadPlaylist(ctx, cmd.Int64("user"), cmd.Int64("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, cmd.Bool("pretty"))
	}

	p := export.Playlist
	r.writePlainHeader(p.Name)
	if p.Description != "" {
		r.writePlain("%s\n", p.Description)
	}
	r.writePlain("Source: %s\n", playlistSource(p))
	r.writePlain("Tracks: %d\n\n", len(export.Songs))
	for i, s := range export.Songs {
		r.writePlain("%3d. %s\n", i+1, songLine(s))
	}
	return nil
}

// PlaylistsCreate creates a local-only playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	if err := r.ready(); err != nil {
		return err
	}

	p, err := r.store.CreatePlaylist(ctx, cmd.Int64("user"), name, cmd.String("description"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(p, cmd.Bool("pretty"))
	}
	return r.writePlain("✓ Created playlist %q (id %d)\n", p.Name, p.ID)
}

// PlaylistsExport writes local playlists to files with a pool of workers.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.StringSlice("id"))
	if err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		WithCovers: cmd.Bool("covers"),
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			if !useJSON {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()

	result, err := r.engine.ExportPlaylists(ctx, progress, cmd.Int64("user"), ids, opts)
	close(progress)
	<-printed
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Exported %d of %d playlist(s) to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	for _, res := range result.Results {
		if !res.Success {
			r.writePlain("  ✗ %d %s: %s\n", res.PlaylistID, res.PlaylistName, res.ErrorMessage)
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return nil
}

func (r *Runner) loadPlaylist(ctx context.Context, userID, playlistID int64) (*models.PlaylistExport, error) {
	p, err := r.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("playlist %d: %w", playlistID, shared.ErrForbidden)
	}

	songs, err := r.store.ListPlaylistSongs(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return &models.PlaylistExport{Playlist: *p, Songs: songs}, nil
}

func playlistSource(p models.Playlist) string {
	switch {
	case !p.Linked():
		return "local"
	case models.IsSynthetic(*p.RemoteID):
		return "aggregate"
	default:
		return "tidal:" + *p.RemoteID
	}
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: playlist id %q", shared.ErrInvalidInput, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
