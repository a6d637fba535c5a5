package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncAll mirrors every TIDAL playlist, the favorites and the mixes, printing progress as it goes.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	userID := cmd.Int64("user")

	progress := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.logger.Debug("sync progress", "phase", update.Phase, "step", update.Step, "total", update.Total)
			if !useJSON && update.Message != "" {
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	report, err := r.engine.SyncFullLibrary(ctx, progress, userID)
	if err == nil {
		err = r.syncAggregates(ctx, progress, userID, report)
	}
	close(progress)
	<-printed

	if report != nil {
		if useJSON {
			if werr := r.writeJSON(report, cmd.Bool("pretty")); werr != nil {
				return werr
			}
		} else {
			r.printLibraryReport(report)
		}
	}
	return err
}

// syncAggregates appends the favorites and mixes passes to report.
func (r *Runner) syncAggregates(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID int64, report *tasks.LibraryReport) error {
	favorites, err := r.engine.SyncFavorites(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to sync favorites: %w", err)
	}
	report.Playlists = append(report.Playlists, *favorites)

	mixes, err := r.engine.SyncMixes(ctx, progress, userID)
	if err != nil {
		return fmt.Errorf("failed to sync mixes: %w", err)
	}
	report.Playlists = append(report.Playlists, *mixes)
	return nil
}

// SyncPlaylist re-mirrors one linked local playlist.
func (r *Runner) SyncPlaylist(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	report, err := r.engine.SyncPlaylist(ctx, cmd.Int64("user"), cmd.Int64("id"))
	if err != nil {
		return err
	}
	return r.writeSyncReport(cmd, report)
}

// SyncFavorites mirrors the user's favorite tracks.
func (r *Runner) SyncFavorites(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	report, err := r.engine.SyncFavorites(ctx, cmd.Int64("user"))
	if err != nil {
		return err
	}
	return r.writeSyncReport(cmd, report)
}

// SyncMixes mirrors the union of the user's mix playlists.
func (r *Runner) SyncMixes(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	report, err := r.engine.SyncMixes(ctx, nil, cmd.Int64("user"))
	if err != nil {
		return err
	}
	return r.writeSyncReport(cmd, report)
}

func (r *Runner) writeSyncReport(cmd *cli.Command, report *tasks.SyncReport) error {
	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}
	r.writePlain("✓ %s\n", reportLine(*report))
	return nil
}

func (r *Runner) printLibraryReport(report *tasks.LibraryReport) {
	r.writePlainHeader(fmt.Sprintf("Synced %d playlist(s)", len(report.Playlists)))
	for _, p := range report.Playlists {
		r.writePlain("  • %s\n", reportLine(p))
	}
	if len(report.Missing) > 0 {
		r.writePlainln("⚠ %d playlist(s) disappeared from TIDAL during sync:", len(report.Missing))
		for _, id := range report.Missing {
			r.writePlain("  - %s\n", id)
		}
	}
}

func reportLine(report tasks.SyncReport) string {
	line := fmt.Sprintf("%s [#%d]: %d tracks", report.Name, report.PlaylistID, report.Links)
	if report.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", report.Skipped)
	}
	if report.Duplicates > 0 {
		line += fmt.Sprintf(", %d duplicates dropped", report.Duplicates)
	}
	return line
}
