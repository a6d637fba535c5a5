package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/tidx/internal/formatter"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
)

// ExportOpts contains configuration for exporting local playlists.
type ExportOpts struct {
	Format     string // Export format: json, csv, markdown, txt
	OutputDir  string // Base output directory (default: tidx_export_{epoch})
	NumWorkers int    // Concurrent workers (default: 4)
	WithCovers bool   // Download the first song's cover for markdown exports
}

// ExportResult summarizes an [SyncEngine.ExportPlaylists] run.
type ExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"manifest_path,omitempty"`
	Results           []PlaylistExportResult `json:"results"`
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID   int64    `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

type exportJob struct {
	export *models.PlaylistExport
}

// ExportPlaylists writes the given local playlists to disk concurrently and records a manifest.
//
// A playlist that cannot be read or written is reported as failed without stopping the others.
// An empty ids slice exports every playlist the user has.
func (e *SyncEngine) ExportPlaylists(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	userID int64,
	ids []int64,
	opts ExportOpts,
) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("tidx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if len(ids) == 0 {
		playlists, err := e.store.ListPlaylists(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	jobs := make(chan exportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}

			export, err := e.loadExport(ctx, userID, id)
			if err != nil {
				results <- failedExport(id, fmt.Sprintf("Unknown (%d)", id), fmt.Errorf("failed to load playlist: %w", err))
				continue
			}
			jobs <- exportJob{export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(progress, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(progress, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err == nil {
		err = os.WriteFile(manifestPath, data, 0644)
	}
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *SyncEngine) loadExport(ctx context.Context, userID, playlistID int64) (*models.PlaylistExport, error) {
	p, err := e.ownedPlaylist(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	songs, err := e.store.ListPlaylistSongs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &models.PlaylistExport{Playlist: *p, Songs: songs}, nil
}

func (e *SyncEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- PlaylistExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- failedExport(job.export.Playlist.ID, job.export.Playlist.Name, ctx.Err())
			continue
		}
		results <- exportOne(job.export, opts)
	}
}

func exportOne(export *models.PlaylistExport, opts ExportOpts) PlaylistExportResult {
	id := export.Playlist.ID
	name := export.Playlist.Name
	base := strconv.FormatInt(id, 10)

	var files []string
	switch opts.Format {
	case "csv":
		res, err := formatter.WriteCSVExport(export, filepath.Join(opts.OutputDir, base))
		if err != nil {
			return failedExport(id, name, fmt.Errorf("CSV export failed: %w", err))
		}
		files = []string{res.TracksFile, res.MetadataFile}
	case "markdown":
		var coverURL string
		if opts.WithCovers && len(export.Songs) > 0 {
			coverURL = export.Songs[0].CoverURL
		}
		res, err := formatter.WriteMarkdownExport(export, filepath.Join(opts.OutputDir, base), coverURL)
		if err != nil {
			return failedExport(id, name, fmt.Errorf("markdown export failed: %w", err))
		}
		files = res.Files
	case "txt":
		path, err := formatter.WriteTextExport(export, filepath.Join(opts.OutputDir, base+"_tracks.txt"))
		if err != nil {
			return failedExport(id, name, fmt.Errorf("text export failed: %w", err))
		}
		files = []string{path}
	default:
		path, err := formatter.WriteJSONExport(export, filepath.Join(opts.OutputDir, base+".json"))
		if err != nil {
			return failedExport(id, name, fmt.Errorf("JSON export failed: %w", err))
		}
		files = []string{path}
	}
	return PlaylistExportResult{PlaylistID: id, PlaylistName: name, Success: true, Files: files}
}

func failedExport(id int64, name string, err error) PlaylistExportResult {
	return PlaylistExportResult{PlaylistID: id, PlaylistName: name, Error: err, ErrorMessage: err.Error()}
}
