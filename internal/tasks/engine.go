package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/samber/lo"
)

// Remote is the subset of the TIDAL client the engine reads from and pushes to.
//
// Implemented by [services.TidalClient].
type Remote interface {
	GetTrack(ctx context.Context, userID int64, remoteID string) (*models.RemoteTrack, error)
	ListUserPlaylists(ctx context.Context, userID int64) ([]models.RemotePlaylist, error)
	ListPlaylistTracks(ctx context.Context, userID int64, playlistID string) (*models.TrackBatch, error)
	ListFavoriteTracks(ctx context.Context, userID int64) (*models.TrackBatch, error)
	ListMixes(ctx context.Context, userID int64) ([]models.RemotePlaylist, error)
	AddTracksToPlaylist(ctx context.Context, userID int64, playlistID string, trackIDs []string) error
	RemoveTrackFromPlaylist(ctx context.Context, userID int64, playlistID, trackID string) error
}

// SyncReport summarizes one reconciliation pass over a local playlist.
type SyncReport struct {
	PlaylistID int64  `json:"playlist_id"`
	RemoteID   string `json:"remote_id"`
	Name       string `json:"name"`
	Links      int    `json:"links"`      // links written
	Skipped    int    `json:"skipped"`    // remote items that could not be parsed
	Duplicates int    `json:"duplicates"` // repeated remote ids collapsed into one link
}

// LibraryReport is the result of [SyncEngine.SyncFullLibrary].
type LibraryReport struct {
	Playlists []SyncReport `json:"playlists"`
	// Missing lists remote playlist ids that vanished between listing and fetching.
	Missing []string `json:"missing,omitempty"`
}

// SyncEngine reconciles a user's TIDAL library into the local store and pushes local edits back.
type SyncEngine struct {
	remote        Remote
	store         models.LocalStore
	locks         *PlaylistLocks
	logger        *log.Logger
	favoritesName string
	mixesName     string
}

// NewSyncEngine creates a [SyncEngine] writing to store and reading from remote.
func NewSyncEngine(remote Remote, store models.LocalStore, cfg shared.SyncConfig, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	e := &SyncEngine{
		remote:        remote,
		store:         store,
		locks:         NewPlaylistLocks(),
		logger:        logger,
		favoritesName: cfg.FavoritesName,
		mixesName:     cfg.MixesName,
	}
	if e.favoritesName == "" {
		e.favoritesName = "My Tracks"
	}
	if e.mixesName == "" {
		e.mixesName = "My Mixes"
	}
	return e
}

// SyncFullLibrary mirrors every playlist the user owns on TIDAL into the local store.
//
// A playlist that disappears remotely mid-pass is recorded in [LibraryReport.Missing] and skipped.
// Any other failure stops the pass and is returned along with the reports gathered so far.
func (e *SyncEngine) SyncFullLibrary(ctx context.Context, progress chan<- ProgressUpdate, userID int64) (*LibraryReport, error) {
	sendProgress(progress, fetchPlaylistsUpdate())

	remotes, err := e.remote.ListUserPlaylists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	report := &LibraryReport{Playlists: make([]SyncReport, 0, len(remotes))}
	for i, rp := range remotes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sendProgress(progress, mirrorPlaylistUpdate(i+1, len(remotes), rp.Name))

		res, err := e.mirrorRemote(ctx, userID, rp)
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Warn("remote playlist vanished during sync", "user", userID, "remote_id", rp.RemoteID)
			report.Missing = append(report.Missing, rp.RemoteID)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to sync playlist %q: %w", rp.Name, err)
		}

		report.Playlists = append(report.Playlists, *res)
		sendProgress(progress, mirroredUpdate(i+1, len(remotes), res))
	}

	e.logger.Info("library synced", "user", userID, "playlists", len(report.Playlists), "missing", len(report.Missing))
	return report, nil
}

// SyncPlaylist refreshes the links of one linked local playlist from its remote source.
//
// Aggregate playlists dispatch to [SyncEngine.SyncFavorites] or [SyncEngine.SyncMixes].
func (e *SyncEngine) SyncPlaylist(ctx context.Context, userID, playlistID int64) (*SyncReport, error) {
	p, err := e.ownedPlaylist(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if !p.Linked() {
		return nil, fmt.Errorf("%w: playlist %d", shared.ErrNotLinked, playlistID)
	}

	switch *p.RemoteID {
	case models.FavoritesRemoteID:
		return e.SyncFavorites(ctx, userID)
	case models.MixesRemoteID:
		return e.SyncMixes(ctx, nil, userID)
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	batch, err := e.remote.ListPlaylistTracks(ctx, userID, *p.RemoteID)
	if err != nil {
		return nil, err
	}
	return e.rewrite(ctx, p, batch.Tracks, batch.Skipped)
}

// SyncFavorites mirrors the user's favorite tracks into the favorites aggregate playlist.
func (e *SyncEngine) SyncFavorites(ctx context.Context, userID int64) (*SyncReport, error) {
	p, err := e.store.UpsertPlaylist(ctx, userID, models.FavoritesRemoteID, e.favoritesName, "Favorite tracks from TIDAL")
	if err != nil {
		return nil, localWrite(err)
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	batch, err := e.remote.ListFavoriteTracks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.rewrite(ctx, p, batch.Tracks, batch.Skipped)
}

// SyncMixes mirrors the union of every mix playlist's tracks into the mixes aggregate playlist.
//
// Mixes are read in the order TIDAL lists them; a track appearing in several mixes keeps its first position.
func (e *SyncEngine) SyncMixes(ctx context.Context, progress chan<- ProgressUpdate, userID int64) (*SyncReport, error) {
	p, err := e.store.UpsertPlaylist(ctx, userID, models.MixesRemoteID, e.mixesName, "Tracks from your TIDAL mixes")
	if err != nil {
		return nil, localWrite(err)
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	mixes, err := e.remote.ListMixes(ctx, userID)
	if err != nil {
		return nil, err
	}

	tracks := make([][]models.RemoteTrack, 0, len(mixes))
	skipped := 0
	for i, mix := range mixes {
		sendProgress(progress, fetchMixUpdate(i+1, len(mixes), mix.Name))

		batch, err := e.remote.ListPlaylistTracks(ctx, userID, mix.RemoteID)
		if err != nil {
			return nil, fmt.Errorf("failed to read mix %q: %w", mix.Name, err)
		}
		tracks = append(tracks, batch.Tracks)
		skipped += batch.Skipped
	}
	return e.rewrite(ctx, p, lo.Flatten(tracks), skipped)
}

// PushAddSong appends the track to a local playlist and, for playlists linked to TIDAL, adds it remotely.
//
// The song row is created from [Remote.GetTrack] when it is not stored yet.
// Adding a track the playlist already holds changes nothing.
// When the remote add fails the local link stays committed and the error is returned.
func (e *SyncEngine) PushAddSong(ctx context.Context, userID, playlistID int64, remoteTrackID string) (*models.Song, error) {
	if remoteTrackID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	p, err := e.ownedPlaylist(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	song, err := e.resolveSong(ctx, userID, remoteTrackID)
	if err != nil {
		return nil, err
	}

	links, err := e.store.ListLinks(ctx, p.ID)
	if err != nil {
		return nil, localWrite(err)
	}
	if lo.ContainsBy(links, func(l models.PlaylistSongLink) bool { return l.SongID == song.ID }) {
		e.logger.Debug("song already in playlist", "playlist", p.ID, "remote_id", remoteTrackID)
		return song, nil
	}

	if err := e.store.InsertLink(ctx, p.ID, song.ID, len(links)); err != nil {
		return nil, localWrite(err)
	}

	if !p.Pushable() {
		return song, nil
	}
	if err := e.remote.AddTracksToPlaylist(ctx, userID, *p.RemoteID, []string{remoteTrackID}); err != nil {
		e.logger.Error("remote add failed after local commit", "playlist", p.ID, "remote_id", remoteTrackID, "error", err)
		return song, fmt.Errorf("song added locally but not on TIDAL: %w", err)
	}
	return song, nil
}

// PushRemoveSong removes the track from a local playlist, closes the gap in link order and,
// for playlists linked to TIDAL, removes it remotely.
//
// When the remote removal fails the local removal stays committed and the error is returned.
func (e *SyncEngine) PushRemoveSong(ctx context.Context, userID, playlistID int64, remoteTrackID string) error {
	if remoteTrackID == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	p, err := e.ownedPlaylist(ctx, userID, playlistID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	song, err := e.store.GetSongByRemoteID(ctx, remoteTrackID)
	if err != nil {
		return err
	}

	err = e.inTx(ctx, func(ls models.LocalStore) error {
		removed, err := ls.DeleteLink(ctx, p.ID, song.ID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("song %s in playlist %d: %w", remoteTrackID, p.ID, shared.ErrNotFound)
		}
		return ls.CompactLinks(ctx, p.ID)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return localWrite(err)
	}

	if !p.Pushable() {
		return nil
	}
	if err := e.remote.RemoveTrackFromPlaylist(ctx, userID, *p.RemoteID, remoteTrackID); err != nil {
		e.logger.Error("remote remove failed after local commit", "playlist", p.ID, "remote_id", remoteTrackID, "error", err)
		return fmt.Errorf("song removed locally but not on TIDAL: %w", err)
	}
	return nil
}

// RefreshSong re-reads a stored song's metadata from TIDAL and updates the local row.
func (e *SyncEngine) RefreshSong(ctx context.Context, userID, songID int64) (*models.Song, error) {
	song, err := e.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}

	track, err := e.remote.GetTrack(ctx, userID, song.RemoteID)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.UpdateSong(ctx, song.ID, track.Fields())
	if err != nil {
		return nil, localWrite(err)
	}
	return updated, nil
}

func (e *SyncEngine) mirrorRemote(ctx context.Context, userID int64, rp models.RemotePlaylist) (*SyncReport, error) {
	p, err := e.store.UpsertPlaylist(ctx, userID, rp.RemoteID, rp.Name, rp.Description)
	if err != nil {
		return nil, localWrite(err)
	}

	unlock := e.locks.Lock(p.ID)
	defer unlock()

	batch, err := e.remote.ListPlaylistTracks(ctx, userID, rp.RemoteID)
	if err != nil {
		return nil, err
	}
	return e.rewrite(ctx, p, batch.Tracks, batch.Skipped)
}

// rewrite replaces the playlist's links with tracks in order. Callers hold the playlist lock.
func (e *SyncEngine) rewrite(ctx context.Context, p *models.Playlist, tracks []models.RemoteTrack, skipped int) (*SyncReport, error) {
	unique := lo.UniqBy(tracks, func(t models.RemoteTrack) string { return t.RemoteID })

	err := e.inTx(ctx, func(ls models.LocalStore) error {
		if err := ls.DeleteLinks(ctx, p.ID); err != nil {
			return err
		}
		for order, t := range unique {
			song, err := ls.UpsertSong(ctx, t.RemoteID, t.Fields())
			if err != nil {
				return err
			}
			if err := ls.InsertLink(ctx, p.ID, song.ID, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, localWrite(err)
	}

	report := &SyncReport{
		PlaylistID: p.ID,
		Name:       p.Name,
		Links:      len(unique),
		Skipped:    skipped,
		Duplicates: len(tracks) - len(unique),
	}
	if p.RemoteID != nil {
		report.RemoteID = *p.RemoteID
	}

	e.logger.Info("playlist synced", "playlist", p.ID, "remote_id", report.RemoteID,
		"links", report.Links, "skipped", report.Skipped, "duplicates", report.Duplicates)
	return report, nil
}

func (e *SyncEngine) inTx(ctx context.Context, fn func(models.LocalStore) error) error {
	if tx, ok := e.store.(models.Transactor); ok {
		return tx.RunInTx(ctx, fn)
	}
	return fn(e.store)
}

func (e *SyncEngine) ownedPlaylist(ctx context.Context, userID, playlistID int64) (*models.Playlist, error) {
	p, err := e.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("%w: playlist %d belongs to another user", shared.ErrForbidden, playlistID)
	}
	return p, nil
}

func (e *SyncEngine) resolveSong(ctx context.Context, userID int64, remoteTrackID string) (*models.Song, error) {
	song, err := e.store.GetSongByRemoteID(ctx, remoteTrackID)
	if err == nil {
		return song, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, localWrite(err)
	}

	track, err := e.remote.GetTrack(ctx, userID, remoteTrackID)
	if err != nil {
		return nil, err
	}
	song, err = e.store.UpsertSong(ctx, track.RemoteID, track.Fields())
	if err != nil {
		return nil, localWrite(err)
	}
	return song, nil
}

func localWrite(err error) error {
	if errors.Is(err, shared.ErrLocalWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrLocalWrite, err)
}
