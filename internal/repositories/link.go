package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tidx/internal/models"
)

// LinkRepository persists playlist membership.
//
// Positions are unique per playlist; [LinkRepository.CompactLinks] restores the dense 0..n-1 numbering after a removal.
type LinkRepository struct {
	q dbtx
}

// NewLinkRepository creates a new LinkRepository with the given database connection
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{q: db}
}

// ListLinks returns the playlist's links ordered by position
func (r *LinkRepository) ListLinks(ctx context.Context, playlistID int64) ([]models.PlaylistSongLink, error) {
	query := `
		SELECT playlist_id, song_id, position, added_at
		FROM playlist_song_links
		WHERE playlist_id = ?
		ORDER BY position
	`
	rows, err := r.q.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.PlaylistSongLink
	for rows.Next() {
		var l models.PlaylistSongLink
		if err := rows.Scan(&l.PlaylistID, &l.SongID, &l.Order, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ListPlaylistSongs returns the playlist's songs in playlist order
func (r *LinkRepository) ListPlaylistSongs(ctx context.Context, playlistID int64) ([]models.Song, error) {
	query := `
		SELECT s.id, s.remote_id, s.title, s.artist, s.album, s.cover_url, s.duration, s.is_available, s.created_at, s.updated_at
		FROM playlist_song_links l
		JOIN songs s ON s.id = l.song_id
		WHERE l.playlist_id = ?
		ORDER BY l.position
	`
	rows, err := r.q.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist songs: %w", err)
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, *s)
	}
	return songs, rows.Err()
}

// InsertLink adds songID to the playlist at position order
func (r *LinkRepository) InsertLink(ctx context.Context, playlistID, songID int64, order int) error {
	query := `
		INSERT INTO playlist_song_links (playlist_id, song_id, position, added_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.q.ExecContext(ctx, query, playlistID, songID, order, time.Now().UTC()); err != nil {
		return writeFailed("insert link", err)
	}
	return nil
}

// DeleteLink removes songID from the playlist, reporting whether a row was deleted
func (r *LinkRepository) DeleteLink(ctx context.Context, playlistID, songID int64) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM playlist_song_links WHERE playlist_id = ? AND song_id = ?`, playlistID, songID)
	if err != nil {
		return false, writeFailed("delete link", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, writeFailed("read affected rows", err)
	}
	return rows > 0, nil
}

// DeleteLinks removes every link of the playlist
func (r *LinkRepository) DeleteLinks(ctx context.Context, playlistID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM playlist_song_links WHERE playlist_id = ?`, playlistID); err != nil {
		return writeFailed("delete links", err)
	}
	return nil
}

// CompactLinks renumbers the playlist's links to 0..n-1.
//
// Positions are first moved to distinct negative values so the unique (playlist_id, position)
// index never sees two rows on the same position.
func (r *LinkRepository) CompactLinks(ctx context.Context, playlistID int64) error {
	links, err := r.ListLinks(ctx, playlistID)
	if err != nil {
		return err
	}

	for i, l := range links {
		if l.Order == i {
			continue
		}
		_, err := r.q.ExecContext(ctx,
			`UPDATE playlist_song_links SET position = ? WHERE playlist_id = ? AND song_id = ?`,
			-(i + 1), playlistID, l.SongID)
		if err != nil {
			return writeFailed("stage link position", err)
		}
	}

	_, err = r.q.ExecContext(ctx,
		`UPDATE playlist_song_links SET position = -position - 1 WHERE playlist_id = ? AND position < 0`, playlistID)
	if err != nil {
		return writeFailed("compact links", err)
	}
	return nil
}
