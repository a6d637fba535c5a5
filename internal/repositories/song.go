package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tidx/internal/models"
)

const songColumns = `id, remote_id, title, artist, album, cover_url, duration, is_available, created_at, updated_at`

// SongRepository persists songs, at most one row per TIDAL track id.
type SongRepository struct {
	q dbtx
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{q: db}
}

// GetSong retrieves a song by its local id
func (r *SongRepository) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ?`

	s, err := scanSong(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "song", id)
	}
	return s, nil
}

// GetSongByRemoteID retrieves a song by its TIDAL track id
func (r *SongRepository) GetSongByRemoteID(ctx context.Context, remoteID string) (*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE remote_id = ?`

	s, err := scanSong(r.q.QueryRowContext(ctx, query, remoteID))
	if err != nil {
		return nil, notFound(err, "song", remoteID)
	}
	return s, nil
}

// UpsertSong inserts the song for remoteID or overwrites its metadata with fields
func (r *SongRepository) UpsertSong(ctx context.Context, remoteID string, fields models.SongFields) (*models.Song, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("song remote id is required")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO songs (remote_id, title, artist, album, cover_url, duration, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (remote_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			cover_url = excluded.cover_url,
			duration = excluded.duration,
			is_available = 1,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		remoteID, fields.Title, fields.Artist, fields.Album, fields.CoverURL, fields.Duration, now, now)
	if err != nil {
		return nil, writeFailed("upsert song", err)
	}
	return r.GetSongByRemoteID(ctx, remoteID)
}

// UpdateSong overwrites the metadata of an existing song
func (r *SongRepository) UpdateSong(ctx context.Context, id int64, fields models.SongFields) (*models.Song, error) {
	query := `
		UPDATE songs
		SET title = ?, artist = ?, album = ?, cover_url = ?, duration = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		fields.Title, fields.Artist, fields.Album, fields.CoverURL, fields.Duration, time.Now().UTC(), id)
	if err != nil {
		return nil, writeFailed("update song", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, writeFailed("read affected rows", err)
	}
	if rows == 0 {
		return nil, notFound(sql.ErrNoRows, "song", id)
	}
	return r.GetSong(ctx, id)
}

func scanSong(s scanner) (*models.Song, error) {
	var song models.Song
	err := s.Scan(
		&song.ID, &song.RemoteID, &song.Title, &song.Artist, &song.Album,
		&song.CoverURL, &song.Duration, &song.Available, &song.CreatedAt, &song.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &song, nil
}
