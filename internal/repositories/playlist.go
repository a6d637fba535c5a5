package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tidx/internal/models"
)

const playlistColumns = `id, user_id, remote_id, name, description, created_at, updated_at`

// PlaylistRepository persists local playlists.
type PlaylistRepository struct {
	q dbtx
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{q: db}
}

// GetPlaylist retrieves a playlist by its local id
func (r *PlaylistRepository) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`

	p, err := scanPlaylist(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "playlist", id)
	}
	return p, nil
}

// FindPlaylist retrieves the user's playlist linked to remoteID
func (r *PlaylistRepository) FindPlaylist(ctx context.Context, userID int64, remoteID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? AND remote_id = ?`

	p, err := scanPlaylist(r.q.QueryRowContext(ctx, query, userID, remoteID))
	if err != nil {
		return nil, notFound(err, "playlist", remoteID)
	}
	return p, nil
}

// ListPlaylists returns all of the user's playlists ordered by name
func (r *PlaylistRepository) ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? ORDER BY name, id`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, *p)
	}
	return playlists, rows.Err()
}

// CreatePlaylist inserts a local-only playlist
func (r *PlaylistRepository) CreatePlaylist(ctx context.Context, userID int64, name, description string) (*models.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name is required")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO playlists (user_id, remote_id, name, description, created_at, updated_at)
		VALUES (?, NULL, ?, ?, ?, ?)
	`
	result, err := r.q.ExecContext(ctx, query, userID, name, description, now, now)
	if err != nil {
		return nil, writeFailed("insert playlist", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, writeFailed("read playlist id", err)
	}
	return r.GetPlaylist(ctx, id)
}

// UpsertPlaylist creates the playlist for (userID, remoteID) or refreshes its name and description
func (r *PlaylistRepository) UpsertPlaylist(ctx context.Context, userID int64, remoteID, name, description string) (*models.Playlist, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO playlists (user_id, remote_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, remote_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at
	`
	if _, err := r.q.ExecContext(ctx, query, userID, remoteID, name, description, now, now); err != nil {
		return nil, writeFailed("upsert playlist", err)
	}
	return r.FindPlaylist(ctx, userID, remoteID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		p        models.Playlist
		remoteID sql.NullString
	)
	if err := s.Scan(&p.ID, &p.UserID, &remoteID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if remoteID.Valid {
		p.RemoteID = &remoteID.String
	}
	return &p, nil
}
