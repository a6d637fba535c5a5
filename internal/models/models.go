package models

import (
	"context"
	"strings"
	"time"
)

// Synthetic remote ids for the aggregate playlists. They never collide with TIDAL playlist UUIDs
// and are never sent to the remote API.
const (
	FavoritesRemoteID = "tidx:favorites"
	MixesRemoteID     = "tidx:mixes"
)

// IsSynthetic reports whether remoteID names a local aggregate playlist rather than a TIDAL playlist.
func IsSynthetic(remoteID string) bool {
	return strings.HasPrefix(remoteID, "tidx:")
}

// Credential is the persisted OAuth token set for one local user.
type Credential struct {
	UserID       int64
	TokenType    string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // zero when the provider reported no lifetime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Equal reports whether both credentials carry the same token material.
func (c Credential) Equal(o Credential) bool {
	return c.UserID == o.UserID &&
		c.TokenType == o.TokenType &&
		c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken &&
		c.Expiry.Equal(o.Expiry)
}

// RemoteTrack is a track as returned by the TIDAL API.
type RemoteTrack struct {
	RemoteID string `json:"remote_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	CoverURL string `json:"cover_url"`
	Duration int    `json:"duration"` // seconds
}

// Fields returns the metadata of t in the shape stored on a [Song].
func (t RemoteTrack) Fields() SongFields {
	return SongFields{
		Title:    t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		CoverURL: t.CoverURL,
		Duration: t.Duration,
	}
}

// RemotePlaylist is a playlist owned by the authenticated TIDAL user.
type RemotePlaylist struct {
	RemoteID    string `json:"remote_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"track_count"`
}

// TrackBatch holds the tracks parsed from a listing and the number of items skipped as malformed.
type TrackBatch struct {
	Tracks  []RemoteTrack
	Skipped int
}

// Playlist is a local playlist. RemoteID is nil for local-only playlists.
type Playlist struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	RemoteID    *string   `json:"remote_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Linked reports whether the playlist mirrors a TIDAL playlist or aggregate.
func (p *Playlist) Linked() bool {
	return p.RemoteID != nil && *p.RemoteID != ""
}

// Pushable reports whether local edits to the playlist should be sent to TIDAL.
func (p *Playlist) Pushable() bool {
	return p.Linked() && !IsSynthetic(*p.RemoteID)
}

// SongFields is the mutable metadata of a [Song].
type SongFields struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string
	Duration int
}

// Song is a local song, unique by RemoteID.
type Song struct {
	ID        int64     `json:"id"`
	RemoteID  string    `json:"remote_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	CoverURL  string    `json:"cover_url"`
	Duration  int       `json:"duration"`
	Available bool      `json:"is_available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaylistSongLink records a song's membership and position in a playlist.
type PlaylistSongLink struct {
	PlaylistID int64
	SongID     int64
	Order      int
	AddedAt    time.Time
}

// PlaylistExport is a local playlist with its songs in link order.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Songs    []Song   `json:"songs"`
}

// LocalStore is the local library persistence used by the sync engine.
//
// Lookups return an error wrapping shared.ErrNotFound when the row does not exist.
type LocalStore interface {
	GetPlaylist(ctx context.Context, id int64) (*Playlist, error)
	FindPlaylist(ctx context.Context, userID int64, remoteID string) (*Playlist, error)
	ListPlaylists(ctx context.Context, userID int64) ([]Playlist, error)
	CreatePlaylist(ctx context.Context, userID int64, name, description string) (*Playlist, error)
	// UpsertPlaylist creates or updates the playlist keyed by (userID, remoteID).
	UpsertPlaylist(ctx context.Context, userID int64, remoteID, name, description string) (*Playlist, error)

	GetSong(ctx context.Context, id int64) (*Song, error)
	GetSongByRemoteID(ctx context.Context, remoteID string) (*Song, error)
	// UpsertSong creates or updates the song keyed by remoteID, returning the stored row.
	UpsertSong(ctx context.Context, remoteID string, fields SongFields) (*Song, error)
	UpdateSong(ctx context.Context, id int64, fields SongFields) (*Song, error)

	ListLinks(ctx context.Context, playlistID int64) ([]PlaylistSongLink, error)
	ListPlaylistSongs(ctx context.Context, playlistID int64) ([]Song, error)
	InsertLink(ctx context.Context, playlistID, songID int64, order int) error
	// DeleteLink reports whether a link was removed.
	DeleteLink(ctx context.Context, playlistID, songID int64) (bool, error)
	DeleteLinks(ctx context.Context, playlistID int64) error
	// CompactLinks renumbers the playlist's links to 0..n-1, keeping their relative order.
	CompactLinks(ctx context.Context, playlistID int64) error
}

// Transactor is implemented by stores that can run a group of writes atomically.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(LocalStore) error) error
}

// TokenStore persists one [Credential] per local user.
type TokenStore interface {
	GetCredential(ctx context.Context, userID int64) (*Credential, error)
	SaveCredential(ctx context.Context, cred Credential) error
	DeleteCredential(ctx context.Context, userID int64) error
}
