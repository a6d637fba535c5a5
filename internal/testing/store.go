package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
)

// MemoryStore is an in-memory [models.LocalStore], [models.TokenStore] and [models.Transactor].
//
// Set FailInsertAfter to a positive n to make the n+1th InsertLink call fail with [shared.ErrLocalWrite].
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState

	FailInsertAfter int
	inserts         int

	CredentialWrites int
}

type memoryState struct {
	nextID      int64
	playlists   map[int64]models.Playlist
	songs       map[int64]models.Song
	links       map[int64][]models.PlaylistSongLink
	credentials map[int64]models.Credential
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{
		playlists:   map[int64]models.Playlist{},
		songs:       map[int64]models.Song{},
		links:       map[int64][]models.PlaylistSongLink{},
		credentials: map[int64]models.Credential{},
	}}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		nextID:      s.nextID,
		playlists:   make(map[int64]models.Playlist, len(s.playlists)),
		songs:       make(map[int64]models.Song, len(s.songs)),
		links:       make(map[int64][]models.PlaylistSongLink, len(s.links)),
		credentials: make(map[int64]models.Credential, len(s.credentials)),
	}
	for k, v := range s.playlists {
		c.playlists[k] = v
	}
	for k, v := range s.songs {
		c.songs[k] = v
	}
	for k, v := range s.links {
		c.links[k] = append([]models.PlaylistSongLink(nil), v...)
	}
	for k, v := range s.credentials {
		c.credentials[k] = v
	}
	return c
}

func (m *MemoryStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

// RunInTx snapshots the store and restores it when fn fails
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(models.LocalStore) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.playlists[id]
	if !ok {
		return nil, fmt.Errorf("playlist %d: %w", id, shared.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryStore) FindPlaylist(ctx context.Context, userID int64, remoteID string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.state.playlists {
		if p.UserID == userID && p.RemoteID != nil && *p.RemoteID == remoteID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("playlist %s: %w", remoteID, shared.ErrNotFound)
}

func (m *MemoryStore) ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Playlist
	for _, p := range m.state.playlists {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) CreatePlaylist(ctx context.Context, userID int64, name, description string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p := models.Playlist{ID: m.id(), UserID: userID, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	m.state.playlists[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) UpsertPlaylist(ctx context.Context, userID int64, remoteID, name, description string) (*models.Playlist, error) {
	if existing, err := m.FindPlaylist(ctx, userID, remoteID); err == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		existing.Name, existing.Description, existing.UpdatedAt = name, description, time.Now()
		m.state.playlists[existing.ID] = *existing
		return existing, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rid := remoteID
	p := models.Playlist{ID: m.id(), UserID: userID, RemoteID: &rid, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	m.state.playlists[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.songs[id]
	if !ok {
		return nil, fmt.Errorf("song %d: %w", id, shared.ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) GetSongByRemoteID(ctx context.Context, remoteID string) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.state.songs {
		if s.RemoteID == remoteID {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("song %s: %w", remoteID, shared.ErrNotFound)
}

func (m *MemoryStore) UpsertSong(ctx context.Context, remoteID string, fields models.SongFields) (*models.Song, error) {
	if existing, err := m.GetSongByRemoteID(ctx, remoteID); err == nil {
		return m.UpdateSong(ctx, existing.ID, fields)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	s := models.Song{ID: m.id(), RemoteID: remoteID, Available: true, CreatedAt: now, UpdatedAt: now}
	applyFields(&s, fields)
	m.state.songs[s.ID] = s
	return &s, nil
}

func (m *MemoryStore) UpdateSong(ctx context.Context, id int64, fields models.SongFields) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.songs[id]
	if !ok {
		return nil, fmt.Errorf("song %d: %w", id, shared.ErrNotFound)
	}
	applyFields(&s, fields)
	s.UpdatedAt = time.Now()
	m.state.songs[id] = s
	return &s, nil
}

func applyFields(s *models.Song, f models.SongFields) {
	s.Title, s.Artist, s.Album, s.CoverURL, s.Duration = f.Title, f.Artist, f.Album, f.CoverURL, f.Duration
}

func (m *MemoryStore) ListLinks(ctx context.Context, playlistID int64) ([]models.PlaylistSongLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := append([]models.PlaylistSongLink(nil), m.state.links[playlistID]...)
	sort.Slice(links, func(i, j int) bool { return links[i].Order < links[j].Order })
	return links, nil
}

func (m *MemoryStore) ListPlaylistSongs(ctx context.Context, playlistID int64) ([]models.Song, error) {
	links, _ := m.ListLinks(ctx, playlistID)

	m.mu.Lock()
	defer m.mu.Unlock()
	songs := make([]models.Song, 0, len(links))
	for _, l := range links {
		songs = append(songs, m.state.songs[l.SongID])
	}
	return songs, nil
}

func (m *MemoryStore) InsertLink(ctx context.Context, playlistID, songID int64, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	if m.FailInsertAfter > 0 && m.inserts > m.FailInsertAfter {
		return fmt.Errorf("%w: injected insert failure", shared.ErrLocalWrite)
	}

	for _, l := range m.state.links[playlistID] {
		if l.SongID == songID || l.Order == order {
			return fmt.Errorf("%w: duplicate link (%d, %d)", shared.ErrLocalWrite, playlistID, songID)
		}
	}
	m.state.links[playlistID] = append(m.state.links[playlistID],
		models.PlaylistSongLink{PlaylistID: playlistID, SongID: songID, Order: order, AddedAt: time.Now()})
	return nil
}

func (m *MemoryStore) DeleteLink(ctx context.Context, playlistID, songID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.state.links[playlistID]
	for i, l := range links {
		if l.SongID == songID {
			m.state.links[playlistID] = append(links[:i:i], links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteLinks(ctx context.Context, playlistID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.links, playlistID)
	return nil
}

func (m *MemoryStore) CompactLinks(ctx context.Context, playlistID int64) error {
	links, _ := m.ListLinks(ctx, playlistID)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range links {
		links[i].Order = i
	}
	m.state.links[playlistID] = links
	return nil
}

func (m *MemoryStore) GetCredential(ctx context.Context, userID int64) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.credentials[userID]
	if !ok {
		return nil, fmt.Errorf("credential for user %d: %w", userID, shared.ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) SaveCredential(ctx context.Context, cred models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CredentialWrites++
	m.state.credentials[cred.UserID] = cred
	return nil
}

func (m *MemoryStore) DeleteCredential(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.credentials, userID)
	return nil
}

var (
	_ models.LocalStore = (*MemoryStore)(nil)
	_ models.TokenStore = (*MemoryStore)(nil)
	_ models.Transactor = (*MemoryStore)(nil)
)
