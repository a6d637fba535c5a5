package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
)

type fakeAuthorizer struct {
	mu       sync.Mutex
	beginErr error
	statuses []services.LoginStatus
	errs     []error
	polls    int
}

func (f *fakeAuthorizer) BeginDeviceLogin(ctx context.Context, userID int64) (*services.DeviceLogin, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &services.DeviceLogin{
		Handle:          "h1",
		VerificationURL: "https://link.tidal.com/ABCDE",
		UserCode:        "ABCDE",
		ExpiresAt:       time.Now().Add(5 * time.Minute),
		Interval:        2 * time.Second,
	}, nil
}

func (f *fakeAuthorizer) PollLogin(ctx context.Context, userID int64) (services.LoginStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	f.polls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.statuses[i], err
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func asMsg(t *testing.T, cmd tea.Cmd) Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(Msg)
	if !ok {
		t.Fatalf("expected Msg, got %T", msg)
	}
	return msg
}

func TestLoginModel(t *testing.T) {
	ctx := context.Background()

	t.Run("polls until authenticated", func(t *testing.T) {
		auth := &fakeAuthorizer{statuses: []services.LoginStatus{services.LoginPending, services.LoginAuthenticated}}
		m := NewLoginModel(ctx, auth, 1)

		if !strings.Contains(m.View(), "Requesting a device code") {
			t.Errorf("unexpected initial view:\n%s", m.View())
		}

		m.Update(asMsg(t, m.begin()))
		view := m.View()
		if !strings.Contains(view, "https://link.tidal.com/ABCDE") || !strings.Contains(view, "ABCDE") {
			t.Errorf("view missing verification details:\n%s", view)
		}

		_, cmd := m.Update(pollTickMsg())
		_, cmd = m.Update(asMsg(t, cmd))
		if m.Authenticated() {
			t.Fatal("should still be pending after first poll")
		}
		if cmd == nil {
			t.Fatal("expected another tick to be scheduled")
		}

		_, cmd = m.Update(pollTickMsg())
		_, cmd = m.Update(asMsg(t, cmd))
		if !m.Authenticated() {
			t.Fatal("expected authenticated")
		}
		if !isQuit(cmd) {
			t.Error("expected program to quit after login")
		}
		if auth.polls != 2 {
			t.Errorf("expected 2 polls, got %d", auth.polls)
		}
		if !strings.Contains(m.View(), "Connected") {
			t.Errorf("unexpected final view:\n%s", m.View())
		}
	})

	t.Run("failure ends the login", func(t *testing.T) {
		auth := &fakeAuthorizer{
			statuses: []services.LoginStatus{services.LoginFailed},
			errs:     []error{fmt.Errorf("%w: access_denied", shared.ErrLoginFailed)},
		}
		m := NewLoginModel(ctx, auth, 1)
		m.Update(asMsg(t, m.begin()))

		_, cmd := m.Update(asMsg(t, m.poll()))
		if !isQuit(cmd) {
			t.Error("expected quit on failure")
		}
		if !errors.Is(m.Err(), shared.ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", m.Err())
		}
		if !strings.Contains(m.View(), "access_denied") {
			t.Errorf("view missing failure reason:\n%s", m.View())
		}
	})

	t.Run("transient errors keep polling", func(t *testing.T) {
		auth := &fakeAuthorizer{
			statuses: []services.LoginStatus{services.LoginPending},
			errs:     []error{fmt.Errorf("%w: connection reset", shared.ErrRemoteUnavailable)},
		}
		m := NewLoginModel(ctx, auth, 1)
		m.Update(asMsg(t, m.begin()))

		_, cmd := m.Update(asMsg(t, m.poll()))
		if cmd == nil {
			t.Fatal("expected next tick")
		}
		if m.Err() != nil {
			t.Errorf("transient error should not end login: %v", m.Err())
		}
		if !strings.Contains(m.View(), "connection reset") {
			t.Errorf("expected warning in view:\n%s", m.View())
		}
	})

	t.Run("begin failure", func(t *testing.T) {
		m := NewLoginModel(ctx, &fakeAuthorizer{beginErr: errors.New("boom")}, 1)
		_, cmd := m.Update(asMsg(t, m.begin()))
		if !isQuit(cmd) || m.Err() == nil {
			t.Error("expected quit with error")
		}
	})

	t.Run("open key launches browser", func(t *testing.T) {
		m := NewLoginModel(ctx, &fakeAuthorizer{}, 1)
		var opened string
		m.open = func(u string) error { opened = u; return nil }
		m.Update(asMsg(t, m.begin()))

		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
		if opened != "https://link.tidal.com/ABCDE" {
			t.Errorf("expected browser to open verification URL, got %q", opened)
		}
	})
}

type fakeLibrary struct {
	playlists []models.Playlist
	songs     map[int64][]models.Song
}

func (f *fakeLibrary) ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error) {
	return f.playlists, nil
}

func (f *fakeLibrary) ListPlaylistSongs(ctx context.Context, playlistID int64) ([]models.Song, error) {
	return f.songs[playlistID], nil
}

type fakeSyncer struct {
	synced []int64
	err    error
}

func (f *fakeSyncer) SyncPlaylist(ctx context.Context, userID, playlistID int64) (*tasks.SyncReport, error) {
	f.synced = append(f.synced, playlistID)
	if f.err != nil {
		return nil, f.err
	}
	return &tasks.SyncReport{PlaylistID: playlistID, Name: "Road Trip", Links: 3, Skipped: 1}, nil
}

func (f *fakeSyncer) SyncFullLibrary(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID int64) (*tasks.LibraryReport, error) {
	progress <- tasks.ProgressUpdate{Phase: tasks.MirrorPlaylist, Step: 1, Total: 2, Message: "[1/2] Syncing Road Trip..."}
	return &tasks.LibraryReport{Playlists: []tasks.SyncReport{{Name: "Road Trip", Links: 3}, {Name: "Focus", Links: 1}}}, nil
}

func testLibrary() *fakeLibrary {
	remote := "p1"
	return &fakeLibrary{
		playlists: []models.Playlist{
			{ID: 1, UserID: 1, RemoteID: &remote, Name: "Road Trip"},
			{ID: 2, UserID: 1, Name: "Local Only"},
		},
		songs: map[int64][]models.Song{
			1: {{ID: 10, RemoteID: "a", Title: "Song A", Artist: "Artist", Duration: 200, Available: true}},
		},
	}
}

func TestModel(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, syncer *fakeSyncer) *Model {
		m := NewModel(ctx, testLibrary(), syncer, 1)
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		m.Update(asMsg(t, m.Init()))
		return m
	}

	t.Run("lists playlists", func(t *testing.T) {
		m := setup(t, &fakeSyncer{})
		view := m.View()
		if !strings.Contains(view, "Road Trip") || !strings.Contains(view, "Local Only") {
			t.Errorf("playlists missing from view:\n%s", view)
		}
	})

	t.Run("opens a playlist", func(t *testing.T) {
		m := setup(t, &fakeSyncer{})
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(asMsg(t, cmd))

		if m.view != SongListView {
			t.Fatalf("expected song view, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Song A") {
			t.Errorf("song missing from view:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PlaylistListView {
			t.Errorf("expected to return to playlists, got %d", m.view)
		}
	})

	t.Run("syncs the selected playlist", func(t *testing.T) {
		syncer := &fakeSyncer{}
		m := setup(t, syncer)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
		if m.view != SyncView {
			t.Fatalf("expected sync view, got %d", m.view)
		}
		m.Update(asMsg(t, cmd))

		if len(syncer.synced) != 1 || syncer.synced[0] != 1 {
			t.Errorf("unexpected syncs %v", syncer.synced)
		}
		if m.view != ResultView || !strings.Contains(m.View(), "Road Trip: 3 tracks") {
			t.Errorf("unexpected result view:\n%s", m.View())
		}
	})

	t.Run("local playlists are not synced", func(t *testing.T) {
		syncer := &fakeSyncer{}
		m := setup(t, syncer)
		m.Update(tea.KeyMsg{Type: tea.KeyDown})

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
		if cmd != nil || m.view != PlaylistListView {
			t.Error("sync should be ignored for local playlists")
		}
	})

	t.Run("syncs the full library with progress", func(t *testing.T) {
		m := setup(t, &fakeSyncer{})

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("S")})
		msg := asMsg(t, cmd)
		if msg.kind != MsgProgressUpdate {
			t.Fatalf("expected progress first, got kind %d", msg.kind)
		}
		_, cmd = m.Update(msg)
		if !strings.Contains(m.View(), "Syncing Road Trip") {
			t.Errorf("progress missing from view:\n%s", m.View())
		}

		m.Update(asMsg(t, cmd))
		if m.view != ResultView || !strings.Contains(m.View(), "Synced 2 playlist(s)") {
			t.Errorf("unexpected result view:\n%s", m.View())
		}
	})

	t.Run("sync failure", func(t *testing.T) {
		m := setup(t, &fakeSyncer{err: fmt.Errorf("%w: 503", shared.ErrRemoteUnavailable)})

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
		m.Update(asMsg(t, cmd))
		if !strings.Contains(m.View(), "Sync failed") {
			t.Errorf("expected failure view:\n%s", m.View())
		}
	})
}
