package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	SongListView
	SyncView
	ResultView
)

// Library is the read side of the local store the TUI browses.
type Library interface {
	ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error)
	ListPlaylistSongs(ctx context.Context, playlistID int64) ([]models.Song, error)
}

// Syncer runs reconciliation passes. Implemented by [tasks.SyncEngine].
type Syncer interface {
	SyncPlaylist(ctx context.Context, userID, playlistID int64) (*tasks.SyncReport, error)
	SyncFullLibrary(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID int64) (*tasks.LibraryReport, error)
}

// Model represents the library browser state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      Library
	engine       Syncer
	userID       int64
	width        int
	height       int
	playlistList list.Model
	songList     list.Model
	selected     *models.Playlist
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	done         chan Msg
	reports      []tasks.SyncReport
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a library browser for userID.
func NewModel(ctx context.Context, library Library, engine Syncer, userID int64) *Model {
	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		library:      library,
		engine:       engine,
		userID:       userID,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		songList:     list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the local playlists.
func (m *Model) Init() tea.Cmd {
	return m.loadPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.songList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistKeys(msg)
		case SongListView:
			return m.handleSongKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handle(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handle(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsLoaded:
		data := msg.data.(playlistsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.playlists))
		for i, p := range data.playlists {
			items[i] = playlistItem{playlist: p}
		}
		m.playlistList.Title = "Library"
		return m, m.playlistList.SetItems(items)

	case MsgSongsLoaded:
		data := msg.data.(songsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.selected = &data.playlist
		items := make([]list.Item, len(data.songs))
		for i, s := range data.songs {
			items[i] = songItem{song: s}
		}
		m.songList.Title = data.playlist.Name
		m.view = SongListView
		return m, m.songList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.reports, m.err = data.reports, data.err
		m.progressChan, m.done = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.loadSongs(item.playlist)
		}
		return m, nil
	case key.Matches(msg, m.keys.sync):
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok && item.playlist.Linked() {
			return m, m.syncPlaylist(item.playlist)
		}
		return m, nil
	case key.Matches(msg, m.keys.syncAll):
		return m, m.syncLibrary()
	}
	return m.updateLists(msg)
}

func (m *Model) handleSongKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.sync):
		if m.selected != nil && m.selected.Linked() {
			return m, m.syncPlaylist(*m.selected)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = PlaylistListView
		m.reports, m.err = nil, nil
		return m, m.loadPlaylists()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case SongListView:
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.library.ListPlaylists(m.ctx, m.userID)
		return playlistsLoadedMsg(playlists, err)
	}
}

func (m *Model) loadSongs(p models.Playlist) tea.Cmd {
	return func() tea.Msg {
		songs, err := m.library.ListPlaylistSongs(m.ctx, p.ID)
		return songsLoadedMsg(p, songs, err)
	}
}

func (m *Model) syncPlaylist(p models.Playlist) tea.Cmd {
	m.view = SyncView
	m.progress = tasks.ProgressUpdate{Phase: tasks.MirrorPlaylist, Step: 1, Total: 1, Message: fmt.Sprintf("Syncing %s...", p.Name)}
	return func() tea.Msg {
		report, err := m.engine.SyncPlaylist(m.ctx, m.userID, p.ID)
		if err != nil {
			return syncCompleteMsg(nil, err)
		}
		return syncCompleteMsg([]tasks.SyncReport{*report}, nil)
	}
}

func (m *Model) syncLibrary() tea.Cmd {
	m.view = SyncView
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan Msg, 1)

	progress, done := m.progressChan, m.done
	go func() {
		report, err := m.engine.SyncFullLibrary(m.ctx, progress, m.userID)
		var reports []tasks.SyncReport
		if report != nil {
			reports = report.Playlists
		}
		done <- syncCompleteMsg(reports, err)
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return syncCompleteMsg(nil, nil)
		}
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		keys := []key.Binding{m.keys.enter, m.keys.sync, m.keys.syncAll, m.keys.quit}
		return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(keys))
	case SongListView:
		keys := []key.Binding{m.keys.sync, m.keys.back, m.keys.quit}
		return fmt.Sprintf("%s\n\n%s", m.songList.View(), m.help.ShortHelpView(keys))
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing from TIDAL")
	message := m.progress.Message
	if message == "" {
		message = "Starting..."
	}
	if m.progress.Total > 0 {
		message += styles.dim.Render(fmt.Sprintf(" (%d/%d)", m.progress.Step, m.progress.Total))
	}
	return fmt.Sprintf("%s\n\n%s\n", title, message)
}

func (m *Model) renderResult() string {
	keys := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", m.err)), keys)
	}

	out := styles.ok.Render(fmt.Sprintf("✓ Synced %d playlist(s)", len(m.reports))) + "\n"
	for _, r := range m.reports {
		line := fmt.Sprintf("\n  • %s: %d tracks", r.Name, r.Links)
		if r.Skipped > 0 {
			line += styles.warn.Render(fmt.Sprintf(" (%d skipped)", r.Skipped))
		}
		out += line
	}
	return fmt.Sprintf("%s\n\n%s", out, keys)
}
