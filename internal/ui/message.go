package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsLoaded MsgKind = iota
	MsgSongsLoaded
	MsgProgressUpdate
	MsgSyncComplete
	MsgLoginStarted
	MsgLoginPolled
	MsgPollTick
)

type playlistsLoaded struct {
	playlists []models.Playlist
	err       error
}

type songsLoaded struct {
	playlist models.Playlist
	songs    []models.Song
	err      error
}

type syncComplete struct {
	reports []tasks.SyncReport
	err     error
}

type loginStarted struct {
	login *services.DeviceLogin
	err   error
}

type loginPolled struct {
	status services.LoginStatus
	err    error
}

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, data: playlistsLoaded{playlists, err}}
}

// songsLoadedMsg is the constructor for [MsgSongsLoaded]
func songsLoadedMsg(playlist models.Playlist, songs []models.Song, err error) Msg {
	return Msg{kind: MsgSongsLoaded, data: songsLoaded{playlist, songs, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(reports []tasks.SyncReport, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{reports, err}}
}

// loginStartedMsg is the constructor for [MsgLoginStarted]
func loginStartedMsg(login *services.DeviceLogin, err error) Msg {
	return Msg{kind: MsgLoginStarted, data: loginStarted{login, err}}
}

// loginPolledMsg is the constructor for [MsgLoginPolled]
func loginPolledMsg(status services.LoginStatus, err error) Msg {
	return Msg{kind: MsgLoginPolled, data: loginPolled{status, err}}
}

// pollTickMsg is the constructor for [MsgPollTick]
func pollTickMsg() Msg {
	return Msg{kind: MsgPollTick}
}
