package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = songItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	var source string
	switch {
	case i.playlist.RemoteID == nil:
		source = "local"
	case models.IsSynthetic(*i.playlist.RemoteID):
		source = "TIDAL aggregate"
	default:
		source = "TIDAL"
	}
	if i.playlist.Description != "" {
		return fmt.Sprintf("%s • %s", source, i.playlist.Description)
	}
	return source
}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.Title }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string {
	desc := i.song.Artist
	if i.song.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.song.Album)
	}
	desc = fmt.Sprintf("%s • %s", desc, shared.FormatDuration(i.song.Duration))
	if !i.song.Available {
		desc += " • " + shared.AvailabilityString(false)
	}
	return desc
}
