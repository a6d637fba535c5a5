package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/models"
	"github.com/tidwall/gjson"
)

const coverBaseURL = "https://resources.tidal.com/images"

// parseTrack converts one TIDAL track object. Every batch goes through parseItems, which skips items this rejects.
func parseTrack(item gjson.Result) (models.RemoteTrack, error) {
	if !item.IsObject() {
		return models.RemoteTrack{}, fmt.Errorf("item is %s, not an object", item.Type)
	}

	id := item.Get("id")
	if !id.Exists() || id.String() == "" {
		return models.RemoteTrack{}, fmt.Errorf("missing id")
	}

	title := item.Get("title")
	if title.Type != gjson.String {
		return models.RemoteTrack{}, fmt.Errorf("missing title for track %s", id.String())
	}

	artist := item.Get("artist.name").String()
	if artist == "" {
		artist = item.Get("artists.0.name").String()
	}

	return models.RemoteTrack{
		RemoteID: id.String(),
		Title:    title.String(),
		Artist:   artist,
		Album:    item.Get("album.title").String(),
		CoverURL: coverURL(item.Get("album.cover").String()),
		Duration: int(item.Get("duration").Int()),
	}, nil
}

func parsePlaylist(item gjson.Result) (models.RemotePlaylist, error) {
	if !item.IsObject() {
		return models.RemotePlaylist{}, fmt.Errorf("item is %s, not an object", item.Type)
	}

	id := item.Get("uuid").String()
	if id == "" {
		return models.RemotePlaylist{}, fmt.Errorf("missing uuid")
	}

	title := item.Get("title")
	if title.Type != gjson.String {
		return models.RemotePlaylist{}, fmt.Errorf("missing title for playlist %s", id)
	}

	return models.RemotePlaylist{
		RemoteID:    id,
		Name:        title.String(),
		Description: item.Get("description").String(),
		TrackCount:  int(item.Get("numberOfTracks").Int()),
	}, nil
}

// parseItems applies parse to each element of items, unwrapping field first when set.
// Elements that fail to parse are logged and counted, never returned as an error.
func parseItems[T any](items gjson.Result, field string, offset int, parse func(gjson.Result) (T, error), logger *log.Logger) ([]T, int) {
	var (
		parsed  []T
		skipped int
	)

	for i, item := range items.Array() {
		if field != "" {
			item = item.Get(field)
		}

		v, err := parse(item)
		if err != nil {
			skipped++
			logger.Warn("skipping malformed item", "index", offset+i, "reason", err)
			continue
		}
		parsed = append(parsed, v)
	}
	return parsed, skipped
}

// coverURL maps a TIDAL image id (a dashed UUID) to its 640x640 JPEG URL.
func coverURL(cover string) string {
	if cover == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/640x640.jpg", coverBaseURL, strings.ReplaceAll(cover, "-", "/"))
}
