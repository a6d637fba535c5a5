package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/tidwall/gjson"
)

// MixPredicate decides whether a remote playlist is a mix.
type MixPredicate func(models.RemotePlaylist) bool

// NameMarkerPredicate classifies a playlist as a mix when a word of its name equals one of markers,
// ignoring case. It is a heuristic: TIDAL does not flag mixes in the playlist listing.
func NameMarkerPredicate(markers ...string) MixPredicate {
	if len(markers) == 0 {
		markers = []string{"mix", "radio"}
	}

	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		set[strings.ToLower(m)] = struct{}{}
	}

	return func(p models.RemotePlaylist) bool {
		words := strings.FieldsFunc(strings.ToLower(p.Name), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if _, ok := set[w]; ok {
				return true
			}
		}
		return false
	}
}

// SearchTracks returns up to limit tracks matching query.
func (c *TidalClient) SearchTracks(ctx context.Context, userID int64, query string, limit int) (*models.TrackBatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	resp, err := c.do(ctx, userID, apiRequest{
		method: http.MethodGet,
		path:   "/search/tracks",
		query:  url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}},
	})
	if err != nil {
		return nil, err
	}

	data, err := jsonBody(resp)
	if err != nil {
		return nil, err
	}

	tracks, skipped := parseItems(data.Get("items"), "", 0, parseTrack, c.logger)
	return &models.TrackBatch{Tracks: tracks, Skipped: skipped}, nil
}

// GetTrack fetches one track by its TIDAL id.
func (c *TidalClient) GetTrack(ctx context.Context, userID int64, remoteID string) (*models.RemoteTrack, error) {
	resp, err := c.do(ctx, userID, apiRequest{method: http.MethodGet, path: "/tracks/" + url.PathEscape(remoteID)})
	if err != nil {
		return nil, err
	}

	data, err := jsonBody(resp)
	if err != nil {
		return nil, err
	}

	track, err := parseTrack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: track %s: %v", shared.ErrRemoteUnavailable, remoteID, err)
	}
	return &track, nil
}

// ListUserPlaylists returns every playlist owned by the user's TIDAL account.
func (c *TidalClient) ListUserPlaylists(ctx context.Context, userID int64) ([]models.RemotePlaylist, error) {
	p, err := c.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var playlists []models.RemotePlaylist
	err = c.paginate(ctx, userID, "/users/"+p.UserID+"/playlists", nil, func(items gjson.Result, offset int) {
		parsed, _ := parseItems(items, "", offset, parsePlaylist, c.logger)
		playlists = append(playlists, parsed...)
	})
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// ListPlaylistTracks returns the tracks of a TIDAL playlist in playlist order.
func (c *TidalClient) ListPlaylistTracks(ctx context.Context, userID int64, playlistID string) (*models.TrackBatch, error) {
	batch := &models.TrackBatch{}
	err := c.paginate(ctx, userID, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, func(items gjson.Result, offset int) {
		tracks, skipped := parseItems(items, "", offset, parseTrack, c.logger)
		batch.Tracks = append(batch.Tracks, tracks...)
		batch.Skipped += skipped
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ListFavoriteTracks returns the user's favorite tracks, most recently added first.
func (c *TidalClient) ListFavoriteTracks(ctx context.Context, userID int64) (*models.TrackBatch, error) {
	p, err := c.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	order := url.Values{"order": {"DATE"}, "orderDirection": {"DESC"}}
	batch := &models.TrackBatch{}
	err = c.paginate(ctx, userID, "/users/"+p.UserID+"/favorites/tracks", order, func(items gjson.Result, offset int) {
		tracks, skipped := parseItems(items, "item", offset, parseTrack, c.logger)
		batch.Tracks = append(batch.Tracks, tracks...)
		batch.Skipped += skipped
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ListMixes returns the user's playlists that the mix predicate accepts, in listing order.
func (c *TidalClient) ListMixes(ctx context.Context, userID int64) ([]models.RemotePlaylist, error) {
	playlists, err := c.ListUserPlaylists(ctx, userID)
	if err != nil {
		return nil, err
	}

	var mixes []models.RemotePlaylist
	for _, p := range playlists {
		if c.isMix(p) {
			mixes = append(mixes, p)
		}
	}
	return mixes, nil
}

// AddTracksToPlaylist appends trackIDs to a TIDAL playlist. Tracks already present are skipped by TIDAL.
func (c *TidalClient) AddTracksToPlaylist(ctx context.Context, userID int64, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	etag, err := c.playlistETag(ctx, userID, playlistID)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, userID, apiRequest{
		method: http.MethodPost,
		path:   "/playlists/" + url.PathEscape(playlistID) + "/items",
		form: url.Values{
			"trackIds":           {strings.Join(trackIDs, ",")},
			"onArtifactNotFound": {"FAIL"},
			"onDupes":            {"SKIP"},
		},
		header: http.Header{"If-None-Match": {etag}},
	})
	return err
}

// RemoveTrackFromPlaylist removes the first occurrence of trackID from a TIDAL playlist.
// TIDAL deletes by position, so the track's index is looked up first.
func (c *TidalClient) RemoveTrackFromPlaylist(ctx context.Context, userID int64, playlistID, trackID string) error {
	index := -1
	err := c.paginate(ctx, userID, "/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, func(items gjson.Result, offset int) {
		if index >= 0 {
			return
		}
		for i, item := range items.Array() {
			if item.Get("id").String() == trackID {
				index = offset + i
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("track %s in playlist %s: %w", trackID, playlistID, shared.ErrNotFound)
	}

	etag, err := c.playlistETag(ctx, userID, playlistID)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, userID, apiRequest{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/playlists/%s/items/%d", url.PathEscape(playlistID), index),
		header: http.Header{"If-None-Match": {etag}},
	})
	return err
}

func (c *TidalClient) playlistETag(ctx context.Context, userID int64, playlistID string) (string, error) {
	resp, err := c.do(ctx, userID, apiRequest{method: http.MethodGet, path: "/playlists/" + url.PathEscape(playlistID)})
	if err != nil {
		return "", err
	}

	etag := resp.header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("%w: playlist %s has no ETag", shared.ErrRemoteRejected, playlistID)
	}
	return etag, nil
}

// paginate walks a limit/offset listing, handing each page's raw items to visit.
func (c *TidalClient) paginate(ctx context.Context, userID int64, path string, extra url.Values, visit func(items gjson.Result, offset int)) error {
	offset := 0
	for {
		query := url.Values{"limit": {strconv.Itoa(c.pageSize)}, "offset": {strconv.Itoa(offset)}}
		for k, v := range extra {
			query[k] = v
		}

		resp, err := c.do(ctx, userID, apiRequest{method: http.MethodGet, path: path, query: query})
		if err != nil {
			return err
		}

		data, err := jsonBody(resp)
		if err != nil {
			return err
		}

		items := data.Get("items")
		count := len(items.Array())
		visit(items, offset)

		offset += count
		total := data.Get("totalNumberOfItems")
		if count == 0 || (total.Exists() && offset >= int(total.Int())) || (!total.Exists() && count < c.pageSize) {
			return nil
		}
	}
}
