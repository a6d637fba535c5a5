package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tidx/internal/models"
	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

// stubTokens hands out a fixed access token and swaps it on Refresh.
type stubTokens struct {
	mu         sync.Mutex
	token      string
	next       string
	tokenErr   error
	refreshErr error
	refreshes  int
}

func (s *stubTokens) Token(ctx context.Context, userID int64) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func (s *stubTokens) Refresh(ctx context.Context, userID int64) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	s.token = s.next
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

type countingLimiter struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLimiter) Acquire(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return nil
}

func trackJSON(id int, title string) string {
	return fmt.Sprintf(`{"id":%d,"title":%q,"duration":200,"artist":{"name":"Artist %d"},"album":{"title":"Album","cover":"aa-bb-cc"}}`, id, title, id)
}

// fakeTidal serves a small TIDAL account: user 42 with playlists p1 (3 tracks) and two mixes.
type fakeTidal struct {
	mu       sync.Mutex
	hits     map[string]int
	requests []*http.Request
	forms    []string
	override map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeTidal() *fakeTidal {
	return &fakeTidal{hits: map[string]int{}, override: map[string]func(http.ResponseWriter, *http.Request){}}
}

func (f *fakeTidal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.requests = append(f.requests, r)
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		f.forms = append(f.forms, string(body))
	}
	handler, ok := f.override[r.URL.Path]
	f.mu.Unlock()

	if ok {
		handler(w, r)
		return
	}

	if r.Header.Get("Authorization") != "Bearer good" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/sessions":
		io.WriteString(w, `{"sessionId":"s","userId":42,"countryCode":"GB"}`)
	case r.URL.Path == "/users/42/playlists":
		io.WriteString(w, `{"totalNumberOfItems":4,"items":[
			{"uuid":"p1","title":"Road Trip","numberOfTracks":3},
			{"uuid":"m1","title":"My Daily Mix"},
			{"title":"no uuid"},
			{"uuid":"m2","title":"Artist Radio"}]}`)
	case r.URL.Path == "/playlists/p1/tracks":
		switch r.URL.Query().Get("offset") {
		case "0":
			io.WriteString(w, `{"totalNumberOfItems":3,"items":[`+trackJSON(1, "One")+`,`+trackJSON(2, "Two")+`]}`)
		default:
			io.WriteString(w, `{"totalNumberOfItems":3,"items":[`+trackJSON(3, "Three")+`]}`)
		}
	case r.URL.Path == "/users/42/favorites/tracks":
		io.WriteString(w, `{"totalNumberOfItems":1,"items":[{"created":"2024-01-01","item":`+trackJSON(7, "Fav")+`}]}`)
	case r.URL.Path == "/tracks/1":
		io.WriteString(w, trackJSON(1, "One"))
	case r.URL.Path == "/playlists/p1" && r.Method == http.MethodGet:
		w.Header().Set("ETag", `"etag-1"`)
		io.WriteString(w, `{"uuid":"p1","title":"Road Trip"}`)
	case strings.HasPrefix(r.URL.Path, "/playlists/p1/items"):
		if r.Header.Get("If-None-Match") != `"etag-1"` {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"lastUpdated":1}`)
	case r.URL.Path == "/search/tracks":
		io.WriteString(w, `{"items":[`+trackJSON(5, r.URL.Query().Get("query"))+`]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"status":404,"userMessage":"not found"}`)
	}
}

func (f *fakeTidal) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeTidal) set(path string, h func(w http.ResponseWriter, r *http.Request)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override[path] = h
}

func newTestClient(t *testing.T, tokens TokenProvider, limiter Limiter) (*TidalClient, *fakeTidal) {
	t.Helper()

	fake := newFakeTidal()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := shared.DefaultConfig()
	cfg.Tidal.APIURL = srv.URL
	cfg.Sync.PageSize = 2
	cfg.Breaker.MaxFailures = 2

	if limiter == nil {
		limiter = NoopLimiter{}
	}
	client := NewTidalClient(cfg, tokens, limiter, shared.NewLogger(io.Discard), WithClientHTTP(srv.Client()))
	return client, fake
}

func TestTidalClientReads(t *testing.T) {
	ctx := context.Background()

	t.Run("ListUserPlaylists skips malformed items", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		playlists, err := client.ListUserPlaylists(ctx, 1)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(playlists) != 3 {
			t.Fatalf("expected 3 playlists, got %d", len(playlists))
		}
		if playlists[0].RemoteID != "p1" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected first playlist %+v", playlists[0])
		}

		if _, err := client.ListUserPlaylists(ctx, 1); err != nil {
			t.Fatalf("second list failed: %v", err)
		}
		if fake.count("/sessions") != 1 {
			t.Errorf("expected session profile to be cached, got %d lookups", fake.count("/sessions"))
		}
	})

	t.Run("country code from session", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		if _, err := client.ListUserPlaylists(ctx, 1); err != nil {
			t.Fatalf("list failed: %v", err)
		}

		last := fake.requests[len(fake.requests)-1]
		if last.URL.Query().Get("countryCode") != "GB" {
			t.Errorf("expected countryCode GB, got %s", last.URL.Query().Get("countryCode"))
		}
	})

	t.Run("ListPlaylistTracks pages through results", func(t *testing.T) {
		limiter := &countingLimiter{}
		client, fake := newTestClient(t, &stubTokens{token: "good"}, limiter)

		batch, err := client.ListPlaylistTracks(ctx, 1, "p1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(batch.Tracks) != 3 || batch.Tracks[2].Title != "Three" {
			t.Errorf("unexpected tracks %+v", batch.Tracks)
		}
		if fake.count("/playlists/p1/tracks") != 2 {
			t.Errorf("expected 2 pages, got %d", fake.count("/playlists/p1/tracks"))
		}
		if limiter.calls != 2 {
			t.Errorf("expected one limiter acquisition per request, got %d", limiter.calls)
		}

		first := batch.Tracks[0]
		if first.RemoteID != "1" || first.Artist != "Artist 1" || first.Album != "Album" || first.Duration != 200 {
			t.Errorf("unexpected track fields %+v", first)
		}
		if first.CoverURL != "https://resources.tidal.com/images/aa/bb/cc/640x640.jpg" {
			t.Errorf("unexpected cover url %s", first.CoverURL)
		}
	})

	t.Run("one malformed item among ten", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		var items []string
		for i := 1; i <= 10; i++ {
			if i == 4 {
				items = append(items, `{"id":4,"title":null}`)
				continue
			}
			items = append(items, trackJSON(i, fmt.Sprintf("Track %d", i)))
		}
		fake.set("/playlists/big/tracks", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"totalNumberOfItems":10,"items":[`+strings.Join(items, ",")+`]}`)
		})
		client.pageSize = 50

		batch, err := client.ListPlaylistTracks(ctx, 1, "big")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(batch.Tracks) != 9 || batch.Skipped != 1 {
			t.Errorf("expected 9 tracks and 1 skipped, got %d and %d", len(batch.Tracks), batch.Skipped)
		}
	})

	t.Run("ListFavoriteTracks unwraps items", func(t *testing.T) {
		client, _ := newTestClient(t, &stubTokens{token: "good"}, nil)

		batch, err := client.ListFavoriteTracks(ctx, 1)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(batch.Tracks) != 1 || batch.Tracks[0].RemoteID != "7" {
			t.Errorf("unexpected favorites %+v", batch.Tracks)
		}
	})

	t.Run("ListMixes", func(t *testing.T) {
		client, _ := newTestClient(t, &stubTokens{token: "good"}, nil)

		mixes, err := client.ListMixes(ctx, 1)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(mixes) != 2 || mixes[0].RemoteID != "m1" || mixes[1].RemoteID != "m2" {
			t.Errorf("unexpected mixes %+v", mixes)
		}
	})

	t.Run("custom mix predicate", func(t *testing.T) {
		client, _ := newTestClient(t, &stubTokens{token: "good"}, nil)
		client.isMix = func(p models.RemotePlaylist) bool { return p.RemoteID == "p1" }

		mixes, err := client.ListMixes(ctx, 1)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(mixes) != 1 || mixes[0].RemoteID != "p1" {
			t.Errorf("unexpected mixes %+v", mixes)
		}
	})

	t.Run("GetTrack and SearchTracks", func(t *testing.T) {
		client, _ := newTestClient(t, &stubTokens{token: "good"}, nil)

		track, err := client.GetTrack(ctx, 1, "1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if track.Title != "One" {
			t.Errorf("unexpected track %+v", track)
		}

		batch, err := client.SearchTracks(ctx, 1, "needle", 5)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(batch.Tracks) != 1 || batch.Tracks[0].Title != "needle" {
			t.Errorf("unexpected search result %+v", batch.Tracks)
		}

		if _, err := client.SearchTracks(ctx, 1, "  ", 5); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestTidalClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthenticated without session", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{tokenErr: shared.ErrUnauthenticated}, nil)

		if _, err := client.GetTrack(ctx, 1, "1"); !errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
		if fake.count("/tracks/1") != 0 {
			t.Error("no request should be sent without a session")
		}
	})

	t.Run("refreshes once on 401", func(t *testing.T) {
		tokens := &stubTokens{token: "stale", next: "good"}
		client, fake := newTestClient(t, tokens, nil)

		if _, err := client.GetTrack(ctx, 1, "1"); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if tokens.refreshes != 1 || fake.count("/tracks/1") != 2 {
			t.Errorf("expected 1 refresh and 2 requests, got %d and %d", tokens.refreshes, fake.count("/tracks/1"))
		}
	})

	t.Run("refresh failure", func(t *testing.T) {
		tokens := &stubTokens{token: "stale", refreshErr: fmt.Errorf("%w: refresh failed", shared.ErrUnauthenticated)}
		client, _ := newTestClient(t, tokens, nil)

		if _, err := client.GetTrack(ctx, 1, "1"); !errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("still 401 after refresh", func(t *testing.T) {
		tokens := &stubTokens{token: "stale", next: "also-stale"}
		client, _ := newTestClient(t, tokens, nil)

		if _, err := client.GetTrack(ctx, 1, "1"); !errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
		if tokens.refreshes != 1 {
			t.Errorf("expected a single refresh, got %d", tokens.refreshes)
		}
	})

	t.Run("status classification", func(t *testing.T) {
		tc := []struct {
			status int
			want   error
		}{
			{http.StatusNotFound, shared.ErrNotFound},
			{http.StatusBadRequest, shared.ErrRemoteRejected},
			{http.StatusForbidden, shared.ErrRemoteRejected},
			{http.StatusTooManyRequests, shared.ErrRemoteUnavailable},
			{http.StatusBadGateway, shared.ErrRemoteUnavailable},
		}

		for _, tt := range tc {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)
				fake.set("/tracks/9", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					io.WriteString(w, `{"userMessage":"nope"}`)
				})

				if _, err := client.GetTrack(ctx, 1, "9"); !errors.Is(err, tt.want) {
					t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
				}
			})
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)
		fake.set("/playlists/bad/tracks", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"items":[`)
		})

		if _, err := client.ListPlaylistTracks(ctx, 1, "bad"); !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})

	t.Run("breaker opens after repeated failures", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)
		fake.set("/tracks/5", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		for i := 0; i < 3; i++ {
			if _, err := client.GetTrack(ctx, 1, "5"); !errors.Is(err, shared.ErrRemoteUnavailable) {
				t.Fatalf("call %d: expected ErrRemoteUnavailable, got %v", i, err)
			}
		}
		if fake.count("/tracks/5") != 2 {
			t.Errorf("expected the open breaker to short-circuit the third call, got %d requests", fake.count("/tracks/5"))
		}
	})

	t.Run("rejections do not trip the breaker", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)
		fake.set("/tracks/6", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		for i := 0; i < 3; i++ {
			_, _ = client.GetTrack(ctx, 1, "6")
		}
		if fake.count("/tracks/6") != 3 {
			t.Errorf("expected every call to reach the server, got %d", fake.count("/tracks/6"))
		}
	})
}

func TestTidalClientWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("AddTracksToPlaylist", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		if err := client.AddTracksToPlaylist(ctx, 1, "p1", []string{"10", "11"}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if len(fake.forms) != 1 || !strings.Contains(fake.forms[0], "trackIds=10%2C11") || !strings.Contains(fake.forms[0], "onDupes=SKIP") {
			t.Errorf("unexpected add form %v", fake.forms)
		}
	})

	t.Run("AddTracksToPlaylist with no tracks", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		if err := client.AddTracksToPlaylist(ctx, 1, "p1", nil); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if len(fake.requests) != 0 {
			t.Error("expected no requests")
		}
	})

	t.Run("RemoveTrackFromPlaylist deletes by index", func(t *testing.T) {
		client, fake := newTestClient(t, &stubTokens{token: "good"}, nil)

		if err := client.RemoveTrackFromPlaylist(ctx, 1, "p1", "3"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		last := fake.requests[len(fake.requests)-1]
		if last.Method != http.MethodDelete || last.URL.Path != "/playlists/p1/items/2" {
			t.Errorf("unexpected delete request %s %s", last.Method, last.URL.Path)
		}
	})

	t.Run("RemoveTrackFromPlaylist missing track", func(t *testing.T) {
		client, _ := newTestClient(t, &stubTokens{token: "good"}, nil)

		if err := client.RemoveTrackFromPlaylist(ctx, 1, "p1", "99"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNameMarkerPredicate(t *testing.T) {
	isMix := NameMarkerPredicate("mix", "radio")

	tc := []struct {
		name string
		want bool
	}{
		{"My Daily Mix", true},
		{"Artist RADIO", true},
		{"mix-tape", true},
		{"Remix Collection", false},
		{"Road Trip", false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMix(models.RemotePlaylist{Name: tt.name}); got != tt.want {
				t.Errorf("isMix(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
