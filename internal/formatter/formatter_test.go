package formatter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tidx/internal/models"
	th "github.com/desertthunder/tidx/internal/testing"
)

func sampleExport() *models.PlaylistExport {
	remoteID := "pl-1"
	return &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          7,
			UserID:      1,
			RemoteID:    &remoteID,
			Name:        "Test Playlist",
			Description: "A test playlist",
		},
		Songs: []models.Song{
			{ID: 1, RemoteID: "101", Title: "Song One", Artist: "Artist One", Album: "Album One", Duration: 180, Available: true},
			{ID: 2, RemoteID: "102", Title: "Song Two", Artist: "Artist Two", Duration: 3725, Available: false},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Position,TIDAL ID,Title,Artist,Album,Duration,Available" {
			t.Errorf("unexpected headers: %s", lines[0])
		}
		if lines[1] != "1,101,Song One,Artist One,Album One,180,true" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if lines[2] != "2,102,Song Two,Artist Two,,3725,false" {
			t.Errorf("unexpected second row: %s", lines[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleExport(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			output := string(data)

			for _, want := range []string{
				"# Test Playlist",
				"**Description**: A test playlist",
				"**Tracks**: 2",
				"**Source**: TIDAL pl-1",
				"1. Artist One - Song One (Album One) [3:00]",
				"2. Artist Two - Song Two [1:02:05] _(unavailable)_",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("markdown missing %q:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("markdown should not reference a cover")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, _ := ExportToMarkdown(sampleExport(), "cover.jpg")
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Error("markdown missing cover reference")
			}
		})

		t.Run("aggregate and local sources", func(t *testing.T) {
			export := sampleExport()
			synthetic := models.FavoritesRemoteID
			export.Playlist.RemoteID = &synthetic
			data, _ := ExportToMarkdown(export, "")
			if !strings.Contains(string(data), "**Source**: TIDAL (aggregate)") {
				t.Errorf("expected aggregate source, got:\n%s", data)
			}

			export.Playlist.RemoteID = nil
			data, _ = ExportToMarkdown(export, "")
			if !strings.Contains(string(data), "**Source**: local") {
				t.Errorf("expected local source, got:\n%s", data)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		want := "Playlist: Test Playlist\nDescription: A test playlist\nTracks: 2\n\n" +
			"1. Artist One - Song One\n2. Artist Two - Song Two\n"
		if string(data) != want {
			t.Errorf("got:\n%s\nwant:\n%s", data, want)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleExport().Playlist)
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, `"name": "Test Playlist"`) || !strings.Contains(output, `"remote_id": "pl-1"`) {
			t.Errorf("metadata missing fields: %s", output)
		}
		if strings.Contains(output, "Song One") {
			t.Error("metadata should not contain songs")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg-bytes"))
		}))
		defer srv.Close()

		data, err := DownloadImage(srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("TransportError", func(t *testing.T) {
		transport := th.Unreachable()
		useTransport(t, transport)

		_, err := DownloadImage("https://resources.tidal.com/images/cover.jpg")
		if !errors.Is(err, th.ErrInjected) {
			t.Errorf("expected transport error, got %v", err)
		}
		if seen := transport.Seen(); len(seen) != 1 || seen[0] != "https://resources.tidal.com/images/cover.jpg" {
			t.Errorf("unexpected requests %v", seen)
		}
	})

	t.Run("ReadError", func(t *testing.T) {
		useTransport(t, th.RespondWith(http.StatusOK, th.FailingBody{}))

		_, err := DownloadImage("https://resources.tidal.com/images/cover.jpg")
		if err == nil || !strings.Contains(err.Error(), "failed to read image data") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("StubbedBody", func(t *testing.T) {
		useTransport(t, th.RespondText("png-bytes"))

		data, err := DownloadImage("https://resources.tidal.com/images/cover.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Errorf("got %q", data)
		}
	})
}

func useTransport(t *testing.T, rt http.RoundTripper) {
	t.Helper()
	previous := HTTPClient
	HTTPClient = &http.Client{Transport: rt}
	t.Cleanup(func() { HTTPClient = previous })
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			t.Chdir(t.TempDir())

			result, err := WriteCSVExport(sampleExport(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != "7_tracks.csv" || result.MetadataFile != "7_metadata.json" {
				t.Errorf("unexpected files: %+v", result)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if !strings.Contains(th.MustReadFile(t, result.TracksFile), "Song One") {
				t.Error("CSV missing song data")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom")
			result, err := WriteCSVExport(sampleExport(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != base+"_tracks.csv" {
				t.Errorf("unexpected tracks file %s", result.TracksFile)
			}
			th.AssertFileExists(t, result.MetadataFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			t.Chdir(t.TempDir())

			result, err := WriteMarkdownExport(sampleExport(), "", "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.Directory != "7" {
				t.Errorf("expected directory 7, got %s", result.Directory)
			}
			if len(result.Files) != 1 {
				t.Errorf("expected 1 file, got %d", len(result.Files))
			}
			th.AssertFileExists(t, filepath.Join("7", "README.md"))
		})

		t.Run("WithCover", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpeg-bytes"))
			}))
			defer srv.Close()

			dir := filepath.Join(t.TempDir(), "md")
			result, err := WriteMarkdownExport(sampleExport(), dir, srv.URL)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != filepath.Join(dir, "cover.jpg") {
				t.Errorf("unexpected cover path %q", result.CoverImage)
			}
			if len(result.Files) != 2 {
				t.Errorf("expected cover and README, got %v", result.Files)
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
				t.Error("README missing cover reference")
			}
		})

		t.Run("CoverFailureIsSkipped", func(t *testing.T) {
			srv := httptest.NewServer(http.NotFoundHandler())
			defer srv.Close()

			result, err := WriteMarkdownExport(sampleExport(), t.TempDir(), srv.URL)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage != "" || len(result.Files) != 1 {
				t.Errorf("expected README only, got %+v", result)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteTextExport(sampleExport(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if path != "7_tracks.txt" {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		path, err := WriteJSONExport(sampleExport(), filepath.Join(t.TempDir(), "out.json"))
		if err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}
		content := th.MustReadFile(t, path)
		if !strings.Contains(content, `"songs"`) || !strings.Contains(content, `"remote_id": "102"`) {
			t.Errorf("JSON export missing songs: %s", content)
		}
	})
}
