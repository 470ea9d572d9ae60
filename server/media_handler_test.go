package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resonate/cache"
	"resonate/config"
	"resonate/core/collab"
	"resonate/core/streaming"
	"resonate/model"

	"github.com/gorilla/mux"
)

// stubTrackRepo serves a fixed catalog; only TrackByID matters here.
type stubTrackRepo struct {
	tracks map[string]*model.Track
}

func (s *stubTrackRepo) CreateTrack(ctx context.Context, track *model.Track) error { return nil }
func (s *stubTrackRepo) TrackByID(ctx context.Context, id string) (*model.Track, error) {
	return s.tracks[id], nil
}
func (s *stubTrackRepo) TrackByStorageKey(ctx context.Context, key string) (*model.Track, error) {
	return nil, nil
}
func (s *stubTrackRepo) ListActiveTracks(ctx context.Context, skip, take int) ([]*model.Track, int, error) {
	return nil, 0, nil
}
func (s *stubTrackRepo) SearchTracks(ctx context.Context, q, genre, artist string, skip, take int) ([]*model.Track, int, error) {
	return nil, 0, nil
}
func (s *stubTrackRepo) TracksByIDs(ctx context.Context, ids []string) ([]*model.Track, error) {
	return nil, nil
}
func (s *stubTrackRepo) GenresOfTracks(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}
func (s *stubTrackRepo) ActiveTracksByGenres(ctx context.Context, genres, excludeIDs []string, limit int) ([]*model.Track, error) {
	return nil, nil
}
func (s *stubTrackRepo) UpdateCoverURL(ctx context.Context, id, coverURL string) error { return nil }
func (s *stubTrackRepo) SetTrackActive(ctx context.Context, id string, active bool) error {
	return nil
}

const mediaTestFileSize = 2000

// newMediaTestServer builds a router with the media routes over a temp
// audio root holding one 2000-byte track.
func newMediaTestServer(t *testing.T) (*httptest.Server, *streaming.Signer) {
	t.Helper()

	dir := t.TempDir()
	content := make([]byte, mediaTestFileSize)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(dir, "song.mp3"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	repo := &stubTrackRepo{tracks: map[string]*model.Track{
		"t1": {ID: "t1", Title: "Song", StorageKey: "song.mp3", MimeType: "audio/mpeg", SizeBytes: mediaTestFileSize, IsActive: true},
	}}
	trackCache := cache.NewTrackCache(repo, nil)

	signer, err := streaming.NewSigner("media-test-secret", 60)
	if err != nil {
		t.Fatal(err)
	}
	streams := streaming.NewStreamServer(trackCache, dir)

	h := NewAPIHandler(&config.Config{}, nil, repo, nil, nil, trackCache, signer, streams, collab.NewHub())

	router := newTestRouter(h)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, signer
}

func newTestRouter(h *APIHandler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/tracks/{id}/stream", h.GetStreamURLHandler).Methods(http.MethodGet)
	router.HandleFunc("/media/{trackId}", h.MediaHandler).Methods(http.MethodGet)
	return router
}

func TestStreamURLThenMedia(t *testing.T) {
	ts, _ := newMediaTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tracks/t1/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		URL       string `json:"url"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.URL == "" || payload.ExpiresAt == "" {
		t.Fatalf("incomplete payload: %+v", payload)
	}

	// The minted URL points at the test server's own host.
	mediaResp, err := http.Get(payload.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer mediaResp.Body.Close()
	if mediaResp.StatusCode != http.StatusOK {
		t.Fatalf("media status = %d, want 200", mediaResp.StatusCode)
	}
	if got := mediaResp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := mediaResp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	body, err := io.ReadAll(mediaResp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != mediaTestFileSize {
		t.Errorf("body length = %d, want %d", len(body), mediaTestFileSize)
	}
}

func TestMediaRangeRequest(t *testing.T) {
	ts, signer := newMediaTestServer(t)
	token, _ := signer.Mint("t1")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/media/t1?token="+url.QueryEscape(token), nil)
	req.Header.Set("Range", "bytes=100-199")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 100-199/2000" {
		t.Errorf("Content-Range = %q, want bytes 100-199/2000", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 100 {
		t.Fatalf("body length = %d, want 100", len(body))
	}
	for i, b := range body {
		if want := byte((100 + i) % 251); b != want {
			t.Fatalf("byte %d = %d, want %d", i, b, want)
		}
	}
}

func TestMediaRejections(t *testing.T) {
	ts, signer := newMediaTestServer(t)
	goodToken, _ := signer.Mint("t1")

	otherSigner, err := streaming.NewSigner("some-other-secret", 60)
	if err != nil {
		t.Fatal(err)
	}
	forgedToken, _ := otherSigner.Mint("t1")

	tests := []struct {
		name       string
		path       string
		rangeHdr   string
		wantStatus int
	}{
		{
			name:       "missing token",
			path:       "/media/t1",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			path:       "/media/t1?token=not-a-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "forged token",
			path:       "/media/t1?token=" + url.QueryEscape(forgedToken),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "token for another track",
			path:       "/media/t2?token=" + url.QueryEscape(goodToken),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "range past end of file",
			path:       "/media/t1?token=" + url.QueryEscape(goodToken),
			rangeHdr:   "bytes=1999-2500",
			wantStatus: http.StatusRequestedRangeNotSatisfiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+tt.path, nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestStreamURLUnknownTrack(t *testing.T) {
	ts, _ := newMediaTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tracks/nope/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "/") && strings.Contains(string(body), ".mp3") {
		t.Error("response leaked a storage path")
	}
}
