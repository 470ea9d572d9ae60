package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"resonate/model"
)

// fakeTrackSource is an in-memory TrackSource.
type fakeTrackSource struct {
	tracks map[string]*model.Track
	err    error
}

func (f *fakeTrackSource) TrackByID(_ context.Context, id string) (*model.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks[id], nil
}

// newTestStore writes a 1000-byte file into a temp audio root and returns a
// StreamServer whose catalog knows it as track "t1".
func newTestStore(t *testing.T) (*StreamServer, []byte) {
	t.Helper()

	audioDir := t.TempDir()
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(audioDir, "t1.mp3"), content, 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	source := &fakeTrackSource{tracks: map[string]*model.Track{
		"t1":        {ID: "t1", IsActive: true, StorageKey: "t1.mp3", MimeType: "audio/mpeg"},
		"inactive":  {ID: "inactive", IsActive: false, StorageKey: "t1.mp3"},
		"dotdot":    {ID: "dotdot", IsActive: true, StorageKey: "../../etc/passwd"},
		"absolute":  {ID: "absolute", IsActive: true, StorageKey: "/etc/passwd"},
		"backslash": {ID: "backslash", IsActive: true, StorageKey: `..\..\etc\passwd`},
		"ghost":     {ID: "ghost", IsActive: true, StorageKey: "missing.mp3"},
	}}

	return NewStreamServer(source, audioDir), content
}

func TestStreamServer_Resolve(t *testing.T) {
	srv, _ := newTestStore(t)

	tests := []struct {
		name    string
		trackID string
		wantErr error
	}{
		{name: "active track resolves", trackID: "t1", wantErr: nil},
		{name: "unknown track", trackID: "nope", wantErr: ErrNotFound},
		{name: "inactive track is not found", trackID: "inactive", wantErr: ErrNotFound},
		{name: "parent traversal rejected", trackID: "dotdot", wantErr: ErrUnsafePath},
		{name: "absolute path rejected", trackID: "absolute", wantErr: ErrUnsafePath},
		{name: "backslash traversal rejected", trackID: "backslash", wantErr: ErrUnsafePath},
		{name: "row without file is not found", trackID: "ghost", wantErr: ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handle, err := srv.Resolve(context.Background(), tc.trackID)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("want success, got %v", err)
				}
				if handle.Size != 1000 {
					t.Fatalf("want size 1000, got %d", handle.Size)
				}
				if handle.MimeType != "audio/mpeg" {
					t.Fatalf("want audio/mpeg, got %s", handle.MimeType)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestStreamServer_ResolveCatalogError(t *testing.T) {
	srv := NewStreamServer(&fakeTrackSource{err: errors.New("db down")}, t.TempDir())

	_, err := srv.Resolve(context.Background(), "t1")
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	// A catalog outage is neither NotFound nor UnsafePath.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsafePath) {
		t.Fatalf("catalog error must not map to a client error, got %v", err)
	}
}

func TestStreamServer_Serve(t *testing.T) {
	srv, content := newTestStore(t)
	handle, err := srv.Resolve(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tests := []struct {
		name        string
		rangeHeader string
		wantStatus  int
		wantErr     error
		wantBody    []byte
		wantRange   string
	}{
		{
			name:       "no range returns full content",
			wantStatus: http.StatusOK,
			wantBody:   content,
		},
		{
			name:        "first hundred bytes",
			rangeHeader: "bytes=0-99",
			wantStatus:  http.StatusPartialContent,
			wantBody:    content[:100],
			wantRange:   "bytes 0-99/1000",
		},
		{
			name:        "suffix-open range",
			rangeHeader: "bytes=900-",
			wantStatus:  http.StatusPartialContent,
			wantBody:    content[900:],
			wantRange:   "bytes 900-999/1000",
		},
		{
			name:        "last valid byte",
			rangeHeader: "bytes=999-999",
			wantStatus:  http.StatusPartialContent,
			wantBody:    content[999:],
			wantRange:   "bytes 999-999/1000",
		},
		{
			name:        "end past file size",
			rangeHeader: "bytes=999-1500",
			wantErr:     ErrInvalidRange,
		},
		{
			name:        "start past file size",
			rangeHeader: "bytes=1000-1001",
			wantErr:     ErrInvalidRange,
		},
		{
			name:        "start after end",
			rangeHeader: "bytes=500-400",
			wantErr:     ErrInvalidRange,
		},
		{
			name:        "garbage range degrades to full content",
			rangeHeader: "weird-garbage",
			wantStatus:  http.StatusOK,
			wantBody:    content,
		},
		{
			name:        "multi-range degrades to full content",
			rangeHeader: "bytes=0-10,20-30",
			wantStatus:  http.StatusOK,
			wantBody:    content,
		},
		{
			name:        "negative start degrades to full content",
			rangeHeader: "bytes=-100",
			wantStatus:  http.StatusOK,
			wantBody:    content,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stream, err := srv.Serve(handle, tc.rangeHeader)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Serve: %v", err)
			}
			defer stream.Body.Close()

			if stream.StatusCode != tc.wantStatus {
				t.Fatalf("status: want %d, got %d", tc.wantStatus, stream.StatusCode)
			}

			body, err := io.ReadAll(stream.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !bytes.Equal(body, tc.wantBody) {
				t.Fatalf("body mismatch: want %d bytes, got %d bytes", len(tc.wantBody), len(body))
			}

			if got := stream.Header.Get("Content-Length"); got != strconv.Itoa(len(tc.wantBody)) {
				t.Fatalf("Content-Length: want %d, got %s", len(tc.wantBody), got)
			}
			if got := stream.Header.Get("Content-Range"); got != tc.wantRange {
				t.Fatalf("Content-Range: want %q, got %q", tc.wantRange, got)
			}
			if got := stream.Header.Get("Cache-Control"); got != "no-store" {
				t.Fatalf("Cache-Control: want no-store, got %q", got)
			}
			if got := stream.Header.Get("Accept-Ranges"); got != "bytes" {
				t.Fatalf("Accept-Ranges: want bytes, got %q", got)
			}
		})
	}
}

func TestStreamServer_ConcurrentRanges(t *testing.T) {
	srv, content := newTestStore(t)
	handle, err := srv.Resolve(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ranges := []struct {
		header string
		want   []byte
	}{
		{header: "bytes=0-499", want: content[:500]},
		{header: "bytes=500-999", want: content[500:]},
	}

	var wg sync.WaitGroup
	for _, rg := range ranges {
		rg := rg
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := srv.Serve(handle, rg.header)
			if err != nil {
				t.Errorf("Serve(%s): %v", rg.header, err)
				return
			}
			defer stream.Body.Close()
			body, err := io.ReadAll(stream.Body)
			if err != nil {
				t.Errorf("read(%s): %v", rg.header, err)
				return
			}
			if !bytes.Equal(body, rg.want) {
				t.Errorf("range %s returned wrong bytes", rg.header)
			}
		}()
	}
	wg.Wait()
}
