package streaming

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"resonate/logger"
	"resonate/model"
)

// TrackSource is the catalog lookup the media path depends on. A (nil, nil)
// return means the track is unknown.
type TrackSource interface {
	TrackByID(ctx context.Context, id string) (*model.Track, error)
}

// StreamServer resolves validated track ids to files under the audio root
// and serves them with single-range HTTP Range support. It holds no mutable
// state; concurrent streams of the same file need no coordination.
type StreamServer struct {
	tracks   TrackSource
	audioDir string
}

// NewStreamServer creates a StreamServer rooted at audioDir.
func NewStreamServer(tracks TrackSource, audioDir string) *StreamServer {
	return &StreamServer{tracks: tracks, audioDir: audioDir}
}

// AudioFile is a resolved, existence-checked audio file.
type AudioFile struct {
	TrackID  string
	Path     string
	Size     int64
	MimeType string
}

// Stream is a planned response: status, headers and the byte source. The
// caller owns Body and must close it whether or not the client consumed it.
type Stream struct {
	Body       io.ReadCloser
	StatusCode int
	Header     http.Header
}

// Only the single-range, suffix-optional form is supported. Anything else,
// including multi-range headers, falls back to a full 200 response.
var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d+)?$`)

// Resolve looks up trackID and maps its storage key to a file under the
// audio root. Inactive and unknown tracks are both ErrNotFound; a row whose
// file is missing on disk is distinguished in logs only, never to clients.
// The containment check runs on every resolution: the storage key is the
// last line of defense against traversal reaching the filesystem.
func (s *StreamServer) Resolve(ctx context.Context, trackID string) (*AudioFile, error) {
	track, err := s.tracks.TrackByID(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup for track %s: %w", trackID, err)
	}
	if track == nil || !track.IsActive {
		return nil, ErrNotFound
	}

	key := strings.ReplaceAll(track.StorageKey, "\\", "/")
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		logger.Warn("rejected unsafe storage key",
			logger.String("trackId", trackID),
			logger.String("storageKey", track.StorageKey))
		return nil, ErrUnsafePath
	}

	fullPath := filepath.Join(s.audioDir, filepath.FromSlash(key))
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("audio file missing for catalog track",
				logger.String("trackId", trackID),
				logger.String("storageKey", track.StorageKey))
			return nil, ErrNotFound
		}
		return nil, &StorageIOError{Op: "stat", Err: err}
	}
	if info.IsDir() {
		logger.Warn("storage key resolves to a directory",
			logger.String("trackId", trackID),
			logger.String("storageKey", track.StorageKey))
		return nil, ErrNotFound
	}

	mimeType := track.MimeType
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	return &AudioFile{
		TrackID:  trackID,
		Path:     fullPath,
		Size:     info.Size(),
		MimeType: mimeType,
	}, nil
}

// Serve opens the resolved file and plans the response for rangeHeader.
// An absent or unmatched Range header yields a 200 with the whole file; a
// matched but out-of-bounds one yields ErrInvalidRange; otherwise a 206
// limited to exactly the requested bytes. Cache-Control is no-store on
// every variant: signed URLs are short-lived and must never be cached.
func (s *StreamServer) Serve(handle *AudioFile, rangeHeader string) (*Stream, error) {
	f, err := os.Open(handle.Path)
	if err != nil {
		return nil, &StorageIOError{Op: "open", Err: err}
	}

	header := http.Header{}
	header.Set("Content-Type", handle.MimeType)
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "no-store")

	m := rangePattern.FindStringSubmatch(rangeHeader)
	if m == nil {
		// Covers both the absent header and malformed ones: degrade to
		// full content rather than erroring.
		header.Set("Content-Length", strconv.FormatInt(handle.Size, 10))
		return &Stream{Body: f, StatusCode: http.StatusOK, Header: header}, nil
	}

	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		f.Close()
		return nil, ErrInvalidRange
	}
	end := handle.Size - 1
	if m[2] != "" {
		end, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			f.Close()
			return nil, ErrInvalidRange
		}
	}

	if start >= handle.Size || end >= handle.Size || start > end {
		f.Close()
		return nil, ErrInvalidRange
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, &StorageIOError{Op: "seek", Err: err}
	}

	length := end - start + 1
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, handle.Size))

	return &Stream{
		Body:       &limitedFile{r: io.LimitReader(f, length), f: f},
		StatusCode: http.StatusPartialContent,
		Header:     header,
	}, nil
}

// limitedFile reads a bounded window of the underlying file and releases it
// on Close.
type limitedFile struct {
	r io.Reader
	f *os.File
}

func (l *limitedFile) Read(p []byte) (int, error) {
	return l.r.Read(p)
}

func (l *limitedFile) Close() error {
	return l.f.Close()
}
