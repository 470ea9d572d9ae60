package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"resonate/logger"
	"resonate/model"
	"resonate/repository"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

// Watcher registers audio files dropped into the audio root as catalog
// rows. New rows start inactive: a curator fills in metadata and activates
// them before they become streamable.
type Watcher struct {
	tracks   repository.TrackRepository
	audioDir string
}

// NewWatcher creates a Watcher over audioDir.
func NewWatcher(tracks repository.TrackRepository, audioDir string) *Watcher {
	return &Watcher{tracks: tracks, audioDir: audioDir}
}

// Run watches the audio root until ctx is cancelled. Subdirectories are
// watched as they appear; files already present at startup are swept once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.audioDir); err != nil {
		return err
	}
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue // renamed away or already gone
			}
			if info.IsDir() {
				if err := w.addDirs(fw, event.Name); err != nil {
					logger.Warn("failed to watch new directory",
						logger.String("dir", event.Name), logger.ErrorField(err))
				}
				continue
			}
			w.register(ctx, event.Name, info.Size())
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("audio watcher error", logger.ErrorField(err))
		}
	}
}

// addDirs watches dir and every directory below it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

// sweep registers files that were already in place before the watcher
// started.
func (w *Watcher) sweep(ctx context.Context) {
	err := filepath.WalkDir(w.audioDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		w.register(ctx, path, info.Size())
		return nil
	})
	if err != nil {
		logger.Warn("audio root sweep failed", logger.ErrorField(err))
	}
}

// register creates an inactive catalog row for path unless one exists.
func (w *Watcher) register(ctx context.Context, path string, size int64) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := audioMimeTypes[ext]
	if !ok {
		return // not an audio file
	}

	rel, err := filepath.Rel(w.audioDir, path)
	if err != nil {
		logger.Warn("file outside audio root ignored", logger.String("path", path))
		return
	}
	storageKey := filepath.ToSlash(rel)

	existing, err := w.tracks.TrackByStorageKey(ctx, storageKey)
	if err != nil {
		logger.Error("failed to check storage key", logger.String("storageKey", storageKey), logger.ErrorField(err))
		return
	}
	if existing != nil {
		return
	}

	title := strings.TrimSuffix(filepath.Base(path), ext)
	track := &model.Track{
		ID:         uuid.NewString(),
		Title:      title,
		StorageKey: storageKey,
		MimeType:   mimeType,
		SizeBytes:  size,
		IsActive:   false,
	}
	if err := w.tracks.CreateTrack(ctx, track); err != nil {
		logger.Error("failed to register audio file",
			logger.String("storageKey", storageKey), logger.ErrorField(err))
		return
	}

	logger.Info("registered new audio file",
		logger.String("trackId", track.ID),
		logger.String("storageKey", storageKey),
		logger.Int64("sizeBytes", size))
}
