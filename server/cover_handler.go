package server

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"resonate/logger"
	"resonate/storage"

	"github.com/gorilla/mux"
)

const maxCoverBytes = 5 << 20 // 5 MiB

var coverContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadCoverHandler stores cover art for a track in the object store and
// points the track's coverUrl at the public cover route.
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	trackID := mux.Vars(r)["id"]

	track, err := h.trackRepo.TrackByID(r.Context(), trackID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if track == nil {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	contentType := r.Header.Get("Content-Type")
	ext, ok := coverContentTypes[contentType]
	if !ok {
		http.Error(w, "Unsupported cover content type", http.StatusUnsupportedMediaType)
		return
	}
	if r.ContentLength <= 0 || r.ContentLength > maxCoverBytes {
		http.Error(w, "Cover must be between 1 byte and 5 MiB", http.StatusRequestEntityTooLarge)
		return
	}

	key := trackID + ext
	body := io.LimitReader(r.Body, maxCoverBytes)
	if err := storage.UploadCover(r.Context(), key, body, r.ContentLength, contentType); err != nil {
		logger.Error("[Cover] upload failed", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Failed to store cover", http.StatusInternalServerError)
		return
	}

	coverURL := fmt.Sprintf("/covers/%s", key)
	if err := h.trackRepo.UpdateCoverURL(r.Context(), trackID, coverURL); err != nil {
		logger.Error("[Cover] update failed", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Failed to update track", http.StatusInternalServerError)
		return
	}
	h.trackCache.Invalidate(r.Context(), trackID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"coverUrl": coverURL})
}

// GetCoverHandler serves cover art from the object store. Covers are
// immutable per key, so they cache hard, unlike audio.
func (h *APIHandler) GetCoverHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" || strings.Contains(key, "..") || path.Base(key) != key {
		http.Error(w, "Cover not found", http.StatusNotFound)
		return
	}

	obj, contentType, err := storage.FetchCover(r.Context(), key)
	if err != nil {
		http.Error(w, "Cover not found", http.StatusNotFound)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, obj); err != nil {
		logger.Debug("[Cover] client went away mid-transfer", logger.String("key", key))
	}
}
