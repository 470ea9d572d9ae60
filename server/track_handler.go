package server

import (
	"net/http"

	"resonate/logger"
	"resonate/model"

	"github.com/gorilla/mux"
)

// GetTracksHandler lists active tracks, newest first.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	skip, take := parsePagination(r)

	tracks, total, err := h.trackRepo.ListActiveTracks(r.Context(), skip, take)
	if err != nil {
		logger.Error("[Tracks] list failed", logger.ErrorField(err))
		http.Error(w, "Failed to list tracks", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, model.TrackPage{
		Items: tracks,
		Page: model.Page{
			Skip:    skip,
			Take:    take,
			Total:   total,
			HasMore: skip+take < total,
		},
	})
}

// GetTrackHandler returns a single active track.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.trackRepo.TrackByID(r.Context(), trackID)
	if err != nil {
		logger.Error("[Tracks] lookup failed", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if track == nil || !track.IsActive {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, track)
}

// SearchHandler searches active tracks by title, artist and genre.
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	skip, take := parsePagination(r)
	q := r.URL.Query().Get("q")
	genre := r.URL.Query().Get("genre")
	artist := r.URL.Query().Get("artist")

	tracks, total, err := h.trackRepo.SearchTracks(r.Context(), q, genre, artist, skip, take)
	if err != nil {
		logger.Error("[Search] query failed", logger.String("q", q), logger.ErrorField(err))
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, model.TrackPage{
		Items: tracks,
		Page: model.Page{
			Skip:    skip,
			Take:    take,
			Total:   total,
			HasMore: skip+take < total,
		},
	})
}
