package server

import (
	"net/http"
	"strconv"

	"resonate/logger"
	"resonate/model"
)

const (
	defaultRecommendLimit = 20
	maxRecommendLimit     = 50
	historySampleSize     = 50
)

func parseLimit(r *http.Request) int {
	limit := defaultRecommendLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxRecommendLimit {
		limit = maxRecommendLimit
	}
	return limit
}

// TrendingHandler returns the most-played active tracks. Public.
func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	ids, err := h.historyRepo.TrendingTrackIDs(r.Context(), limit)
	if err != nil {
		logger.Error("[Recommend] trending query failed", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	tracks, err := h.tracksInOrder(r, ids)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": tracks})
}

// RecommendationsHandler suggests tracks for the caller: active tracks in
// the genres they listen to, minus what they've already played. Falls back
// to trending when the caller has no history or the genre pool runs dry.
func (h *APIHandler) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	limit := parseLimit(r)

	heardIDs, err := h.historyRepo.UserTrackIDs(r.Context(), userID, historySampleSize)
	if err != nil {
		logger.Error("[Recommend] history query failed", logger.Int64("userId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var tracks []*model.Track
	if len(heardIDs) > 0 {
		genres, err := h.trackRepo.GenresOfTracks(r.Context(), heardIDs)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if len(genres) > 0 {
			tracks, err = h.trackRepo.ActiveTracksByGenres(r.Context(), genres, heardIDs, limit)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}
	}

	if len(tracks) < limit {
		// Top up with trending tracks the user hasn't heard.
		trendingIDs, err := h.historyRepo.TrendingTrackIDs(r.Context(), limit+historySampleSize)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		seen := make(map[string]bool, len(tracks)+len(heardIDs))
		for _, t := range tracks {
			seen[t.ID] = true
		}
		for _, id := range heardIDs {
			seen[id] = true
		}
		var fill []string
		for _, id := range trendingIDs {
			if !seen[id] && len(tracks)+len(fill) < limit {
				fill = append(fill, id)
			}
		}
		more, err := h.tracksInOrder(r, fill)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		tracks = append(tracks, more...)
	}

	if tracks == nil {
		tracks = []*model.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": tracks})
}

// tracksInOrder resolves ids to active tracks preserving the input order.
func (h *APIHandler) tracksInOrder(r *http.Request, ids []string) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}
	fetched, err := h.trackRepo.TracksByIDs(r.Context(), ids)
	if err != nil {
		logger.Error("[Recommend] track fetch failed", logger.ErrorField(err))
		return nil, err
	}
	byID := make(map[string]*model.Track, len(fetched))
	for _, t := range fetched {
		byID[t.ID] = t
	}
	ordered := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok && t.IsActive {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}
