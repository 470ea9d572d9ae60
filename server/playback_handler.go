package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"resonate/logger"
	"resonate/model"
)

// PlaybackEventHandler records a client playback event into listening
// history. Recording is fire-and-forget: the response never waits on the
// write and never surfaces its failure, so a history outage cannot break
// playback UX. This is the one place that pattern is allowed; the
// streaming core is always awaited.
func (h *APIHandler) PlaybackEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event model.PlaybackEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if event.TrackID == "" || event.Type == "" {
		// Silently accept junk rather than interrupting the player.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.historyRepo.RecordEvent(ctx, userID, &event); err != nil {
			logger.Warn("failed to record playback event",
				logger.Int64("userId", userID),
				logger.String("trackId", event.TrackID),
				logger.String("type", event.Type),
				logger.ErrorField(err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
