package server

import (
	"net/http"

	"resonate/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CollabSocketHandler upgrades the connection and subscribes the caller to
// live events for one playlist. Requires the same access as reading the
// playlist over HTTP.
func (h *APIHandler) CollabSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	playlist, access, err := h.playlistAccess(r.Context(), playlistID, userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if access == accessNone {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[Collab] websocket upgrade failed", logger.ErrorField(err))
		return
	}

	h.hub.Subscribe(conn, playlistID, userID)
}
