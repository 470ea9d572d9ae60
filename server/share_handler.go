package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"resonate/logger"
	"resonate/model"

	"github.com/gorilla/mux"
)

// newShareToken returns an opaque URL-safe token for a share link.
func newShareToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateShareHandler mints a share link for a playlist. Owner only.
func (h *APIHandler) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	var req struct {
		TTLSeconds int64 `json:"ttlSeconds"`
	}
	if r.Body != nil {
		// Body is optional; a bare POST creates a non-expiring link.
		json.NewDecoder(r.Body).Decode(&req)
	}

	playlist, access, err := h.playlistAccess(r.Context(), playlistID, userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if access != accessOwner {
		http.Error(w, "Only the owner can share a playlist", http.StatusForbidden)
		return
	}

	token, err := newShareToken()
	if err != nil {
		logger.Error("[Share] token generation failed", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	share := &model.PlaylistShare{
		Token:       token,
		PlaylistID:  playlistID,
		AccessLevel: model.PermissionView,
	}
	if req.TTLSeconds > 0 {
		expires := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		share.ExpiresAt = &expires
	}

	if err := h.playlistRepo.CreateShare(r.Context(), share); err != nil {
		logger.Error("[Share] create failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to create share link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

// RevokeShareHandler invalidates a share link. Owner only. Revoked links
// become indistinguishable from unknown ones.
func (h *APIHandler) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	playlistID, token := vars["id"], vars["token"]

	playlist, access, err := h.playlistAccess(r.Context(), playlistID, userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if access != accessOwner {
		http.Error(w, "Only the owner can revoke a share link", http.StatusForbidden)
		return
	}

	share, err := h.playlistRepo.ShareByToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if share == nil || share.PlaylistID != playlistID {
		http.Error(w, "Share link not found", http.StatusNotFound)
		return
	}

	if err := h.playlistRepo.RevokeShare(r.Context(), token); err != nil {
		logger.Error("[Share] revoke failed", logger.String("token", token), logger.ErrorField(err))
		http.Error(w, "Failed to revoke share link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// SharedPlaylistHandler resolves a share token to a read-only playlist view.
// No authentication required. Unknown and revoked tokens both yield 404;
// expired tokens yield 410.
func (h *APIHandler) SharedPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	share, err := h.playlistRepo.ShareByToken(r.Context(), token)
	if err != nil {
		logger.Error("[Share] lookup failed", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if share == nil || share.RevokedAt != nil {
		http.Error(w, "Share link not found", http.StatusNotFound)
		return
	}
	if share.ExpiresAt != nil && !share.ExpiresAt.After(time.Now()) {
		http.Error(w, "Share link expired", http.StatusGone)
		return
	}

	playlist, err := h.playlistRepo.PlaylistByID(r.Context(), share.PlaylistID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		// Playlist deleted after the link was minted.
		http.Error(w, "Share link not found", http.StatusNotFound)
		return
	}

	// Strip collaborator details from the public view.
	playlist.Collaborators = nil
	writeJSON(w, http.StatusOK, playlist)
}
