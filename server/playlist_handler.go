package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"resonate/core/collab"
	"resonate/logger"
	"resonate/model"
	"resonate/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Access levels resolved by playlistAccess. Owners can do everything; EDIT
// collaborators can change items; VIEW collaborators can only read.
const (
	accessNone  = ""
	accessView  = model.PermissionView
	accessEdit  = model.PermissionEdit
	accessOwner = "OWNER"
)

// playlistAccess loads the playlist and the caller's access level to it.
func (h *APIHandler) playlistAccess(ctx context.Context, playlistID string, userID int64) (*model.Playlist, string, error) {
	playlist, err := h.playlistRepo.PlaylistByID(ctx, playlistID)
	if err != nil || playlist == nil {
		return playlist, accessNone, err
	}
	if playlist.OwnerID == userID {
		return playlist, accessOwner, nil
	}
	collabRow, err := h.playlistRepo.Collaborator(ctx, playlistID, userID)
	if err != nil {
		return playlist, accessNone, err
	}
	if collabRow == nil {
		return playlist, accessNone, nil
	}
	return playlist, collabRow.Permission, nil
}

func canEdit(access string) bool {
	return access == accessOwner || access == accessEdit
}

// CreatePlaylistHandler creates an empty playlist owned by the caller.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Playlist name is required", http.StatusBadRequest)
		return
	}

	playlist := &model.Playlist{
		ID:      uuid.NewString(),
		Name:    req.Name,
		OwnerID: userID,
	}
	if err := h.playlistRepo.Create(r.Context(), playlist); err != nil {
		logger.Error("[Playlist] create failed", logger.ErrorField(err))
		http.Error(w, "Failed to create playlist", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, playlist)
}

// ListPlaylistsHandler lists playlists the caller owns or collaborates on.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	playlists, err := h.playlistRepo.PlaylistsForUser(r.Context(), userID)
	if err != nil {
		logger.Error("[Playlist] list failed", logger.Int64("userId", userID), logger.ErrorField(err))
		http.Error(w, "Failed to list playlists", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

// GetPlaylistHandler returns a playlist with its items.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	playlist, access, err := h.playlistAccess(r.Context(), playlistID, userID)
	if err != nil {
		logger.Error("[Playlist] access check failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
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

	writeJSON(w, http.StatusOK, playlist)
}

// RenamePlaylistHandler renames a playlist. Owner only.
func (h *APIHandler) RenamePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Playlist name is required", http.StatusBadRequest)
		return
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
		http.Error(w, "Only the owner can rename a playlist", http.StatusForbidden)
		return
	}

	if err := h.playlistRepo.Rename(r.Context(), playlistID, req.Name); err != nil {
		logger.Error("[Playlist] rename failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to rename playlist", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventRenamed, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// DeletePlaylistHandler deletes a playlist and everything hanging off it.
// Owner only.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
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
	if access != accessOwner {
		http.Error(w, "Only the owner can delete a playlist", http.StatusForbidden)
		return
	}

	if err := h.playlistRepo.Delete(r.Context(), playlistID); err != nil {
		logger.Error("[Playlist] delete failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to delete playlist", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventDeleted, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// AddPlaylistItemHandler appends a track to a playlist.
func (h *APIHandler) AddPlaylistItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	var req struct {
		TrackID string `json:"trackId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
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
	if !canEdit(access) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	track, err := h.trackRepo.TrackByID(r.Context(), req.TrackID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if track == nil || !track.IsActive {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	item := &model.PlaylistItem{
		ID:         uuid.NewString(),
		PlaylistID: playlistID,
		TrackID:    req.TrackID,
	}
	if err := h.playlistRepo.AddItem(r.Context(), item); err != nil {
		logger.Error("[Playlist] add item failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to add item", http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(item)
	h.hub.Broadcast(collab.Event{Type: collab.EventItemAdded, PlaylistID: playlistID, UserID: userID, Data: data})
	writeJSON(w, http.StatusCreated, item)
}

// RemovePlaylistItemHandler removes an item and compacts positions.
func (h *APIHandler) RemovePlaylistItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	playlistID, itemID := vars["id"], vars["itemId"]

	playlist, access, err := h.playlistAccess(r.Context(), playlistID, userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	if !canEdit(access) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.playlistRepo.RemoveItem(r.Context(), playlistID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Item not found", http.StatusNotFound)
			return
		}
		logger.Error("[Playlist] remove item failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to remove item", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventItemRemoved, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// ReorderPlaylistHandler rewrites item order from an ordered id list.
func (h *APIHandler) ReorderPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	var req struct {
		OrderedItemIDs []string `json:"orderedItemIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.OrderedItemIDs) == 0 {
		http.Error(w, "orderedItemIds is required", http.StatusBadRequest)
		return
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
	if !canEdit(access) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.playlistRepo.Reorder(r.Context(), playlistID, req.OrderedItemIDs); err != nil {
		if errors.Is(err, repository.ErrReorderMismatch) {
			http.Error(w, "orderedItemIds must match the playlist's items", http.StatusBadRequest)
			return
		}
		logger.Error("[Playlist] reorder failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to reorder playlist", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventReordered, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// AddCollaboratorHandler grants another user access to the playlist. Owner
// only; owners cannot invite themselves.
func (h *APIHandler) AddCollaboratorHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	playlistID := mux.Vars(r)["id"]

	var req struct {
		UserID     int64  `json:"userId"`
		Permission string `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if req.Permission != model.PermissionView && req.Permission != model.PermissionEdit {
		http.Error(w, "permission must be VIEW or EDIT", http.StatusBadRequest)
		return
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
		http.Error(w, "Only the owner can add collaborators", http.StatusForbidden)
		return
	}
	if req.UserID == userID {
		http.Error(w, "Owner is already a collaborator", http.StatusBadRequest)
		return
	}

	invitee, err := h.userRepo.UserByID(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if invitee == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	collabRow := &model.PlaylistCollaborator{
		PlaylistID: playlistID,
		UserID:     req.UserID,
		Permission: req.Permission,
	}
	if err := h.playlistRepo.AddCollaborator(r.Context(), collabRow); err != nil {
		logger.Error("[Playlist] add collaborator failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to add collaborator", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventCollaboratorChange, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusCreated, collabRow)
}

// RemoveCollaboratorHandler revokes a collaborator. Owner only.
func (h *APIHandler) RemoveCollaboratorHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	playlistID := vars["id"]
	collabUserID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
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
		http.Error(w, "Only the owner can remove collaborators", http.StatusForbidden)
		return
	}

	if err := h.playlistRepo.RemoveCollaborator(r.Context(), playlistID, collabUserID); err != nil {
		logger.Error("[Playlist] remove collaborator failed", logger.String("playlistId", playlistID), logger.ErrorField(err))
		http.Error(w, "Failed to remove collaborator", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(collab.Event{Type: collab.EventCollaboratorChange, PlaylistID: playlistID, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
