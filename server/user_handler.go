package server

import (
	"encoding/json"
	"net/http"

	"resonate/logger"
)

// MeHandler returns the authenticated user's profile.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.userRepo.UserByID(r.Context(), userID)
	if err != nil {
		logger.Error("[Me] user lookup failed", logger.Int64("userId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	resp := map[string]interface{}{
		"id":          user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"createdAt":   user.CreatedAt,
	}
	if user.Preferences.Valid {
		resp["preferences"] = json.RawMessage(user.Preferences.String)
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdatePreferencesHandler replaces the user's preferences blob.
func (h *APIHandler) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var prefs json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "Preferences must be valid JSON", http.StatusBadRequest)
		return
	}

	if err := h.userRepo.UpdatePreferences(r.Context(), userID, string(prefs)); err != nil {
		logger.Error("[Preferences] update failed", logger.Int64("userId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
