package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"resonate/cache"
	"resonate/config"
	"resonate/core/collab"
	"resonate/core/streaming"
	"resonate/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	cfg          *config.Config
	userRepo     repository.UserRepository
	trackRepo    repository.TrackRepository
	playlistRepo repository.PlaylistRepository
	historyRepo  repository.HistoryRepository
	trackCache   *cache.TrackCache
	signer       *streaming.Signer
	streams      *streaming.StreamServer
	hub          *collab.Hub
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	playlistRepo repository.PlaylistRepository,
	historyRepo repository.HistoryRepository,
	trackCache *cache.TrackCache,
	signer *streaming.Signer,
	streams *streaming.StreamServer,
	hub *collab.Hub,
) *APIHandler {
	return &APIHandler{
		cfg:          cfg,
		userRepo:     userRepo,
		trackRepo:    trackRepo,
		playlistRepo: playlistRepo,
		historyRepo:  historyRepo,
		trackCache:   trackCache,
		signer:       signer,
		streams:      streams,
		hub:          hub,
	}
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value("userID").(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetEmailFromContext extracts the user email from the request context.
func GetEmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value("email").(string)
	if !ok {
		return "", fmt.Errorf("email not found in context")
	}
	return email, nil
}

// parsePagination reads skip/take query parameters with defaults.
func parsePagination(r *http.Request) (skip, take int) {
	skip, take = 0, 20
	if v := r.URL.Query().Get("skip"); v != "" {
		fmt.Sscanf(v, "%d", &skip)
	}
	if v := r.URL.Query().Get("take"); v != "" {
		fmt.Sscanf(v, "%d", &take)
	}
	if skip < 0 {
		skip = 0
	}
	if take <= 0 || take > 100 {
		take = 20
	}
	return skip, take
}
