package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resonate/cache"
	"resonate/config"
	"resonate/core/auth"
	"resonate/core/collab"
	"resonate/core/ingest"
	"resonate/core/streaming"
	"resonate/db"
	"resonate/logger"
	"resonate/metrics"
	"resonate/model"
	"resonate/repository"
	"resonate/storage"

	"github.com/gorilla/mux"
)

// Start initializes dependencies, wires the router and runs the HTTP server
// until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	// Media delivery cannot run misconfigured; refuse to start.
	if err := cfg.ValidateStreaming(); err != nil {
		logger.Fatal("invalid streaming configuration", logger.ErrorField(err))
	}

	auth.Init(cfg.JWTSecret)

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()
	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(
		&model.Playlist{},
		&model.PlaylistItem{},
		&model.PlaylistCollaborator{},
		&model.PlaylistShare{},
		&model.ListeningHistory{},
	); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	// Redis is an accelerator, not a dependency: the track cache falls back
	// to MySQL when it is down.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, track cache disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
	}

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository()
	trackRepo := repository.NewMySQLTrackRepository()
	playlistRepo := repository.NewGormPlaylistRepository()
	historyRepo := repository.NewGormHistoryRepository()

	trackCache := cache.NewTrackCache(trackRepo, db.RedisClient)

	signer, err := streaming.NewSigner(cfg.StreamSigningSecret, cfg.StreamTTLSeconds)
	if err != nil {
		logger.Fatal("failed to build URL signer", logger.ErrorField(err))
	}
	streams := streaming.NewStreamServer(trackCache, cfg.AudioDir)

	hub := collab.NewHub()

	apiHandler := NewAPIHandler(cfg, userRepo, trackRepo, playlistRepo, historyRepo, trackCache, signer, streams, hub)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Watch the audio root and register new files as inactive tracks.
	watcher := ingest.NewWatcher(trackRepo, cfg.AudioDir)
	go func() {
		if err := watcher.Run(rootCtx); err != nil {
			logger.Error("audio ingest watcher stopped", logger.ErrorField(err))
		}
	}()

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware)

	// Auth.
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/users/me", apiHandler.AuthMiddleware(apiHandler.MeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/users/me/preferences", apiHandler.AuthMiddleware(apiHandler.UpdatePreferencesHandler)).Methods(http.MethodPut)

	// Catalog.
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/search", apiHandler.AuthMiddleware(apiHandler.SearchHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.GetTrackHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/cover", apiHandler.AuthMiddleware(apiHandler.UploadCoverHandler)).Methods(http.MethodPost)

	// Media delivery: signed short-lived URLs, then the bearer-free media
	// route that validates the token itself.
	router.HandleFunc("/api/tracks/{id}/stream", apiHandler.AuthMiddleware(apiHandler.GetStreamURLHandler)).Methods(http.MethodGet)
	router.HandleFunc("/media/{trackId}", apiHandler.MediaHandler).Methods(http.MethodGet, http.MethodHead)

	// Playlists.
	router.HandleFunc("/api/playlists", apiHandler.AuthMiddleware(apiHandler.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists", apiHandler.AuthMiddleware(apiHandler.ListPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", apiHandler.AuthMiddleware(apiHandler.GetPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", apiHandler.AuthMiddleware(apiHandler.RenamePlaylistHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{id}", apiHandler.AuthMiddleware(apiHandler.DeletePlaylistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/items", apiHandler.AuthMiddleware(apiHandler.AddPlaylistItemHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}/items/{itemId}", apiHandler.AuthMiddleware(apiHandler.RemovePlaylistItemHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/order", apiHandler.AuthMiddleware(apiHandler.ReorderPlaylistHandler)).Methods(http.MethodPut)

	// Collaboration.
	router.HandleFunc("/api/playlists/{id}/collaborators", apiHandler.AuthMiddleware(apiHandler.AddCollaboratorHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}/collaborators/{userId}", apiHandler.AuthMiddleware(apiHandler.RemoveCollaboratorHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/events", apiHandler.AuthMiddleware(apiHandler.CollabSocketHandler)).Methods(http.MethodGet)

	// Share links. Resolution is public.
	router.HandleFunc("/api/playlists/{id}/shares", apiHandler.AuthMiddleware(apiHandler.CreateShareHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}/shares/{token}", apiHandler.AuthMiddleware(apiHandler.RevokeShareHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/shared/{token}", apiHandler.SharedPlaylistHandler).Methods(http.MethodGet)

	// Listening history and recommendations.
	router.HandleFunc("/api/playback/events", apiHandler.AuthMiddleware(apiHandler.PlaybackEventHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/recommendations/trending", apiHandler.TrendingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/recommendations/personal", apiHandler.AuthMiddleware(apiHandler.RecommendationsHandler)).Methods(http.MethodGet)

	// Cover art, served from the object store.
	router.HandleFunc("/covers/{key}", apiHandler.GetCoverHandler).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long enough for a full track download
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown did not finish cleanly", logger.ErrorField(err))
	}
}

// corsMiddleware allows browser playback from any origin. Range must be an
// allowed request header and Content-Range an exposed response header or
// seeking breaks in browsers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware counts requests per method and route template.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route).Inc()
	})
}
