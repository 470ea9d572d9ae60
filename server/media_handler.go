package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"resonate/core/streaming"
	"resonate/logger"
	"resonate/metrics"

	"github.com/gorilla/mux"
)

// GetStreamURLHandler mints a short-lived signed URL for a track. Session
// auth got the caller here; the returned URL carries its own token and
// needs no session.
func (h *APIHandler) GetStreamURLHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.trackCache.TrackByID(r.Context(), trackID)
	if err != nil {
		logger.Error("[StreamURL] track lookup failed", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if track == nil || !track.IsActive {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	token, expiresAt := h.signer.Mint(trackID)
	metrics.StreamURLsMinted.Inc()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	streamURL := fmt.Sprintf("%s://%s/media/%s?token=%s", scheme, r.Host, trackID, url.QueryEscape(token))

	writeJSON(w, http.StatusOK, map[string]string{
		"url":       streamURL,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// MediaHandler serves audio bytes for a signed stream URL. The token is the
// only authentication; there is no session on this endpoint.
func (h *APIHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["trackId"]

	token := r.URL.Query().Get("token")
	if token == "" {
		metrics.TokenRejections.WithLabelValues("malformed").Inc()
		h.mediaError(w, "Missing token", http.StatusUnauthorized)
		return
	}

	tokenTrackID, err := h.signer.Validate(token)
	if err != nil {
		switch {
		case errors.Is(err, streaming.ErrBadSignature):
			metrics.TokenRejections.WithLabelValues("bad_signature").Inc()
			h.mediaError(w, "Invalid token", http.StatusUnauthorized)
		case errors.Is(err, streaming.ErrExpired):
			metrics.TokenRejections.WithLabelValues("expired").Inc()
			h.mediaError(w, "Token expired", http.StatusUnauthorized)
		default:
			metrics.TokenRejections.WithLabelValues("malformed").Inc()
			h.mediaError(w, "Invalid token", http.StatusUnauthorized)
		}
		return
	}

	// The token authorizes exactly one track; a valid token for track A
	// must not unlock track B's endpoint.
	if tokenTrackID != trackID {
		metrics.TokenRejections.WithLabelValues("mismatch").Inc()
		logger.Warn("stream token track mismatch",
			logger.String("pathTrackId", trackID),
			logger.String("tokenTrackId", tokenTrackID))
		h.mediaError(w, "Token does not match track", http.StatusUnauthorized)
		return
	}

	handle, err := h.streams.Resolve(r.Context(), trackID)
	if err != nil {
		var ioErr *streaming.StorageIOError
		switch {
		case errors.Is(err, streaming.ErrNotFound), errors.Is(err, streaming.ErrUnsafePath):
			// Deliberately identical responses: a traversal probe learns
			// nothing from the status code.
			h.mediaError(w, "Track not found", http.StatusNotFound)
		case errors.As(err, &ioErr):
			logger.Error("storage failure during resolve",
				logger.String("trackId", trackID), logger.ErrorField(err))
			h.mediaError(w, "Internal server error", http.StatusInternalServerError)
		default:
			logger.Error("track resolution failed",
				logger.String("trackId", trackID), logger.ErrorField(err))
			h.mediaError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	stream, err := h.streams.Serve(handle, r.Header.Get("Range"))
	if err != nil {
		var ioErr *streaming.StorageIOError
		switch {
		case errors.Is(err, streaming.ErrInvalidRange):
			h.mediaError(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
		case errors.As(err, &ioErr):
			logger.Error("storage failure during serve",
				logger.String("trackId", trackID), logger.ErrorField(err))
			h.mediaError(w, "Internal server error", http.StatusInternalServerError)
		default:
			logger.Error("stream planning failed",
				logger.String("trackId", trackID), logger.ErrorField(err))
			h.mediaError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	defer stream.Body.Close()

	for key, values := range stream.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(stream.StatusCode)
	metrics.StreamResponses.WithLabelValues(strconv.Itoa(stream.StatusCode)).Inc()

	written, err := io.Copy(w, stream.Body)
	metrics.StreamBytes.Add(float64(written))
	if err != nil {
		// Usually the client seeking or hanging up mid-stream; nothing to
		// send at this point, the status line is long gone.
		logger.Debug("stream copy ended early",
			logger.String("trackId", trackID),
			logger.Int64("bytesWritten", written),
			logger.ErrorField(err))
	}
}

// mediaError writes a short error message and counts the response. Never
// include storage paths or raw error text here.
func (h *APIHandler) mediaError(w http.ResponseWriter, msg string, status int) {
	metrics.StreamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	http.Error(w, msg, status)
}
