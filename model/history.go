package model

import "time"

// Playback event types reported by the client.
const (
	PlaybackStart    = "START"
	PlaybackProgress = "PROGRESS"
	PlaybackPause    = "PAUSE"
	PlaybackSeek     = "SEEK"
	PlaybackEnd      = "END"
)

// ListeningHistory accumulates per-user playback state for a track. One row
// per (user, track); recommendations are computed from these rows.
type ListeningHistory struct {
	UserID         int64     `json:"userId" gorm:"primaryKey"`
	TrackID        string    `json:"trackId" gorm:"type:char(36);primaryKey"`
	LastPositionMs int       `json:"lastPositionMs"`
	PlayCount      int       `json:"playCount"`
	CompletedCount int       `json:"completedCount"`
	LastPlayedAt   time.Time `json:"lastPlayedAt"`
}

// PlaybackEvent is the client-reported playback signal.
type PlaybackEvent struct {
	TrackID    string `json:"trackId"`
	Type       string `json:"type"`
	PositionMs int    `json:"positionMs"`
}
