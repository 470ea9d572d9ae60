package model

import "time"

// Track represents an audio track in the catalog.
type Track struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Album           string    `json:"album"`
	Genre           string    `json:"genre"`
	DurationSeconds int       `json:"durationSeconds"`
	StorageKey      string    `json:"-"` // relative path inside the audio root, never exposed
	MimeType        string    `json:"-"`
	SizeBytes       int64     `json:"sizeBytes"`
	CoverURL        string    `json:"coverUrl"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Page is the pagination envelope returned by list endpoints.
type Page struct {
	Skip    int  `json:"skip"`
	Take    int  `json:"take"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// TrackPage is a page of tracks.
type TrackPage struct {
	Items []*Track `json:"items"`
	Page  Page     `json:"page"`
}
