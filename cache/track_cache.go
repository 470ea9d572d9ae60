package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resonate/logger"
	"resonate/model"
	"resonate/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Metadata TTL is deliberately short: a deactivated track must stop
// resolving within the lifetime of a typical signed URL.
const trackMetaTTL = 30 * time.Second

// TrackCache caches catalog metadata in Redis in front of a
// TrackRepository. It implements streaming.TrackSource for the media path,
// where player seeks hit the same track many times per minute.
type TrackCache struct {
	repo   repository.TrackRepository
	client *redis.Client
	group  singleflight.Group
}

// NewTrackCache creates a TrackCache. The client may be nil, in which case
// every lookup goes to the repository.
func NewTrackCache(repo repository.TrackRepository, client *redis.Client) *TrackCache {
	return &TrackCache{repo: repo, client: client}
}

// cachedTrack mirrors model.Track with every field serialized; the model's
// own JSON shape hides storageKey and mimeType from API clients, but the
// cache needs them.
type cachedTrack struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Album           string    `json:"album"`
	Genre           string    `json:"genre"`
	DurationSeconds int       `json:"durationSeconds"`
	StorageKey      string    `json:"storageKey"`
	MimeType        string    `json:"mimeType"`
	SizeBytes       int64     `json:"sizeBytes"`
	CoverURL        string    `json:"coverUrl"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func trackMetaKey(id string) string {
	return fmt.Sprintf("track:meta:%s", id)
}

// TrackByID returns the cached track, falling back to the repository.
// Concurrent misses for the same id are collapsed into one lookup.
// Returns (nil, nil) when the track is unknown.
func (c *TrackCache) TrackByID(ctx context.Context, id string) (*model.Track, error) {
	if c.client == nil {
		return c.repo.TrackByID(ctx, id)
	}

	key := trackMetaKey(id)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var ct cachedTrack
		if err := json.Unmarshal(data, &ct); err == nil {
			return ct.toModel(), nil
		}
		// Corrupt entry: fall through to the repository and rewrite it.
		logger.Warn("dropping corrupt track cache entry", logger.String("trackId", id))
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not take streaming down with it.
		logger.Warn("track cache read failed", logger.String("trackId", id), logger.ErrorField(err))
		return c.repo.TrackByID(ctx, id)
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		track, err := c.repo.TrackByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if track != nil {
			if payload, err := json.Marshal(fromModel(track)); err == nil {
				if err := c.client.Set(ctx, key, payload, trackMetaTTL).Err(); err != nil {
					logger.Warn("track cache write failed", logger.String("trackId", id), logger.ErrorField(err))
				}
			}
		}
		return track, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Track), nil
}

// Invalidate drops the cached entry after a catalog mutation.
func (c *TrackCache) Invalidate(ctx context.Context, id string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, trackMetaKey(id)).Err(); err != nil {
		logger.Warn("track cache invalidation failed", logger.String("trackId", id), logger.ErrorField(err))
	}
}

func (ct *cachedTrack) toModel() *model.Track {
	return &model.Track{
		ID:              ct.ID,
		Title:           ct.Title,
		Artist:          ct.Artist,
		Album:           ct.Album,
		Genre:           ct.Genre,
		DurationSeconds: ct.DurationSeconds,
		StorageKey:      ct.StorageKey,
		MimeType:        ct.MimeType,
		SizeBytes:       ct.SizeBytes,
		CoverURL:        ct.CoverURL,
		IsActive:        ct.IsActive,
		CreatedAt:       ct.CreatedAt,
		UpdatedAt:       ct.UpdatedAt,
	}
}

func fromModel(t *model.Track) *cachedTrack {
	return &cachedTrack{
		ID:              t.ID,
		Title:           t.Title,
		Artist:          t.Artist,
		Album:           t.Album,
		Genre:           t.Genre,
		DurationSeconds: t.DurationSeconds,
		StorageKey:      t.StorageKey,
		MimeType:        t.MimeType,
		SizeBytes:       t.SizeBytes,
		CoverURL:        t.CoverURL,
		IsActive:        t.IsActive,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
