package repository

import (
	"context"
	"fmt"
	"time"

	"resonate/db"
	"resonate/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository records playback events and answers the aggregate
// queries recommendations are built from.
type HistoryRepository interface {
	RecordEvent(ctx context.Context, userID int64, event *model.PlaybackEvent) error
	TrendingTrackIDs(ctx context.Context, limit int) ([]string, error)
	UserTrackIDs(ctx context.Context, userID int64, limit int) ([]string, error)
}

// gormHistoryRepository implements HistoryRepository on the GORM connection.
type gormHistoryRepository struct {
	DB *gorm.DB
}

// NewGormHistoryRepository creates a new instance of gormHistoryRepository.
func NewGormHistoryRepository() HistoryRepository {
	return &gormHistoryRepository{DB: db.GormDB}
}

// RecordEvent upserts the (user, track) history row for a playback event.
// START bumps the play count, progress-like events update the position,
// END resets the position and bumps the completed count.
func (r *gormHistoryRepository) RecordEvent(ctx context.Context, userID int64, event *model.PlaybackEvent) error {
	now := time.Now()
	pos := event.PositionMs
	if pos < 0 {
		pos = 0
	}

	row := model.ListeningHistory{
		UserID:         userID,
		TrackID:        event.TrackID,
		LastPositionMs: pos,
		LastPlayedAt:   now,
	}

	var assignments map[string]interface{}
	switch event.Type {
	case model.PlaybackStart:
		row.PlayCount = 1
		assignments = map[string]interface{}{
			"play_count":       gorm.Expr("play_count + 1"),
			"last_position_ms": pos,
			"last_played_at":   now,
		}
	case model.PlaybackProgress, model.PlaybackPause, model.PlaybackSeek:
		assignments = map[string]interface{}{
			"last_position_ms": pos,
			"last_played_at":   now,
		}
	case model.PlaybackEnd:
		row.LastPositionMs = 0
		row.CompletedCount = 1
		assignments = map[string]interface{}{
			"last_position_ms": 0, // completed, next play starts over
			"completed_count":  gorm.Expr("completed_count + 1"),
			"last_played_at":   now,
		}
	default:
		return fmt.Errorf("unknown playback event type %q", event.Type)
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "track_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record playback event: %w", err)
	}
	return nil
}

// TrendingTrackIDs returns track ids ordered by global play count.
func (r *gormHistoryRepository) TrendingTrackIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.ListeningHistory{}).
		Select("track_id").
		Group("track_id").
		Order("SUM(play_count) DESC").
		Limit(limit).
		Pluck("track_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trending tracks: %w", err)
	}
	return ids, nil
}

// UserTrackIDs returns the tracks the user has listened to, most recent
// first.
func (r *gormHistoryRepository) UserTrackIDs(ctx context.Context, userID int64, limit int) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.ListeningHistory{}).
		Select("track_id").
		Where("user_id = ?", userID).
		Order("last_played_at DESC").
		Limit(limit).
		Pluck("track_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query user history: %w", err)
	}
	return ids, nil
}
