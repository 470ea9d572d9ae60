package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"resonate/db"
	"resonate/model"
)

// TrackRepository defines the interface for catalog data operations.
type TrackRepository interface {
	CreateTrack(ctx context.Context, track *model.Track) error
	TrackByID(ctx context.Context, id string) (*model.Track, error)
	TrackByStorageKey(ctx context.Context, storageKey string) (*model.Track, error)
	ListActiveTracks(ctx context.Context, skip, take int) ([]*model.Track, int, error)
	SearchTracks(ctx context.Context, q, genre, artist string, skip, take int) ([]*model.Track, int, error)
	TracksByIDs(ctx context.Context, ids []string) ([]*model.Track, error)
	GenresOfTracks(ctx context.Context, ids []string) ([]string, error)
	ActiveTracksByGenres(ctx context.Context, genres, excludeIDs []string, limit int) ([]*model.Track, error)
	UpdateCoverURL(ctx context.Context, id, coverURL string) error
	SetTrackActive(ctx context.Context, id string, active bool) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

const trackColumns = `id, title, artist, album, genre, duration_seconds, storage_key, mime_type, size_bytes, cover_url, is_active, created_at, updated_at`

func scanTrack(row interface{ Scan(...interface{}) error }) (*model.Track, error) {
	track := &model.Track{}
	var artist, album, genre, mimeType, coverURL sql.NullString
	err := row.Scan(&track.ID, &track.Title, &artist, &album, &genre, &track.DurationSeconds,
		&track.StorageKey, &mimeType, &track.SizeBytes, &coverURL, &track.IsActive,
		&track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	track.Artist = artist.String
	track.Album = album.String
	track.Genre = genre.String
	track.MimeType = mimeType.String
	track.CoverURL = coverURL.String
	return track, nil
}

// CreateTrack adds a new track to the catalog.
func (r *mysqlTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO tracks (id, title, artist, album, genre, duration_seconds, storage_key, mime_type, size_bytes, cover_url, is_active, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := r.DB.ExecContext(ctx, query, track.ID, track.Title, track.Artist, track.Album,
		track.Genre, track.DurationSeconds, track.StorageKey, track.MimeType, track.SizeBytes,
		track.CoverURL, track.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to execute CreateTrack: %w", err)
	}
	return nil
}

// TrackByID retrieves a track by its ID. Returns (nil, nil) when no track
// exists.
func (r *mysqlTrackRepository) TrackByID(ctx context.Context, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // track not found
		}
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// TrackByStorageKey retrieves a track by its storage key. Returns (nil, nil)
// when no track exists.
func (r *mysqlTrackRepository) TrackByStorageKey(ctx context.Context, storageKey string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE storage_key = ?`
	track, err := scanTrack(r.DB.QueryRowContext(ctx, query, storageKey))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan track by storage key: %w", err)
	}
	return track, nil
}

// ListActiveTracks returns a page of active tracks, newest first, plus the
// total count of active tracks.
func (r *mysqlTrackRepository) ListActiveTracks(ctx context.Context, skip, take int) ([]*model.Track, int, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE is_active = 1 ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query active tracks: %w", err)
	}
	defer rows.Close()

	tracks, err := collectTracks(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE is_active = 1`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count active tracks: %w", err)
	}

	return tracks, total, nil
}

// SearchTracks searches active tracks by title/artist substring and exact
// genre, case-insensitively, newest first.
func (r *mysqlTrackRepository) SearchTracks(ctx context.Context, q, genre, artist string, skip, take int) ([]*model.Track, int, error) {
	where := []string{"is_active = 1"}
	var args []interface{}

	if genre != "" {
		where = append(where, "LOWER(genre) = LOWER(?)")
		args = append(args, genre)
	}
	if q != "" || artist != "" {
		var or []string
		if q != "" {
			or = append(or, "LOWER(title) LIKE LOWER(?)")
			args = append(args, "%"+q+"%")
		}
		if artist != "" {
			or = append(or, "LOWER(artist) LIKE LOWER(?)")
			args = append(args, "%"+artist+"%")
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}

	clause := strings.Join(where, " AND ")

	query := `SELECT ` + trackColumns + ` FROM tracks WHERE ` + clause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, query, append(args, take, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query track search: %w", err)
	}
	defer rows.Close()

	tracks, err := collectTracks(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count track search: %w", err)
	}

	return tracks, total, nil
}

// TracksByIDs returns the active tracks among ids, in no particular order.
func (r *mysqlTrackRepository) TracksByIDs(ctx context.Context, ids []string) ([]*model.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE is_active = 1 AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.DB.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks by IDs: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// GenresOfTracks returns the distinct non-empty genres of the given tracks.
func (r *mysqlTrackRepository) GenresOfTracks(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT genre FROM tracks WHERE genre IS NOT NULL AND genre <> '' AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.DB.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// ActiveTracksByGenres returns up to limit active tracks in any of the
// genres, excluding excludeIDs.
func (r *mysqlTrackRepository) ActiveTracksByGenres(ctx context.Context, genres, excludeIDs []string, limit int) ([]*model.Track, error) {
	if len(genres) == 0 {
		return nil, nil
	}
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE is_active = 1 AND genre IN (` + placeholders(len(genres)) + `)`
	args := stringArgs(genres)
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		args = append(args, stringArgs(excludeIDs)...)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks by genres: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// UpdateCoverURL updates the cover art URL for a given track ID.
func (r *mysqlTrackRepository) UpdateCoverURL(ctx context.Context, id, coverURL string) error {
	query := `UPDATE tracks SET cover_url = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, coverURL, time.Now(), id); err != nil {
		return fmt.Errorf("failed to execute UpdateCoverURL for track %s: %w", id, err)
	}
	return nil
}

// SetTrackActive toggles a track's visibility in the catalog.
func (r *mysqlTrackRepository) SetTrackActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE tracks SET is_active = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, active, time.Now(), id); err != nil {
		return fmt.Errorf("failed to execute SetTrackActive for track %s: %w", id, err)
	}
	return nil
}

func collectTracks(rows *sql.Rows) ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during track rows iteration: %w", err)
	}
	return tracks, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(vals []string) []interface{} {
	args := make([]interface{}, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
