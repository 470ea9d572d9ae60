package repository

import (
	"context"
	"errors"
	"fmt"

	"resonate/db"
	"resonate/model"

	"gorm.io/gorm"
)

// ErrReorderMismatch is returned when a reorder request is not a
// permutation of the playlist's current items.
var ErrReorderMismatch = errors.New("reorder list does not match playlist items")

// PlaylistRepository defines the interface for playlist, collaborator and
// share-link data operations. Backed by GORM, unlike the raw-SQL catalog.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error
	PlaylistByID(ctx context.Context, id string) (*model.Playlist, error)
	PlaylistsForUser(ctx context.Context, userID int64) ([]*model.Playlist, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error

	AddItem(ctx context.Context, item *model.PlaylistItem) error
	RemoveItem(ctx context.Context, playlistID, itemID string) error
	Reorder(ctx context.Context, playlistID string, orderedItemIDs []string) error

	Collaborator(ctx context.Context, playlistID string, userID int64) (*model.PlaylistCollaborator, error)
	AddCollaborator(ctx context.Context, collab *model.PlaylistCollaborator) error
	RemoveCollaborator(ctx context.Context, playlistID string, userID int64) error

	CreateShare(ctx context.Context, share *model.PlaylistShare) error
	ShareByToken(ctx context.Context, token string) (*model.PlaylistShare, error)
	RevokeShare(ctx context.Context, token string) error
}

// gormPlaylistRepository implements PlaylistRepository on the GORM connection.
type gormPlaylistRepository struct {
	DB *gorm.DB
}

// NewGormPlaylistRepository creates a new instance of gormPlaylistRepository.
func NewGormPlaylistRepository() PlaylistRepository {
	return &gormPlaylistRepository{DB: db.GormDB}
}

func (r *gormPlaylistRepository) Create(ctx context.Context, playlist *model.Playlist) error {
	if err := r.DB.WithContext(ctx).Create(playlist).Error; err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	return nil
}

// PlaylistByID loads a playlist with its items (position order) and
// collaborators. Returns (nil, nil) when no playlist exists.
func (r *gormPlaylistRepository) PlaylistByID(ctx context.Context, id string) (*model.Playlist, error) {
	var playlist model.Playlist
	err := r.DB.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Collaborators").
		First(&playlist, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load playlist %s: %w", id, err)
	}
	return &playlist, nil
}

// PlaylistsForUser lists playlists the user owns or collaborates on.
func (r *gormPlaylistRepository) PlaylistsForUser(ctx context.Context, userID int64) ([]*model.Playlist, error) {
	var playlists []*model.Playlist
	err := r.DB.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", userID,
			r.DB.Model(&model.PlaylistCollaborator{}).Select("playlist_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists for user %d: %w", userID, err)
	}
	return playlists, nil
}

func (r *gormPlaylistRepository) Rename(ctx context.Context, id, name string) error {
	if err := r.DB.WithContext(ctx).Model(&model.Playlist{}).Where("id = ?", id).Update("name", name).Error; err != nil {
		return fmt.Errorf("failed to rename playlist %s: %w", id, err)
	}
	return nil
}

func (r *gormPlaylistRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.PlaylistItem{}, &model.PlaylistCollaborator{}, &model.PlaylistShare{}} {
			if err := tx.Where("playlist_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("failed to delete playlist children: %w", err)
			}
		}
		if err := tx.Delete(&model.Playlist{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete playlist %s: %w", id, err)
		}
		return nil
	})
}

// AddItem appends the item at the next dense position.
func (r *gormPlaylistRepository) AddItem(ctx context.Context, item *model.PlaylistItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos int
		err := tx.Model(&model.PlaylistItem{}).
			Where("playlist_id = ?", item.PlaylistID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxPos).Error
		if err != nil {
			return fmt.Errorf("failed to find max position: %w", err)
		}
		item.Position = maxPos + 1
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to add playlist item: %w", err)
		}
		return nil
	})
}

// RemoveItem deletes the item and closes the position gap it leaves.
func (r *gormPlaylistRepository) RemoveItem(ctx context.Context, playlistID, itemID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.PlaylistItem
		if err := tx.First(&item, "id = ? AND playlist_id = ?", itemID, playlistID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return fmt.Errorf("failed to load playlist item: %w", err)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to delete playlist item: %w", err)
		}
		// ORDER BY keeps the unique (playlist, position) index satisfied
		// while the shift runs row by row.
		err := tx.Exec(`UPDATE playlist_items SET position = position - 1 WHERE playlist_id = ? AND position > ? ORDER BY position ASC`,
			playlistID, item.Position).Error
		if err != nil {
			return fmt.Errorf("failed to compact positions: %w", err)
		}
		return nil
	})
}

// Reorder rewrites positions to match orderedItemIDs, which must be a
// permutation of the playlist's items.
func (r *gormPlaylistRepository) Reorder(ctx context.Context, playlistID string, orderedItemIDs []string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []model.PlaylistItem
		if err := tx.Where("playlist_id = ?", playlistID).Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load playlist items: %w", err)
		}
		if len(items) != len(orderedItemIDs) {
			return ErrReorderMismatch
		}
		existing := make(map[string]bool, len(items))
		for _, it := range items {
			existing[it.ID] = true
		}
		for _, id := range orderedItemIDs {
			if !existing[id] {
				return ErrReorderMismatch
			}
			delete(existing, id)
		}

		// Two passes: park everything on negative positions first so the
		// unique index never sees a duplicate.
		for i, id := range orderedItemIDs {
			if err := tx.Model(&model.PlaylistItem{}).Where("id = ?", id).Update("position", -(i + 1)).Error; err != nil {
				return fmt.Errorf("failed to park item position: %w", err)
			}
		}
		for i, id := range orderedItemIDs {
			if err := tx.Model(&model.PlaylistItem{}).Where("id = ?", id).Update("position", i).Error; err != nil {
				return fmt.Errorf("failed to set item position: %w", err)
			}
		}
		return nil
	})
}

// Collaborator returns the collaborator row, or (nil, nil) if the user is
// not a collaborator on the playlist.
func (r *gormPlaylistRepository) Collaborator(ctx context.Context, playlistID string, userID int64) (*model.PlaylistCollaborator, error) {
	var collab model.PlaylistCollaborator
	err := r.DB.WithContext(ctx).
		First(&collab, "playlist_id = ? AND user_id = ?", playlistID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load collaborator: %w", err)
	}
	return &collab, nil
}

func (r *gormPlaylistRepository) AddCollaborator(ctx context.Context, collab *model.PlaylistCollaborator) error {
	if err := r.DB.WithContext(ctx).Create(collab).Error; err != nil {
		return fmt.Errorf("failed to add collaborator: %w", err)
	}
	return nil
}

func (r *gormPlaylistRepository) RemoveCollaborator(ctx context.Context, playlistID string, userID int64) error {
	err := r.DB.WithContext(ctx).
		Where("playlist_id = ? AND user_id = ?", playlistID, userID).
		Delete(&model.PlaylistCollaborator{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}
	return nil
}

func (r *gormPlaylistRepository) CreateShare(ctx context.Context, share *model.PlaylistShare) error {
	if err := r.DB.WithContext(ctx).Create(share).Error; err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

// ShareByToken returns the share row, revoked or not; (nil, nil) when the
// token is unknown. Callers decide how revocation and expiry surface.
func (r *gormPlaylistRepository) ShareByToken(ctx context.Context, token string) (*model.PlaylistShare, error) {
	var share model.PlaylistShare
	err := r.DB.WithContext(ctx).First(&share, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	return &share, nil
}

func (r *gormPlaylistRepository) RevokeShare(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).Model(&model.PlaylistShare{}).
		Where("token = ?", token).
		Update("revoked_at", gorm.Expr("NOW()")).Error
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	return nil
}
