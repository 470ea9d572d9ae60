package model

import "time"

// Collaborator permission levels.
const (
	PermissionView = "VIEW"
	PermissionEdit = "EDIT"
)

// Playlist is a user-owned, optionally collaborative track list.
// Managed through GORM, unlike the raw-SQL users/tracks tables.
type Playlist struct {
	ID            string                 `json:"id" gorm:"type:char(36);primaryKey"`
	Name          string                 `json:"name" gorm:"size:255;not null"`
	OwnerID       int64                  `json:"ownerId" gorm:"index;not null"`
	Items         []PlaylistItem         `json:"items,omitempty" gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE"`
	Collaborators []PlaylistCollaborator `json:"collaborators,omitempty" gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// PlaylistItem is a track at a position within a playlist. Positions are
// dense (0..n-1) and unique per playlist.
type PlaylistItem struct {
	ID         string    `json:"id" gorm:"type:char(36);primaryKey"`
	PlaylistID string    `json:"playlistId" gorm:"type:char(36);index:idx_playlist_position,unique"`
	TrackID    string    `json:"trackId" gorm:"type:char(36);not null"`
	Position   int       `json:"position" gorm:"index:idx_playlist_position,unique"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlaylistCollaborator grants a user access to someone else's playlist.
type PlaylistCollaborator struct {
	PlaylistID string    `json:"playlistId" gorm:"type:char(36);primaryKey"`
	UserID     int64     `json:"userId" gorm:"primaryKey"`
	Permission string    `json:"permission" gorm:"size:10;not null;default:VIEW"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlaylistShare is a public share link for a playlist. Unknown and revoked
// tokens are indistinguishable to callers.
type PlaylistShare struct {
	Token       string     `json:"token" gorm:"size:64;primaryKey"`
	PlaylistID  string     `json:"playlistId" gorm:"type:char(36);index;not null"`
	AccessLevel string     `json:"accessLevel" gorm:"size:10;not null;default:VIEW"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
}
