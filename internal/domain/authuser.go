package domain

import (
	"context"
	"time"
)

// AuthUser is the authentication-side copy of a user. It is mutated by the
// auth module itself (password operations) and by the broker consumer that
// replays user-management changes.
type AuthUser struct {
	BaseModel
	Username            string     `gorm:"size:100;not null;index" json:"username"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	Roles               []string   `gorm:"serializer:json;type:text" json:"roles"`
	ResetToken          string     `gorm:"size:255" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	Deleted             bool       `gorm:"not null;default:false;index" json:"deleted"`
}

// AuthUser uses a dedicated table name to mirror the separate store it
// represents.
func (AuthUser) TableName() string { return "auth_users" }

// AuthUserRepository defines the data access interface for auth users.
type AuthUserRepository interface {
	Create(ctx context.Context, user *AuthUser) error
	GetByUsername(ctx context.Context, username string) (*AuthUser, error)
	GetByResetToken(ctx context.Context, token string) (*AuthUser, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Save(ctx context.Context, user *AuthUser) error
	// Update loads an auth user by username, applies mutate, and saves the
	// result as one atomic unit. The deleted flag selects whether the live
	// or the soft-deleted row is loaded.
	Update(ctx context.Context, username string, deleted bool, mutate func(*AuthUser) error) error
}
