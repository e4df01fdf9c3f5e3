package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// authUserRepository implements domain.AuthUserRepository using GORM.
type authUserRepository struct {
	db *gorm.DB
}

// NewAuthUserRepository creates a new AuthUserRepository backed by the given GORM database.
func NewAuthUserRepository(db *gorm.DB) domain.AuthUserRepository {
	return &authUserRepository{db: db}
}

// Create inserts a new auth user into the database.
func (r *authUserRepository) Create(ctx context.Context, user *domain.AuthUser) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByUsername retrieves a non-deleted auth user by username.
func (r *authUserRepository) GetByUsername(ctx context.Context, username string) (*domain.AuthUser, error) {
	var user domain.AuthUser
	if err := r.db.WithContext(ctx).Where("username = ? AND deleted = ?", username, false).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetByResetToken retrieves the non-deleted auth user holding the given
// password reset token.
func (r *authUserRepository) GetByResetToken(ctx context.Context, token string) (*domain.AuthUser, error) {
	var user domain.AuthUser
	if err := r.db.WithContext(ctx).Where("reset_token = ? AND deleted = ?", token, false).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// ExistsByUsername reports whether a non-deleted auth user holds the username.
func (r *authUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.AuthUser{}).
		Where("username = ? AND deleted = ?", username, false).
		Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// Save persists changes to an existing auth user.
func (r *authUserRepository) Save(ctx context.Context, user *domain.AuthUser) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// Update applies mutate to the matching auth user inside one transaction,
// so concurrent replays of the same username cannot interleave between the
// read and the save.
func (r *authUserRepository) Update(ctx context.Context, username string, deleted bool, mutate func(*domain.AuthUser) error) error {
	return pkg.WithTx(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		var user domain.AuthUser
		if err := tx.Where("username = ? AND deleted = ?", username, deleted).First(&user).Error; err != nil {
			return mapError(err)
		}
		if err := mutate(&user); err != nil {
			return err
		}
		if err := tx.Save(&user).Error; err != nil {
			return mapError(err)
		}
		return nil
	})
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
