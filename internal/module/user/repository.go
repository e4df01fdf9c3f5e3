package user

import (
	"context"
	"errors"
	"maps"
	"strings"

	"gorm.io/gorm"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// Allowed fields for sorting in List queries.
var allowedSortFields = []string{"id", "first_name", "last_name", "username", "email", "hospital_id", "created_at", "updated_at"}

// userFilter declares the match kind per filterable field; the role filter
// runs against the JSON-serialized roles column.
var userFilter = pkg.FilterSet{Fields: []pkg.FilterField{
	{Param: "first_name", Column: "first_name", Match: pkg.MatchPartial},
	{Param: "last_name", Column: "last_name", Match: pkg.MatchPartial},
	{Param: "username", Column: "username", Match: pkg.MatchExact},
	{Param: "hospital_id", Column: "hospital_id", Match: pkg.MatchExact},
	{Param: "email", Column: "email", Match: pkg.MatchExact},
	{Param: "role", Column: "roles", Match: pkg.MatchPartial},
	{Param: "gender", Column: "gender", Match: pkg.MatchExact},
}}

// userRepository implements domain.UserRepository using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository backed by the given GORM database.
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user into the database.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID retrieves a non-deleted user by its primary key.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, false).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetDeletedByID retrieves a soft-deleted user by its primary key.
func (r *userRepository) GetDeletedByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, true).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetByUsername retrieves a non-deleted user by username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("username = ? AND deleted = ?", username, false).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetByEmail retrieves a non-deleted user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("email = ? AND deleted = ?", email, false).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// ExistsByUsername reports whether a non-deleted user holds the username.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? AND deleted = ?", username, false).
		Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// ExistsByEmail reports whether a non-deleted user holds the email.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ? AND deleted = ?", email, false).
		Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// List returns a paginated, sorted, and filtered page of users.
func (r *userRepository) List(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.User], error) {
	req = quoteRoleFilter(req)

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Scopes(userFilter.Scope(req)).
		Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var users []domain.User
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Scopes(
			userFilter.Scope(req),
			pkg.Paginate(req),
			pkg.Sort(req, allowedSortFields),
		).Find(&users).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(users, total, req), nil
}

// Save persists changes to an existing user.
func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// quoteRoleFilter rewrites the role filter value to its JSON-quoted form so
// the partial match against the serialized roles column hits whole role
// names only. The request's filter map is copied, never mutated.
func quoteRoleFilter(req domain.PageRequest) domain.PageRequest {
	v, ok := req.Filter["role"]
	if !ok || v == "" || strings.HasPrefix(v, `"`) {
		return req
	}
	filter := make(map[string]string, len(req.Filter))
	maps.Copy(filter, req.Filter)
	filter["role"] = `"` + v + `"`
	req.Filter = filter
	return req
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

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. This is needed because not all GORM dialectors translate
// driver-level errors to gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
