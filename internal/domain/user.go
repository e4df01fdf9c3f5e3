package domain

import (
	"context"
	"slices"
)

// Known user roles.
const (
	RoleAdmin      = "ADMIN"
	RoleTechnician = "TECHNICIAN"
	RoleSecretary  = "SECRETARY"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTechnician, RoleSecretary:
		return true
	}
	return false
}

// HasRole reports whether role is present in roles.
func HasRole(roles []string, role string) bool {
	return slices.Contains(roles, role)
}

// User is a hospital staff member managed by the user module.
// Username and email are unique among non-deleted rows only, so a deleted
// user's identifiers can be reused.
type User struct {
	BaseModel
	FirstName  string   `gorm:"size:100;not null" json:"first_name"`
	LastName   string   `gorm:"size:100;not null" json:"last_name"`
	Username   string   `gorm:"size:100;not null;index" json:"username"`
	Email      string   `gorm:"size:255;not null;index" json:"email"`
	HospitalID string   `gorm:"size:50" json:"hospital_id"`
	Gender     string   `gorm:"size:20" json:"gender"`
	Roles      []string `gorm:"serializer:json;type:text" json:"roles"`
	Deleted    bool     `gorm:"not null;default:false;index" json:"deleted"`
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	FirstName  *string
	LastName   *string
	Username   *string
	Email      *string
	HospitalID *string
	Gender     *string
}

// UserRepository defines the data access interface for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	// GetByID returns the non-deleted user with the given ID.
	GetByID(ctx context.Context, id uint) (*User, error)
	// GetDeletedByID returns the user with the given ID only if it is soft-deleted.
	GetDeletedByID(ctx context.Context, id uint) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ExistsByUsername reports whether a non-deleted user holds the username.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// ExistsByEmail reports whether a non-deleted user holds the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, req PageRequest) (*PageResult[User], error)
	Save(ctx context.Context, user *User) error
}

// UserService defines the business logic interface for users.
type UserService interface {
	GetUser(ctx context.Context, id uint) (*User, error)
	GetCurrentUser(ctx context.Context, username string) (*User, error)
	GetUsernameByEmail(ctx context.Context, email string) (string, error)
	ListUsers(ctx context.Context, req PageRequest) (*PageResult[User], error)
	CreateUser(ctx context.Context, user *User, password string) (*User, error)
	UpdateUser(ctx context.Context, id uint, upd UserUpdate) (*User, error)
	UpdateCurrentUser(ctx context.Context, username string, upd UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id uint) error
	RestoreUser(ctx context.Context, id uint) (*User, error)
	AddRole(ctx context.Context, id uint, role string) (*User, error)
	RemoveRole(ctx context.Context, id uint, role string) (*User, error)
}
