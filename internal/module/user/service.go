package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
)

// RoutingKeys names the routing key used for each published user operation.
// The values come from configuration; the pipeline never reads process-wide
// state.
type RoutingKeys struct {
	Create     string
	Update     string
	Delete     string
	Restore    string
	AddRole    string
	RemoveRole string
}

// userService implements domain.UserService. Every write follows the same
// ordering: validate against the store, mutate the loaded candidate in
// memory, publish the change notification, and only then persist. A failed
// publish aborts the operation before the save, so a change whose
// notification was lost never reaches the store.
type userService struct {
	repo      domain.UserRepository
	publisher messaging.Publisher
	keys      RoutingKeys
}

// NewUserService creates a new UserService with the given repository,
// publisher, and routing key configuration.
func NewUserService(repo domain.UserRepository, publisher messaging.Publisher, keys RoutingKeys) domain.UserService {
	return &userService{repo: repo, publisher: publisher, keys: keys}
}

// GetUser retrieves a non-deleted user by ID.
func (s *userService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetCurrentUser retrieves a non-deleted user by username.
func (s *userService) GetCurrentUser(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// GetUsernameByEmail returns the username registered to the given email.
func (s *userService) GetUsernameByEmail(ctx context.Context, email string) (string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// ListUsers returns a paginated list of users.
func (s *userService) ListUsers(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.User], error) {
	return s.repo.List(ctx, req)
}

// CreateUser validates uniqueness among non-deleted rows, publishes the
// creation notification, and persists the new user. The plaintext password
// travels only in the notification so the auth store can hash its own copy.
func (s *userService) CreateUser(ctx context.Context, user *domain.User, password string) (*domain.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewAppError(domain.CodeAlreadyExists, fmt.Sprintf("username %q is already taken", user.Username), nil)
	}

	taken, err = s.repo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewAppError(domain.CodeAlreadyExists, fmt.Sprintf("email %q is already taken", user.Email), nil)
	}

	user.Deleted = false

	if err := s.notify(ctx, s.keys.Create, messaging.UserCreatedEvent{
		Username: user.Username,
		Password: password,
		Email:    user.Email,
		Roles:    user.Roles,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies a partial update to the user with the given ID.
func (s *userService) UpdateUser(ctx context.Context, id uint, upd domain.UserUpdate) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, user, upd)
}

// UpdateCurrentUser applies a partial update to the user with the given username.
func (s *userService) UpdateCurrentUser(ctx context.Context, username string, upd domain.UserUpdate) (*domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, user, upd)
}

// applyUpdate mutates only the changed fields on the loaded candidate. A
// username change is the only update other services care about, so the
// notification is published inside that branch — before the save, like
// every other operation.
func (s *userService) applyUpdate(ctx context.Context, user *domain.User, upd domain.UserUpdate) (*domain.User, error) {
	oldUsername := user.Username

	if upd.Email != nil && *upd.Email != user.Email {
		taken, err := s.repo.ExistsByEmail(ctx, *upd.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.NewAppError(domain.CodeAlreadyExists, "email is already taken", nil)
		}
		user.Email = *upd.Email
	}
	if upd.FirstName != nil && *upd.FirstName != user.FirstName {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil && *upd.LastName != user.LastName {
		user.LastName = *upd.LastName
	}
	if upd.HospitalID != nil && *upd.HospitalID != user.HospitalID {
		user.HospitalID = *upd.HospitalID
	}
	if upd.Gender != nil && *upd.Gender != user.Gender {
		user.Gender = *upd.Gender
	}
	if upd.Username != nil && *upd.Username != user.Username {
		taken, err := s.repo.ExistsByUsername(ctx, *upd.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.NewAppError(domain.CodeAlreadyExists, "username is taken", nil)
		}
		user.Username = *upd.Username

		if err := s.notify(ctx, s.keys.Update, messaging.UserUpdatedEvent{
			OldUsername: oldUsername,
			NewUsername: user.Username,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser soft-deletes a user and notifies downstream services.
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	user.Deleted = true

	if err := s.notify(ctx, s.keys.Delete, messaging.UserDeletedEvent{Username: user.Username}); err != nil {
		return err
	}

	return s.repo.Save(ctx, user)
}

// RestoreUser restores a soft-deleted user and notifies downstream services.
func (s *userService) RestoreUser(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.repo.GetDeletedByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Deleted = false

	if err := s.notify(ctx, s.keys.Restore, messaging.UserRestoredEvent{Username: user.Username}); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AddRole appends a role to the user's role set.
func (s *userService) AddRole(ctx context.Context, id uint, role string) (*domain.User, error) {
	if !domain.ValidRole(role) {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown role %q", role), nil)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if domain.HasRole(user.Roles, role) {
		return nil, domain.NewAppError(domain.CodeInvalidState, fmt.Sprintf("user already has role %q", role), nil)
	}

	user.Roles = append(user.Roles, role)

	if err := s.notify(ctx, s.keys.AddRole, messaging.UserRoleEvent{Username: user.Username, Role: role}); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveRole removes a role from the user's role set. A user always keeps
// at least one role.
func (s *userService) RemoveRole(ctx context.Context, id uint, role string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(user.Roles) <= 1 {
		return nil, domain.NewAppError(domain.CodeInvalidState, "cannot remove role: user must have at least one role", nil)
	}
	if !domain.HasRole(user.Roles, role) {
		return nil, domain.NewAppError(domain.CodeInvalidState, fmt.Sprintf("user does not own role %q", role), nil)
	}

	roles := make([]string, 0, len(user.Roles)-1)
	for _, r := range user.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	user.Roles = roles

	if err := s.notify(ctx, s.keys.RemoveRole, messaging.UserRoleEvent{Username: user.Username, Role: role}); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// notify publishes one change notification, wrapping failures in the
// notification error kind so the boundary maps them distinctly.
func (s *userService) notify(ctx context.Context, routingKey string, payload any) error {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		return domain.NewAppError(domain.CodeNotification, "failed to send notification", err)
	}
	return nil
}

// validateUser checks the fields required on creation.
func validateUser(user *domain.User) error {
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)

	if user.Username == "" {
		return domain.NewAppError(domain.CodeValidation, "username is required", nil)
	}
	if utf8.RuneCountInString(user.Username) > 100 {
		return domain.NewAppError(domain.CodeValidation, "username must be at most 100 characters", nil)
	}
	if user.Email == "" {
		return domain.NewAppError(domain.CodeValidation, "email is required", nil)
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return domain.NewAppError(domain.CodeValidation, "email must be a valid email address", nil)
	}
	if len(user.Roles) == 0 {
		return domain.NewAppError(domain.CodeValidation, "at least one role is required", nil)
	}
	for _, r := range user.Roles {
		if !domain.ValidRole(r) {
			return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown role %q", r), nil)
		}
	}
	return nil
}
