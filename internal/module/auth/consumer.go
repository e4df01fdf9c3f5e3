package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
)

// UserEventHandlers replays user-management notifications onto the
// auth_users store so authentication stays in sync with user administration.
type UserEventHandlers struct {
	repo   domain.AuthUserRepository
	logger *slog.Logger
}

// NewUserEventHandlers creates handlers bound to the given repository.
func NewUserEventHandlers(repo domain.AuthUserRepository, logger *slog.Logger) *UserEventHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserEventHandlers{repo: repo, logger: logger}
}

// HandleCreated registers a new auth user. Replays of an already registered
// username are skipped, which makes redeliveries harmless.
func (h *UserEventHandlers) HandleCreated(ctx context.Context, body []byte) error {
	var event messaging.UserCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user created event", err)
	}

	exists, err := h.repo.ExistsByUsername(ctx, event.Username)
	if err != nil {
		return err
	}
	if exists {
		h.logger.Warn("auth user already exists, skipping create",
			slog.String("username", event.Username))
		return nil
	}

	hash, err := hashPassword(event.Password)
	if err != nil {
		return err
	}

	return h.repo.Create(ctx, &domain.AuthUser{
		Username:     event.Username,
		PasswordHash: hash,
		Roles:        event.Roles,
	})
}

// HandleUsernameChanged renames an auth user.
func (h *UserEventHandlers) HandleUsernameChanged(ctx context.Context, body []byte) error {
	var event messaging.UserUpdatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user updated event", err)
	}

	return h.repo.Update(ctx, event.OldUsername, false, func(user *domain.AuthUser) error {
		user.Username = event.NewUsername
		return nil
	})
}

// HandleDeleted soft-deletes an auth user.
func (h *UserEventHandlers) HandleDeleted(ctx context.Context, body []byte) error {
	var event messaging.UserDeletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user deleted event", err)
	}

	return h.repo.Update(ctx, event.Username, false, func(user *domain.AuthUser) error {
		user.Deleted = true
		return nil
	})
}

// HandleRestored restores a soft-deleted auth user.
func (h *UserEventHandlers) HandleRestored(ctx context.Context, body []byte) error {
	var event messaging.UserRestoredEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user restored event", err)
	}

	return h.repo.Update(ctx, event.Username, true, func(user *domain.AuthUser) error {
		user.Deleted = false
		return nil
	})
}

// HandleRoleAdded grants a role to an auth user. Replays of an already
// granted role are skipped.
func (h *UserEventHandlers) HandleRoleAdded(ctx context.Context, body []byte) error {
	var event messaging.UserRoleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user role event", err)
	}

	return h.repo.Update(ctx, event.Username, false, func(user *domain.AuthUser) error {
		if slices.Contains(user.Roles, event.Role) {
			return nil
		}
		user.Roles = append(user.Roles, event.Role)
		return nil
	})
}

// HandleRoleRemoved revokes a role from an auth user.
func (h *UserEventHandlers) HandleRoleRemoved(ctx context.Context, body []byte) error {
	var event messaging.UserRoleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.NewAppError(domain.CodeValidation, "malformed user role event", err)
	}

	return h.repo.Update(ctx, event.Username, false, func(user *domain.AuthUser) error {
		roles := user.Roles[:0]
		for _, r := range user.Roles {
			if r != event.Role {
				roles = append(roles, r)
			}
		}
		user.Roles = roles
		return nil
	})
}
