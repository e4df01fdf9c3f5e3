package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/simp-lee/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/medilab/backend/internal/domain"
)

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenInfo is the result of verifying an access token.
type TokenInfo struct {
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, username, password string) (*TokenResponse, error)
	Logout(ctx context.Context, rawToken string) error
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	InitiatePasswordReset(ctx context.Context, username string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	Verify(ctx context.Context, rawToken string) (*TokenInfo, error)
}

// authService implements Service over the auth_users store.
type authService struct {
	jwtSvc        jwt.Service
	repo          domain.AuthUserRepository
	tokenExpiry   time.Duration
	resetTokenTTL time.Duration
}

// NewService creates a new auth Service.
func NewService(jwtSvc jwt.Service, repo domain.AuthUserRepository, tokenExpiry, resetTokenTTL time.Duration) Service {
	return &authService{
		jwtSvc:        jwtSvc,
		repo:          repo,
		tokenExpiry:   tokenExpiry,
		resetTokenTTL: resetTokenTTL,
	}
}

// Login authenticates by username and password and returns a signed token
// carrying the user's roles. Unknown usernames and wrong passwords produce
// the same Unauthorized error.
func (s *authService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewAppError(domain.CodeUnauthorized, "invalid credentials", nil)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "invalid credentials", nil)
	}

	token, err := s.jwtSvc.GenerateToken(user.Username, user.Roles, s.tokenExpiry)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "token generation failed", err)
	}

	return &TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenExpiry),
	}, nil
}

// Logout revokes the presented token.
func (s *authService) Logout(_ context.Context, rawToken string) error {
	if err := s.jwtSvc.RevokeToken(rawToken); err != nil {
		return domain.NewAppError(domain.CodeUnauthorized, "invalid token", err)
	}
	return nil
}

// ChangePassword verifies the current password and replaces it. All tokens
// issued to the user are revoked afterwards.
func (s *authService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.NewAppError(domain.CodeUnauthorized, "current password is incorrect", nil)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	if err := s.repo.Save(ctx, user); err != nil {
		return err
	}

	if err := s.jwtSvc.RevokeAllUserTokens(user.Username); err != nil {
		return domain.NewAppError(domain.CodeInternal, "token revocation failed", err)
	}
	return nil
}

// InitiatePasswordReset issues a single-use reset token with a limited
// lifetime and returns it for delivery to the user. Unknown usernames
// produce the same generic Unauthorized error as a failed login so the
// endpoint does not reveal which accounts exist.
func (s *authService) InitiatePasswordReset(ctx context.Context, username string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsNotFound(err) {
			return "", domain.NewAppError(domain.CodeUnauthorized, "unable to reset password", nil)
		}
		return "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.NewAppError(domain.CodeInternal, "generate reset token", err)
	}
	token := hex.EncodeToString(buf)

	expiresAt := time.Now().Add(s.resetTokenTTL)
	user.ResetToken = token
	user.ResetTokenExpiresAt = &expiresAt

	if err := s.repo.Save(ctx, user); err != nil {
		return "", err
	}
	return token, nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
// Expired tokens are rejected and cleared. All tokens issued to the user are
// revoked afterwards.
func (s *authService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	user, err := s.repo.GetByResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewAppError(domain.CodeUnauthorized, "invalid reset token", nil)
		}
		return err
	}

	if user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		user.ResetToken = ""
		user.ResetTokenExpiresAt = nil
		if err := s.repo.Save(ctx, user); err != nil {
			return err
		}
		return domain.NewAppError(domain.CodeUnauthorized, "reset token expired", nil)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExpiresAt = nil

	if err := s.repo.Save(ctx, user); err != nil {
		return err
	}

	if err := s.jwtSvc.RevokeAllUserTokens(user.Username); err != nil {
		return domain.NewAppError(domain.CodeInternal, "token revocation failed", err)
	}
	return nil
}

// Verify validates the presented token and returns its claims.
func (s *authService) Verify(_ context.Context, rawToken string) (*TokenInfo, error) {
	token, err := s.jwtSvc.ValidateAndParse(rawToken)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "invalid token", err)
	}
	if s.jwtSvc.IsTokenRevoked(rawToken) {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "token revoked", nil)
	}
	return &TokenInfo{
		Username:  token.UserID,
		Roles:     token.Roles,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.NewAppError(domain.CodeInternal, "password hashing failed", err)
	}
	return string(hash), nil
}
