package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/jwt"

	"github.com/medilab/backend/internal/domain"
)

// --- fakes ---

// fakeJWTService implements jwt.Service for testing.
type fakeJWTService struct {
	token        string
	err          error
	parsedToken  *jwt.Token
	parseErr     error
	revoked      map[string]bool
	revokedUsers []string
}

func (f *fakeJWTService) GenerateToken(_ string, _ []string, _ time.Duration) (string, error) {
	return f.token, f.err
}
func (f *fakeJWTService) ValidateToken(string) (*jwt.Token, error) { return nil, nil }
func (f *fakeJWTService) ValidateAndParse(string) (*jwt.Token, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	if f.parsedToken != nil {
		return f.parsedToken, nil
	}
	return &jwt.Token{ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (f *fakeJWTService) RefreshToken(string) (string, error)                      { return "", nil }
func (f *fakeJWTService) RefreshTokenExtend(string, time.Duration) (string, error) { return "", nil }
func (f *fakeJWTService) RevokeToken(raw string) error {
	if f.revoked == nil {
		f.revoked = make(map[string]bool)
	}
	f.revoked[raw] = true
	return nil
}
func (f *fakeJWTService) IsTokenRevoked(raw string) bool { return f.revoked[raw] }
func (f *fakeJWTService) ParseToken(string) (*jwt.Token, error) {
	return f.ValidateAndParse("")
}
func (f *fakeJWTService) RevokeAllUserTokens(userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}
func (f *fakeJWTService) Close() {}

// capturingJWTService captures args passed to GenerateToken.
type capturingJWTService struct {
	fakeJWTService
	token          string
	capturedUserID string
	capturedRoles  []string
}

func (c *capturingJWTService) GenerateToken(userID string, roles []string, _ time.Duration) (string, error) {
	c.capturedUserID = userID
	c.capturedRoles = roles
	return c.token, nil
}

// fakeAuthRepo implements domain.AuthUserRepository over an in-memory map.
type fakeAuthRepo struct {
	users     map[string]*domain.AuthUser
	createErr error
	saveErr   error
	saved     int
}

func newFakeAuthRepo(users ...*domain.AuthUser) *fakeAuthRepo {
	m := make(map[string]*domain.AuthUser, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return &fakeAuthRepo{users: m}
}

func (f *fakeAuthRepo) Create(_ context.Context, u *domain.AuthUser) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = uint(len(f.users) + 1)
	f.users[u.Username] = u
	return nil
}

func (f *fakeAuthRepo) GetByUsername(_ context.Context, username string) (*domain.AuthUser, error) {
	u, ok := f.users[username]
	if !ok || u.Deleted {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) GetByResetToken(_ context.Context, token string) (*domain.AuthUser, error) {
	for _, u := range f.users {
		if !u.Deleted && u.ResetToken != "" && u.ResetToken == token {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAuthRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	u, ok := f.users[username]
	return ok && !u.Deleted, nil
}

func (f *fakeAuthRepo) Save(_ context.Context, u *domain.AuthUser) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved++
	f.users[u.Username] = u
	return nil
}

func (f *fakeAuthRepo) Update(_ context.Context, username string, deleted bool, mutate func(*domain.AuthUser) error) error {
	u, ok := f.users[username]
	if !ok || u.Deleted != deleted {
		return domain.ErrNotFound
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	if err := mutate(u); err != nil {
		return err
	}
	f.saved++
	if u.Username != username {
		delete(f.users, username)
		f.users[u.Username] = u
	}
	return nil
}

// --- helpers ---

func hashPasswordT(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func authUser(t *testing.T, username, password string, roles ...string) *domain.AuthUser {
	t.Helper()
	return &domain.AuthUser{
		Username:     username,
		PasswordHash: hashPasswordT(t, password),
		Roles:        roles,
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	user := authUser(t, "ozzy", "secret1234", domain.RoleAdmin, domain.RoleTechnician)
	jwtSvc := &capturingJWTService{token: "jwt-token-abc"}
	svc := NewService(jwtSvc, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	resp, err := svc.Login(context.Background(), "ozzy", "secret1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Token != "jwt-token-abc" {
		t.Errorf("token = %q; want %q", resp.Token, "jwt-token-abc")
	}
	if resp.ExpiresAt.Before(time.Now()) {
		t.Error("expected ExpiresAt in the future")
	}
	if jwtSvc.capturedUserID != "ozzy" {
		t.Errorf("token subject = %q; want username", jwtSvc.capturedUserID)
	}
	if len(jwtSvc.capturedRoles) != 2 {
		t.Errorf("token roles = %v; want both roles", jwtSvc.capturedRoles)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := authUser(t, "ozzy", "secret1234")
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	_, err := svc.Login(context.Background(), "ozzy", "wrong-password")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestLogin_UnknownUsernameIndistinguishable(t *testing.T) {
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	_, err := svc.Login(context.Background(), "ghost", "whatever123")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized for unknown username, got %v", err)
	}
	if domain.IsNotFound(err) {
		t.Fatal("login must not leak NotFound for unknown usernames")
	}
}

func TestLogin_DeletedUserRejected(t *testing.T) {
	user := authUser(t, "ozzy", "secret1234")
	user.Deleted = true
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	_, err := svc.Login(context.Background(), "ozzy", "secret1234")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized for deleted user, got %v", err)
	}
}

// --- Logout ---

func TestLogout_RevokesToken(t *testing.T) {
	jwtSvc := &fakeJWTService{}
	svc := NewService(jwtSvc, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	if err := svc.Logout(context.Background(), "raw-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !jwtSvc.IsTokenRevoked("raw-token") {
		t.Error("expected token to be revoked")
	}
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	user := authUser(t, "ozzy", "old-password")
	oldHash := user.PasswordHash
	jwtSvc := &fakeJWTService{}
	svc := NewService(jwtSvc, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	err := svc.ChangePassword(context.Background(), "ozzy", "old-password", "new-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.PasswordHash == oldHash {
		t.Error("expected password hash to change")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new-password")) != nil {
		t.Error("new password should verify against stored hash")
	}
	if len(jwtSvc.revokedUsers) != 1 || jwtSvc.revokedUsers[0] != "ozzy" {
		t.Errorf("expected all tokens for ozzy revoked, got %v", jwtSvc.revokedUsers)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	user := authUser(t, "ozzy", "old-password")
	oldHash := user.PasswordHash
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	err := svc.ChangePassword(context.Background(), "ozzy", "not-the-password", "new-password")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if user.PasswordHash != oldHash {
		t.Error("password hash must not change on failure")
	}
}

func TestChangePassword_UnknownUser(t *testing.T) {
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	err := svc.ChangePassword(context.Background(), "ghost", "a", "b")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

// --- Password reset ---

func TestInitiatePasswordReset_IssuesToken(t *testing.T) {
	user := authUser(t, "ozzy", "secret1234")
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	token, err := svc.InitiatePasswordReset(context.Background(), "ozzy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty reset token")
	}
	if user.ResetToken != token {
		t.Errorf("stored token = %q; want %q", user.ResetToken, token)
	}
	if user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(time.Now()) {
		t.Error("expected a future expiry on the reset token")
	}
}

func TestInitiatePasswordReset_UnknownUserIsGeneric(t *testing.T) {
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	_, err := svc.InitiatePasswordReset(context.Background(), "ghost")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if domain.IsNotFound(err) {
		t.Fatal("unknown usernames must not be distinguishable from other failures")
	}
}

func TestConfirmPasswordReset_Success(t *testing.T) {
	user := authUser(t, "ozzy", "old-password")
	expires := time.Now().Add(10 * time.Minute)
	user.ResetToken = "reset-token-1"
	user.ResetTokenExpiresAt = &expires

	jwtSvc := &fakeJWTService{}
	svc := NewService(jwtSvc, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	err := svc.ConfirmPasswordReset(context.Background(), "reset-token-1", "new-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new-password")) != nil {
		t.Error("new password should verify against stored hash")
	}
	if user.ResetToken != "" || user.ResetTokenExpiresAt != nil {
		t.Error("reset token must be cleared after use")
	}
	if len(jwtSvc.revokedUsers) != 1 {
		t.Errorf("expected all user tokens revoked, got %v", jwtSvc.revokedUsers)
	}
}

func TestConfirmPasswordReset_ExpiredTokenClearedAndRejected(t *testing.T) {
	user := authUser(t, "ozzy", "old-password")
	oldHash := user.PasswordHash
	expired := time.Now().Add(-time.Minute)
	user.ResetToken = "reset-token-1"
	user.ResetTokenExpiresAt = &expired

	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(user), time.Hour, 15*time.Minute)

	err := svc.ConfirmPasswordReset(context.Background(), "reset-token-1", "new-password")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if user.PasswordHash != oldHash {
		t.Error("password must not change on expired token")
	}
	if user.ResetToken != "" {
		t.Error("expired token should be cleared")
	}
}

func TestConfirmPasswordReset_UnknownToken(t *testing.T) {
	svc := NewService(&fakeJWTService{}, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	err := svc.ConfirmPasswordReset(context.Background(), "bogus", "new-password")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

// --- Verify ---

func TestVerify_ReturnsClaims(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	jwtSvc := &fakeJWTService{parsedToken: &jwt.Token{
		UserID:    "ozzy",
		Roles:     []string{domain.RoleAdmin},
		ExpiresAt: expires,
	}}
	svc := NewService(jwtSvc, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	info, err := svc.Verify(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Username != "ozzy" {
		t.Errorf("Username = %q; want ozzy", info.Username)
	}
	if len(info.Roles) != 1 || info.Roles[0] != domain.RoleAdmin {
		t.Errorf("Roles = %v; want [ADMIN]", info.Roles)
	}
	if !info.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v; want %v", info.ExpiresAt, expires)
	}
}

func TestVerify_RevokedToken(t *testing.T) {
	jwtSvc := &fakeJWTService{}
	jwtSvc.RevokeToken("raw-token")
	svc := NewService(jwtSvc, newFakeAuthRepo(), time.Hour, 15*time.Minute)

	_, err := svc.Verify(context.Background(), "raw-token")
	if !domain.IsUnauthorized(err) {
		t.Fatalf("expected Unauthorized for revoked token, got %v", err)
	}
}
