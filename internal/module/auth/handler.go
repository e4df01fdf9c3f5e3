package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/middleware"
	"github.com/medilab/backend/internal/pkg"
)

// AuthHandler handles REST API requests for authentication.
type AuthHandler struct {
	svc Service
}

// NewHandler creates a new AuthHandler with the given service.
func NewHandler(svc Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	tokenResp, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, tokenResp)
}

// Logout handles POST /api/v1/auth/logout. It revokes the token the request
// was authenticated with.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := middleware.Token(c)
	if raw == "" {
		pkg.Error(c, domain.NewAppError(domain.CodeUnauthorized, "missing bearer token", nil))
		return
	}

	if err := h.svc.Logout(c.Request.Context(), raw); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"logged_out": true})
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	username := middleware.Username(c)
	if username == "" {
		pkg.Error(c, domain.NewAppError(domain.CodeUnauthorized, "not authenticated", nil))
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"changed": true})
}

// ResetPassword handles POST /api/v1/auth/reset-password. The issued reset
// token is returned in the response; delivering it to the user is the
// caller's concern.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	token, err := h.svc.InitiatePasswordReset(c.Request.Context(), req.Username)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"reset_token": token})
}

// ConfirmResetPassword handles POST /api/v1/auth/reset-password/confirm.
func (h *AuthHandler) ConfirmResetPassword(c *gin.Context) {
	var req ConfirmResetRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	if err := h.svc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"reset": true})
}

// Verify handles GET /api/v1/auth/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	raw := middleware.Token(c)
	if raw == "" {
		pkg.Error(c, domain.NewAppError(domain.CodeUnauthorized, "missing bearer token", nil))
		return
	}

	info, err := h.svc.Verify(c.Request.Context(), raw)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, info)
}
