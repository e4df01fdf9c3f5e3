package auth

import "github.com/gin-gonic/gin"

// AuthModule implements the app.Module interface for the auth domain.
type AuthModule struct {
	handler *AuthHandler
}

// NewModule creates a new AuthModule with the given handler.
// Panics if h is nil.
func NewModule(h *AuthHandler) *AuthModule {
	if h == nil {
		panic("auth.NewModule: handler must not be nil")
	}
	return &AuthModule{handler: h}
}

// RegisterRoutes registers auth API routes. Login and the password reset
// endpoints must be listed as public paths in the auth configuration; the
// rest require a valid token.
func (m *AuthModule) RegisterRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	auth.POST("/login", m.handler.Login)
	auth.POST("/logout", m.handler.Logout)
	auth.POST("/change-password", m.handler.ChangePassword)
	auth.POST("/reset-password", m.handler.ResetPassword)
	auth.POST("/reset-password/confirm", m.handler.ConfirmResetPassword)
	auth.GET("/verify", m.handler.Verify)
}
