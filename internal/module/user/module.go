package user

import "github.com/gin-gonic/gin"

// UserModule implements the app.Module interface for the user domain.
type UserModule struct {
	handler *UserHandler
	admin   gin.HandlerFunc
}

// NewModule creates a new UserModule. admin guards the administrative
// routes; pass nil when authorization is disabled. Panics if h is nil.
func NewModule(h *UserHandler, admin gin.HandlerFunc) *UserModule {
	if h == nil {
		panic("user.NewModule: handler must not be nil")
	}
	if admin == nil {
		admin = func(c *gin.Context) { c.Next() }
	}
	return &UserModule{handler: h, admin: admin}
}

// RegisterRoutes registers user API routes.
func (m *UserModule) RegisterRoutes(api *gin.RouterGroup) {
	users := api.Group("/users")

	users.GET("/me", m.handler.GetMe)
	users.PUT("/me", m.handler.UpdateMe)
	users.GET("/email/:email", m.handler.GetUsernameByEmail)
	users.GET("/:id", m.handler.Get)
	users.GET("", m.handler.List)

	users.POST("", m.admin, m.handler.Create)
	users.PUT("/:id", m.admin, m.handler.Update)
	users.DELETE("/:id", m.admin, m.handler.Delete)
	users.PUT("/:id/restore", m.admin, m.handler.Restore)
	users.PUT("/:id/roles/:role", m.admin, m.handler.AddRole)
	users.DELETE("/:id/roles/:role", m.admin, m.handler.RemoveRole)
}
