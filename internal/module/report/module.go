package report

import "github.com/gin-gonic/gin"

// ReportModule implements the app.Module interface for the report domain.
type ReportModule struct {
	handler    *ReportHandler
	technician gin.HandlerFunc
}

// NewModule creates a new ReportModule with the given handler. The technician
// middleware guards mutating routes; pass nil to leave them unguarded.
// Panics if h is nil.
func NewModule(h *ReportHandler, technician gin.HandlerFunc) *ReportModule {
	if h == nil {
		panic("report.NewModule: handler must not be nil")
	}
	if technician == nil {
		technician = func(*gin.Context) {}
	}
	return &ReportModule{handler: h, technician: technician}
}

// RegisterRoutes registers report API routes.
func (m *ReportModule) RegisterRoutes(api *gin.RouterGroup) {
	reports := api.Group("/reports")

	reports.GET("/:id", m.handler.Get)
	reports.GET("", m.handler.List)

	guarded := reports.Group("", m.technician)
	guarded.POST("", m.handler.Create)
	guarded.PUT("/:id", m.handler.Update)
	guarded.DELETE("/:id", m.handler.Delete)
	guarded.PUT("/:id/restore", m.handler.Restore)
	guarded.PUT("/:id/photo", m.handler.AttachPhoto)
	guarded.DELETE("/:id/photo", m.handler.DetachPhoto)
}
