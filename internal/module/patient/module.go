package patient

import "github.com/gin-gonic/gin"

// PatientModule implements the app.Module interface for the patient domain.
type PatientModule struct {
	handler *PatientHandler
}

// NewModule creates a new PatientModule with the given handler.
// Panics if h is nil.
func NewModule(h *PatientHandler) *PatientModule {
	if h == nil {
		panic("patient.NewModule: handler must not be nil")
	}
	return &PatientModule{handler: h}
}

// RegisterRoutes registers patient API routes.
func (m *PatientModule) RegisterRoutes(api *gin.RouterGroup) {
	patients := api.Group("/patients")

	patients.POST("", m.handler.Create)
	patients.GET("/tr-id/:trId", m.handler.GetByTRIDNumber)
	patients.GET("/:id", m.handler.Get)
	patients.GET("", m.handler.List)
	patients.PUT("/:id", m.handler.Update)
	patients.DELETE("/:id", m.handler.Delete)
	patients.PUT("/:id/restore", m.handler.Restore)
}
