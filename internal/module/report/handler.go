package report

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/middleware"
	"github.com/medilab/backend/internal/pkg"
)

// ReportHandler exposes report operations over HTTP.
type ReportHandler struct {
	service domain.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service domain.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Create handles POST /reports. The authenticated user is recorded as the
// report's technician.
func (h *ReportHandler) Create(c *gin.Context) {
	var req CreateReportRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	report, err := h.service.CreateReport(c.Request.Context(), req.toReport(middleware.Username(c)))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    report,
	})
}

// Get handles GET /reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, report)
}

// List handles GET /reports with pagination, sorting, and filtering.
func (h *ReportHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c)

	result, err := h.service.ListReports(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, result)
}

// Update handles PUT /reports/:id.
func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateReportRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	report, err := h.service.UpdateReport(c.Request.Context(), id, req.toUpdate())
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, report)
}

// Delete handles DELETE /reports/:id.
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteReport(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, gin.H{"deleted": true})
}

// Restore handles PUT /reports/:id/restore.
func (h *ReportHandler) Restore(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.service.RestoreReport(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, report)
}

// AttachPhoto handles PUT /reports/:id/photo.
func (h *ReportHandler) AttachPhoto(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req AttachPhotoRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	report, err := h.service.AttachPhoto(c.Request.Context(), id, req.PhotoPath)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, report)
}

// DetachPhoto handles DELETE /reports/:id/photo.
func (h *ReportHandler) DetachPhoto(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.service.DetachPhoto(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, report)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "invalid id", err))
		return 0, false
	}
	return uint(id), true
}
