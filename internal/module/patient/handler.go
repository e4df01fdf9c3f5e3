package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// PatientHandler handles REST API requests for the patient resource.
type PatientHandler struct {
	svc domain.PatientService
}

// NewPatientHandler creates a new PatientHandler with the given service.
func NewPatientHandler(svc domain.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

// Create handles POST /api/v1/patients.
func (h *PatientHandler) Create(c *gin.Context) {
	var req CreatePatientRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.svc.CreatePatient(c.Request.Context(), req.toPatient())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    patient,
	})
}

// Get handles GET /api/v1/patients/:id.
func (h *PatientHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	patient, err := h.svc.GetPatient(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, patient)
}

// GetByTRIDNumber handles GET /api/v1/patients/tr-id/:trId.
func (h *PatientHandler) GetByTRIDNumber(c *gin.Context) {
	patient, err := h.svc.GetPatientByTRIDNumber(c.Request.Context(), c.Param("trId"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, patient)
}

// List handles GET /api/v1/patients.
func (h *PatientHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.ListPatients(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}

// Update handles PUT /api/v1/patients/:id.
func (h *PatientHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	var req UpdatePatientRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.svc.UpdatePatient(c.Request.Context(), id, req.toUpdate())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, patient)
}

// Delete handles DELETE /api/v1/patients/:id (soft delete).
func (h *PatientHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	if err := h.svc.DeletePatient(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}

// Restore handles PUT /api/v1/patients/:id/restore.
func (h *PatientHandler) Restore(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	patient, err := h.svc.RestorePatient(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, patient)
}

// parseID extracts and validates the :id path parameter.
func parseID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
