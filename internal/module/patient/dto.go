package patient

import (
	"time"

	"github.com/medilab/backend/internal/domain"
)

// CreatePatientRequest represents the input for registering a new patient.
type CreatePatientRequest struct {
	FirstName       string    `json:"first_name" binding:"required,min=1,max=100"`
	LastName        string    `json:"last_name" binding:"required,min=1,max=100"`
	TRIDNumber      string    `json:"tr_id_number" binding:"required,len=11,numeric"`
	BirthDate       time.Time `json:"birth_date" binding:"required"`
	Gender          string    `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
	BloodType       string    `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- 0+ 0-"`
	PhoneNumber     string    `json:"phone_number" binding:"omitempty,max=20"`
	Email           string    `json:"email" binding:"omitempty,email"`
	ChronicDiseases string    `json:"chronic_diseases" binding:"omitempty"`
}

// toPatient maps the request onto a new domain patient.
func (r CreatePatientRequest) toPatient() *domain.Patient {
	return &domain.Patient{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		TRIDNumber:      r.TRIDNumber,
		BirthDate:       r.BirthDate,
		Gender:          r.Gender,
		BloodType:       r.BloodType,
		PhoneNumber:     r.PhoneNumber,
		Email:           r.Email,
		ChronicDiseases: r.ChronicDiseases,
	}
}

// UpdatePatientRequest represents a partial update; absent fields are left
// untouched. The TR ID number is immutable.
type UpdatePatientRequest struct {
	FirstName       *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName        *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Gender          *string `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
	BloodType       *string `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- 0+ 0-"`
	PhoneNumber     *string `json:"phone_number" binding:"omitempty,max=20"`
	Email           *string `json:"email" binding:"omitempty,email"`
	ChronicDiseases *string `json:"chronic_diseases" binding:"omitempty"`
}

// toUpdate maps the request onto a domain update.
func (r UpdatePatientRequest) toUpdate() domain.PatientUpdate {
	return domain.PatientUpdate{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Gender:          r.Gender,
		BloodType:       r.BloodType,
		PhoneNumber:     r.PhoneNumber,
		Email:           r.Email,
		ChronicDiseases: r.ChronicDiseases,
	}
}
