package domain

import (
	"context"
	"time"
)

// Patient is a patient record. The TR ID number is unique among non-deleted
// rows only.
type Patient struct {
	BaseModel
	FirstName       string    `gorm:"size:100;not null" json:"first_name"`
	LastName        string    `gorm:"size:100;not null" json:"last_name"`
	TRIDNumber      string    `gorm:"column:tr_id_number;size:11;not null;index" json:"tr_id_number"`
	BirthDate       time.Time `json:"birth_date"`
	Gender          string    `gorm:"size:20" json:"gender"`
	BloodType       string    `gorm:"size:10" json:"blood_type"`
	PhoneNumber     string    `gorm:"size:20" json:"phone_number"`
	Email           string    `gorm:"size:255" json:"email"`
	ChronicDiseases string    `gorm:"type:text" json:"chronic_diseases"`
	Deleted         bool      `gorm:"not null;default:false;index" json:"deleted"`
}

// PatientUpdate carries a partial update; nil fields are left untouched.
type PatientUpdate struct {
	FirstName       *string
	LastName        *string
	Gender          *string
	BloodType       *string
	PhoneNumber     *string
	Email           *string
	ChronicDiseases *string
}

// PatientRepository defines the data access interface for patients.
type PatientRepository interface {
	Create(ctx context.Context, patient *Patient) error
	GetByID(ctx context.Context, id uint) (*Patient, error)
	GetDeletedByID(ctx context.Context, id uint) (*Patient, error)
	GetByTRIDNumber(ctx context.Context, trID string) (*Patient, error)
	ExistsByTRIDNumber(ctx context.Context, trID string) (bool, error)
	List(ctx context.Context, req PageRequest) (*PageResult[Patient], error)
	Save(ctx context.Context, patient *Patient) error
}

// PatientService defines the business logic interface for patients.
type PatientService interface {
	GetPatient(ctx context.Context, id uint) (*Patient, error)
	GetPatientByTRIDNumber(ctx context.Context, trID string) (*Patient, error)
	ListPatients(ctx context.Context, req PageRequest) (*PageResult[Patient], error)
	CreatePatient(ctx context.Context, patient *Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, id uint, upd PatientUpdate) (*Patient, error)
	DeletePatient(ctx context.Context, id uint) error
	RestorePatient(ctx context.Context, id uint) (*Patient, error)
}
