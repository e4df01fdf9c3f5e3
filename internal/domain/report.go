package domain

import (
	"context"
	"time"
)

// Report is a diagnosis report issued by a technician. The file number is
// unique among non-deleted rows only.
type Report struct {
	BaseModel
	FileNumber         string    `gorm:"size:50;not null;index" json:"file_number"`
	PatientTRIDNumber  string    `gorm:"column:patient_tr_id_number;size:11;not null;index" json:"patient_tr_id_number"`
	DiagnosisTitle     string    `gorm:"size:255;not null" json:"diagnosis_title"`
	DiagnosisDetails   string    `gorm:"type:text" json:"diagnosis_details"`
	Date               time.Time `json:"date"`
	PhotoPath          string    `gorm:"size:512" json:"photo_path"`
	TechnicianUsername string    `gorm:"size:100;not null;index" json:"technician_username"`
	Deleted            bool      `gorm:"not null;default:false;index" json:"deleted"`
}

// ReportUpdate carries a partial update; nil fields are left untouched.
type ReportUpdate struct {
	DiagnosisTitle   *string
	DiagnosisDetails *string
}

// ReportRepository defines the data access interface for reports.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	GetByID(ctx context.Context, id uint) (*Report, error)
	GetDeletedByID(ctx context.Context, id uint) (*Report, error)
	ExistsByFileNumber(ctx context.Context, fileNumber string) (bool, error)
	List(ctx context.Context, req PageRequest) (*PageResult[Report], error)
	Save(ctx context.Context, report *Report) error
}

// ReportService defines the business logic interface for reports.
type ReportService interface {
	GetReport(ctx context.Context, id uint) (*Report, error)
	ListReports(ctx context.Context, req PageRequest) (*PageResult[Report], error)
	CreateReport(ctx context.Context, report *Report) (*Report, error)
	UpdateReport(ctx context.Context, id uint, upd ReportUpdate) (*Report, error)
	DeleteReport(ctx context.Context, id uint) error
	RestoreReport(ctx context.Context, id uint) (*Report, error)
	AttachPhoto(ctx context.Context, id uint, photoPath string) (*Report, error)
	DetachPhoto(ctx context.Context, id uint) (*Report, error)
}
