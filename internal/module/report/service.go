package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
)

// fileNumberAttempts bounds the retry loop when a generated file number
// collides with an existing non-deleted report.
const fileNumberAttempts = 5

// reportService implements domain.ReportService.
type reportService struct {
	repo       domain.ReportRepository
	patients   domain.PatientRepository
	publisher  messaging.Publisher
	routingKey string
}

// NewReportService creates a new ReportService. Mutations that alter the
// visible set of reports are announced on the given routing key before they
// are persisted.
func NewReportService(repo domain.ReportRepository, patients domain.PatientRepository, publisher messaging.Publisher, routingKey string) domain.ReportService {
	return &reportService{repo: repo, patients: patients, publisher: publisher, routingKey: routingKey}
}

// GetReport retrieves a non-deleted report by ID.
func (s *reportService) GetReport(ctx context.Context, id uint) (*domain.Report, error) {
	return s.repo.GetByID(ctx, id)
}

// ListReports returns a paginated, filtered page of reports.
func (s *reportService) ListReports(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.Report], error) {
	return s.repo.List(ctx, req)
}

// CreateReport creates a new report for an existing non-deleted patient.
// The file number is generated server-side and the report date is stamped
// with the current time.
func (s *reportService) CreateReport(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	if err := s.validateReport(report); err != nil {
		return nil, err
	}

	exists, err := s.patients.ExistsByTRIDNumber(ctx, report.PatientTRIDNumber)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewAppError(domain.CodeNotFound, "patient not found: "+report.PatientTRIDNumber, nil)
	}

	fileNumber, err := s.generateFileNumber(ctx)
	if err != nil {
		return nil, err
	}
	report.FileNumber = fileNumber
	report.Date = time.Now()
	report.Deleted = false

	if err := s.notify(ctx, messaging.ReportChangedEvent{Op: messaging.OpCreated, FileNumber: report.FileNumber}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// UpdateReport applies a partial update to the diagnosis fields of a report.
// The file number, patient, date and technician are immutable.
func (s *reportService) UpdateReport(ctx context.Context, id uint, update domain.ReportUpdate) (*domain.Report, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.DiagnosisTitle != nil {
		report.DiagnosisTitle = strings.TrimSpace(*update.DiagnosisTitle)
	}
	if update.DiagnosisDetails != nil {
		report.DiagnosisDetails = strings.TrimSpace(*update.DiagnosisDetails)
	}
	if report.DiagnosisTitle == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "diagnosis title is required", nil)
	}

	if err := s.repo.Save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteReport soft-deletes a report.
func (s *reportService) DeleteReport(ctx context.Context, id uint) error {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	report.Deleted = true
	if err := s.notify(ctx, messaging.ReportChangedEvent{Op: messaging.OpDeleted, FileNumber: report.FileNumber}); err != nil {
		return err
	}
	return s.repo.Save(ctx, report)
}

// RestoreReport restores a soft-deleted report. Restoration fails with an
// AlreadyExists error if another non-deleted report took the file number in
// the meantime.
func (s *reportService) RestoreReport(ctx context.Context, id uint) (*domain.Report, error) {
	report, err := s.repo.GetDeletedByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByFileNumber(ctx, report.FileNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewAppError(domain.CodeAlreadyExists, "file number already in use: "+report.FileNumber, nil)
	}

	report.Deleted = false
	if err := s.notify(ctx, messaging.ReportChangedEvent{Op: messaging.OpRestored, FileNumber: report.FileNumber}); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// AttachPhoto records the storage path of a report photo.
func (s *reportService) AttachPhoto(ctx context.Context, id uint, photoPath string) (*domain.Report, error) {
	photoPath = strings.TrimSpace(photoPath)
	if photoPath == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "photo path is required", nil)
	}

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	report.PhotoPath = photoPath
	if err := s.repo.Save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// DetachPhoto clears the photo path of a report.
func (s *reportService) DetachPhoto(ctx context.Context, id uint) (*domain.Report, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.PhotoPath == "" {
		return nil, domain.NewAppError(domain.CodeInvalidState, "report has no photo", nil)
	}
	report.PhotoPath = ""
	if err := s.repo.Save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// generateFileNumber produces a date-prefixed random file number that is
// unique among non-deleted reports.
func (s *reportService) generateFileNumber(ctx context.Context) (string, error) {
	for i := 0; i < fileNumberAttempts; i++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", domain.NewAppError(domain.CodeInternal, "generate file number", err)
		}
		fileNumber := fmt.Sprintf("%s-%s", time.Now().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))

		exists, err := s.repo.ExistsByFileNumber(ctx, fileNumber)
		if err != nil {
			return "", err
		}
		if !exists {
			return fileNumber, nil
		}
	}
	return "", domain.NewAppError(domain.CodeInternal, "could not generate a unique file number", nil)
}

func (s *reportService) notify(ctx context.Context, event messaging.ReportChangedEvent) error {
	if err := s.publisher.Publish(ctx, s.routingKey, event); err != nil {
		return domain.NewAppError(domain.CodeNotification, "report notification failed", err)
	}
	return nil
}

func (s *reportService) validateReport(report *domain.Report) error {
	report.PatientTRIDNumber = strings.TrimSpace(report.PatientTRIDNumber)
	report.DiagnosisTitle = strings.TrimSpace(report.DiagnosisTitle)
	report.DiagnosisDetails = strings.TrimSpace(report.DiagnosisDetails)
	report.TechnicianUsername = strings.TrimSpace(report.TechnicianUsername)

	if report.PatientTRIDNumber == "" {
		return domain.NewAppError(domain.CodeValidation, "patient TR ID number is required", nil)
	}
	if report.DiagnosisTitle == "" {
		return domain.NewAppError(domain.CodeValidation, "diagnosis title is required", nil)
	}
	if report.TechnicianUsername == "" {
		return domain.NewAppError(domain.CodeValidation, "technician username is required", nil)
	}
	return nil
}
