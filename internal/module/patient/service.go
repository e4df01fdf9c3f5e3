package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
)

// patientService implements domain.PatientService with the same write
// ordering as the user pipeline: validate, mutate the candidate, publish,
// then persist.
type patientService struct {
	repo       domain.PatientRepository
	publisher  messaging.Publisher
	routingKey string
}

// NewPatientService creates a new PatientService. routingKey names the
// broker routing key for patient change notifications.
func NewPatientService(repo domain.PatientRepository, publisher messaging.Publisher, routingKey string) domain.PatientService {
	return &patientService{repo: repo, publisher: publisher, routingKey: routingKey}
}

// GetPatient retrieves a non-deleted patient by ID.
func (s *patientService) GetPatient(ctx context.Context, id uint) (*domain.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPatientByTRIDNumber retrieves a non-deleted patient by TR ID number.
func (s *patientService) GetPatientByTRIDNumber(ctx context.Context, trID string) (*domain.Patient, error) {
	if err := ValidateTRIDNumber(trID); err != nil {
		return nil, err
	}
	return s.repo.GetByTRIDNumber(ctx, trID)
}

// ListPatients returns a paginated list of patients.
func (s *patientService) ListPatients(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.Patient], error) {
	return s.repo.List(ctx, req)
}

// CreatePatient validates the TR ID number and its uniqueness among
// non-deleted rows, publishes the creation notification, and persists the
// new patient.
func (s *patientService) CreatePatient(ctx context.Context, patient *domain.Patient) (*domain.Patient, error) {
	patient.FirstName = strings.TrimSpace(patient.FirstName)
	patient.LastName = strings.TrimSpace(patient.LastName)

	if patient.FirstName == "" || patient.LastName == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "first name and last name are required", nil)
	}
	if err := ValidateTRIDNumber(patient.TRIDNumber); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByTRIDNumber(ctx, patient.TRIDNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewAppError(domain.CodeAlreadyExists, fmt.Sprintf("patient with TR ID number %q already exists", patient.TRIDNumber), nil)
	}

	patient.Deleted = false

	if err := s.notify(ctx, messaging.OpCreated, patient.TRIDNumber); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// UpdatePatient applies a partial update; the TR ID number is immutable.
func (s *patientService) UpdatePatient(ctx context.Context, id uint, upd domain.PatientUpdate) (*domain.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil && *upd.FirstName != patient.FirstName {
		patient.FirstName = *upd.FirstName
	}
	if upd.LastName != nil && *upd.LastName != patient.LastName {
		patient.LastName = *upd.LastName
	}
	if upd.Gender != nil && *upd.Gender != patient.Gender {
		patient.Gender = *upd.Gender
	}
	if upd.BloodType != nil && *upd.BloodType != patient.BloodType {
		patient.BloodType = *upd.BloodType
	}
	if upd.PhoneNumber != nil && *upd.PhoneNumber != patient.PhoneNumber {
		patient.PhoneNumber = *upd.PhoneNumber
	}
	if upd.Email != nil && *upd.Email != patient.Email {
		patient.Email = *upd.Email
	}
	if upd.ChronicDiseases != nil && *upd.ChronicDiseases != patient.ChronicDiseases {
		patient.ChronicDiseases = *upd.ChronicDiseases
	}

	if err := s.repo.Save(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// DeletePatient soft-deletes a patient and notifies downstream services.
func (s *patientService) DeletePatient(ctx context.Context, id uint) error {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	patient.Deleted = true

	if err := s.notify(ctx, messaging.OpDeleted, patient.TRIDNumber); err != nil {
		return err
	}

	return s.repo.Save(ctx, patient)
}

// RestorePatient restores a soft-deleted patient and notifies downstream services.
func (s *patientService) RestorePatient(ctx context.Context, id uint) (*domain.Patient, error) {
	patient, err := s.repo.GetDeletedByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patient.Deleted = false

	if err := s.notify(ctx, messaging.OpRestored, patient.TRIDNumber); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *patientService) notify(ctx context.Context, op, trID string) error {
	err := s.publisher.Publish(ctx, s.routingKey, messaging.PatientChangedEvent{Op: op, TRIDNumber: trID})
	if err != nil {
		return domain.NewAppError(domain.CodeNotification, "failed to send notification", err)
	}
	return nil
}

// ValidateTRIDNumber checks the 11-digit Turkish national ID number: it must
// not start with 0, the tenth digit is ((d1+d3+d5+d7+d9)*7 - (d2+d4+d6+d8))
// mod 10, and the eleventh is the sum of the first ten mod 10.
func ValidateTRIDNumber(trID string) error {
	if len(trID) != 11 {
		return domain.NewAppError(domain.CodeValidation, "TR ID number must be 11 digits", nil)
	}

	digits := make([]int, 11)
	for i, r := range trID {
		if r < '0' || r > '9' {
			return domain.NewAppError(domain.CodeValidation, "TR ID number must contain only digits", nil)
		}
		digits[i] = int(r - '0')
	}

	if digits[0] == 0 {
		return domain.NewAppError(domain.CodeValidation, "TR ID number must not start with 0", nil)
	}

	odd := digits[0] + digits[2] + digits[4] + digits[6] + digits[8]
	even := digits[1] + digits[3] + digits[5] + digits[7]
	if (odd*7-even+100)%10 != digits[9] {
		return domain.NewAppError(domain.CodeValidation, "invalid TR ID number", nil)
	}

	sum := 0
	for _, d := range digits[:10] {
		sum += d
	}
	if sum%10 != digits[10] {
		return domain.NewAppError(domain.CodeValidation, "invalid TR ID number", nil)
	}

	return nil
}
