package patient

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// Allowed fields for sorting in List queries.
var allowedSortFields = []string{"id", "first_name", "last_name", "tr_id_number", "birth_date", "created_at", "updated_at"}

// patientFilter declares the match kind per filterable field. The birth
// date filter accepts the multi-format timestamp values.
var patientFilter = pkg.FilterSet{Fields: []pkg.FilterField{
	{Param: "first_name", Column: "first_name", Match: pkg.MatchPartial},
	{Param: "last_name", Column: "last_name", Match: pkg.MatchPartial},
	{Param: "tr_id_number", Column: "tr_id_number", Match: pkg.MatchExact},
	{Param: "gender", Column: "gender", Match: pkg.MatchExact},
	{Param: "blood_type", Column: "blood_type", Match: pkg.MatchExact},
	{Param: "phone_number", Column: "phone_number", Match: pkg.MatchExact},
	{Param: "email", Column: "email", Match: pkg.MatchExact},
	{Param: "chronic_diseases", Column: "chronic_diseases", Match: pkg.MatchPartial},
	{Param: "birth_date", Column: "birth_date", Match: pkg.MatchDate},
}}

// patientRepository implements domain.PatientRepository using GORM.
type patientRepository struct {
	db *gorm.DB
}

// NewPatientRepository creates a new PatientRepository backed by the given GORM database.
func NewPatientRepository(db *gorm.DB) domain.PatientRepository {
	return &patientRepository{db: db}
}

// Create inserts a new patient into the database.
func (r *patientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	if err := r.db.WithContext(ctx).Create(patient).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID retrieves a non-deleted patient by its primary key.
func (r *patientRepository) GetByID(ctx context.Context, id uint) (*domain.Patient, error) {
	var patient domain.Patient
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, false).First(&patient).Error; err != nil {
		return nil, mapError(err)
	}
	return &patient, nil
}

// GetDeletedByID retrieves a soft-deleted patient by its primary key.
func (r *patientRepository) GetDeletedByID(ctx context.Context, id uint) (*domain.Patient, error) {
	var patient domain.Patient
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, true).First(&patient).Error; err != nil {
		return nil, mapError(err)
	}
	return &patient, nil
}

// GetByTRIDNumber retrieves a non-deleted patient by TR ID number.
func (r *patientRepository) GetByTRIDNumber(ctx context.Context, trID string) (*domain.Patient, error) {
	var patient domain.Patient
	if err := r.db.WithContext(ctx).Where("tr_id_number = ? AND deleted = ?", trID, false).First(&patient).Error; err != nil {
		return nil, mapError(err)
	}
	return &patient, nil
}

// ExistsByTRIDNumber reports whether a non-deleted patient holds the TR ID number.
func (r *patientRepository) ExistsByTRIDNumber(ctx context.Context, trID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Patient{}).
		Where("tr_id_number = ? AND deleted = ?", trID, false).
		Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// List returns a paginated, sorted, and filtered page of patients.
func (r *patientRepository) List(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.Patient], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Patient{}).
		Scopes(patientFilter.Scope(req)).
		Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var patients []domain.Patient
	if err := r.db.WithContext(ctx).Model(&domain.Patient{}).
		Scopes(
			patientFilter.Scope(req),
			pkg.Paginate(req),
			pkg.Sort(req, allowedSortFields),
		).Find(&patients).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(patients, total, req), nil
}

// Save persists changes to an existing patient.
func (r *patientRepository) Save(ctx context.Context, patient *domain.Patient) error {
	if err := r.db.WithContext(ctx).Save(patient).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
