package report

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// Allowed fields for sorting in List queries.
var allowedSortFields = []string{"id", "file_number", "patient_tr_id_number", "diagnosis_title", "date", "technician_username", "created_at", "updated_at"}

// reportFilter declares the match kind per filterable field: identifiers
// match exactly, free-text diagnosis fields and the photo path match
// partially, and the report date accepts the multi-format timestamp values.
var reportFilter = pkg.FilterSet{Fields: []pkg.FilterField{
	{Param: "file_number", Column: "file_number", Match: pkg.MatchExact},
	{Param: "patient_tr_id_number", Column: "patient_tr_id_number", Match: pkg.MatchExact},
	{Param: "diagnosis_title", Column: "diagnosis_title", Match: pkg.MatchPartial},
	{Param: "diagnosis_details", Column: "diagnosis_details", Match: pkg.MatchPartial},
	{Param: "date", Column: "date", Match: pkg.MatchDate},
	{Param: "photo_path", Column: "photo_path", Match: pkg.MatchPartial},
	{Param: "technician_username", Column: "technician_username", Match: pkg.MatchExact},
}}

// reportRepository implements domain.ReportRepository using GORM.
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository backed by the given GORM database.
func NewReportRepository(db *gorm.DB) domain.ReportRepository {
	return &reportRepository{db: db}
}

// Create inserts a new report into the database.
func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID retrieves a non-deleted report by its primary key.
func (r *reportRepository) GetByID(ctx context.Context, id uint) (*domain.Report, error) {
	var report domain.Report
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, false).First(&report).Error; err != nil {
		return nil, mapError(err)
	}
	return &report, nil
}

// GetDeletedByID retrieves a soft-deleted report by its primary key.
func (r *reportRepository) GetDeletedByID(ctx context.Context, id uint) (*domain.Report, error) {
	var report domain.Report
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, true).First(&report).Error; err != nil {
		return nil, mapError(err)
	}
	return &report, nil
}

// ExistsByFileNumber reports whether a non-deleted report holds the file number.
func (r *reportRepository) ExistsByFileNumber(ctx context.Context, fileNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Report{}).
		Where("file_number = ? AND deleted = ?", fileNumber, false).
		Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

// List returns a paginated, sorted, and filtered page of reports.
func (r *reportRepository) List(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.Report], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Report{}).
		Scopes(reportFilter.Scope(req)).
		Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var reports []domain.Report
	if err := r.db.WithContext(ctx).Model(&domain.Report{}).
		Scopes(
			reportFilter.Scope(req),
			pkg.Paginate(req),
			pkg.Sort(req, allowedSortFields),
		).Find(&reports).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(reports, total, req), nil
}

// Save persists changes to an existing report.
func (r *reportRepository) Save(ctx context.Context, report *domain.Report) error {
	if err := r.db.WithContext(ctx).Save(report).Error; err != nil {
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
