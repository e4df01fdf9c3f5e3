package report

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/messaging"
)

const patientTRID = "10000000146"

// fakeReportRepo is an in-memory domain.ReportRepository keyed by ID.
type fakeReportRepo struct {
	reports map[uint]*domain.Report
	nextID  uint
	// existing file numbers reported as taken regardless of the stored rows
	takenFileNumbers map[string]bool
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[uint]*domain.Report), nextID: 1, takenFileNumbers: make(map[string]bool)}
}

func (f *fakeReportRepo) add(r domain.Report) *domain.Report {
	r.ID = f.nextID
	f.nextID++
	cp := r
	f.reports[cp.ID] = &cp
	return &cp
}

func (f *fakeReportRepo) Create(_ context.Context, report *domain.Report) error {
	report.ID = f.nextID
	f.nextID++
	cp := *report
	f.reports[cp.ID] = &cp
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id uint) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok || r.Deleted {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportRepo) GetDeletedByID(_ context.Context, id uint) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok || !r.Deleted {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportRepo) ExistsByFileNumber(_ context.Context, fileNumber string) (bool, error) {
	if f.takenFileNumbers[fileNumber] {
		return true, nil
	}
	for _, r := range f.reports {
		if r.FileNumber == fileNumber && !r.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReportRepo) List(_ context.Context, req domain.PageRequest) (*domain.PageResult[domain.Report], error) {
	items := make([]domain.Report, 0, len(f.reports))
	for _, r := range f.reports {
		if !r.Deleted {
			items = append(items, *r)
		}
	}
	return &domain.PageResult[domain.Report]{Items: items, Total: int64(len(items)), Page: req.Page, PageSize: req.PageSize}, nil
}

func (f *fakeReportRepo) Save(_ context.Context, report *domain.Report) error {
	cp := *report
	f.reports[cp.ID] = &cp
	return nil
}

// fakePatientChecker implements the patient lookup the report pipeline needs.
type fakePatientChecker struct {
	known map[string]bool
}

func (f *fakePatientChecker) ExistsByTRIDNumber(_ context.Context, trID string) (bool, error) {
	return f.known[trID], nil
}

func (f *fakePatientChecker) Create(context.Context, *domain.Patient) error { return nil }
func (f *fakePatientChecker) GetByID(context.Context, uint) (*domain.Patient, error) {
	return nil, domain.ErrNotFound
}
func (f *fakePatientChecker) GetDeletedByID(context.Context, uint) (*domain.Patient, error) {
	return nil, domain.ErrNotFound
}
func (f *fakePatientChecker) GetByTRIDNumber(context.Context, string) (*domain.Patient, error) {
	return nil, domain.ErrNotFound
}
func (f *fakePatientChecker) List(context.Context, domain.PageRequest) (*domain.PageResult[domain.Patient], error) {
	return &domain.PageResult[domain.Patient]{}, nil
}
func (f *fakePatientChecker) Save(context.Context, *domain.Patient) error { return nil }

// recordingPublisher captures every published notification in order.
type recordingPublisher struct {
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	routingKey string
	payload    any
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func newTestService() (domain.ReportService, *fakeReportRepo, *recordingPublisher) {
	repo := newFakeReportRepo()
	pub := &recordingPublisher{}
	patients := &fakePatientChecker{known: map[string]bool{patientTRID: true}}
	return NewReportService(repo, patients, pub, "report.changed"), repo, pub
}

func validReport() *domain.Report {
	return &domain.Report{
		FileNumber:         "20260829-ABCD1234",
		PatientTRIDNumber:  patientTRID,
		DiagnosisTitle:     "Fractured radius",
		DiagnosisDetails:   "Hairline fracture of the left radius.",
		Date:               time.Now(),
		TechnicianUsername: "geralt",
	}
}

var fileNumberPattern = regexp.MustCompile(`^\d{8}-[0-9A-F]{8}$`)

func TestCreateReport_Success(t *testing.T) {
	svc, repo, pub := newTestService()

	in := validReport()
	in.FileNumber = ""
	created, err := svc.CreateReport(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("expected assigned ID")
	}
	if !fileNumberPattern.MatchString(created.FileNumber) {
		t.Errorf("file number = %q, want date-prefixed hex", created.FileNumber)
	}
	if created.Date.IsZero() {
		t.Error("report date should be stamped")
	}
	if _, ok := repo.reports[created.ID]; !ok {
		t.Error("report not persisted")
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	evt := pub.published[0].payload.(messaging.ReportChangedEvent)
	if evt.Op != messaging.OpCreated || evt.FileNumber != created.FileNumber {
		t.Errorf("event = %+v", evt)
	}
}

func TestCreateReport_UnknownPatient(t *testing.T) {
	svc, _, pub := newTestService()

	in := validReport()
	in.PatientTRIDNumber = "12345678950"
	_, err := svc.CreateReport(context.Background(), in)
	if !domain.IsNotFound(err) {
		t.Fatalf("CreateReport() error = %v, want not found", err)
	}
	if len(pub.published) != 0 {
		t.Error("no notification should be published for a rejected create")
	}
}

func TestCreateReport_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(*domain.Report)
	}{
		{"missing patient", func(r *domain.Report) { r.PatientTRIDNumber = "" }},
		{"missing title", func(r *domain.Report) { r.DiagnosisTitle = "  " }},
		{"missing technician", func(r *domain.Report) { r.TechnicianUsername = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validReport()
			tt.mutate(in)
			_, err := svc.CreateReport(context.Background(), in)
			if !domain.IsValidation(err) {
				t.Errorf("CreateReport() error = %v, want validation error", err)
			}
		})
	}
}

func TestCreateReport_PublishFailureAbortsPersist(t *testing.T) {
	repo := newFakeReportRepo()
	pub := &recordingPublisher{err: errors.New("broker down")}
	patients := &fakePatientChecker{known: map[string]bool{patientTRID: true}}
	svc := NewReportService(repo, patients, pub, "report.changed")

	_, err := svc.CreateReport(context.Background(), validReport())
	if !domain.IsNotification(err) {
		t.Fatalf("CreateReport() error = %v, want notification error", err)
	}
	if len(repo.reports) != 0 {
		t.Error("report must not be persisted when the notification fails")
	}
}

func TestCreateReport_FileNumbersUnique(t *testing.T) {
	svc, repo, _ := newTestService()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		in := validReport()
		in.FileNumber = ""
		created, err := svc.CreateReport(context.Background(), in)
		if err != nil {
			t.Fatalf("CreateReport() #%d error = %v", i, err)
		}
		if seen[created.FileNumber] {
			t.Fatalf("duplicate file number %q", created.FileNumber)
		}
		seen[created.FileNumber] = true
	}
	if len(repo.reports) != 20 {
		t.Errorf("persisted %d reports, want 20", len(repo.reports))
	}
}

func TestUpdateReport(t *testing.T) {
	svc, repo, pub := newTestService()
	r := repo.add(*validReport())

	title := "Healed fracture"
	updated, err := svc.UpdateReport(context.Background(), r.ID, domain.ReportUpdate{DiagnosisTitle: &title})
	if err != nil {
		t.Fatalf("UpdateReport() error = %v", err)
	}
	if updated.DiagnosisTitle != "Healed fracture" {
		t.Errorf("title = %q", updated.DiagnosisTitle)
	}
	if updated.FileNumber != r.FileNumber {
		t.Error("file number must be immutable")
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d events, want 0 for an update", len(pub.published))
	}
}

func TestUpdateReport_EmptyTitleRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	r := repo.add(*validReport())

	empty := "   "
	_, err := svc.UpdateReport(context.Background(), r.ID, domain.ReportUpdate{DiagnosisTitle: &empty})
	if !domain.IsValidation(err) {
		t.Fatalf("UpdateReport() error = %v, want validation error", err)
	}
	if repo.reports[r.ID].DiagnosisTitle != "Fractured radius" {
		t.Error("stored title must be unchanged")
	}
}

func TestDeleteAndRestoreReport(t *testing.T) {
	svc, repo, pub := newTestService()
	r := repo.add(*validReport())

	if err := svc.DeleteReport(context.Background(), r.ID); err != nil {
		t.Fatalf("DeleteReport() error = %v", err)
	}
	if !repo.reports[r.ID].Deleted {
		t.Error("report should be marked deleted")
	}

	restored, err := svc.RestoreReport(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("RestoreReport() error = %v", err)
	}
	if restored.Deleted {
		t.Error("restored report should not be marked deleted")
	}

	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}
	del := pub.published[0].payload.(messaging.ReportChangedEvent)
	res := pub.published[1].payload.(messaging.ReportChangedEvent)
	if del.Op != messaging.OpDeleted || res.Op != messaging.OpRestored {
		t.Errorf("ops = %q, %q", del.Op, res.Op)
	}
}

func TestRestoreReport_FileNumberTaken(t *testing.T) {
	svc, repo, _ := newTestService()
	old := validReport()
	old.Deleted = true
	r := repo.add(*old)
	repo.takenFileNumbers[r.FileNumber] = true

	_, err := svc.RestoreReport(context.Background(), r.ID)
	if !domain.IsAlreadyExists(err) {
		t.Fatalf("RestoreReport() error = %v, want already exists", err)
	}
	if !repo.reports[r.ID].Deleted {
		t.Error("report must stay deleted when restoration is rejected")
	}
}

func TestDeleteReport_PublishFailureLeavesRow(t *testing.T) {
	repo := newFakeReportRepo()
	pub := &recordingPublisher{err: errors.New("broker down")}
	patients := &fakePatientChecker{known: map[string]bool{patientTRID: true}}
	svc := NewReportService(repo, patients, pub, "report.changed")
	r := repo.add(*validReport())

	if err := svc.DeleteReport(context.Background(), r.ID); !domain.IsNotification(err) {
		t.Fatalf("DeleteReport() error = %v, want notification error", err)
	}
	if repo.reports[r.ID].Deleted {
		t.Error("stored report must be unchanged after a failed notification")
	}
}

func TestAttachAndDetachPhoto(t *testing.T) {
	svc, repo, pub := newTestService()
	r := repo.add(*validReport())

	updated, err := svc.AttachPhoto(context.Background(), r.ID, "photos/2026/xray-001.png")
	if err != nil {
		t.Fatalf("AttachPhoto() error = %v", err)
	}
	if updated.PhotoPath != "photos/2026/xray-001.png" {
		t.Errorf("photo path = %q", updated.PhotoPath)
	}

	updated, err = svc.DetachPhoto(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("DetachPhoto() error = %v", err)
	}
	if updated.PhotoPath != "" {
		t.Errorf("photo path = %q, want empty", updated.PhotoPath)
	}

	if len(pub.published) != 0 {
		t.Errorf("published %d events, want 0 for photo operations", len(pub.published))
	}
}

func TestAttachPhoto_EmptyPath(t *testing.T) {
	svc, repo, _ := newTestService()
	r := repo.add(*validReport())

	if _, err := svc.AttachPhoto(context.Background(), r.ID, "  "); !domain.IsValidation(err) {
		t.Fatalf("AttachPhoto() error = %v, want validation error", err)
	}
}

func TestDetachPhoto_NoPhoto(t *testing.T) {
	svc, repo, _ := newTestService()
	in := validReport()
	in.PhotoPath = ""
	r := repo.add(*in)

	if _, err := svc.DetachPhoto(context.Background(), r.ID); !domain.IsInvalidState(err) {
		t.Fatalf("DetachPhoto() error = %v, want invalid state", err)
	}
}
