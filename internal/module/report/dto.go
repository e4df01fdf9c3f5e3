package report

import "github.com/medilab/backend/internal/domain"

// CreateReportRequest is the payload for creating a report. The file number,
// report date and technician are assigned server-side.
type CreateReportRequest struct {
	PatientTRIDNumber string `json:"patient_tr_id_number" binding:"required,len=11,numeric"`
	DiagnosisTitle    string `json:"diagnosis_title" binding:"required,max=200"`
	DiagnosisDetails  string `json:"diagnosis_details" binding:"omitempty,max=5000"`
}

// UpdateReportRequest is the payload for a partial update of the diagnosis
// fields. Absent fields keep their current values.
type UpdateReportRequest struct {
	DiagnosisTitle   *string `json:"diagnosis_title" binding:"omitempty,max=200"`
	DiagnosisDetails *string `json:"diagnosis_details" binding:"omitempty,max=5000"`
}

// AttachPhotoRequest carries the storage path of an uploaded report photo.
type AttachPhotoRequest struct {
	PhotoPath string `json:"photo_path" binding:"required,max=500"`
}

func (r CreateReportRequest) toReport(technicianUsername string) *domain.Report {
	return &domain.Report{
		PatientTRIDNumber:  r.PatientTRIDNumber,
		DiagnosisTitle:     r.DiagnosisTitle,
		DiagnosisDetails:   r.DiagnosisDetails,
		TechnicianUsername: technicianUsername,
	}
}

func (r UpdateReportRequest) toUpdate() domain.ReportUpdate {
	return domain.ReportUpdate{
		DiagnosisTitle:   r.DiagnosisTitle,
		DiagnosisDetails: r.DiagnosisDetails,
	}
}
