package patient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/medilab/backend/internal/domain"
)

// setupPatientRouter wires the handler over the real service with in-memory fakes.
func setupPatientRouter() (*gin.Engine, *fakePatientRepo, *recordingPublisher) {
	gin.SetMode(gin.TestMode)
	repo := newFakePatientRepo()
	pub := &recordingPublisher{}
	h := NewPatientHandler(NewPatientService(repo, pub, "patient.changed"))

	r := gin.New()
	api := r.Group("/api/v1")
	NewModule(h).RegisterRoutes(api)
	return r, repo, pub
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const createPatientBody = `{
	"first_name": "Triss",
	"last_name": "Merigold",
	"tr_id_number": "10000000146",
	"birth_date": "1990-05-10T00:00:00Z",
	"gender": "FEMALE",
	"blood_type": "A+"
}`

func TestPatientHandler_Create(t *testing.T) {
	r, repo, _ := setupPatientRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients", createPatientBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(repo.patients) != 1 {
		t.Errorf("persisted %d patients, want 1", len(repo.patients))
	}

	var resp struct {
		Data domain.Patient `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.ID == 0 || resp.Data.TRIDNumber != trIDValid {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestPatientHandler_Create_ValidationFailure(t *testing.T) {
	r, _, _ := setupPatientRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing tr id", `{"first_name":"T","last_name":"M","birth_date":"1990-05-10T00:00:00Z"}`},
		{"short tr id", `{"first_name":"T","last_name":"M","tr_id_number":"123","birth_date":"1990-05-10T00:00:00Z"}`},
		{"bad blood type", `{"first_name":"T","last_name":"M","tr_id_number":"10000000146","birth_date":"1990-05-10T00:00:00Z","blood_type":"X+"}`},
		{"missing birth date", `{"first_name":"T","last_name":"M","tr_id_number":"10000000146"}`},
		{"bad checksum", `{"first_name":"T","last_name":"M","tr_id_number":"10000000147","birth_date":"1990-05-10T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/patients", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPatientHandler_Create_Duplicate(t *testing.T) {
	r, repo, _ := setupPatientRouter()
	repo.add(*validPatient())

	w := doJSON(t, r, http.MethodPost, "/api/v1/patients", createPatientBody)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPatientHandler_Get(t *testing.T) {
	r, repo, _ := setupPatientRouter()
	p := repo.add(*validPatient())

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/patients/%d", p.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/patients/9999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown patient, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/patients/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestPatientHandler_GetByTRIDNumber(t *testing.T) {
	r, repo, _ := setupPatientRouter()
	repo.add(*validPatient())

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients/tr-id/"+trIDValid, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/patients/tr-id/"+trIDValidAlt, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown TR ID, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/patients/tr-id/123", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed TR ID, got %d", w.Code)
	}
}

func TestPatientHandler_List(t *testing.T) {
	r, repo, _ := setupPatientRouter()
	repo.add(*validPatient())

	w := doJSON(t, r, http.MethodGet, "/api/v1/patients?page=1&page_size=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data domain.PageResult[domain.Patient] `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Data.Total)
	}
}

func TestPatientHandler_Update(t *testing.T) {
	r, repo, _ := setupPatientRouter()
	p := repo.add(*validPatient())

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/patients/%d", p.ID), `{"blood_type":"B-"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.patients[p.ID].BloodType != "B-" {
		t.Errorf("blood type = %q, want B-", repo.patients[p.ID].BloodType)
	}
	if repo.patients[p.ID].TRIDNumber != trIDValid {
		t.Error("TR ID number must be immutable")
	}
}

func TestPatientHandler_DeleteAndRestore(t *testing.T) {
	r, repo, pub := setupPatientRouter()
	p := repo.add(*validPatient())

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/patients/%d", p.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !repo.patients[p.ID].Deleted {
		t.Error("patient should be soft-deleted")
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/patients/%d/restore", p.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.patients[p.ID].Deleted {
		t.Error("patient should be restored")
	}

	if len(pub.published) != 2 {
		t.Errorf("published %d events, want 2", len(pub.published))
	}
}
