package lab

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func postLab(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/labs", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h.CreateLab(e.NewContext(req, rec))
}

func TestHandler_CreateLab(t *testing.T) {
	svc, _, pid, _ := newTestService()
	h := NewHandler(svc)

	rec, err := postLab(t, h, `{"patient_id":"`+pid.String()+`","lab_code":"GLU","lab_name":"Glucose","result_value":150.0,"result_unit":"mg/dL","is_abnormal":false}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var got Lab
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsAbnormal {
		t.Error("client-supplied is_abnormal must be ignored")
	}
	if got.LabName != "Glucose" || got.ResultUnit == nil || *got.ResultUnit != "mg/dL" || got.CollectedAt.IsZero() {
		t.Errorf("unexpected lab %+v", got)
	}
}

func TestHandler_CreateLab_Errors(t *testing.T) {
	svc, _, pid, _ := newTestService()
	h := NewHandler(svc)

	_, err := postLab(t, h, `{"patient_id":"not-a-uuid","lab_code":"GLU","lab_name":"Glucose"}`)
	expectHTTPError(t, err, http.StatusBadRequest)

	_, err = postLab(t, h, `{"patient_id":"`+pid.String()+`","lab_name":"Glucose"}`)
	expectHTTPError(t, err, http.StatusBadRequest)

	_, err = postLab(t, h, `{"patient_id":"`+uuid.New().String()+`","lab_code":"GLU","lab_name":"Glucose"}`)
	expectHTTPError(t, err, http.StatusNotFound)
}

func TestHandler_ListPatientLabs(t *testing.T) {
	svc, _, pid, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(pid.String())
	if err := h.ListPatientLabs(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("bad")
	expectHTTPError(t, h.ListPatientLabs(c), http.StatusBadRequest)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPError(t, h.ListPatientLabs(c), http.StatusNotFound)
}
