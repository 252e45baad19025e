package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestSubmitReportHandlerValidatesBody(t *testing.T) {
	workers, store := newTestWorkers(t)
	router := NewRouter(workers, store)

	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing target, got %d", rec.Code)
	}
}

func TestSubmitReportHandlerAccepts(t *testing.T) {
	workers, store := newTestWorkers(t)
	router := NewRouter(workers, store)

	body, _ := json.Marshal(submitRequest{ReportID: "r1", Target: filepath.Join(t.TempDir(), "t.log")})
	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitReportHandlerDecodesOptions(t *testing.T) {
	workers, store := newTestWorkers(t)
	router := NewRouter(workers, store)

	body, _ := json.Marshal(submitRequest{
		ReportID: "r2",
		Target:   filepath.Join(t.TempDir(), "t.log"),
		Options: map[string]interface{}{
			"is_json":       true,
			"message_field": "msg",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetReportHandlerNotFound(t *testing.T) {
	workers, store := newTestWorkers(t)
	router := NewRouter(workers, store)

	req := httptest.NewRequest(http.MethodGet, "/reports/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	workers, store := newTestWorkers(t)
	router := NewRouter(workers, store)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
