package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fidde/streamcount/internal/storage/memory"
	"github.com/fidde/streamcount/pkg/models"
)

func newTestServer() *Server {
	return NewServer("127.0.0.1:0", memory.New(512))
}

func postValues(t *testing.T, srv *Server, counter string, values []string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ObserveRequest{Values: values})
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/counters/"+counter+"/values", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestObserveAndGetCounter(t *testing.T) {
	srv := newTestServer()

	values := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		values = append(values, fmt.Sprintf("user_%d", i))
	}
	rec := postValues(t, srv, "users", values)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST values status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var ack ObserveResponse
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if ack.Accepted != 1000 {
		t.Errorf("Accepted = %d, want 1000", ack.Accepted)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counters/users", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET counter status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report models.CounterReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Name != "users" {
		t.Errorf("Name = %s, want users", report.Name)
	}
	if report.Buckets != 512 {
		t.Errorf("Buckets = %d, want 512", report.Buckets)
	}
	if report.Estimate < 850 || report.Estimate > 1150 {
		t.Errorf("Estimate = %d, want ~1000", report.Estimate)
	}
	if report.ErrorPercent != nil {
		t.Error("ErrorPercent set without actual parameter")
	}
}

func TestGetCounterWithActual(t *testing.T) {
	srv := newTestServer()
	postValues(t, srv, "users", []string{"a", "b", "c", "a"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counters/users?actual=3", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET counter status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report models.CounterReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.ErrorPercent == nil {
		t.Fatal("ErrorPercent not set with actual parameter")
	}
	if report.ActualCount == nil || *report.ActualCount != 3 {
		t.Error("ActualCount not echoed back")
	}
}

func TestGetCounterBadActual(t *testing.T) {
	srv := newTestServer()
	postValues(t, srv, "users", []string{"a"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counters/users?actual=-5", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET counter with bad actual status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetCounterNotFound(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counters/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing counter status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestObserveBadRequests(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"empty values", `{"values": []}`},
		{"missing values", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/counters/users/values", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestListCounters(t *testing.T) {
	srv := newTestServer()
	postValues(t, srv, "zebra", []string{"a"})
	postValues(t, srv, "alpha", []string{"b"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/counters", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET counters status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Counters []*models.CounterReport `json:"counters"`
		Total    int                     `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}
	if resp.Counters[0].Name != "alpha" || resp.Counters[1].Name != "zebra" {
		t.Error("counters not sorted by name")
	}
}

func TestClear(t *testing.T) {
	srv := newTestServer()
	postValues(t, srv, "users", []string{"a", "b"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/clear", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST clear status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/counters/users", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET cleared counter status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %s, want ok", health.Status)
	}
}
