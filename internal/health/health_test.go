package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_HealthAggregatesChecks(t *testing.T) {
	s := NewServer(0, "v1")
	s.RegisterCheck("rpc", func(context.Context) (bool, string) { return true, "chain 1" })
	s.RegisterCheck("queue", func(context.Context) (bool, string) { return false, "stuck" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "degraded" || status.Version != "v1" {
		t.Errorf("status = %+v", status)
	}
	if !status.Checks["rpc"].Healthy || status.Checks["queue"].Message != "stuck" {
		t.Errorf("checks = %+v", status.Checks)
	}
}

func TestServer_ReadyAndLive(t *testing.T) {
	s := NewServer(0, "")
	s.RegisterCheck("rpc", func(context.Context) (bool, string) { return true, "" })

	for _, path := range []string{"/ready", "/live"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s code = %d", path, rec.Code)
		}
	}
}
