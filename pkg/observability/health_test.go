package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker("sqlite", nil)

	req := httptest.NewRequest("GET", "/health/live", nil)
	rr := httptest.NewRecorder()

	checker.Liveness(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Liveness returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != StatusHealthy {
		t.Errorf("Expected status %q, got %v", StatusHealthy, response["status"])
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		checker := NewHealthChecker("postgres", pingerFunc(func(ctx context.Context) error {
			return nil
		}))

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()
		checker.Readiness(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Readiness returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}

		var status HealthStatus
		if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy status, got %s", status.Status)
		}
		if status.Backend != "postgres" {
			t.Errorf("Expected backend postgres, got %s", status.Backend)
		}
		if status.Dependencies["store"].Status != StatusHealthy {
			t.Errorf("Expected healthy store dependency, got %+v", status.Dependencies["store"])
		}
	})

	t.Run("unreachable store", func(t *testing.T) {
		checker := NewHealthChecker("postgres", pingerFunc(func(ctx context.Context) error {
			return errors.New("connection refused")
		}))

		req := httptest.NewRequest("GET", "/health/ready", nil)
		rr := httptest.NewRecorder()
		checker.Readiness(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("Readiness returned wrong status code: got %v want %v", rr.Code, http.StatusServiceUnavailable)
		}

		var status HealthStatus
		if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected unhealthy status, got %s", status.Status)
		}
		if status.Dependencies["store"].Message != "connection refused" {
			t.Errorf("Expected ping error in dependency message, got %q", status.Dependencies["store"].Message)
		}
	})

	t.Run("no pinger configured", func(t *testing.T) {
		checker := NewHealthChecker("sqlite", nil)

		status := checker.Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected healthy status without a pinger, got %s", status.Status)
		}
		if len(status.Dependencies) != 0 {
			t.Errorf("Expected no dependencies, got %v", status.Dependencies)
		}
	})
}
