package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gatehouse-auth/gatehouse/pkg/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates an id", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = observability.GetRequestID(r.Context())
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

		if seen == "" {
			t.Error("expected a request id in the context")
		}
		if rr.Header().Get("X-Request-ID") != seen {
			t.Error("expected the response header to carry the same id")
		}
	})

	t.Run("honors a caller-supplied id", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = observability.GetRequestID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Request-ID", "caller-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "caller-1" {
			t.Errorf("expected caller-1, got %s", seen)
		}
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := Chain(RequestIDMiddleware, LoggingMiddleware(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health/ready", nil))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry["path"] != "/health/ready" {
		t.Errorf("expected path field, got %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected captured status code, got %v", entry["status"])
	}
	if entry["request_id"] == "" {
		t.Error("expected request id field")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if buf.Len() == 0 {
		t.Error("expected the panic to be logged")
	}
}
