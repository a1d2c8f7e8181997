package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("org_id", "org-a").Info("tenant context opened")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}
	if entry["msg"] != "tenant context opened" {
		t.Errorf("Expected message in output, got %v", entry["msg"])
	}
	if entry["org_id"] != "org-a" {
		t.Errorf("Expected org_id field, got %v", entry["org_id"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("Expected INFO level, got %v", entry["level"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Errorf("Expected below-level messages to be dropped, got %s", buf.String())
	}

	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Error("Expected warn message to be emitted")
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("pool exhausted")).Error("query failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}
	if entry["error"] != "pool exhausted" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}

	// nil errors add nothing
	if got := logger.WithError(nil); got != logger {
		t.Error("Expected WithError(nil) to return the same logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLogLevel(input); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if GetOrgID(ctx) != "" {
		t.Error("Expected empty org id on a bare context")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOrgID(ctx, "org-a")

	if GetRequestID(ctx) != "req-1" {
		t.Errorf("Expected request id req-1, got %s", GetRequestID(ctx))
	}
	if GetOrgID(ctx) != "org-a" {
		t.Errorf("Expected org id org-a, got %s", GetOrgID(ctx))
	}

	var buf bytes.Buffer
	ctx = WithLogger(ctx, NewLogger(InfoLevel, &buf))
	FromContext(ctx).Info("bound")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["org_id"] != "org-a" {
		t.Errorf("Expected context fields in output, got %v", entry)
	}
}
