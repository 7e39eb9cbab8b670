package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubRunner struct {
	answer string
	err    error
}

func (s *stubRunner) Run(ctx context.Context, task string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestHealthz(t *testing.T) {
	router := NewRouter(&stubRunner{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRunReturnsAgentAnswer(t *testing.T) {
	router := NewRouter(&stubRunner{answer: "done"}, Config{})
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"task":"go"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Answer != "done" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
}

func TestRunRejectsEmptyTask(t *testing.T) {
	router := NewRouter(&stubRunner{}, Config{})
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"task":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunSurfacesAgentError(t *testing.T) {
	router := NewRouter(&stubRunner{err: errors.New("browser crashed")}, Config{})
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"task":"go"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRunRequiresAuthWhenSecretConfigured(t *testing.T) {
	router := NewRouter(&stubRunner{answer: "done"}, Config{JWTSecret: []byte("test-secret-at-least-32-bytes-long!")})
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"task":"go"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect to /login for unauthenticated request, got %d", rec.Code)
	}
}
