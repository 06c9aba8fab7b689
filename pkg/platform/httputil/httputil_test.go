package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sarathi/pkg/domerrors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, domerrors.New(domerrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, domerrors.New(domerrors.CodeValidation, "phone must be 10 digits"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation" {
			t.Fatalf("expected error code validation, got %q", body["error"])
		}
		if body["error_description"] != "phone must be 10 digits" {
			t.Fatalf("expected error_description to be returned for validation errors")
		}
	})

	t.Run("capacity exhaustion maps to conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, domerrors.New(domerrors.CodeCapacityExhausted, "no slots remaining"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
	})

	t.Run("wrapped store error keeps outer code", func(t *testing.T) {
		w := httptest.NewRecorder()
		inner := domerrors.New(domerrors.CodeInternal, "cursor closed")
		WriteError(w, domerrors.Wrap(inner, domerrors.CodeNotFound, "application not found"))

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}
