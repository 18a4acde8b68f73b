package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Montabos/Projet/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
	}{
		{"200 with map", http.StatusOK, map[string]string{"key": "value"}, http.StatusOK},
		{"201 with struct", http.StatusCreated, struct{ ID int }{ID: 42}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondJSON(rec, tt.status, tt.data)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Errorf("status: got %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if ct := res.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}

			body, _ := io.ReadAll(res.Body)
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()

	handlers.RespondError(rec, logger, http.StatusBadRequest, errors.New("invalid input"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}

	var parsed map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed["error"] != "invalid input" {
		t.Errorf("error: got %s, want invalid input", parsed["error"])
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name       string
		input      string
		allowEmpty bool
		wantErr    bool
		wantName   string
	}{
		{"valid", `{"name":"a"}`, false, false, "a"},
		{"empty allowed", ``, true, false, ""},
		{"empty rejected", ``, false, true, ""},
		{"unknown field", `{"other":1}`, false, true, ""},
		{"malformed", `{"name":`, true, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))

			var got body
			err := handlers.DecodeJSON(req, &got, tt.allowEmpty)
			if tt.wantErr {
				if !errors.Is(err, handlers.ErrInvalidBody) {
					t.Fatalf("error: got %v, want ErrInvalidBody", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("name: got %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestDecodeJSONTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a long value"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 4)

	var v map[string]string
	err := handlers.DecodeJSON(req, &v, false)
	if !errors.Is(err, handlers.ErrBodyTooLarge) {
		t.Fatalf("error: got %v, want ErrBodyTooLarge", err)
	}
	if status := handlers.DecodeStatus(err); status != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", status)
	}
	if status := handlers.DecodeStatus(handlers.ErrInvalidBody); status != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", status)
	}
}
