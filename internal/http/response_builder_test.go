package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"rentsplit/internal/core"
	"rentsplit/internal/services"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]string{"name": "Alice"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if w.Body.String() != "{\"name\":\"Alice\"}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_Text(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Text("up 1\n").Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "up 1\n" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "up 1\n")
	}
}

func TestResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Header("X-Custom", "value").
		Status(http.StatusNoContent).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q, want 'value'", w.Header().Get("X-Custom"))
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestResponseBuilder_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(map[string]any{"bad": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *ResponseBuilder
		wantStatus int
	}{
		{"bad request", BadRequestError("oops"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("oops"), http.StatusUnprocessableEntity},
		{"not found", NotFoundError("oops"), http.StatusNotFound},
		{"unavailable", ServiceUnavailableError("oops"), http.StatusServiceUnavailable},
		{"internal", InternalServerError("oops"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Body is not JSON: %v", err)
			}
			if body.Error != "oops" {
				t.Errorf("error = %q, want 'oops'", body.Error)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow = %q, want 'GET, POST'", w.Header().Get("Allow"))
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        &core.ValidationError{Field: "rent", Err: core.ErrInvalidAmount},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "invalid rent: invalid amount",
		},
		{
			name:       "wrapped allocation error",
			err:        fmt.Errorf("compute: %w", &core.InvalidAllocationError{Sum: decimal.NewFromInt(90), Reason: "total percentage must be 100%"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "compute: total percentage must be 100% (current: 90.0)",
		},
		{
			name:       "no occupants",
			err:        core.ErrNoOccupants,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   core.ErrNoOccupants.Error(),
		},
		{
			name:       "unknown preset",
			err:        services.ErrUnknownPreset,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   services.ErrUnknownPreset.Error(),
		},
		{
			name:       "publishing disabled",
			err:        services.ErrPublishingDisabled,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   services.ErrPublishingDisabled.Error(),
		},
		{
			name:       "internal errors are hidden",
			err:        errors.New("disk on fire at /var/lib/rentsplit"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Body is not JSON: %v", err)
			}
			if body.Error != tt.wantBody {
				t.Errorf("error = %q, want %q", body.Error, tt.wantBody)
			}
		})
	}
}
