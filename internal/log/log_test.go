package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, ComponentHousehold)
	l.Info("Occupant added", FieldOccupantID, "Alice")

	out := buf.String()
	assert.Contains(t, out, "component=household")
	assert.Contains(t, out, "occupant_id=Alice")
	assert.Equal(t, ComponentHousehold, l.Component())
	assert.Equal(t, ComponentStorage, l.WithComponent(ComponentStorage).Component())
}

func TestStructuredLoggerAllocation(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentApp))
	sl.LogAllocationComputed(context.Background(), "March 2025", "equal", 2, 2300000)

	out := buf.String()
	assert.Contains(t, out, "total_cents=2300000")
	assert.Contains(t, out, "policy=equal")
	assert.Contains(t, out, "operation=calculate")
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentApp))
	sl.LogError(context.Background(), "Save failed", errors.New("disk full"), ComponentStorage, OpSave, NewFields())

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `error="disk full"`)
}

func TestMiddlewareStoresLogger(t *testing.T) {
	l := Discard().WithComponent(ComponentHTTP)
	var got *Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if assert.NotNil(t, got) {
		assert.Equal(t, ComponentHTTP, got.Component())
	}
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, ComponentHTTP)

	var seen string
	h := Middleware(l)(RequestIDMiddleware(func(r *http.Request) string {
		return "req_42"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		FromContext(r.Context()).InfoContext(r.Context(), "Handled")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/snapshot", nil))

	assert.Equal(t, "req_42", seen)
	assert.Equal(t, "req_42", rr.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "request_id=req_42")
	assert.Contains(t, buf.String(), "component=http")
	assert.Empty(t, RequestID(context.Background()))
}
