// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"rentsplit/internal/core"
	"rentsplit/internal/services"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	body        any
	raw         []byte
	contentType string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	b.raw = nil
	b.contentType = "application/json"
	return b
}

// Text sets a plain text response body.
func (b *ResponseBuilder) Text(s string) *ResponseBuilder {
	b.body = nil
	b.raw = []byte(s)
	b.contentType = "text/plain; charset=utf-8"
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	payload := b.raw
	if b.body != nil {
		data, err := json.Marshal(b.body)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"response encoding failed"}`))
			return
		}
		payload = append(data, '\n')
	}

	w.WriteHeader(b.statusCode)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// isClientError reports whether err is caused by the request or by the
// current setup rather than by the server.
func isClientError(err error) bool {
	var verr *core.ValidationError
	var aerr *core.InvalidAllocationError
	return errors.As(err, &verr) ||
		errors.As(err, &aerr) ||
		errors.Is(err, core.ErrNoOccupants) ||
		errors.Is(err, services.ErrUnknownPreset)
}

// FromError maps a service error onto a response. Internal errors are not
// echoed to the client.
func FromError(err error) *ResponseBuilder {
	switch {
	case isClientError(err):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, services.ErrPublishingDisabled):
		return ServiceUnavailableError(err.Error())
	default:
		return InternalServerError("internal error")
	}
}
