// Package httpx holds the JSON error envelope shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-market/api/internal/platform/requestctx"
)

// Error is the wire shape of an API error. Request and trace identifiers are
// filled from context at write time when not set explicitly.
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an Error, defaulting a zero status to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    oneLine(code, 80),
		Message: oneLine(message, 512),
		Status:  status,
	}
}

// WithRequestID overrides the request identifier on the payload.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = oneLine(id, 80)
	return e
}

// WithTraceID overrides the trace identifier on the payload.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = oneLine(id, 64)
	return e
}

// WriteError renders the error envelope as JSON.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	if err.RequestID == "" {
		err.RequestID = oneLine(middleware.GetReqID(ctx), 80)
	}
	if err.TraceID == "" {
		err.TraceID = oneLine(requestctx.TraceID(ctx), 64)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err)
}

// oneLine collapses newlines and caps length so error payloads cannot carry
// injected log or header content.
func oneLine(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
