// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
)

func TestResponseWriter_JSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)

	NewResponseWriter(w, r).JSON(map[string]string{"callsign": "X3ABCD"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["callsign"] != "X3ABCD" {
		t.Errorf("callsign = %q", body["callsign"])
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(*ResponseWriter)
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("missing name") }, http.StatusBadRequest, ErrCodeBadRequest, "missing name"},
		{"forbidden", func(rw *ResponseWriter) { rw.Forbidden("localhost only") }, http.StatusForbidden, ErrCodeForbidden, "localhost only"},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("no such device") }, http.StatusNotFound, ErrCodeNotFound, "no such device"},
		{"method not allowed", func(rw *ResponseWriter) { rw.MethodNotAllowed() }, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed"},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("boom") }, http.StatusInternalServerError, ErrCodeInternalError, "boom"},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("no release yet") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no release yet"},
		{"custom", func(rw *ResponseWriter) { rw.Error(http.StatusGatewayTimeout, ErrCodeGatewayTimeout, "device timed out") }, http.StatusGatewayTimeout, ErrCodeGatewayTimeout, "device timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.write(NewResponseWriter(w, r))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body APIError
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Code != tt.wantCode || body.Error != tt.wantError {
				t.Errorf("body = %+v, want code %s error %q", body, tt.wantCode, tt.wantError)
			}
		})
	}
}

func TestResponseWriter_RequestID(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-42"))

	WriteError(w, r, http.StatusBadGateway, ErrCodeBadGateway, "device unreachable")

	var body APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.RequestID != "req-42" {
		t.Errorf("request_id = %q, want req-42", body.RequestID)
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	WriteNotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil), "nothing here")
	if w.Code != http.StatusNotFound {
		t.Errorf("WriteNotFound status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	WriteJSON(w, httptest.NewRequest(http.MethodGet, "/", nil), []int{1, 2})
	if w.Code != http.StatusOK || w.Body.String() != "[1,2]\n" {
		t.Errorf("WriteJSON = %d %q", w.Code, w.Body.String())
	}
}
