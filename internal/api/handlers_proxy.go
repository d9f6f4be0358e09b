// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/protocol"
)

// maxProxyBody bounds request bodies forwarded to devices.
const maxProxyBody = 10 << 20

// hopHeaders are connection-scoped and never forwarded in either direction.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// DeviceProxy handles /device/{callsign}/*. The request is forwarded over
// the device's WebSocket as HTTP_REQUEST and the correlated HTTP_RESPONSE
// is written back.
func (g *Gateway) DeviceProxy(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	callsign := chi.URLParam(r, "callsign")

	req, err := proxyRequest(r)
	if err != nil {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
		return
	}

	resp, err := g.cfg.Dispatcher.Proxy(r.Context(), callsign, req, g.cfg.ProxyTimeout)
	switch {
	case errors.Is(err, protocol.ErrNoDevice):
		rw.NotFound("device " + callsign + " is not connected")
		return
	case errors.Is(err, protocol.ErrProxyTimeout), errors.Is(err, context.DeadlineExceeded):
		rw.Error(http.StatusGatewayTimeout, ErrCodeGatewayTimeout, "device did not respond in time")
		return
	case errors.Is(err, protocol.ErrServerStopping):
		rw.ServiceUnavailable("server stopping")
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		logging.Ctx(r.Context()).Warn().Err(err).Str("callsign", callsign).Msg("device proxy failed")
		rw.Error(http.StatusBadGateway, ErrCodeBadGateway, "failed to reach device")
		return
	}

	writeProxyResponse(w, r, resp)
}

func proxyRequest(r *http.Request) (protocol.ProxyRequest, error) {
	path := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if hopHeaders[name] || len(values) == 0 {
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}

	req := protocol.ProxyRequest{Method: r.Method, Path: path, Headers: headers}
	if r.Body == nil {
		return req, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
	if err != nil {
		return req, err
	}
	if len(body) > maxProxyBody {
		return req, errBodyTooLarge
	}
	if utf8.Valid(body) {
		req.Body = string(body)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64 = true
	}
	return req, nil
}

func writeProxyResponse(w http.ResponseWriter, r *http.Request, resp protocol.HTTPResponseMessage) {
	body := []byte(resp.Body)
	if resp.IsBase64 {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			WriteError(w, r, http.StatusBadGateway, ErrCodeBadGateway, "device sent an undecodable body")
			return
		}
		body = decoded
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 999 {
		WriteError(w, r, http.StatusBadGateway, ErrCodeBadGateway, "device sent an invalid status code")
		return
	}

	for name, value := range resp.Headers {
		if hopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}
