// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import (
	"errors"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/protocol"
	"github.com/tomtom215/station/internal/websocket"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	StationMode         string  `json:"station_mode"`
	Callsign            string  `json:"callsign"`
	Npub                string  `json:"npub"`
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	Location            string  `json:"location"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	Version             string  `json:"version"`
	ProtocolVersion     string  `json:"protocol_version"`
	Uptime              int64   `json:"uptime"`
	ConnectedDevices    int     `json:"connected_devices"`
	TileServerEnabled   bool    `json:"tile_server_enabled"`
	UpdateMirrorEnabled bool    `json:"update_mirror_enabled"`
	TLSEnabled          bool    `json:"tls_enabled"`
	SMTPEnabled         bool    `json:"smtp_enabled"`
}

// ClientsResponse is the body of GET /api/clients.
type ClientsResponse struct {
	Count   int                     `json:"count"`
	Clients []websocket.SessionInfo `json:"clients"`
}

// ProvidersResponse is the body of GET /api/backup/providers.
type ProvidersResponse struct {
	Count     int                       `json:"count"`
	Providers []websocket.ProviderEntry `json:"providers"`
}

// NostrJSONResponse is the NIP-05 well-known document.
type NostrJSONResponse struct {
	Names map[string]string `json:"names"`
}

func (g *Gateway) status() StatusResponse {
	s := g.cfg.Settings()
	return StatusResponse{
		StationMode:         s.Station.Mode,
		Callsign:            s.Callsign(),
		Npub:                s.Identity.Npub,
		Name:                s.Station.Name,
		Description:         s.Station.Description,
		Location:            s.Station.Location,
		Latitude:            s.Station.Latitude,
		Longitude:           s.Station.Longitude,
		Version:             g.cfg.Version,
		ProtocolVersion:     protocol.ProtocolVersion,
		Uptime:              int64(time.Since(g.cfg.StartedAt).Seconds()),
		ConnectedDevices:    g.cfg.Registry.Count(),
		TileServerEnabled:   s.Tiles.Enabled,
		UpdateMirrorEnabled: s.Updates.MirrorEnabled,
		TLSEnabled:          s.TLS.Enabled,
		SMTPEnabled:         s.SMTP.Enabled,
	}
}

// Status handles GET /api/status and GET /status.
func (g *Gateway) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, g.status())
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Name}} ({{.Callsign}})</title></head>
<body>
<h1>{{.Name}}</h1>
<p>{{.Description}}</p>
<table>
<tr><th>Callsign</th><td>{{.Callsign}}</td></tr>
<tr><th>Mode</th><td>{{.StationMode}}</td></tr>
<tr><th>Location</th><td>{{.Location}}</td></tr>
<tr><th>Connected devices</th><td>{{.ConnectedDevices}}</td></tr>
<tr><th>Tile server</th><td>{{if .TileServerEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Update mirror</th><td>{{if .UpdateMirrorEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Version</th><td>{{.Version}}</td></tr>
</table>
</body>
</html>
`))

// StatusPage handles GET /. A bundled index.html wins over the built-in
// page.
func (g *Gateway) StatusPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if g.cfg.Assets != nil {
		if page := g.cfg.Assets.LoadAsset("index.html"); page != nil {
			_, _ = w.Write(page)
			return
		}
	}
	if err := statusPage.Execute(w, g.status()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render status page")
	}
}

// Clients handles GET /api/clients and GET /api/devices.
func (g *Gateway) Clients(w http.ResponseWriter, r *http.Request) {
	clients := g.cfg.Registry.Sessions()
	WriteJSON(w, r, ClientsResponse{Count: len(clients), Clients: clients})
}

// BackupProviders handles GET /api/backup/providers.
func (g *Gateway) BackupProviders(w http.ResponseWriter, r *http.Request) {
	list := g.cfg.Registry.Providers().List()
	WriteJSON(w, r, ProvidersResponse{Count: len(list), Providers: list})
}

// GeoIP handles GET /api/geoip?ip=X. Without ip the caller's address is
// located.
func (g *Gateway) GeoIP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if g.cfg.GeoIP == nil {
		rw.ServiceUnavailable("geoip database not available")
		return
	}

	raw := r.URL.Query().Get("ip")
	if raw == "" {
		raw = remoteHost(r.RemoteAddr)
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		rw.BadRequest("invalid ip address")
		return
	}

	loc, err := g.cfg.GeoIP.Locate(r.Context(), ip)
	switch {
	case errors.Is(err, ErrLocationNotFound):
		rw.NotFound("no location for " + ip.String())
	case err != nil:
		logging.Ctx(r.Context()).Warn().Err(err).Str("ip", ip.String()).Msg("geoip lookup failed")
		rw.ServiceUnavailable("geoip lookup failed")
	default:
		if loc.IP == "" {
			loc.IP = ip.String()
		}
		rw.JSON(loc)
	}
}

// NostrJSON handles GET /.well-known/nostr.json?name=X.
func (g *Gateway) NostrJSON(w http.ResponseWriter, r *http.Request) {
	// NIP-05 clients fetch this cross-origin regardless of CORS settings.
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rw := NewResponseWriter(w, r)
	name := identity.NormalizeName(r.URL.Query().Get("name"))
	if name == "" {
		rw.BadRequest("name parameter is required")
		return
	}

	hex, ok := g.resolveName(name)
	if !ok {
		rw.NotFound("name not registered")
		return
	}
	rw.JSON(NostrJSONResponse{Names: map[string]string{name: hex}})
}

// resolveName maps a NIP-05 name to a hex public key. The station's own
// callsign resolves to the station key.
func (g *Gateway) resolveName(name string) (string, bool) {
	s := g.cfg.Settings()
	if cs := s.Callsign(); cs != "" && strings.EqualFold(cs, name) {
		if hex, err := identity.NpubToHex(s.Identity.Npub); err == nil {
			return hex, true
		}
	}
	if g.cfg.Names == nil {
		return "", false
	}
	reg, ok := g.cfg.Names.Lookup(name)
	if !ok || reg.Hex == "" {
		return "", false
	}
	return reg.Hex, true
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
