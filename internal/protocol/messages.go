// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package protocol

// ProtocolVersion is reported in hello_ack.
const ProtocolVersion = "1.0"

// MessageType is the closed set of inbound typed frames. Anything else
// decodes to TypeUnknown and is offered to the extension hook.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeHello
	TypePing
	TypePong
	TypeHTTPResponse
	TypeBackupProviderAnnounce
)

var messageTypeNames = map[MessageType]string{
	TypeHello:                  "hello",
	TypePing:                   "PING",
	TypePong:                   "PONG",
	TypeHTTPResponse:           "HTTP_RESPONSE",
	TypeBackupProviderAnnounce: "backup_provider_announce",
}

// ParseMessageType maps a wire "type" to a MessageType. Matching is exact.
func ParseMessageType(s string) MessageType {
	for t, name := range messageTypeNames {
		if name == s {
			return t
		}
	}
	return TypeUnknown
}

// String returns the wire name, or "unknown".
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Outbound frame types.
const (
	TypeHelloAck    = "hello_ack"
	TypeHTTPRequest = "HTTP_REQUEST"
)

// Hello failure codes carried in hello_ack.error.
const (
	ErrCodeMissingNpub          = "missing_npub"
	ErrCodeCallsignNpubMismatch = "callsign_npub_mismatch"
	ErrCodeInvalidCallsign      = "invalid_callsign"
)

// envelope is decoded first to route a typed frame.
type envelope struct {
	Type string `json:"type"`
}

// NostrEvent is the signed event a client may embed in hello instead of a
// bare npub. Only pubkey and tags are read.
type NostrEvent struct {
	ID        string     `json:"id,omitempty"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at,omitempty"`
	Kind      int        `json:"kind,omitempty"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content,omitempty"`
	Sig       string     `json:"sig,omitempty"`
}

// Tag returns the first value of tag name.
func (e *NostrEvent) Tag(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// HelloMessage is the device handshake.
type HelloMessage struct {
	Type       string      `json:"type"`
	Npub       string      `json:"npub,omitempty"`
	Callsign   string      `json:"callsign,omitempty"`
	Nickname   string      `json:"nickname,omitempty"`
	Color      string      `json:"color,omitempty"`
	DeviceType string      `json:"device_type,omitempty"`
	Platform   string      `json:"platform,omitempty"`
	Version    string      `json:"version,omitempty"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	Event      *NostrEvent `json:"event,omitempty"`
}

// HelloAck answers a hello.
type HelloAck struct {
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	StationID   string `json:"station_id,omitempty"`
	StationName string `json:"station_name,omitempty"`
	Version     string `json:"version,omitempty"`
	Callsign    string `json:"callsign,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// PongMessage answers PING.
type PongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// HTTPRequestMessage asks a device to serve a proxied HTTP request.
type HTTPRequestMessage struct {
	Type      string            `json:"type"`
	RequestID string            `json:"requestId"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	IsBase64  bool              `json:"isBase64,omitempty"`
}

// HTTPResponseMessage is the device's answer to HTTPRequestMessage.
type HTTPResponseMessage struct {
	Type       string            `json:"type"`
	RequestID  string            `json:"requestId"`
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	IsBase64   bool              `json:"isBase64,omitempty"`
}

// ProviderAnnounceMessage advertises backup capacity.
type ProviderAnnounceMessage struct {
	Type                  string `json:"type"`
	MaxTotalStorageBytes  int64  `json:"max_total_storage_bytes"`
	MaxClientStorageBytes int64  `json:"max_client_storage_bytes"`
	MaxSnapshots          int    `json:"max_snapshots"`
	AcceptingClients      bool   `json:"accepting_clients"`
}
