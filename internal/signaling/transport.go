// Package signaling carries protocol messages between the client and the
// signaling server over a duplex WebSocket or an event-stream fallback.
package signaling

import (
	"net/url"
	"strings"

	"github.com/1ureka/roomcall/internal/protocol"
)

// TransportKind names a wire transport. The values double as the labels
// handed to Listener.OnOpen.
type TransportKind string

const (
	TransportWS  TransportKind = "ws"
	TransportSSE TransportKind = "sse"
)

// Close reasons reported through TransportEvents.OnClosed and Listener.OnClosed.
const (
	ReasonTimeout     = "timeout"
	ReasonUnsupported = "unsupported"
	ReasonClose       = "close"
	ReasonFailure     = "failure"
	ReasonGone        = "gone"
	ReasonInvalidHost = "invalid_host"
	ReasonEmptyBody   = "empty_body"
)

// TransportEvents are invoked from transport goroutines. The Client re-posts
// every one of them onto its control loop before looking at state.
type TransportEvents struct {
	OnOpen    func()
	OnMessage func(msg protocol.Message)
	OnClosed  func(reason string)
}

// Transport is one wire implementation of the signaling channel.
//
// Connect supersedes any earlier connection of the same transport. Once Close
// returns, no further events are delivered for the closed connection.
type Transport interface {
	Kind() TransportKind
	Connect(ep Endpoint, events TransportEvents)
	Send(msg protocol.Message)
	Close()
	// ResetSession drops sticky per-server state, such as the poll-stream
	// session id.
	ResetSession()
}

// Endpoint is a normalized signaling server address.
type Endpoint struct {
	Host     string // host[:port], no scheme, no trailing slash
	Insecure bool   // plain ws:// and http://, only when explicitly requested
}

// ParseEndpoint normalizes a user supplied host. An "https://" prefix is
// stripped, an "http://" prefix selects the insecure schemes, and a trailing
// slash is dropped. Blank input is rejected.
func ParseEndpoint(input string) (Endpoint, bool) {
	host := strings.TrimSpace(input)
	insecure := false
	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
		insecure = true
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return Endpoint{}, false
	}
	return Endpoint{Host: host, Insecure: insecure}, true
}

// WebSocketURL returns the duplex socket endpoint.
func (e Endpoint) WebSocketURL() string {
	scheme := "wss"
	if e.Insecure {
		scheme = "ws"
	}
	return (&url.URL{Scheme: scheme, Host: e.Host, Path: "/ws"}).String()
}

// EventStreamURL returns the poll-stream endpoint for session sid.
func (e Endpoint) EventStreamURL(sid string) string {
	return (&url.URL{
		Scheme:   e.httpScheme(),
		Host:     e.Host,
		Path:     "/sse",
		RawQuery: url.Values{"sid": {sid}}.Encode(),
	}).String()
}

// HTTPBase returns the REST base URL, e.g. "https://example.org".
func (e Endpoint) HTTPBase() string {
	return e.httpScheme() + "://" + e.Host
}

func (e Endpoint) httpScheme() string {
	if e.Insecure {
		return "http"
	}
	return "https"
}
