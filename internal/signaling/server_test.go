package signaling_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/signaling"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer is a single-client WebSocket signaling server for tests.
type wsServer struct {
	*httptest.Server
	connCh chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{connCh: make(chan *websocket.Conn, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.connCh <- conn
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// waitForClient blocks until the transport has connected.
func (s *wsServer) waitForClient(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.connCh:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

// events turns transport callbacks into channels.
type events struct {
	open     chan struct{}
	messages chan protocol.Message
	closed   chan string
}

func newEvents() *events {
	return &events{
		open:     make(chan struct{}, 1),
		messages: make(chan protocol.Message, 16),
		closed:   make(chan string, 4),
	}
}

func (e *events) callbacks() signaling.TransportEvents {
	return signaling.TransportEvents{
		OnOpen:    func() { e.open <- struct{}{} },
		OnMessage: func(msg protocol.Message) { e.messages <- msg },
		OnClosed:  func(reason string) { e.closed <- reason },
	}
}

func (e *events) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-e.open:
	case reason := <-e.closed:
		t.Fatalf("closed before open: %s", reason)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for open")
	}
}

func (e *events) waitMessage(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-e.messages:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return protocol.Message{}
	}
}

func (e *events) waitClosed(t *testing.T) string {
	t.Helper()
	select {
	case reason := <-e.closed:
		return reason
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
		return ""
	}
}

func endpointOf(t *testing.T, srv *httptest.Server) signaling.Endpoint {
	t.Helper()
	ep, ok := signaling.ParseEndpoint(srv.URL)
	require.True(t, ok)
	return ep
}
