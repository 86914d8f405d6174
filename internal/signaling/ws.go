package signaling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// wsTransport is the duplex socket transport: one WebSocket, one JSON
// message per text frame.
type wsTransport struct {
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	out    *sender
}

// NewWebSocketTransport returns the duplex socket transport. A nil dialer
// uses websocket.DefaultDialer.
func NewWebSocketTransport(dialer *websocket.Dialer) Transport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &wsTransport{dialer: dialer}
}

func (t *wsTransport) Kind() TransportKind { return TransportWS }

func (t *wsTransport) Connect(ep Endpoint, events TransportEvents) {
	t.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx, ep.WebSocketURL(), events)
}

// run dials, then reads until the connection drops. Nothing is reported once
// ctx is cancelled, since that means the client closed or superseded us.
func (t *wsTransport) run(ctx context.Context, url string, events TransportEvents) {
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if ctx.Err() == nil {
			util.LogDebug("ws dial %s failed: %v", url, err)
			events.OnClosed(dialFailureReason(err))
		}
		return
	}

	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	out := newSender(func(data []byte) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}, func(err error) {
		util.LogWarning("ws write failed: %v", err)
		conn.Close() // unblocks the read loop, which reports the close
	})
	t.out = out
	t.mu.Unlock()

	events.OnOpen()

	reason := readFrames(conn, events.OnMessage)
	out.close(0)
	if ctx.Err() == nil {
		events.OnClosed(reason)
	}
}

// readFrames decodes text frames until the connection fails and returns the
// close reason. Binary frames are ignored.
func readFrames(conn *websocket.Conn, dispatch func(protocol.Message)) string {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return readFailureReason(err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			util.LogWarning("ws dropped malformed message: %v", err)
			continue
		}
		util.Stats.AddRecv(len(data))
		dispatch(msg)
	}
}

func (t *wsTransport) Send(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		util.LogError("ws encode failed: %v", err)
		return
	}

	t.mu.Lock()
	out := t.out
	t.mu.Unlock()
	if out == nil {
		return
	}
	out.send(data)
}

// Close writes the frames already queued, then the close frame, and drops
// the connection. No events are reported after Close.
func (t *wsTransport) Close() {
	t.mu.Lock()
	conn, cancel, out := t.conn, t.cancel, t.out
	t.conn, t.cancel, t.out = nil, nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if out != nil && !out.close(drainTimeout) {
		util.LogWarning("ws close: queued frames not flushed within %v", drainTimeout)
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// ResetSession is a no-op: the duplex socket keeps no per-server state.
func (t *wsTransport) ResetSession() {}

// dialFailureReason maps a dial error to a close reason. A failed upgrade
// handshake means the server (or a proxy in between) does not speak
// WebSocket, which makes the poll stream worth trying.
func dialFailureReason(err error) string {
	if errors.Is(err, websocket.ErrBadHandshake) {
		return ReasonUnsupported
	}
	return ReasonFailure
}

func readFailureReason(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Text != "" {
			return closeErr.Text
		}
		return ReasonClose
	}
	return ReasonFailure
}
