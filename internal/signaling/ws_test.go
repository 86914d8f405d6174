package signaling_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/signaling"
)

func TestWebSocketTransportExchangesMessages(t *testing.T) {
	srv := newWSServer(t)
	ev := newEvents()

	tr := signaling.NewWebSocketTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())

	conn := srv.waitForClient(t)
	ev.waitOpen(t)

	// Binary frames are ignored.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"joined","rid":"room","cid":"C1","payload":{"hostCid":"C1"}}`)))

	msg := ev.waitMessage(t)
	assert.Equal(t, protocol.TypeJoined, msg.Type)
	assert.Equal(t, "room", msg.RID)
	assert.Equal(t, "C1", msg.Payload.String("hostCid"))

	tr.Send(protocol.New(protocol.TypeLeave, nil).WithRoom("room"))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	got, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeLeave, got.Type)
	assert.Equal(t, "room", got.RID)
}

func TestWebSocketTransportReportsServerClose(t *testing.T) {
	srv := newWSServer(t)
	ev := newEvents()

	tr := signaling.NewWebSocketTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())

	conn := srv.waitForClient(t)
	ev.waitOpen(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Equal(t, signaling.ReasonClose, ev.waitClosed(t))
}

func TestWebSocketTransportUnsupportedUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ev := newEvents()

	tr := signaling.NewWebSocketTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv), ev.callbacks())

	assert.Equal(t, signaling.ReasonUnsupported, ev.waitClosed(t))
}

func TestWebSocketTransportCloseIsSilent(t *testing.T) {
	srv := newWSServer(t)
	ev := newEvents()

	tr := signaling.NewWebSocketTransport(nil)
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	srv.waitForClient(t)
	ev.waitOpen(t)

	tr.Close()
	tr.Close()

	select {
	case reason := <-ev.closed:
		t.Fatalf("unexpected close event %q after client close", reason)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWebSocketTransportCloseFlushesQueuedFrames(t *testing.T) {
	for i := 0; i < 20; i++ {
		srv := newWSServer(t)
		ev := newEvents()

		tr := signaling.NewWebSocketTransport(nil)
		tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
		conn := srv.waitForClient(t)
		ev.waitOpen(t)

		tr.Send(protocol.New(protocol.TypeICE, nil).WithRoom("room"))
		tr.Send(protocol.New(protocol.TypeLeave, nil).WithRoom("room"))
		tr.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var got []string
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "run %d: %v", i, err)
				break
			}
			msg, err := protocol.Decode(data)
			require.NoError(t, err)
			got = append(got, msg.Type)
		}
		require.Equal(t, []string{protocol.TypeICE, protocol.TypeLeave}, got, "run %d", i)
	}
}

func TestWebSocketTransportSendAfterCloseIsDropped(t *testing.T) {
	srv := newWSServer(t)
	ev := newEvents()

	tr := signaling.NewWebSocketTransport(nil)
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	conn := srv.waitForClient(t)
	ev.waitOpen(t)

	tr.Close()
	tr.Send(protocol.New(protocol.TypeLeave, nil))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}
