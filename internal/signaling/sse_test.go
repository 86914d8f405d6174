package signaling_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/signaling"
)

// sseServer streams whatever is written to push and records POSTed bodies.
type sseServer struct {
	*httptest.Server
	push     chan string
	postCode int

	mu    sync.Mutex
	sids  []string
	posts []string
}

func newSSEServer(t *testing.T) *sseServer {
	t.Helper()
	s := &sseServer{push: make(chan string, 16), postCode: http.StatusNoContent}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("sid")
		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			s.sids = append(s.sids, sid)
			s.mu.Unlock()

			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			for {
				select {
				case chunk, ok := <-s.push:
					if !ok {
						return
					}
					io.WriteString(w, chunk)
					w.(http.Flusher).Flush()
				case <-r.Context().Done():
					return
				}
			}
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			s.mu.Lock()
			s.posts = append(s.posts, sid+" "+string(body))
			s.mu.Unlock()
			w.WriteHeader(s.postCode)
		}
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *sseServer) snapshot() (sids, posts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sids...), append([]string(nil), s.posts...)
}

func TestEventStreamTransportDispatchesFrames(t *testing.T) {
	srv := newSSEServer(t)
	ev := newEvents()

	tr := signaling.NewEventStreamTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	ev.waitOpen(t)

	srv.push <- ": keepalive\n\n"
	srv.push <- "data: {\"type\":\"room_state\",\n"
	srv.push <- "data: \"payload\":{\"hostCid\":\"H\"}}\n\n"

	msg := ev.waitMessage(t)
	assert.Equal(t, protocol.TypeRoomState, msg.Type)
	assert.Equal(t, "H", msg.Payload.String("hostCid"))

	tr.Send(protocol.New(protocol.TypeJoin, nil).WithRoom("r1"))

	require.Eventually(t, func() bool {
		_, posts := srv.snapshot()
		return len(posts) == 1
	}, 5*time.Second, 10*time.Millisecond)

	sids, posts := srv.snapshot()
	require.Len(t, sids, 1)
	assert.Regexp(t, `^S-[0-9a-f]{16}$`, sids[0])
	assert.True(t, strings.HasPrefix(posts[0], sids[0]+" "), "post carries the stream's sid")
	assert.Contains(t, posts[0], `"type":"join"`)
}

func TestEventStreamTransportGoneEndsSession(t *testing.T) {
	srv := newSSEServer(t)
	srv.postCode = http.StatusGone
	ev := newEvents()

	tr := signaling.NewEventStreamTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	ev.waitOpen(t)

	tr.Send(protocol.New(protocol.TypePing, nil))
	assert.Equal(t, signaling.ReasonGone, ev.waitClosed(t))
}

func TestEventStreamTransportStreamEnd(t *testing.T) {
	srv := newSSEServer(t)
	ev := newEvents()

	tr := signaling.NewEventStreamTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	ev.waitOpen(t)

	srv.push <- `data: {"type":"room_ended"}`
	close(srv.push)

	assert.Equal(t, protocol.TypeRoomEnded, ev.waitMessage(t).Type, "unterminated frame is flushed at end of stream")
	assert.Equal(t, signaling.ReasonClose, ev.waitClosed(t))
}

func TestEventStreamTransportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	ev := newEvents()

	tr := signaling.NewEventStreamTransport(nil)
	defer tr.Close()
	tr.Connect(endpointOf(t, srv), ev.callbacks())

	assert.Equal(t, fmt.Sprintf("http_%d", http.StatusServiceUnavailable), ev.waitClosed(t))
}

func TestEventStreamTransportResetSessionMintsNewID(t *testing.T) {
	srv := newSSEServer(t)

	tr := signaling.NewEventStreamTransport(nil)
	defer tr.Close()

	first := newEvents()
	tr.Connect(endpointOf(t, srv.Server), first.callbacks())
	first.waitOpen(t)

	tr.ResetSession()
	second := newEvents()
	tr.Connect(endpointOf(t, srv.Server), second.callbacks())
	second.waitOpen(t)

	sids, _ := srv.snapshot()
	require.Len(t, sids, 2)
	assert.NotEqual(t, sids[0], sids[1])
}

func TestEventStreamTransportClosePostsQueuedMessages(t *testing.T) {
	srv := newSSEServer(t)
	ev := newEvents()

	tr := signaling.NewEventStreamTransport(nil)
	tr.Connect(endpointOf(t, srv.Server), ev.callbacks())
	ev.waitOpen(t)

	tr.Send(protocol.New(protocol.TypeICE, nil).WithRoom("room"))
	tr.Send(protocol.New(protocol.TypeEndRoom, nil).WithRoom("room"))
	tr.Close()

	_, posts := srv.snapshot()
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0], `"type":"ice"`)
	assert.Contains(t, posts[1], `"type":"end_room"`)

	select {
	case reason := <-ev.closed:
		t.Fatalf("unexpected close event %q after client close", reason)
	case <-time.After(100 * time.Millisecond):
	}
}
