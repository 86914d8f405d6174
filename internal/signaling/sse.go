package signaling

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// sseTransport is the poll-stream transport: a long-lived GET carrying an
// event stream, plus one POST per outbound message, correlated by sid.
type sseTransport struct {
	client *http.Client

	mu          sync.Mutex
	sid         string
	cancel      context.CancelFunc // stream and event reporting
	cancelPosts context.CancelFunc // in-flight POSTs, outlives cancel by the drain
	out         *sender
}

// NewEventStreamTransport returns the poll-stream transport. The client must
// not carry an overall timeout since the stream is read indefinitely; nil
// uses http.DefaultClient.
func NewEventStreamTransport(client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &sseTransport{client: client, sid: newSessionID()}
}

// newSessionID returns a fresh poll-stream session id, "S-" + 16 hex chars.
func newSessionID() string {
	id := uuid.New()
	return "S-" + hex.EncodeToString(id[:8])
}

func (t *sseTransport) Kind() TransportKind { return TransportSSE }

func (t *sseTransport) Connect(ep Endpoint, events TransportEvents) {
	t.Close()

	ctx, cancel := context.WithCancel(context.Background())
	postCtx, cancelPosts := context.WithCancel(context.Background())

	t.mu.Lock()
	url := ep.EventStreamURL(t.sid)
	t.cancel, t.cancelPosts = cancel, cancelPosts
	t.out = newSender(func(data []byte) error {
		t.post(postCtx, ctx, url, data, events)
		return nil
	}, func(error) {})
	t.mu.Unlock()

	go t.run(ctx, url, events)
}

// run opens the stream and dispatches frames until it ends.
func (t *sseTransport) run(ctx context.Context, url string, events TransportEvents) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		events.OnClosed(ReasonFailure)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			util.LogDebug("sse connect %s failed: %v", url, err)
			events.OnClosed(ReasonFailure)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if ctx.Err() == nil {
			events.OnClosed(fmt.Sprintf("http_%d", resp.StatusCode))
		}
		return
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if ctx.Err() == nil {
			events.OnClosed(ReasonEmptyBody)
		}
		return
	}

	events.OnOpen()

	reason := readEventStream(resp.Body, events.OnMessage)
	if ctx.Err() == nil {
		events.OnClosed(reason)
	}
}

// post delivers one outbound message on postCtx. A 410 means the server
// dropped our session, which is reported like the stream closing unless ctx
// was cancelled.
func (t *sseTransport) post(postCtx, ctx context.Context, url string, data []byte, events TransportEvents) {
	req, err := http.NewRequestWithContext(postCtx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		util.LogError("sse post: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if postCtx.Err() == nil {
			util.LogWarning("sse post failed: %v", err)
		}
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusGone && ctx.Err() == nil {
		events.OnClosed(ReasonGone)
	}
}

func (t *sseTransport) Send(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		util.LogError("sse encode failed: %v", err)
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

// Close ends the stream, then posts the messages already queued before
// abandoning any request still in flight. No events are reported after Close.
func (t *sseTransport) Close() {
	t.mu.Lock()
	cancel, cancelPosts, out := t.cancel, t.cancelPosts, t.out
	t.cancel, t.cancelPosts, t.out = nil, nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if out != nil && !out.close(drainTimeout) {
		util.LogWarning("sse close: queued messages not posted within %v", drainTimeout)
	}
	if cancelPosts != nil {
		cancelPosts()
	}
}

func (t *sseTransport) ResetSession() {
	t.mu.Lock()
	t.sid = newSessionID()
	t.mu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// Event stream framing
// ──────────────────────────────────────────────────────────────────────────────

// frameParser accumulates "data:" lines and dispatches one message per
// blank-line terminated frame. Comment lines and other fields are ignored.
type frameParser struct {
	data     strings.Builder
	dispatch func(protocol.Message)
}

func (p *frameParser) feed(line string) {
	line = strings.TrimSuffix(line, "\r")
	switch {
	case line == "":
		p.flush()
	case strings.HasPrefix(line, ":"):
	case strings.HasPrefix(line, "data:"):
		value := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if p.data.Len() > 0 {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
	}
}

func (p *frameParser) flush() {
	if p.data.Len() == 0 {
		return
	}
	raw := p.data.String()
	p.data.Reset()

	msg, err := protocol.Decode([]byte(raw))
	if err != nil {
		util.LogWarning("sse dropped malformed message: %v", err)
		return
	}
	util.Stats.AddRecv(len(raw))
	p.dispatch(msg)
}

// readEventStream parses r until it ends and returns the close reason. A
// frame left unterminated at end of input is still dispatched.
func readEventStream(r io.Reader, dispatch func(protocol.Message)) string {
	br := bufio.NewReader(r)
	p := frameParser{dispatch: dispatch}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return ReasonFailure
			}
			if line != "" {
				p.feed(line)
			}
			p.flush()
			return ReasonClose
		}
		p.feed(strings.TrimSuffix(line, "\n"))
	}
}
