package signaling_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/roomcall/internal/eventloop"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/signaling"
	"github.com/1ureka/roomcall/internal/util"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeTransport records calls and lets the test fire events for any of the
// connections it was asked to make.
type fakeTransport struct {
	kind     signaling.TransportKind
	connects []signaling.Endpoint
	events   []signaling.TransportEvents
	sent     []protocol.Message
	closes   int
	resets   int
}

func (f *fakeTransport) Kind() signaling.TransportKind { return f.kind }

func (f *fakeTransport) Connect(ep signaling.Endpoint, ev signaling.TransportEvents) {
	f.connects = append(f.connects, ep)
	f.events = append(f.events, ev)
}

func (f *fakeTransport) Send(msg protocol.Message) { f.sent = append(f.sent, msg) }
func (f *fakeTransport) Close()                    { f.closes++ }
func (f *fakeTransport) ResetSession()             { f.resets++ }

// last returns the events of the most recent connection.
func (f *fakeTransport) last() signaling.TransportEvents { return f.events[len(f.events)-1] }

type recorder struct {
	opens    []string
	messages []protocol.Message
	closes   []string
}

func (r *recorder) OnOpen(transport string)        { r.opens = append(r.opens, transport) }
func (r *recorder) OnMessage(msg protocol.Message) { r.messages = append(r.messages, msg) }
func (r *recorder) OnClosed(reason string)         { r.closes = append(r.closes, reason) }

type fixture struct {
	loop *eventloop.Manual
	ws   *fakeTransport
	sse  *fakeTransport
	rec  *recorder
	c    *signaling.Client
}

func newFixture(t *testing.T, mutate func(*signaling.Options)) *fixture {
	t.Helper()
	f := &fixture{
		loop: eventloop.NewManual(epoch),
		ws:   &fakeTransport{kind: signaling.TransportWS},
		sse:  &fakeTransport{kind: signaling.TransportSSE},
		rec:  &recorder{},
	}
	opts := signaling.DefaultOptions()
	opts.Transports = []signaling.Transport{f.ws, f.sse}
	if mutate != nil {
		mutate(&opts)
	}
	f.c = signaling.NewClient(f.loop, f.rec, opts)
	return f
}

// run executes fn on the control loop and drains it.
func (f *fixture) run(fn func()) {
	f.loop.Post(fn)
	f.loop.Flush()
}

func TestClientOpensDuplexSocketFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("https://example.org/") })

	require.Len(t, f.ws.connects, 1)
	assert.Equal(t, signaling.Endpoint{Host: "example.org"}, f.ws.connects[0])
	assert.Empty(t, f.sse.connects)

	f.ws.last().OnOpen()
	f.loop.Flush()

	assert.Equal(t, []string{"ws"}, f.rec.opens)
	assert.True(t, f.c.IsConnected())

	var ok bool
	f.run(func() { ok = f.c.Send(protocol.New(protocol.TypeLeave, nil)) })
	assert.True(t, ok)
	require.Len(t, f.ws.sent, 1)
	assert.Equal(t, protocol.TypeLeave, f.ws.sent[0].Type)
}

func TestClientSendIsNoopUntilConnected(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })

	var ok bool
	f.run(func() { ok = f.c.Send(protocol.New(protocol.TypeJoin, nil)) })
	assert.False(t, ok)
	assert.Empty(t, f.ws.sent)
}

func TestClientFailsOverOnConnectTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })

	f.loop.Advance(2 * time.Second)

	require.Len(t, f.sse.connects, 1, "poll stream attempt should start")
	assert.Equal(t, "example.org", f.sse.connects[0].Host)
	assert.Empty(t, f.rec.closes, "failover is not reported upward")
	assert.Equal(t, signaling.TransportSSE, f.c.ActiveTransport())

	f.sse.last().OnOpen()
	f.loop.Flush()
	assert.Equal(t, []string{"sse"}, f.rec.opens)
}

func TestClientIgnoresSupersededAttempt(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })
	stale := f.ws.last()

	f.loop.Advance(2 * time.Second)
	require.Len(t, f.sse.connects, 1)

	// The timed out socket finally opens, then delivers and closes.
	stale.OnOpen()
	stale.OnMessage(protocol.New(protocol.TypeJoined, nil))
	stale.OnClosed("failure")
	f.loop.Flush()

	assert.Empty(t, f.rec.opens)
	assert.Empty(t, f.rec.messages)
	assert.Empty(t, f.rec.closes)
	assert.False(t, f.c.IsConnected())
	assert.Equal(t, signaling.TransportSSE, f.c.ActiveTransport())
	assert.Len(t, f.sse.connects, 1, "stale close must not start another attempt")
}

func TestClientFailoverRules(t *testing.T) {
	testCases := []struct {
		name       string
		openFirst  bool
		reason     string
		wantSSE    bool
		wantClosed []string
	}{
		{"unproven socket drop", false, "failure", true, nil},
		{"unsupported upgrade", false, "unsupported", true, nil},
		{"proven socket drop", true, "failure", false, []string{"failure"}},
		{"proven socket server close", true, "close", false, []string{"close"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.run(func() { f.c.Connect("example.org") })
			if tc.openFirst {
				f.ws.last().OnOpen()
				f.loop.Flush()
			}

			f.ws.last().OnClosed(tc.reason)
			f.loop.Flush()

			assert.Equal(t, tc.wantSSE, len(f.sse.connects) == 1)
			assert.Equal(t, tc.wantClosed, f.rec.closes)
		})
	}
}

func TestClientLastTransportReportsClose(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })
	f.loop.Advance(2 * time.Second)
	f.loop.Advance(2 * time.Second)

	assert.Equal(t, []string{"timeout"}, f.rec.closes)
	assert.False(t, f.c.IsConnected())
}

func TestClientForceEventStream(t *testing.T) {
	f := newFixture(t, func(o *signaling.Options) { o.ForceEventStream = true })
	f.run(func() { f.c.Connect("example.org") })

	assert.Empty(t, f.ws.connects)
	require.Len(t, f.sse.connects, 1)

	f.loop.Advance(2 * time.Second)
	assert.Equal(t, []string{"timeout"}, f.rec.closes, "nothing to fail over to")
}

func TestClientInvalidHost(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("  https:// ") })

	assert.Equal(t, []string{"invalid_host"}, f.rec.closes)
	assert.Empty(t, f.ws.connects)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })
	ev := f.ws.last()
	ev.OnOpen()
	f.loop.Flush()

	f.run(func() {
		f.c.Close()
		f.c.Close()
	})

	ev.OnMessage(protocol.New(protocol.TypeRoomState, nil))
	ev.OnClosed("close")
	f.loop.Advance(time.Minute)

	assert.False(t, f.c.IsConnected())
	assert.Empty(t, f.rec.messages)
	assert.Empty(t, f.rec.closes, "client close is not reported")
	assert.Empty(t, f.ws.sent, "no ping after close")
	assert.Zero(t, f.loop.Pending())
}

func TestClientKeepalive(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })
	f.ws.last().OnOpen()
	f.loop.Flush()

	f.loop.Advance(12 * time.Second)
	require.Len(t, f.ws.sent, 1)
	assert.Equal(t, protocol.TypePing, f.ws.sent[0].Type)

	f.loop.Advance(12 * time.Second)
	assert.Len(t, f.ws.sent, 2)

	f.ws.last().OnClosed("failure")
	f.loop.Flush()
	f.loop.Advance(time.Minute)
	assert.Len(t, f.ws.sent, 2, "ping stops with the connection")
}

func TestClientReconnectBackoff(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() { f.c.Connect("example.org") })
	f.ws.last().OnOpen()
	f.loop.Flush()
	f.ws.last().OnClosed("failure")
	f.loop.Flush()
	require.Equal(t, []string{"failure"}, f.rec.closes)

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	fired := 0
	for _, d := range want {
		var got time.Duration
		f.run(func() {
			got = f.c.ScheduleReconnect(func() (string, bool) {
				fired++
				return "", false
			})
		})
		assert.Equal(t, d, got)
		f.loop.Advance(d)
	}
	assert.Equal(t, len(want), fired)
}

func TestClientReconnectIsCoalescedAndResetOnOpen(t *testing.T) {
	f := newFixture(t, nil)
	target := func() (string, bool) { return "example.org", true }

	var first, second time.Duration
	f.run(func() {
		first = f.c.ScheduleReconnect(target)
		second = f.c.ScheduleReconnect(target)
	})
	assert.Equal(t, 500*time.Millisecond, first)
	assert.Zero(t, second, "one reconnect timer at a time")

	f.loop.Advance(500 * time.Millisecond)
	require.Len(t, f.ws.connects, 1)
	f.ws.last().OnOpen()
	f.loop.Flush()

	var again time.Duration
	f.run(func() { again = f.c.ScheduleReconnect(target) })
	assert.Equal(t, 500*time.Millisecond, again, "backoff resets after a successful open")
}

func TestClientCountsOnlyExecutedReconnects(t *testing.T) {
	f := newFixture(t, nil)
	before := util.Stats.Reconnects.Load()

	f.run(func() {
		f.c.ScheduleReconnect(func() (string, bool) { return "", false })
	})
	assert.Equal(t, before, util.Stats.Reconnects.Load(), "nothing counted while armed")
	f.loop.Advance(500 * time.Millisecond)
	assert.Equal(t, before, util.Stats.Reconnects.Load(), "abandoned reconnect is not counted")
	assert.Empty(t, f.ws.connects)

	f.run(func() {
		f.c.ScheduleReconnect(func() (string, bool) { return "example.org", true })
	})
	f.loop.Advance(time.Second)
	require.Len(t, f.ws.connects, 1)
	assert.Equal(t, before+1, util.Stats.Reconnects.Load())
}

func TestClientCloseCancelsReconnect(t *testing.T) {
	f := newFixture(t, nil)
	f.run(func() {
		f.c.ScheduleReconnect(func() (string, bool) { return "example.org", true })
		f.c.Close()
	})
	f.loop.Advance(time.Minute)
	assert.Empty(t, f.ws.connects)
}

func TestClientHostChangeResetsSessions(t *testing.T) {
	f := newFixture(t, nil)
	cycle := func(host string) {
		f.run(func() { f.c.Connect(host) })
		f.ws.last().OnOpen()
		f.loop.Flush()
		f.ws.last().OnClosed("failure")
		f.loop.Flush()
	}

	cycle("a.example.org")
	cycle("a.example.org")
	assert.Zero(t, f.sse.resets, "same host keeps the session id")

	cycle("b.example.org")
	assert.Equal(t, 1, f.sse.resets)
	assert.Equal(t, 1, f.ws.resets)
}
