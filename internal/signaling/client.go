package signaling

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/1ureka/roomcall/internal/eventloop"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// Listener receives transport-agnostic connection events. All methods are
// called on the control loop.
type Listener interface {
	OnOpen(transport string)
	OnMessage(msg protocol.Message)
	OnClosed(reason string)
}

// Options tunes a Client. Zero durations fall back to the defaults.
type Options struct {
	ConnectTimeout time.Duration // per attempt, 2s
	PingInterval   time.Duration // keepalive, 12s
	ReconnectBase  time.Duration // first reconnect delay, 500ms
	ReconnectMax   time.Duration // reconnect delay cap, 5s

	// ForceEventStream restricts the preference order to the poll stream.
	ForceEventStream bool

	// Transports overrides the default duplex-socket-then-poll-stream order.
	Transports []Transport

	Dialer     *websocket.Dialer
	HTTPClient *http.Client
}

// DefaultOptions returns the product tuning values.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 2 * time.Second,
		PingInterval:   12 * time.Second,
		ReconnectBase:  500 * time.Millisecond,
		ReconnectMax:   5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = def.ReconnectBase
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = def.ReconnectMax
	}
	return o
}

// Client owns transport selection, attempt identity, connect timeout,
// keepalive, failover and reconnect backoff.
//
// Every method must be called on the control loop. Transport callbacks are
// re-posted there and checked against the current attempt, so a callback from
// a superseded attempt never mutates state.
type Client struct {
	loop     eventloop.Scheduler
	listener Listener
	opts     Options

	order      []TransportKind
	transports map[TransportKind]Transport
	proven     map[TransportKind]bool // opened at least once for this host

	endpoint    Endpoint
	hasEndpoint bool

	index          int
	attemptSeq     int64
	activeAttempt  int64 // 0 when no attempt is current
	activeKind     TransportKind
	connected      bool
	connecting     bool
	closedByClient bool

	connectTimer   eventloop.Timer
	pingTimer      eventloop.Timer
	reconnectTimer eventloop.Timer
	backoff        *backoff.ExponentialBackOff
}

// NewClient builds a client that reports to listener.
func NewClient(loop eventloop.Scheduler, listener Listener, opts Options) *Client {
	opts = opts.withDefaults()

	transports := opts.Transports
	if len(transports) == 0 {
		transports = []Transport{
			NewWebSocketTransport(opts.Dialer),
			NewEventStreamTransport(opts.HTTPClient),
		}
	}

	c := &Client{
		loop:       loop,
		listener:   listener,
		opts:       opts,
		transports: make(map[TransportKind]Transport),
		proven:     make(map[TransportKind]bool),
		backoff:    newReconnectBackoff(opts.ReconnectBase, opts.ReconnectMax),
	}
	for _, tr := range transports {
		if opts.ForceEventStream && tr.Kind() != TransportSSE {
			continue
		}
		c.order = append(c.order, tr.Kind())
		c.transports[tr.Kind()] = tr
	}
	return c
}

// newReconnectBackoff returns a deterministic doubling backoff capped at max
// that never gives up on its own.
func newReconnectBackoff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// ──────────────────────────────────────────────────────────────────────────────
// Public API
// ──────────────────────────────────────────────────────────────────────────────

// Connect starts a connect cycle to host unless one is already open or in
// progress. A blank host is reported as OnClosed("invalid_host").
func (c *Client) Connect(host string) {
	if c.connected || c.connecting {
		return
	}
	ep, ok := ParseEndpoint(host)
	if !ok {
		c.loop.Post(func() { c.listener.OnClosed(ReasonInvalidHost) })
		return
	}
	if len(c.order) == 0 {
		c.loop.Post(func() { c.listener.OnClosed(ReasonUnsupported) })
		return
	}

	c.stopTimer(&c.reconnectTimer)
	if c.hasEndpoint && ep != c.endpoint {
		c.resetSessions()
	}
	c.endpoint, c.hasEndpoint = ep, true
	c.closedByClient = false
	c.proven = make(map[TransportKind]bool)
	c.connectWith(0)
}

// Send hands msg to the open transport. It reports false, and sends nothing,
// unless connected.
func (c *Client) Send(msg protocol.Message) bool {
	if !c.connected {
		return false
	}
	tr := c.transports[c.activeKind]
	if tr == nil {
		return false
	}
	util.LogDebug("TX %s", msg.Type)
	tr.Send(msg)
	return true
}

// Close cancels every transport, timer and pending reconnect. It is safe to
// call repeatedly.
func (c *Client) Close() {
	c.closedByClient = true
	c.stopTimer(&c.connectTimer)
	c.stopTimer(&c.pingTimer)
	c.stopTimer(&c.reconnectTimer)

	c.connected, c.connecting = false, false
	c.activeAttempt, c.activeKind = 0, ""
	c.index = 0
	c.closeTransports()

	if c.hasEndpoint {
		c.resetSessions()
	}
	c.hasEndpoint = false
	c.endpoint = Endpoint{}
	c.proven = make(map[TransportKind]bool)
	c.backoff.Reset()
}

// IsConnected reports whether a transport is open.
func (c *Client) IsConnected() bool { return c.connected }

// ActiveTransport returns the kind of the current attempt, or "".
func (c *Client) ActiveTransport() TransportKind { return c.activeKind }

// ScheduleReconnect arms a single reconnect timer using exponential backoff
// and returns its delay. When the timer fires, target is asked for the host
// to reconnect to; ok=false abandons the reconnect. A reconnect already
// scheduled is left alone and 0 is returned.
func (c *Client) ScheduleReconnect(target func() (host string, ok bool)) time.Duration {
	if c.reconnectTimer != nil {
		return 0
	}

	delay := c.backoff.NextBackOff()
	util.LogDebug("signaling reconnect scheduled in %s", delay)

	c.reconnectTimer = c.loop.AfterFunc(delay, func() {
		c.reconnectTimer = nil
		if c.connected || c.connecting {
			return
		}
		host, ok := target()
		if !ok {
			util.LogDebug("signaling reconnect abandoned")
			return
		}
		util.Stats.AddReconnect()
		util.LogWarning("signaling reconnecting after %s", delay)
		c.Connect(host)
	})
	return delay
}

// ──────────────────────────────────────────────────────────────────────────────
// Attempt bookkeeping
// ──────────────────────────────────────────────────────────────────────────────

func (c *Client) connectWith(index int) {
	kind := c.order[index]
	tr := c.transports[kind]

	c.closeTransports()
	c.stopTimer(&c.connectTimer)
	c.stopTimer(&c.pingTimer)

	c.attemptSeq++
	id := c.attemptSeq
	c.index = index
	c.activeAttempt, c.activeKind = id, kind
	c.connecting, c.connected = true, false

	util.LogDebug("signaling attempt %d via %s to %s", id, kind, c.endpoint.Host)

	tr.Connect(c.endpoint, TransportEvents{
		OnOpen: func() {
			c.loop.Post(func() { c.handleOpen(id, kind) })
		},
		OnMessage: func(msg protocol.Message) {
			c.loop.Post(func() { c.handleMessage(id, kind, msg) })
		},
		OnClosed: func(reason string) {
			c.loop.Post(func() { c.handleClosed(id, kind, reason) })
		},
	})

	c.connectTimer = c.loop.AfterFunc(c.opts.ConnectTimeout, func() {
		c.connectTimer = nil
		if !c.isCurrent(id, kind) || c.connected {
			return
		}
		util.LogWarning("signaling %s connect timed out", kind)
		c.handleClosed(id, kind, ReasonTimeout)
	})
}

func (c *Client) isCurrent(id int64, kind TransportKind) bool {
	return id != 0 && id == c.activeAttempt && kind == c.activeKind
}

func (c *Client) handleOpen(id int64, kind TransportKind) {
	if !c.isCurrent(id, kind) {
		return
	}
	c.stopTimer(&c.connectTimer)
	c.connecting, c.connected = false, true
	c.proven[kind] = true
	c.backoff.Reset()

	util.LogSuccess("signaling connected via %s", kind)
	c.startPing()
	c.listener.OnOpen(string(kind))
}

func (c *Client) handleMessage(id int64, kind TransportKind, msg protocol.Message) {
	if !c.isCurrent(id, kind) {
		return
	}
	util.LogDebug("RX %s", msg.Type)
	c.listener.OnMessage(msg)
}

func (c *Client) handleClosed(id int64, kind TransportKind, reason string) {
	if !c.isCurrent(id, kind) {
		return
	}
	c.stopTimer(&c.connectTimer)
	c.stopTimer(&c.pingTimer)
	c.connecting, c.connected = false, false
	c.activeAttempt, c.activeKind = 0, ""
	c.closeTransports()

	if c.closedByClient {
		return
	}
	if c.shouldFailover(kind, reason) {
		next := c.order[c.index+1]
		util.LogWarning("signaling %s closed (%s), falling back to %s", kind, reason, next)
		c.connectWith(c.index + 1)
		return
	}

	util.LogWarning("signaling closed: %s", reason)
	c.index = 0
	c.listener.OnClosed(reason)
}

// shouldFailover moves on to the next transport only when one remains and
// either the attempt was never going to work on this transport, or this
// transport has not yet proven itself for the current host.
func (c *Client) shouldFailover(kind TransportKind, reason string) bool {
	if len(c.order) < 2 || c.index >= len(c.order)-1 {
		return false
	}
	if reason == ReasonTimeout || reason == ReasonUnsupported {
		return true
	}
	return !c.proven[kind]
}

func (c *Client) startPing() {
	c.stopTimer(&c.pingTimer)

	var tick func()
	tick = func() {
		c.pingTimer = nil
		if !c.connected {
			return
		}
		c.Send(protocol.New(protocol.TypePing, nil))
		c.pingTimer = c.loop.AfterFunc(c.opts.PingInterval, tick)
	}
	c.pingTimer = c.loop.AfterFunc(c.opts.PingInterval, tick)
}

func (c *Client) closeTransports() {
	for _, kind := range c.order {
		c.transports[kind].Close()
	}
}

func (c *Client) resetSessions() {
	for _, kind := range c.order {
		c.transports[kind].ResetSession()
	}
}

func (c *Client) stopTimer(t *eventloop.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
