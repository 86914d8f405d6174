// Package call implements the call session: the phase machine that joins a
// room over signaling, follows its membership, and drives media negotiation.
package call

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/1ureka/roomcall/internal/eventloop"
	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/signaling"
	"github.com/1ureka/roomcall/internal/util"
)

const (
	DefaultHost   = "serenada.app"
	DefaultDevice = "desktop"
)

var defaultICEServers = []negotiation.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

// Timing holds the recovery tuning values.
type Timing struct {
	OfferTimeout       time.Duration // unanswered offer before rollback
	RestartCooldown    time.Duration // minimum gap between executed ICE restarts
	DisconnectDebounce time.Duration // delay before a disconnected state restarts ICE
	OfferRetry         time.Duration // delay before retrying a failed restart offer
}

// DefaultTiming returns the production values.
func DefaultTiming() Timing {
	return Timing{
		OfferTimeout:       8 * time.Second,
		RestartCooldown:    10 * time.Second,
		DisconnectDebounce: 2 * time.Second,
		OfferRetry:         500 * time.Millisecond,
	}
}

// Config wires a Session to its collaborators.
type Config struct {
	Loop eventloop.Scheduler

	// NewSignaling builds the signaling client once per session.
	NewSignaling func(l signaling.Listener) Signaling
	// NewEngine builds a fresh media engine for every join.
	NewEngine func(events negotiation.Events) MediaEngine

	API       API
	Settings  Settings
	Lifecycle Lifecycle // optional

	// OnState receives every published snapshot, on the loop.
	OnState func(UIState)

	Device            string
	DefaultICEServers []negotiation.ICEServer
	Timing            Timing

	// Go runs blocking API calls. Defaults to a new goroutine.
	Go func(fn func())
}

// Session is the call state machine. Its exported methods may be called from
// any goroutine; they post onto the loop, which owns all other state.
type Session struct {
	cfg    Config
	loop   eventloop.Scheduler
	sig    Signaling
	engine MediaEngine

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	snapshot UIState

	ui UIState

	roomID   string
	clientID string
	hostCID  string
	// serial invalidates engine events and API results from earlier calls.
	serial uint64

	pendingJoin     string
	pendingMessages []protocol.Message
	watched         []string

	sentOffer      bool
	isMakingOffer  bool
	pendingRestart bool
	lastRestartAt  time.Time
	offerTimer     eventloop.Timer
	restartTimer   eventloop.Timer

	// restartFailures counts consecutive restart offers that failed.
	restartFailures int
}

// New builds an idle Session.
func New(cfg Config) *Session {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if len(cfg.DefaultICEServers) == 0 {
		cfg.DefaultICEServers = defaultICEServers
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Go == nil {
		cfg.Go = func(fn func()) { go fn() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:    cfg,
		loop:   cfg.Loop,
		ctx:    ctx,
		cancel: cancel,
	}
	s.sig = cfg.NewSignaling(listener{s})
	s.ui = freshState(PhaseIdle, UIState{Host: s.host()})
	s.ui.AudioEnabled = cfg.Settings.DefaultAudio()
	s.ui.VideoEnabled = cfg.Settings.DefaultVideo()
	s.snapshot = s.ui.clone()
	return s
}

// State returns the latest published snapshot.
func (s *Session) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.clone()
}

// ──────────────────────────────────────────────────────────────────────────────
// Public operations
// ──────────────────────────────────────────────────────────────────────────────

// Join joins a room by id or share link.
func (s *Session) Join(input string) { s.loop.Post(func() { s.joinFromInput(input) }) }

// StartNewCall asks the server for a new room id and joins it.
func (s *Session) StartNewCall() { s.loop.Post(s.startNewCall) }

// Leave leaves the current call. A host ends the room for everyone.
func (s *Session) Leave() { s.loop.Post(s.leave) }

// DismissError returns from the error phase to idle.
func (s *Session) DismissError() {
	s.loop.Post(func() {
		if s.ui.Phase != PhaseError {
			return
		}
		s.ui = freshState(PhaseIdle, s.ui)
		s.ui.AudioEnabled = s.cfg.Settings.DefaultAudio()
		s.ui.VideoEnabled = s.cfg.Settings.DefaultVideo()
		s.publish()
	})
}

// WatchRooms subscribes to participant counts for rids, keeping a signaling
// connection open while idle. An empty list stops watching.
func (s *Session) WatchRooms(rids []string) {
	rids = slices.Clone(rids)
	s.loop.Post(func() { s.setWatched(rids) })
}

// SetHost changes the signaling server used by the next connection.
func (s *Session) SetHost(host string) { s.loop.Post(func() { s.updateHost(host) }) }

// NetworkChanged reports that the local network came back or changed.
func (s *Session) NetworkChanged() {
	s.loop.Post(func() {
		if s.ui.Phase == PhaseInCall {
			s.scheduleICERestart("network-online", 0)
		}
	})
}

// ToggleAudio flips the local audio track.
func (s *Session) ToggleAudio() {
	s.loop.Post(func() {
		s.ui.AudioEnabled = !s.ui.AudioEnabled
		if s.engine != nil {
			s.engine.SetAudioEnabled(s.ui.AudioEnabled)
		}
		s.publish()
	})
}

// ToggleVideo flips the local video track.
func (s *Session) ToggleVideo() {
	s.loop.Post(func() {
		s.ui.VideoEnabled = !s.ui.VideoEnabled
		if s.engine != nil {
			s.engine.SetVideoEnabled(s.ui.VideoEnabled)
		}
		s.publish()
	})
}

// Close tears everything down without notifying the room. It returns once
// the teardown has run on the loop, or ctx is done.
func (s *Session) Close(ctx context.Context) error {
	done := make(chan struct{})
	s.loop.Post(func() {
		defer close(done)
		inCall := s.roomID != ""
		s.watched = nil
		s.resetResources()
		s.cancel()
		if inCall {
			s.callStopped()
		}
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Join / leave
// ──────────────────────────────────────────────────────────────────────────────

func (s *Session) joinFromInput(input string) {
	if s.ui.Phase != PhaseIdle && s.ui.Phase != PhaseError {
		util.LogWarning("join ignored while %s", s.ui.Phase)
		return
	}
	roomID, host, ok := ParseJoinInput(input)
	if !ok {
		s.showError("enter a room id or link")
		return
	}
	if host != "" {
		s.updateHost(host)
	}
	s.joinRoom(roomID)
}

func (s *Session) startNewCall() {
	if s.ui.Phase != PhaseIdle && s.ui.Phase != PhaseError {
		util.LogWarning("new call ignored while %s", s.ui.Phase)
		return
	}
	s.serial++
	serial, host := s.serial, s.host()
	s.ui = freshState(PhaseCreatingRoom, s.ui)
	s.publish()

	util.LogInfo("requesting a new room from %s", host)
	s.cfg.Go(func() {
		rid, err := s.cfg.API.CreateRoomID(s.ctx, host)
		s.loop.Post(func() {
			if serial != s.serial || s.ui.Phase != PhaseCreatingRoom {
				return
			}
			if err != nil {
				util.LogError("create room: %v", err)
				s.fail(err.Error())
				return
			}
			s.joinRoom(rid)
		})
	})
}

func (s *Session) joinRoom(roomID string) {
	if strings.TrimSpace(roomID) == "" {
		s.fail("enter a room id or link")
		return
	}

	if s.engine != nil {
		s.engine.Release()
	}
	s.serial++
	s.roomID = roomID
	s.clientID = ""
	s.hostCID = ""
	s.sentOffer = false
	s.pendingMessages = nil
	s.engine = s.cfg.NewEngine(s.engineEvents(s.serial))

	audio, video := s.cfg.Settings.DefaultAudio(), s.cfg.Settings.DefaultVideo()
	s.ui = freshState(PhaseJoining, s.ui)
	s.ui.RoomID = roomID
	s.ui.AudioEnabled = audio
	s.ui.VideoEnabled = video
	s.publish()
	s.cfg.Settings.SetLastRoomID(roomID)

	util.LogInfo("joining room %s", roomID)
	if err := s.engine.StartLocalMedia(); err != nil {
		util.LogError("%v", err)
		s.resetResources()
		s.fail(err.Error())
		return
	}
	if !audio {
		s.engine.SetAudioEnabled(false)
	}
	if !video {
		s.engine.SetVideoEnabled(false)
	}

	s.ensureSignaling()
	if s.cfg.Lifecycle != nil {
		s.cfg.Lifecycle.CallStarted(roomID)
	}
}

func (s *Session) ensureSignaling() {
	if s.sig.IsConnected() {
		s.sendJoin(s.roomID)
		s.sendWatchRooms()
		return
	}
	s.pendingJoin = s.roomID
	s.sig.Connect(s.host())
}

func (s *Session) sendJoin(roomID string) {
	if !s.sig.IsConnected() || roomID == "" {
		return
	}
	reconnect := s.clientID
	if reconnect == "" {
		reconnect = s.cfg.Settings.ReconnectCID()
	}
	payload := protocol.JoinPayload(protocol.JoinOptions{
		Device:       s.cfg.Device,
		TrickleICE:   true,
		ReconnectCID: reconnect,
	})
	s.sig.Send(protocol.New(protocol.TypeJoin, payload).WithRoom(roomID))
}

func (s *Session) sendMessage(typ string, payload protocol.Payload) {
	msg := protocol.New(typ, payload).WithRoom(s.roomID)
	if s.clientID != "" {
		msg = msg.WithClient(s.clientID)
	}
	s.sig.Send(msg)
}

func (s *Session) leave() {
	if s.ui.Phase == PhaseIdle || s.ui.Phase == PhaseError {
		return
	}
	if s.roomID != "" {
		if s.ui.IsHost {
			s.sendMessage(protocol.TypeEndRoom, nil)
		} else {
			s.sendMessage(protocol.TypeLeave, nil)
		}
	}
	s.cleanupCall()
}

// cleanupCall ends the call locally after a clean leave or a room_ended.
func (s *Session) cleanupCall() {
	s.ui.Phase = PhaseEnding
	s.publish()

	s.cfg.Settings.SetReconnectCID("")
	s.resetResources()
	s.ui = freshState(PhaseIdle, s.ui)
	s.ui.AudioEnabled = s.cfg.Settings.DefaultAudio()
	s.ui.VideoEnabled = s.cfg.Settings.DefaultVideo()
	s.publish()
	s.callStopped()
	s.watchRoomsIfNeeded()
}

// resetResources releases signaling, media and every timer. The published
// phase is left to the caller.
func (s *Session) resetResources() {
	s.sig.Close()
	if s.engine != nil {
		s.engine.Release()
		s.engine = nil
	}
	s.serial++
	s.roomID = ""
	s.clientID = ""
	s.hostCID = ""
	s.pendingJoin = ""
	s.pendingMessages = nil
	s.sentOffer = false
	s.isMakingOffer = false
	s.pendingRestart = false
	s.lastRestartAt = time.Time{}
	s.restartFailures = 0
	s.clearOfferTimer()
	s.clearRestartTimer()

	s.ui.SignalingConnected = false
	s.ui.Transport = ""
	s.ui.Reconnecting = false
}

// fail tears down and enters the error phase. Watched rooms keep being
// watched.
func (s *Session) fail(message string) {
	inCall := s.roomID != ""
	s.resetResources()
	s.showError(message)
	if inCall {
		s.callStopped()
	}
	s.watchRoomsIfNeeded()
}

func (s *Session) showError(message string) {
	s.ui = freshState(PhaseError, s.ui)
	s.ui.Error = message
	s.publish()
}

func (s *Session) callStopped() {
	if s.cfg.Lifecycle != nil {
		s.cfg.Lifecycle.CallStopped()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Host and watched rooms
// ──────────────────────────────────────────────────────────────────────────────

func (s *Session) host() string {
	if h := strings.TrimSpace(s.cfg.Settings.Host()); h != "" {
		return h
	}
	return DefaultHost
}

func (s *Session) updateHost(host string) {
	host = strings.TrimSpace(host)
	if host == "" || host == s.host() {
		return
	}
	s.cfg.Settings.SetHost(host)
	s.ui.Host = host
	s.publish()
	util.LogInfo("server host set to %s", host)

	if s.roomID == "" && len(s.watched) > 0 {
		s.sig.Close()
		s.ui.SignalingConnected = false
		s.ui.Transport = ""
		s.watchRoomsIfNeeded()
	}
}

func (s *Session) setWatched(rids []string) {
	seen := make(map[string]bool, len(rids))
	watched := make([]string, 0, len(rids))
	for _, rid := range rids {
		rid = strings.TrimSpace(rid)
		if rid == "" || seen[rid] {
			continue
		}
		seen[rid] = true
		watched = append(watched, rid)
	}
	s.watched = watched

	statuses := make(map[string]int)
	for rid, n := range s.ui.RoomStatuses {
		if seen[rid] {
			statuses[rid] = n
		}
	}
	s.ui.RoomStatuses = statuses
	s.publish()
	s.watchRoomsIfNeeded()
}

func (s *Session) watchRoomsIfNeeded() {
	if len(s.watched) == 0 {
		if s.roomID == "" && s.sig.IsConnected() {
			s.sig.Close()
			s.ui.SignalingConnected = false
			s.ui.Transport = ""
			s.publish()
		}
		return
	}
	if s.sig.IsConnected() {
		s.sendWatchRooms()
		return
	}
	s.sig.Connect(s.host())
}

func (s *Session) sendWatchRooms() {
	if len(s.watched) == 0 || !s.sig.IsConnected() {
		return
	}
	s.sig.Send(protocol.New(protocol.TypeWatchRooms, protocol.WatchRoomsPayload(s.watched)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Signaling events
// ──────────────────────────────────────────────────────────────────────────────

// listener receives signaling.Client callbacks, which already run on the loop.
type listener struct{ s *Session }

func (l listener) OnOpen(transport string) {
	s := l.s
	s.ui.SignalingConnected = true
	s.ui.Transport = transport
	s.ui.Reconnecting = false
	s.publish()

	if s.pendingJoin != "" {
		rid := s.pendingJoin
		s.pendingJoin = ""
		s.sendJoin(rid)
	}
	s.sendWatchRooms()
	if s.pendingRestart {
		s.loop.Post(func() { s.triggerICERestart("signaling-reconnect") })
	}
}

func (l listener) OnClosed(reason string) {
	s := l.s
	util.LogDebug("signaling closed while %s (%s)", s.ui.Phase, reason)
	s.ui.SignalingConnected = false
	s.ui.Transport = ""

	if s.roomID != "" || len(s.watched) > 0 {
		s.ui.Reconnecting = true
		s.sig.ScheduleReconnect(s.reconnectTarget)
	}
	s.publish()
}

// reconnectTarget decides, when the backoff fires, whether there is still
// anything to reconnect for.
func (s *Session) reconnectTarget() (string, bool) {
	switch {
	case s.roomID != "":
		s.pendingJoin = s.roomID
		return s.host(), true
	case len(s.watched) > 0:
		return s.host(), true
	default:
		s.ui.Reconnecting = false
		s.publish()
		return "", false
	}
}

func (l listener) OnMessage(msg protocol.Message) {
	s := l.s
	switch msg.Type {
	case protocol.TypeJoined:
		s.handleJoined(msg)
	case protocol.TypeRoomState:
		s.handleRoomState(msg)
	case protocol.TypeRoomEnded:
		if s.roomID != "" {
			util.LogInfo("room ended")
			s.cleanupCall()
		}
	case protocol.TypeRoomStatuses:
		s.handleRoomStatuses(msg)
	case protocol.TypeRoomStatusUpdate:
		s.handleRoomStatusUpdate(msg)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICE:
		s.handleMediaMessage(msg)
	case protocol.TypeError:
		s.handleError(msg)
	default:
		util.LogDebug("ignoring %s", msg.Type)
	}
}

func (s *Session) handleJoined(msg protocol.Message) {
	if s.roomID == "" || s.engine == nil {
		return
	}
	s.clientID = msg.CID
	if msg.CID != "" {
		s.cfg.Settings.SetReconnectCID(msg.CID)
	}
	s.ui.LocalCID = msg.CID
	s.publish()

	if state, ok := protocol.ParseRoomState(msg.Payload); ok {
		s.hostCID = state.HostCID
		s.updateParticipants(state)
	}

	token := strings.TrimSpace(msg.Payload.String("turnToken"))
	if token == "" {
		s.applyICEServers(s.cfg.DefaultICEServers)
		return
	}
	s.fetchTURN(token)
}

func (s *Session) fetchTURN(token string) {
	serial, host := s.serial, s.host()
	s.cfg.Go(func() {
		creds, err := s.cfg.API.TURNCredentials(s.ctx, host, token)
		s.loop.Post(func() {
			if serial != s.serial || s.engine == nil {
				return
			}
			if err != nil {
				util.LogWarning("TURN credentials unavailable, using STUN: %v", err)
				s.applyICEServers(s.cfg.DefaultICEServers)
				return
			}
			util.LogDebug("TURN credentials received (%d uris, ttl %ds)", len(creds.URIs), creds.TTL)
			s.applyICEServers([]negotiation.ICEServer{{
				URLs:       creds.URIs,
				Username:   creds.Username,
				Credential: creds.Password,
			}})
		})
	})
}

func (s *Session) applyICEServers(servers []negotiation.ICEServer) {
	if err := s.engine.SetICEServers(servers); err != nil {
		util.LogError("%v", err)
	}
	s.flushPendingMessages()
	s.maybeSendOffer(false, false)
}

func (s *Session) flushPendingMessages() {
	if len(s.pendingMessages) == 0 {
		return
	}
	if !s.engine.IsReady() {
		if err := s.engine.EnsurePeerConnection(); err != nil || !s.engine.IsReady() {
			return
		}
	}
	queued := s.pendingMessages
	s.pendingMessages = nil
	for _, msg := range queued {
		s.processMediaMessage(msg)
	}
}

func (s *Session) handleRoomState(msg protocol.Message) {
	if s.roomID == "" || s.engine == nil {
		return
	}
	state, ok := protocol.ParseRoomState(msg.Payload)
	if !ok {
		util.LogDebug("room_state without host ignored")
		return
	}
	s.hostCID = state.HostCID
	s.updateParticipants(state)
}

func (s *Session) updateParticipants(state protocol.RoomState) {
	count := len(state.Participants)
	isHost := s.clientID != "" && s.clientID == state.HostCID

	if count <= 1 {
		s.sentOffer = false
		s.isMakingOffer = false
		s.pendingRestart = false
		s.clearOfferTimer()
		s.clearRestartTimer()
		if s.engine.IsReady() {
			s.engine.ClosePeerConnection()
		}
		s.ui.Phase = PhaseWaiting
		s.ui.RemoteAudio = false
		s.ui.RemoteVideo = false
		s.ui.ConnectionState = "new"
		s.ui.ICEConnectionState = "new"
		s.ui.SignalingState = string(negotiation.SignalingStable)
	} else {
		s.ui.Phase = PhaseInCall
	}
	s.ui.IsHost = isHost
	s.ui.Participants = count
	s.publish()

	if count > 1 {
		if err := s.engine.EnsurePeerConnection(); err != nil {
			util.LogError("%v", err)
		}
		if isHost {
			s.maybeSendOffer(false, false)
		}
	}
}

func (s *Session) handleRoomStatuses(msg protocol.Message) {
	statuses := make(map[string]int)
	for rid, n := range protocol.RoomStatuses(msg.Payload) {
		if slices.Contains(s.watched, rid) {
			statuses[rid] = n
		}
	}
	s.ui.RoomStatuses = statuses
	s.publish()
}

func (s *Session) handleRoomStatusUpdate(msg protocol.Message) {
	rid, count := protocol.RoomStatusUpdate(msg.Payload)
	if !slices.Contains(s.watched, rid) {
		return
	}
	if s.ui.RoomStatuses == nil {
		s.ui.RoomStatuses = make(map[string]int)
	}
	s.ui.RoomStatuses[rid] = count
	s.publish()
}

func (s *Session) handleError(msg protocol.Message) {
	message := strings.TrimSpace(msg.Payload.String("message"))
	if message == "" {
		message = "unknown error"
	}
	util.LogError("server error: %s", message)
	s.fail(message)
}

// ──────────────────────────────────────────────────────────────────────────────
// Media negotiation messages
// ──────────────────────────────────────────────────────────────────────────────

func (s *Session) handleMediaMessage(msg protocol.Message) {
	if s.roomID == "" || s.engine == nil {
		return
	}
	if !s.engine.IsReady() {
		if err := s.engine.EnsurePeerConnection(); err != nil {
			util.LogError("%v", err)
		}
		if !s.engine.IsReady() {
			util.LogDebug("queueing %s until the peer connection exists", msg.Type)
			s.pendingMessages = append(s.pendingMessages, msg)
			return
		}
	}
	s.processMediaMessage(msg)
}

func (s *Session) processMediaMessage(msg protocol.Message) {
	engine := s.engine
	switch msg.Type {
	case protocol.TypeOffer:
		sdp := msg.Payload.String("sdp")
		if sdp == "" {
			util.LogWarning("offer without sdp ignored")
			return
		}
		engine.SetRemoteDescription(negotiation.SDPOffer, sdp, func(ok bool) {
			if !ok || engine != s.engine {
				return
			}
			engine.CreateAnswer(func(answer string) {
				s.sendMessage(protocol.TypeAnswer, protocol.SDPPayload(answer))
			}, nil)
		})

	case protocol.TypeAnswer:
		sdp := msg.Payload.String("sdp")
		if sdp == "" {
			util.LogWarning("answer without sdp ignored")
			return
		}
		engine.SetRemoteDescription(negotiation.SDPAnswer, sdp, func(ok bool) {
			if !ok || engine != s.engine {
				return
			}
			s.clearOfferTimer()
			s.pendingRestart = false
		})

	case protocol.TypeICE:
		c, ok := protocol.ParseCandidate(msg.Payload)
		if !ok {
			util.LogDebug("ice message without candidate")
			return
		}
		engine.AddICECandidate(c)
	}
}

// engineEvents returns callbacks bound to one join; events from an engine
// released since then are ignored.
func (s *Session) engineEvents(serial uint64) negotiation.Events {
	current := func() bool { return serial == s.serial && s.engine != nil }

	return negotiation.Events{
		OnLocalCandidate: func(c protocol.Candidate) {
			if current() {
				s.sendMessage(protocol.TypeICE, protocol.CandidatePayload(c))
			}
		},
		OnConnectionState: func(state string) {
			if !current() {
				return
			}
			util.LogDebug("connection state: %s", state)
			s.ui.ConnectionState = state
			s.publish()
			switch state {
			case "connected":
				s.clearRestartTimer()
				s.pendingRestart = false
				s.restartFailures = 0
			case "disconnected":
				s.scheduleICERestart("conn-disconnected", s.cfg.Timing.DisconnectDebounce)
			case "failed":
				s.scheduleICERestart("conn-failed", 0)
			}
		},
		OnICEConnectionState: func(state string) {
			if !current() {
				return
			}
			util.LogDebug("ICE connection state: %s", state)
			s.ui.ICEConnectionState = state
			s.publish()
			switch state {
			case "connected", "completed":
				s.clearRestartTimer()
				s.pendingRestart = false
			case "disconnected":
				s.scheduleICERestart("ice-disconnected", s.cfg.Timing.DisconnectDebounce)
			case "failed":
				s.scheduleICERestart("ice-failed", 0)
			}
		},
		OnSignalingState: func(state negotiation.SignalingState) {
			if !current() {
				return
			}
			s.ui.SignalingState = string(state)
			s.publish()
			if state == negotiation.SignalingStable {
				s.clearOfferTimer()
				if s.pendingRestart {
					s.pendingRestart = false
					s.triggerICERestart("pending-retry")
				}
			}
		},
		OnRenegotiationNeeded: func() {
			if current() {
				s.maybeSendOffer(true, false)
			}
		},
		OnRemoteTrack: func(kind string) {
			if !current() {
				return
			}
			util.LogSuccess("receiving remote %s", kind)
			switch kind {
			case "audio":
				s.ui.RemoteAudio = true
			case "video":
				s.ui.RemoteVideo = true
			}
			s.publish()
		},
	}
}

func (s *Session) publish() {
	snap := s.ui.clone()
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	if s.cfg.OnState != nil {
		s.cfg.OnState(snap.clone())
	}
}
