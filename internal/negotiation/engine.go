package negotiation

import (
	"fmt"

	"github.com/1ureka/roomcall/internal/eventloop"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// Events are delivered on the control loop, and only for the current peer
// connection.
type Events struct {
	OnLocalCandidate      func(c protocol.Candidate)
	OnConnectionState     func(state string)
	OnICEConnectionState  func(state string)
	OnSignalingState      func(state SignalingState)
	OnRenegotiationNeeded func()
	OnRemoteTrack         func(kind string)
}

// State is a snapshot of the current negotiation.
type State struct {
	Signaling            SignalingState
	ICEConnection        string
	Connection           string
	RemoteDescriptionSet bool
	// PendingCandidates holds remote candidates received before the remote
	// description. It is only non-empty while RemoteDescriptionSet is false.
	PendingCandidates []protocol.Candidate
}

// Engine owns the peer connection lifecycle. Every method must be called on
// the control loop.
//
// Blocking media calls run through exec, which must run tasks one at a time
// in submission order. Their results are posted back to the loop; results for
// a peer connection that has since been closed are dropped.
type Engine struct {
	loop    eventloop.Scheduler
	backend Backend
	exec    func(task func())
	events  Events

	servers      []ICEServer
	hasServers   bool
	mediaStarted bool

	pc    PeerConnection
	gen   uint64
	state State
}

// NewEngine builds an engine. A nil exec runs tasks inline.
func NewEngine(loop eventloop.Scheduler, backend Backend, exec func(task func()), events Events) *Engine {
	if exec == nil {
		exec = func(task func()) { task() }
	}
	return &Engine{
		loop:    loop,
		backend: backend,
		exec:    exec,
		events:  events,
		state:   State{Signaling: SignalingStable},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// StartLocalMedia starts capture and creates the peer connection if ICE
// servers are already known.
func (e *Engine) StartLocalMedia() error {
	if e.mediaStarted {
		return nil
	}
	if err := e.backend.StartLocalMedia(); err != nil {
		return fmt.Errorf("start local media: %w", err)
	}
	e.mediaStarted = true
	return e.EnsurePeerConnection()
}

// StopLocalMedia stops capture. The peer connection is left alone.
func (e *Engine) StopLocalMedia() {
	if !e.mediaStarted {
		return
	}
	e.backend.StopLocalMedia()
	e.mediaStarted = false
}

// SetICEServers stores the servers used by the next peer connection and
// creates one if media is already running.
func (e *Engine) SetICEServers(servers []ICEServer) error {
	util.LogDebug("ICE servers set: %d", len(servers))
	e.servers = append([]ICEServer(nil), servers...)
	e.hasServers = true
	return e.EnsurePeerConnection()
}

// EnsurePeerConnection creates the peer connection once both local media and
// ICE servers are available. It is a no-op otherwise.
func (e *Engine) EnsurePeerConnection() error {
	if e.pc != nil || !e.hasServers || !e.mediaStarted {
		return nil
	}

	e.gen++
	e.state = State{Signaling: SignalingStable}
	pc, err := e.backend.NewPeerConnection(e.servers, e.observer(e.gen))
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	e.pc = pc
	util.LogDebug("peer connection #%d created", e.gen)
	return nil
}

// ClosePeerConnection closes the current peer connection, drops buffered
// candidates, and discards every result still in flight for it.
func (e *Engine) ClosePeerConnection() {
	if e.pc == nil {
		return
	}
	pc := e.pc
	e.pc = nil
	e.gen++
	e.state = State{Signaling: SignalingStable}

	e.exec(func() {
		if err := pc.Close(); err != nil {
			util.LogWarning("close peer connection: %v", err)
		}
	})
}

// Release stops media and closes the peer connection.
func (e *Engine) Release() {
	e.StopLocalMedia()
	e.ClosePeerConnection()
}

// IsReady reports whether a peer connection exists.
func (e *Engine) IsReady() bool { return e.pc != nil }

// SignalingState returns the last known signaling state; ok is false when
// there is no peer connection.
func (e *Engine) SignalingState() (state SignalingState, ok bool) {
	if e.pc == nil {
		return "", false
	}
	return e.state.Signaling, true
}

// State returns a copy of the negotiation state.
func (e *Engine) State() State {
	s := e.state
	s.PendingCandidates = append([]protocol.Candidate(nil), e.state.PendingCandidates...)
	return s
}

func (e *Engine) SetAudioEnabled(enabled bool) { e.backend.SetAudioEnabled(enabled) }
func (e *Engine) SetVideoEnabled(enabled bool) { e.backend.SetVideoEnabled(enabled) }

// ──────────────────────────────────────────────────────────────────────────────
// Offer / answer
// ──────────────────────────────────────────────────────────────────────────────

// CreateOffer creates and applies a local offer. It returns false, without
// calling onComplete, when there is no peer connection or the signaling state
// is not stable. Otherwise onSDP is called with the applied offer before
// onComplete(true), or onComplete(false) is called alone.
func (e *Engine) CreateOffer(iceRestart bool, onSDP func(sdp string), onComplete func(ok bool)) bool {
	if e.pc == nil {
		return false
	}
	if e.state.Signaling != SignalingStable {
		util.LogDebug("skipping offer; signaling state is %s", e.state.Signaling)
		return false
	}

	util.LogDebug("creating offer (iceRestart=%t)", iceRestart)
	pc, gen := e.pc, e.gen
	e.exec(func() {
		sdp, err := pc.CreateOffer(iceRestart)
		e.loop.Post(func() {
			if gen != e.gen {
				return
			}
			e.refreshSignaling()
			if err != nil {
				util.LogWarning("offer failed: %v", err)
				callBool(onComplete, false)
				return
			}
			onSDP(sdp)
			callBool(onComplete, true)
		})
	})
	return true
}

// CreateAnswer creates and applies a local answer to the current remote
// offer.
func (e *Engine) CreateAnswer(onSDP func(sdp string), onComplete func(ok bool)) bool {
	if e.pc == nil {
		return false
	}

	util.LogDebug("creating answer")
	pc, gen := e.pc, e.gen
	e.exec(func() {
		sdp, err := pc.CreateAnswer()
		e.loop.Post(func() {
			if gen != e.gen {
				return
			}
			e.refreshSignaling()
			if err != nil {
				util.LogWarning("answer failed: %v", err)
				callBool(onComplete, false)
				return
			}
			onSDP(sdp)
			callBool(onComplete, true)
		})
	})
	return true
}

// SetRemoteDescription applies a remote offer or answer. On success, buffered
// candidates are applied in receipt order before onComplete(true).
func (e *Engine) SetRemoteDescription(typ SDPType, sdp string, onComplete func(ok bool)) bool {
	if e.pc == nil {
		return false
	}

	pc, gen := e.pc, e.gen
	e.exec(func() {
		err := pc.SetRemoteDescription(typ, sdp)
		e.loop.Post(func() {
			if gen != e.gen {
				return
			}
			e.refreshSignaling()
			if err != nil {
				util.LogWarning("set remote %s failed: %v", typ, err)
				callBool(onComplete, false)
				return
			}
			util.LogDebug("remote description set (%s)", typ)
			e.state.RemoteDescriptionSet = true
			e.flushCandidates()
			callBool(onComplete, true)
		})
	})
	return true
}

// RollbackLocalDescription discards an unanswered local offer.
func (e *Engine) RollbackLocalDescription(onComplete func(ok bool)) bool {
	if e.pc == nil {
		return false
	}

	pc, gen := e.pc, e.gen
	e.exec(func() {
		err := pc.SetLocalDescription(SDPRollback, "")
		e.loop.Post(func() {
			if gen != e.gen {
				return
			}
			e.refreshSignaling()
			if err != nil {
				util.LogWarning("rollback failed: %v", err)
				callBool(onComplete, false)
				return
			}
			util.LogDebug("local description rolled back")
			callBool(onComplete, true)
		})
	})
	return true
}

// ──────────────────────────────────────────────────────────────────────────────
// ICE candidates
// ──────────────────────────────────────────────────────────────────────────────

// AddICECandidate applies a remote candidate, or buffers it until the remote
// description has been set. Candidates without a peer connection are dropped.
func (e *Engine) AddICECandidate(c protocol.Candidate) {
	if e.pc == nil {
		return
	}
	if !e.state.RemoteDescriptionSet {
		e.state.PendingCandidates = append(e.state.PendingCandidates, c)
		return
	}
	e.applyCandidate(c)
}

func (e *Engine) flushCandidates() {
	pending := e.state.PendingCandidates
	e.state.PendingCandidates = nil
	for _, c := range pending {
		e.applyCandidate(c)
	}
}

func (e *Engine) applyCandidate(c protocol.Candidate) {
	pc := e.pc
	e.exec(func() {
		if err := pc.AddICECandidate(c); err != nil {
			util.LogWarning("add ICE candidate: %v", err)
		}
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Peer connection events
// ──────────────────────────────────────────────────────────────────────────────

// observer wraps the backend's callbacks so they land on the control loop
// and are ignored once peer connection gen is gone.
func (e *Engine) observer(gen uint64) Observer {
	post := func(fn func()) {
		e.loop.Post(func() {
			if gen == e.gen && e.pc != nil {
				fn()
			}
		})
	}

	return Observer{
		OnICECandidate: func(c protocol.Candidate) {
			post(func() { callCandidate(e.events.OnLocalCandidate, c) })
		},
		OnConnectionStateChange: func(state string) {
			post(func() {
				util.LogDebug("connection state: %s", state)
				e.state.Connection = state
				callString(e.events.OnConnectionState, state)
			})
		},
		OnICEConnectionStateChange: func(state string) {
			post(func() {
				util.LogDebug("ICE state: %s", state)
				e.state.ICEConnection = state
				callString(e.events.OnICEConnectionState, state)
			})
		},
		OnSignalingStateChange: func(SignalingState) {
			// Backends may deliver these out of order, so read the live state.
			post(e.refreshSignaling)
		},
		OnNegotiationNeeded: func() {
			post(func() {
				if e.events.OnRenegotiationNeeded != nil {
					e.events.OnRenegotiationNeeded()
				}
			})
		},
		OnTrack: func(kind string) {
			post(func() { callString(e.events.OnRemoteTrack, kind) })
		},
	}
}

// refreshSignaling syncs the cached signaling state with the peer connection
// and reports a change.
func (e *Engine) refreshSignaling() {
	if e.pc == nil {
		return
	}
	state := e.pc.SignalingState()
	if state == e.state.Signaling {
		return
	}
	util.LogDebug("signaling state: %s", state)
	e.state.Signaling = state
	if e.events.OnSignalingState != nil {
		e.events.OnSignalingState(state)
	}
}

func callBool(fn func(bool), v bool) {
	if fn != nil {
		fn(v)
	}
}

func callString(fn func(string), v string) {
	if fn != nil {
		fn(v)
	}
}

func callCandidate(fn func(protocol.Candidate), c protocol.Candidate) {
	if fn != nil {
		fn(c)
	}
}
