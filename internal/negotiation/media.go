// Package negotiation drives offer/answer exchange and ICE candidate
// buffering against an external media engine.
package negotiation

import "github.com/1ureka/roomcall/internal/protocol"

// SignalingState mirrors the peer connection's signaling state names.
type SignalingState string

const (
	SignalingStable             SignalingState = "stable"
	SignalingHaveLocalOffer     SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer    SignalingState = "have-remote-offer"
	SignalingHaveLocalPranswer  SignalingState = "have-local-pranswer"
	SignalingHaveRemotePranswer SignalingState = "have-remote-pranswer"
	SignalingClosed             SignalingState = "closed"
)

// SDPType is a session description type.
type SDPType string

const (
	SDPOffer    SDPType = "offer"
	SDPAnswer   SDPType = "answer"
	SDPPranswer SDPType = "pranswer"
	SDPRollback SDPType = "rollback"
)

// ICEServer is one STUN or TURN server.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Observer receives peer connection events. Backends may call it from any
// goroutine.
type Observer struct {
	OnICECandidate             func(c protocol.Candidate)
	OnConnectionStateChange    func(state string)
	OnICEConnectionStateChange func(state string)
	OnSignalingStateChange     func(state SignalingState)
	OnNegotiationNeeded        func()
	OnTrack                    func(kind string)
}

// PeerConnection is the media engine's session. Its methods may block and
// are only ever called from the engine's executor, one at a time.
// SignalingState must be safe to call concurrently.
type PeerConnection interface {
	// CreateOffer creates an offer, applies it as the local description and
	// returns its SDP.
	CreateOffer(iceRestart bool) (string, error)
	// CreateAnswer creates an answer, applies it as the local description and
	// returns its SDP.
	CreateAnswer() (string, error)
	SetLocalDescription(typ SDPType, sdp string) error
	SetRemoteDescription(typ SDPType, sdp string) error
	AddICECandidate(c protocol.Candidate) error
	SignalingState() SignalingState
	Close() error
}

// Backend owns local media capture and creates peer connections.
type Backend interface {
	StartLocalMedia() error
	StopLocalMedia()
	NewPeerConnection(servers []ICEServer, obs Observer) (PeerConnection, error)
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
}
