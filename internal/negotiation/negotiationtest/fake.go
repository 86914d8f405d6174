// Package negotiationtest provides an in-memory media backend for tests.
package negotiationtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/protocol"
)

// Backend is a fake negotiation.Backend that records what it was asked to do.
type Backend struct {
	mu sync.Mutex

	StartErr     error
	NewErr       error
	MediaStarted bool
	MediaStops   int
	Audio        bool
	Video        bool
	PCs          []*PeerConnection
}

func NewBackend() *Backend {
	return &Backend{Audio: true, Video: true}
}

func (b *Backend) StartLocalMedia() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StartErr != nil {
		return b.StartErr
	}
	b.MediaStarted = true
	return nil
}

func (b *Backend) StopLocalMedia() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.MediaStarted = false
	b.MediaStops++
}

func (b *Backend) NewPeerConnection(servers []negotiation.ICEServer, obs negotiation.Observer) (negotiation.PeerConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewErr != nil {
		return nil, b.NewErr
	}
	pc := &PeerConnection{
		Servers:  servers,
		observer: obs,
		state:    negotiation.SignalingStable,
	}
	b.PCs = append(b.PCs, pc)
	return pc, nil
}

func (b *Backend) SetAudioEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Audio = enabled
}

func (b *Backend) SetVideoEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Video = enabled
}

// Last returns the most recently created peer connection, or nil.
func (b *Backend) Last() *PeerConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.PCs) == 0 {
		return nil
	}
	return b.PCs[len(b.PCs)-1]
}

// Description is one applied session description.
type Description struct {
	Type negotiation.SDPType
	SDP  string
}

// PeerConnection is a fake negotiation.PeerConnection with a signaling state
// machine close enough to a real one for negotiation tests.
type PeerConnection struct {
	mu       sync.Mutex
	observer negotiation.Observer
	state    negotiation.SignalingState
	remote   bool

	Servers []negotiation.ICEServer

	// Offers records the iceRestart flag of every created offer.
	Offers []bool
	// Answers counts created answers.
	Answers int
	// Rollbacks counts applied rollbacks.
	Rollbacks int
	// Remote records applied remote descriptions in order.
	Remote []Description
	// Candidates records applied remote candidates in order.
	Candidates []protocol.Candidate
	// EarlyCandidates counts candidates applied with no remote description.
	EarlyCandidates int
	Closed          bool

	// Fail* make the next matching call fail once.
	FailOffer  error
	FailAnswer error
	FailRemote error
}

var errWrongState = errors.New("wrong signaling state")

func (p *PeerConnection) CreateOffer(iceRestart bool) (string, error) {
	p.mu.Lock()
	if err := p.FailOffer; err != nil {
		p.FailOffer = nil
		p.mu.Unlock()
		return "", err
	}
	if p.state != negotiation.SignalingStable {
		p.mu.Unlock()
		return "", errWrongState
	}
	p.Offers = append(p.Offers, iceRestart)
	sdp := fmt.Sprintf("offer-%d", len(p.Offers))
	p.mu.Unlock()

	p.setState(negotiation.SignalingHaveLocalOffer)
	return sdp, nil
}

func (p *PeerConnection) CreateAnswer() (string, error) {
	p.mu.Lock()
	if err := p.FailAnswer; err != nil {
		p.FailAnswer = nil
		p.mu.Unlock()
		return "", err
	}
	if p.state != negotiation.SignalingHaveRemoteOffer {
		p.mu.Unlock()
		return "", errWrongState
	}
	p.Answers++
	sdp := fmt.Sprintf("answer-%d", p.Answers)
	p.mu.Unlock()

	p.setState(negotiation.SignalingStable)
	return sdp, nil
}

func (p *PeerConnection) SetLocalDescription(typ negotiation.SDPType, sdp string) error {
	if typ != negotiation.SDPRollback {
		return fmt.Errorf("unexpected local %s", typ)
	}
	p.mu.Lock()
	if p.state == negotiation.SignalingStable {
		p.mu.Unlock()
		return errWrongState
	}
	p.Rollbacks++
	p.mu.Unlock()

	p.setState(negotiation.SignalingStable)
	return nil
}

func (p *PeerConnection) SetRemoteDescription(typ negotiation.SDPType, sdp string) error {
	p.mu.Lock()
	if err := p.FailRemote; err != nil {
		p.FailRemote = nil
		p.mu.Unlock()
		return err
	}
	var next negotiation.SignalingState
	switch {
	case typ == negotiation.SDPOffer && p.state == negotiation.SignalingStable:
		next = negotiation.SignalingHaveRemoteOffer
	case typ == negotiation.SDPAnswer && p.state == negotiation.SignalingHaveLocalOffer:
		next = negotiation.SignalingStable
	default:
		p.mu.Unlock()
		return errWrongState
	}
	p.remote = true
	p.Remote = append(p.Remote, Description{Type: typ, SDP: sdp})
	p.mu.Unlock()

	p.setState(next)
	return nil
}

func (p *PeerConnection) AddICECandidate(c protocol.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remote {
		p.EarlyCandidates++
	}
	p.Candidates = append(p.Candidates, c)
	return nil
}

func (p *PeerConnection) SignalingState() negotiation.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PeerConnection) Close() error {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
	p.setState(negotiation.SignalingClosed)
	return nil
}

func (p *PeerConnection) setState(s negotiation.SignalingState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	if p.observer.OnSignalingStateChange != nil {
		p.observer.OnSignalingStateChange(s)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Event injection
// ──────────────────────────────────────────────────────────────────────────────

// EmitCandidate reports a local candidate.
func (p *PeerConnection) EmitCandidate(c protocol.Candidate) {
	if p.observer.OnICECandidate != nil {
		p.observer.OnICECandidate(c)
	}
}

// SetConnectionState reports a peer connection state change.
func (p *PeerConnection) SetConnectionState(state string) {
	if p.observer.OnConnectionStateChange != nil {
		p.observer.OnConnectionStateChange(state)
	}
}

// SetICEConnectionState reports an ICE connection state change.
func (p *PeerConnection) SetICEConnectionState(state string) {
	if p.observer.OnICEConnectionStateChange != nil {
		p.observer.OnICEConnectionStateChange(state)
	}
}

// NegotiationNeeded reports that renegotiation is required.
func (p *PeerConnection) NegotiationNeeded() {
	if p.observer.OnNegotiationNeeded != nil {
		p.observer.OnNegotiationNeeded()
	}
}

// Track reports a remote track of the given kind.
func (p *PeerConnection) Track(kind string) {
	if p.observer.OnTrack != nil {
		p.observer.OnTrack(kind)
	}
}

// State returns the current signaling state.
func (p *PeerConnection) State() negotiation.SignalingState { return p.SignalingState() }

// OfferCount returns the number of offers created so far.
func (p *PeerConnection) OfferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Offers)
}

// AppliedCandidates returns a copy of the applied remote candidates.
func (p *PeerConnection) AppliedCandidates() []protocol.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Candidate(nil), p.Candidates...)
}
