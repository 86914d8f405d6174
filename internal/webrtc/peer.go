// Package webrtc implements the negotiation media backend on top of pion.
package webrtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// STUN servers used when the signaling server hands out no TURN credentials.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
}

// DefaultICEServers returns the fallback STUN configuration.
func DefaultICEServers() []negotiation.ICEServer {
	return []negotiation.ICEServer{{URLs: append([]string(nil), stunServers...)}}
}

const (
	streamID      = "roomcall"
	audioFrameDur = 20 * time.Millisecond
)

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Options selects which local tracks the backend publishes.
type Options struct {
	Audio bool
	Video bool

	// LoggerFactory receives pion's internal logs. Nil routes them through
	// util's logger.
	LoggerFactory logging.LoggerFactory

	// IncludeLoopback gathers loopback candidates, for same-host peers.
	IncludeLoopback bool
}

// Backend is a negotiation.Backend backed by pion/webrtc.
//
// Audio is an Opus track fed with silence while enabled, so the remote side
// sees a live, muted-sounding stream. Video is a VP8 track whose frames come
// from WriteVideoSample.
type Backend struct {
	api  *webrtc.API
	opts Options

	mu         sync.Mutex
	audio      *webrtc.TrackLocalStaticSample
	video      *webrtc.TrackLocalStaticSample
	cancelPump context.CancelFunc

	audioEnabled atomic.Bool
	videoEnabled atomic.Bool
}

// NewBackend builds a pion API with the given options.
func NewBackend(opts Options) *Backend {
	if opts.LoggerFactory == nil {
		opts.LoggerFactory = NewLoggerFactory()
	}

	settingEngine := webrtc.SettingEngine{LoggerFactory: opts.LoggerFactory}
	settingEngine.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	b := &Backend{
		api:  webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		opts: opts,
	}
	b.audioEnabled.Store(true)
	b.videoEnabled.Store(true)
	return b
}

// StartLocalMedia creates the local tracks and starts the audio pump.
func (b *Backend) StartLocalMedia() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.audio != nil || b.video != nil {
		return nil
	}

	if b.opts.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID)
		if err != nil {
			return fmt.Errorf("create audio track: %w", err)
		}
		b.audio = track
	}
	if b.opts.Video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID)
		if err != nil {
			b.audio = nil
			return fmt.Errorf("create video track: %w", err)
		}
		b.video = track
	}

	if b.audio != nil {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancelPump = cancel
		go b.pumpAudio(ctx, b.audio)
	}
	return nil
}

// pumpAudio writes silence frames while audio is enabled.
func (b *Backend) pumpAudio(ctx context.Context, track *webrtc.TrackLocalStaticSample) {
	ticker := time.NewTicker(audioFrameDur)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !b.audioEnabled.Load() {
				continue
			}
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: audioFrameDur}); err != nil {
				util.LogDebug("audio write: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// StopLocalMedia stops the audio pump and drops the tracks.
func (b *Backend) StopLocalMedia() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelPump != nil {
		b.cancelPump()
		b.cancelPump = nil
	}
	b.audio, b.video = nil, nil
}

// WriteVideoSample sends one encoded VP8 frame while video is enabled.
func (b *Backend) WriteVideoSample(s media.Sample) error {
	b.mu.Lock()
	track := b.video
	b.mu.Unlock()
	if track == nil || !b.videoEnabled.Load() {
		return nil
	}
	return track.WriteSample(s)
}

func (b *Backend) SetAudioEnabled(enabled bool) { b.audioEnabled.Store(enabled) }
func (b *Backend) SetVideoEnabled(enabled bool) { b.videoEnabled.Store(enabled) }

// NewPeerConnection creates a unified-plan peer connection publishing the
// local tracks. Kinds with no local track get a receive-only transceiver so
// the remote media still arrives.
func (b *Backend) NewPeerConnection(servers []negotiation.ICEServer, obs negotiation.Observer) (negotiation.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers:   toPionServers(servers),
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}
	pc, err := b.api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	observe(pc, obs)

	b.mu.Lock()
	audio, video := b.audio, b.video
	b.mu.Unlock()

	if err := addMedia(pc, webrtc.RTPCodecTypeAudio, audio); err != nil {
		pc.Close()
		return nil, err
	}
	if err := addMedia(pc, webrtc.RTPCodecTypeVideo, video); err != nil {
		pc.Close()
		return nil, err
	}
	return &peerConnection{pc: pc}, nil
}

func addMedia(pc *webrtc.PeerConnection, kind webrtc.RTPCodecType, track *webrtc.TrackLocalStaticSample) error {
	if track != nil {
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", kind, err)
		}
		go drainRTCP(sender)
		return nil
	}
	if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("add %s transceiver: %w", kind, err)
	}
	return nil
}

// drainRTCP reads incoming RTCP so interceptors keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func observe(pc *webrtc.PeerConnection, obs negotiation.Observer) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || obs.OnICECandidate == nil {
			return // gathering complete
		}
		init := c.ToJSON()
		obs.OnICECandidate(protocol.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if obs.OnConnectionStateChange != nil {
			obs.OnConnectionStateChange(s.String())
		}
	})
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		if obs.OnICEConnectionStateChange != nil {
			obs.OnICEConnectionStateChange(s.String())
		}
	})
	pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		if obs.OnSignalingStateChange != nil {
			obs.OnSignalingStateChange(negotiation.SignalingState(s.String()))
		}
	})
	pc.OnNegotiationNeeded(func() {
		if obs.OnNegotiationNeeded != nil {
			obs.OnNegotiationNeeded()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		util.LogInfo("remote %s track (%s)", track.Kind(), track.Codec().MimeType)
		if obs.OnTrack != nil {
			obs.OnTrack(track.Kind().String())
		}
	})
}

func toPionServers(servers []negotiation.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}

// peerConnection adapts *webrtc.PeerConnection to negotiation.PeerConnection.
type peerConnection struct {
	pc *webrtc.PeerConnection
}

func (p *peerConnection) CreateOffer(iceRestart bool) (string, error) {
	offer, err := p.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local offer: %w", err)
	}
	return offer.SDP, nil
}

func (p *peerConnection) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local answer: %w", err)
	}
	return answer.SDP, nil
}

func (p *peerConnection) SetLocalDescription(typ negotiation.SDPType, sdp string) error {
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(string(typ)), SDP: sdp}
	if typ == negotiation.SDPRollback && sdp == "" {
		// pion parses the body even for a rollback.
		if pending := p.pc.PendingLocalDescription(); pending != nil {
			desc.SDP = pending.SDP
		}
	}
	return p.pc.SetLocalDescription(desc)
}

func (p *peerConnection) SetRemoteDescription(typ negotiation.SDPType, sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.NewSDPType(string(typ)), SDP: sdp})
}

func (p *peerConnection) AddICECandidate(c protocol.Candidate) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (p *peerConnection) SignalingState() negotiation.SignalingState {
	return negotiation.SignalingState(p.pc.SignalingState().String())
}

func (p *peerConnection) Close() error { return p.pc.Close() }
