package call

import (
	"context"
	"time"

	"github.com/1ureka/roomcall/internal/api"
	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/protocol"
)

// Signaling is the subset of signaling.Client the session drives.
type Signaling interface {
	Connect(host string)
	Send(msg protocol.Message) bool
	Close()
	IsConnected() bool
	ScheduleReconnect(target func() (host string, ok bool)) time.Duration
}

// MediaEngine is the subset of negotiation.Engine the session drives.
type MediaEngine interface {
	StartLocalMedia() error
	SetICEServers(servers []negotiation.ICEServer) error
	EnsurePeerConnection() error
	ClosePeerConnection()
	Release()
	IsReady() bool
	SignalingState() (negotiation.SignalingState, bool)
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)

	CreateOffer(iceRestart bool, onSDP func(sdp string), onComplete func(ok bool)) bool
	CreateAnswer(onSDP func(sdp string), onComplete func(ok bool)) bool
	SetRemoteDescription(typ negotiation.SDPType, sdp string, onComplete func(ok bool)) bool
	RollbackLocalDescription(onComplete func(ok bool)) bool
	AddICECandidate(c protocol.Candidate)
}

// API is the REST collaborator. Calls block and are made off the loop.
type API interface {
	CreateRoomID(ctx context.Context, host string) (string, error)
	TURNCredentials(ctx context.Context, host, token string) (api.TURNCredentials, error)
}

// Settings is the persistence collaborator.
type Settings interface {
	Host() string
	SetHost(host string)
	ReconnectCID() string
	SetReconnectCID(cid string)
	DefaultAudio() bool
	DefaultVideo() bool
	SetLastRoomID(rid string)
}

// Lifecycle is told when a call starts and stops, e.g. to hold the process
// open or inhibit sleep.
type Lifecycle interface {
	CallStarted(roomID string)
	CallStopped()
}
