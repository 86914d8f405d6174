package call

// Phase is the coarse call lifecycle state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseCreatingRoom Phase = "creating_room"
	PhaseJoining      Phase = "joining"
	PhaseWaiting      Phase = "waiting"
	PhaseInCall       Phase = "in_call"
	PhaseEnding       Phase = "ending"
	PhaseError        Phase = "error"
)

// UIState is the observable call snapshot pushed on every change.
type UIState struct {
	Phase  Phase
	Host   string // signaling server
	RoomID string

	LocalCID     string
	IsHost       bool
	Participants int

	AudioEnabled bool
	VideoEnabled bool
	RemoteAudio  bool
	RemoteVideo  bool

	SignalingConnected bool
	Transport          string // "ws" or "sse" while connected
	Reconnecting       bool

	ConnectionState    string
	ICEConnectionState string
	SignalingState     string

	Error string

	// RoomStatuses maps watched room ids to their participant counts.
	RoomStatuses map[string]int
}

func (s UIState) clone() UIState {
	if s.RoomStatuses != nil {
		m := make(map[string]int, len(s.RoomStatuses))
		for k, v := range s.RoomStatuses {
			m[k] = v
		}
		s.RoomStatuses = m
	}
	return s
}

// freshState returns an idle-looking snapshot in the given phase, keeping the
// fields that outlive a call.
func freshState(phase Phase, prev UIState) UIState {
	return UIState{
		Phase:              phase,
		Host:               prev.Host,
		SignalingConnected: prev.SignalingConnected,
		Transport:          prev.Transport,
		Reconnecting:       prev.Reconnecting,
		ConnectionState:    "new",
		ICEConnectionState: "new",
		SignalingState:     "stable",
		RoomStatuses:       prev.RoomStatuses,
	}
}
