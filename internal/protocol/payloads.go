package protocol

import "encoding/json"

// Participant is one member of a room.
type Participant struct {
	CID      string
	JoinedAt int64 // unix millis, 0 when unknown
}

// RoomState is the membership snapshot carried by joined and room_state.
type RoomState struct {
	HostCID      string
	Participants []Participant
}

// ParseRoomState extracts a RoomState from a payload. It reports false when
// the payload carries no host id.
func ParseRoomState(p Payload) (RoomState, bool) {
	if p == nil {
		return RoomState{}, false
	}
	host := p.String("hostCid")
	if host == "" {
		return RoomState{}, false
	}

	state := RoomState{HostCID: host}
	for _, obj := range p.Objects("participants") {
		cid := obj.String("cid")
		if cid == "" {
			continue
		}
		joinedAt := int64(obj.Int("joinedAt", 0))
		if joinedAt < 0 {
			joinedAt = 0
		}
		state.Participants = append(state.Participants, Participant{CID: cid, JoinedAt: joinedAt})
	}
	return state, true
}

// Payload renders the room state in wire form (used by tests and fakes).
func (s RoomState) Payload() Payload {
	participants := make([]any, 0, len(s.Participants))
	for _, p := range s.Participants {
		obj := map[string]any{"cid": p.CID}
		if p.JoinedAt > 0 {
			obj["joinedAt"] = json.Number(formatInt(p.JoinedAt))
		}
		participants = append(participants, obj)
	}
	return Payload{"hostCid": s.HostCID, "participants": participants}
}

// Candidate is an ICE candidate in its trickle wire shape.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SDPPayload wraps a session description for offer and answer messages.
func SDPPayload(sdp string) Payload {
	return Payload{"sdp": sdp}
}

// CandidatePayload wraps an ICE candidate for an ice message.
func CandidatePayload(c Candidate) Payload {
	obj := map[string]any{"candidate": c.Candidate}
	if c.SDPMid != nil {
		obj["sdpMid"] = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		obj["sdpMLineIndex"] = json.Number(formatInt(int64(*c.SDPMLineIndex)))
	}
	if c.UsernameFragment != nil {
		obj["usernameFragment"] = *c.UsernameFragment
	}
	return Payload{"candidate": obj}
}

// ParseCandidate extracts the candidate of an ice message.
func ParseCandidate(p Payload) (Candidate, bool) {
	obj := p.Object("candidate")
	if obj == nil {
		return Candidate{}, false
	}
	c := Candidate{Candidate: obj.String("candidate")}
	if mid, ok := obj["sdpMid"].(string); ok && mid != "" {
		c.SDPMid = &mid
	}
	if _, ok := obj["sdpMLineIndex"]; ok {
		idx := uint16(obj.Int("sdpMLineIndex", 0))
		c.SDPMLineIndex = &idx
	}
	if ufrag, ok := obj["usernameFragment"].(string); ok && ufrag != "" {
		c.UsernameFragment = &ufrag
	}
	return c, true
}

// JoinOptions are the device capability flags sent with join.
type JoinOptions struct {
	Device       string
	TrickleICE   bool
	ReconnectCID string
}

// JoinPayload builds the payload of a join message.
func JoinPayload(opts JoinOptions) Payload {
	p := Payload{
		"device":       opts.Device,
		"capabilities": map[string]any{"trickleIce": opts.TrickleICE},
	}
	if opts.ReconnectCID != "" {
		p["reconnectCid"] = opts.ReconnectCID
	}
	return p
}

// WatchRoomsPayload builds the payload of a watch_rooms message.
func WatchRoomsPayload(rids []string) Payload {
	list := make([]any, 0, len(rids))
	for _, rid := range rids {
		list = append(list, rid)
	}
	return Payload{"rids": list}
}

// RoomStatuses parses a room_statuses payload (rid → participant count).
func RoomStatuses(p Payload) map[string]int {
	out := make(map[string]int, len(p))
	for rid := range p {
		out[rid] = max(p.Int(rid, 0), 0)
	}
	return out
}

// RoomStatusUpdate parses a room_status_update payload.
func RoomStatusUpdate(p Payload) (rid string, count int) {
	return p.String("rid"), max(p.Int("count", 0), 0)
}

func formatInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
