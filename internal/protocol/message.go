// Package protocol defines the signaling message envelope and its wire codec.
//
// Every message travels as exactly one JSON object, regardless of whether it
// is carried by the duplex socket or by the poll stream.
package protocol

// Message types consumed from the server.
const (
	TypeJoined           = "joined"
	TypeRoomState        = "room_state"
	TypeRoomEnded        = "room_ended"
	TypeRoomStatuses     = "room_statuses"
	TypeRoomStatusUpdate = "room_status_update"
	TypeError            = "error"
)

// Message types produced by the client.
const (
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeEndRoom    = "end_room"
	TypeWatchRooms = "watch_rooms"
	TypePing       = "ping"
)

// Media negotiation types, exchanged in both directions.
const (
	TypeOffer  = "offer"
	TypeAnswer = "answer"
	TypeICE    = "ice"
)

// Message is the signaling envelope.
//
// Only Type is mandatory. A Message is treated as immutable once built; use
// New and the With* helpers, which always return copies.
type Message struct {
	Type    string  `json:"type"`
	RID     string  `json:"rid,omitempty"` // room id
	SID     string  `json:"sid,omitempty"` // server session id
	CID     string  `json:"cid,omitempty"` // client id
	To      string  `json:"to,omitempty"`  // addressed client id
	Payload Payload `json:"payload,omitempty"` // empty is the same as none
}

// New builds a message of the given type with an optional payload. An empty
// payload is stored as nil, matching what Decode returns for it.
func New(typ string, payload Payload) Message {
	if len(payload) == 0 {
		payload = nil
	}
	return Message{Type: typ, Payload: payload.Clone()}
}

// WithRoom returns a copy of m addressed to room rid.
func (m Message) WithRoom(rid string) Message {
	m.RID = rid
	m.Payload = m.Payload.Clone()
	return m
}

// WithClient returns a copy of m carrying the sender's client id.
func (m Message) WithClient(cid string) Message {
	m.CID = cid
	m.Payload = m.Payload.Clone()
	return m
}

// WithTo returns a copy of m addressed to a single peer.
func (m Message) WithTo(to string) Message {
	m.To = to
	m.Payload = m.Payload.Clone()
	return m
}
