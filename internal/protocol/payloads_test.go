package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/roomcall/internal/protocol"
)

func TestParseRoomStateFromWire(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"type":"room_state","payload":{
		"hostCid":"C-1",
		"participants":[{"cid":"C-1","joinedAt":1700000000000},{"cid":""},{"cid":"C-2","joinedAt":-5}]
	}}`))
	require.NoError(t, err)

	state, ok := protocol.ParseRoomState(msg.Payload)
	require.True(t, ok)
	assert.Equal(t, "C-1", state.HostCID)
	assert.Equal(t, []protocol.Participant{
		{CID: "C-1", JoinedAt: 1700000000000},
		{CID: "C-2", JoinedAt: 0},
	}, state.Participants)
}

func TestParseRoomStateRequiresHost(t *testing.T) {
	_, ok := protocol.ParseRoomState(nil)
	assert.False(t, ok)

	_, ok = protocol.ParseRoomState(protocol.Payload{"participants": []any{}})
	assert.False(t, ok)
}

func TestRoomStatePayloadRoundTrip(t *testing.T) {
	state := protocol.RoomState{
		HostCID:      "H",
		Participants: []protocol.Participant{{CID: "H", JoinedAt: 42}, {CID: "G"}},
	}
	data, err := protocol.Encode(protocol.New(protocol.TypeRoomState, state.Payload()))
	require.NoError(t, err)

	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	parsed, ok := protocol.ParseRoomState(msg.Payload)
	require.True(t, ok)
	assert.Equal(t, state, parsed)
}

func TestCandidatePayloadRoundTrip(t *testing.T) {
	mid := "audio"
	idx := uint16(1)
	ufrag := "abcd"
	testCases := []struct {
		name string
		c    protocol.Candidate
	}{
		{"bare", protocol.Candidate{Candidate: "candidate:1 1 udp 1 1.2.3.4 9 typ host"}},
		{"full", protocol.Candidate{Candidate: "candidate:2", SDPMid: &mid, SDPMLineIndex: &idx, UsernameFragment: &ufrag}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.Encode(protocol.New(protocol.TypeICE, protocol.CandidatePayload(tc.c)))
			require.NoError(t, err)
			msg, err := protocol.Decode(data)
			require.NoError(t, err)

			got, ok := protocol.ParseCandidate(msg.Payload)
			require.True(t, ok)
			assert.Equal(t, tc.c, got)
		})
	}
}

func TestRoomStatusesClampNegative(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"type":"room_statuses","payload":{"a":2,"b":-1}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 0}, protocol.RoomStatuses(msg.Payload))

	rid, count := protocol.RoomStatusUpdate(protocol.Payload{"rid": "a", "count": 3.0})
	assert.Equal(t, "a", rid)
	assert.Equal(t, 3, count)
}

func TestJoinPayloadOmitsEmptyReconnect(t *testing.T) {
	p := protocol.JoinPayload(protocol.JoinOptions{Device: "cli", TrickleICE: true})
	_, has := p["reconnectCid"]
	assert.False(t, has)

	p = protocol.JoinPayload(protocol.JoinOptions{Device: "cli", ReconnectCID: "C-9"})
	assert.Equal(t, "C-9", p.String("reconnectCid"))
	assert.Equal(t, map[string]any{"trickleIce": false}, p["capabilities"])
}
