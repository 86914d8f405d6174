package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1ureka/roomcall/internal/call"
)

func texts(lines []line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text
	}
	return out
}

func TestDescribePhaseChanges(t *testing.T) {
	idle := call.UIState{Phase: call.PhaseIdle, Host: "serenada.app"}
	waiting := idle
	waiting.Phase = call.PhaseWaiting
	waiting.RoomID = "room"

	assert.Equal(t, []string{"waiting for someone to join; share https://serenada.app/call/room"},
		texts(describe(idle, waiting)))

	inCall := waiting
	inCall.Phase = call.PhaseInCall
	inCall.Participants = 2
	lines := describe(waiting, inCall)
	assert.Equal(t, []string{"in call (2 participants)"}, texts(lines))
	assert.Equal(t, "success", lines[0].level)

	more := inCall
	more.Participants = 3
	assert.Equal(t, []string{"3 participants"}, texts(describe(inCall, more)))
}

func TestDescribeCallEndedByRemote(t *testing.T) {
	inCall := call.UIState{Phase: call.PhaseInCall, RoomID: "room", Participants: 2}
	assert.Equal(t, []string{"call ended"}, texts(describe(inCall, call.UIState{Phase: call.PhaseIdle})))

	ending := inCall
	ending.Phase = call.PhaseEnding
	assert.Empty(t, describe(ending, call.UIState{Phase: call.PhaseIdle}))
}

func TestDescribeError(t *testing.T) {
	lines := describe(call.UIState{Phase: call.PhaseJoining}, call.UIState{Phase: call.PhaseError, Error: "Room is full"})
	assert.Equal(t, []line{{"error", "Room is full"}}, lines)
}

func TestDescribeMediaAndRooms(t *testing.T) {
	prev := call.UIState{Phase: call.PhaseInCall, AudioEnabled: true, ConnectionState: "new"}
	next := prev
	next.AudioEnabled = false
	next.ConnectionState = "connected"
	next.SignalingConnected = true
	next.Transport = "ws"
	next.RoomStatuses = map[string]int{"b": 1, "a": 2}

	assert.Equal(t, []string{
		"signaling connected over ws",
		"media connected",
		"microphone off",
		"rooms: a=2 b=1",
	}, texts(describe(prev, next)))
}

func TestRendererRemembersLastState(t *testing.T) {
	var got []string
	r := &renderer{
		prev: call.UIState{Phase: call.PhaseIdle},
		out:  func(_, text string) { got = append(got, text) },
	}
	joining := call.UIState{Phase: call.PhaseJoining, RoomID: "r1"}
	r.render(joining)
	r.render(joining)
	assert.Equal(t, []string{"joining room r1"}, got)
}
