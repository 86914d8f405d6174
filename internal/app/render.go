package app

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/roomcall/internal/call"
)

// renderer prints what changed between consecutive session snapshots.
type renderer struct {
	mu   sync.Mutex
	prev call.UIState
	out  func(level, line string)
}

func newRenderer() *renderer {
	return &renderer{
		prev: call.UIState{Phase: call.PhaseIdle},
		out:  printLine,
	}
}

func printLine(level, line string) {
	switch level {
	case "error":
		pterm.Error.Println(line)
	case "success":
		pterm.Success.Println(line)
	case "warning":
		pterm.Warning.Println(line)
	default:
		pterm.Info.Println(line)
	}
}

func (r *renderer) render(next call.UIState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range describe(r.prev, next) {
		r.out(l.level, l.text)
	}
	r.prev = next
}

type line struct {
	level string
	text  string
}

// describe lists the user-visible changes from prev to next.
func describe(prev, next call.UIState) []line {
	var out []line
	add := func(level, format string, args ...any) {
		out = append(out, line{level, fmt.Sprintf(format, args...)})
	}

	if next.Phase != prev.Phase {
		switch next.Phase {
		case call.PhaseCreatingRoom:
			add("info", "creating a room on %s", next.Host)
		case call.PhaseJoining:
			add("info", "joining room %s", next.RoomID)
		case call.PhaseWaiting:
			add("info", "waiting for someone to join; share https://%s/call/%s", next.Host, next.RoomID)
		case call.PhaseInCall:
			add("success", "in call (%d participants)", next.Participants)
		case call.PhaseEnding:
			add("info", "leaving room %s", prev.RoomID)
		case call.PhaseIdle:
			if prev.Phase != call.PhaseEnding && prev.RoomID != "" {
				add("warning", "call ended")
			}
		case call.PhaseError:
			add("error", "%s", next.Error)
		}
	} else if next.Phase == call.PhaseInCall && next.Participants != prev.Participants {
		add("info", "%d participants", next.Participants)
	}

	if next.SignalingConnected != prev.SignalingConnected {
		if next.SignalingConnected {
			add("info", "signaling connected over %s", next.Transport)
		} else if next.Phase != call.PhaseIdle {
			add("warning", "signaling disconnected")
		}
	}
	if next.Phase == call.PhaseInCall && next.ConnectionState != prev.ConnectionState {
		switch next.ConnectionState {
		case "connected":
			add("success", "media connected")
		case "disconnected", "failed":
			add("warning", "media %s, reconnecting", next.ConnectionState)
		}
	}
	if next.AudioEnabled != prev.AudioEnabled {
		add("info", "microphone %s", onOff(next.AudioEnabled))
	}
	if next.VideoEnabled != prev.VideoEnabled {
		add("info", "camera %s", onOff(next.VideoEnabled))
	}
	if next.RemoteVideo != prev.RemoteVideo && next.RemoteVideo {
		add("info", "receiving remote video")
	}
	if !maps.Equal(next.RoomStatuses, prev.RoomStatuses) && len(next.RoomStatuses) > 0 {
		add("info", "rooms: %s", formatStatuses(next.RoomStatuses))
	}
	return out
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatStatuses(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for _, rid := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s=%d", rid, m[rid]))
	}
	return strings.Join(parts, " ")
}
