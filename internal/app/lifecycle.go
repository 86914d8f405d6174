package app

import (
	"sync"
	"time"

	"github.com/1ureka/roomcall/internal/util"
)

// lifecycle tracks whether a call is active and for how long.
type lifecycle struct {
	mu      sync.Mutex
	room    string
	started time.Time
}

func (l *lifecycle) CallStarted(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.room = roomID
	l.started = time.Now()
}

func (l *lifecycle) CallStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.room == "" {
		return
	}
	util.LogInfo("left room %s after %s", l.room, time.Since(l.started).Round(time.Second))
	l.room = ""
}

func (l *lifecycle) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.room != ""
}
