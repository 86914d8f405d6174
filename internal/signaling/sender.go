package signaling

import (
	"sync"
	"time"

	"github.com/1ureka/roomcall/internal/util"
)

const (
	sendBufferSize = 256             // outgoing frame channel capacity
	drainTimeout   = 1 * time.Second // how long Close waits for queued frames
)

// sender is a goroutine-based frame writer that serializes all writes to a
// single connection. Send never blocks the control loop.
type sender struct {
	inbox chan []byte
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// newSender starts the background loop. The loop exits after stop, or when
// write fails; onError is called once with a write error that happened
// before stop.
func newSender(write func(data []byte) error, onError func(err error)) *sender {
	s := &sender{
		inbox: make(chan []byte, sendBufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.loop(write, onError)
	return s
}

// loop is the single-writer goroutine. On stop it writes whatever is still
// queued and exits.
func (s *sender) loop(write func(data []byte) error, onError func(err error)) {
	defer close(s.done)
	for {
		select {
		case data := <-s.inbox:
			if err := write(data); err != nil {
				select {
				case <-s.stop:
				default:
					onError(err)
				}
				return
			}
			util.Stats.AddSent(len(data))
		case <-s.stop:
			s.drain(write)
			return
		}
	}
}

func (s *sender) drain(write func(data []byte) error) {
	for {
		select {
		case data := <-s.inbox:
			if err := write(data); err != nil {
				util.LogDebug("signaling frame lost on close: %v", err)
				return
			}
			util.Stats.AddSent(len(data))
		default:
			return
		}
	}
}

// send enqueues an encoded frame. Frames are dropped after close, or when the
// writer has fallen a full buffer behind.
func (s *sender) send(data []byte) {
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.inbox <- data:
	default:
		util.LogWarning("signaling send buffer full, dropping %d byte frame", len(data))
	}
}

// close stops accepting frames and waits up to wait for the queued ones to be
// written. It reports whether the writer finished in time.
func (s *sender) close(wait time.Duration) bool {
	s.once.Do(func() { close(s.stop) })
	if wait <= 0 {
		return false
	}
	select {
	case <-s.done:
		return true
	case <-time.After(wait):
		return false
	}
}
