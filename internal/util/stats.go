package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling/session counter.
var Stats = &stats{}

type stats struct {
	MessagesSent atomic.Int64 // signaling messages handed to a transport
	MessagesRecv atomic.Int64 // signaling messages decoded from a transport
	BytesSent    atomic.Int64 // encoded signaling bytes sent
	BytesRecv    atomic.Int64 // encoded signaling bytes received
	Reconnects   atomic.Int64 // executed signaling reconnects
	ICERestarts  atomic.Int64 // executed ICE restarts
}

func (s *stats) AddSent(n int) {
	s.MessagesSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.MessagesRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *stats) AddReconnect()  { s.Reconnects.Add(1) }
func (s *stats) AddICERestart() { s.ICERestarts.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs signaling statistics
// every 10 seconds when something changed. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := takeSnapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur, prev))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	msgSent, msgRecv, bytesSent, bytesRecv, reconnects, restarts int64
}

func takeSnapshot() snapshot {
	return snapshot{
		msgSent:    Stats.MessagesSent.Load(),
		msgRecv:    Stats.MessagesRecv.Load(),
		bytesSent:  Stats.BytesSent.Load(),
		bytesRecv:  Stats.BytesRecv.Load(),
		reconnects: Stats.Reconnects.Load(),
		restarts:   Stats.ICERestarts.Load(),
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders the delta between two snapshots for the logger.
func formatStats(cur, prev snapshot) string {
	return fmt.Sprintf("Signaling TX: %3d msg %s | RX: %3d msg %s | Reconnects: %d | ICE restarts: %d",
		cur.msgSent-prev.msgSent,
		formatBytes(float64(cur.bytesSent-prev.bytesSent)),
		cur.msgRecv-prev.msgRecv,
		formatBytes(float64(cur.bytesRecv-prev.bytesRecv)),
		cur.reconnects,
		cur.restarts,
	)
}
