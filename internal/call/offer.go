package call

import (
	"time"

	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/protocol"
	"github.com/1ureka/roomcall/internal/util"
)

// maybeSendOffer creates and sends an offer if this side may offer now.
// Without force, only the first offer of a membership epoch is sent. A
// restart that cannot run yet is remembered in pendingRestart.
func (s *Session) maybeSendOffer(force, iceRestart bool) {
	if s.isMakingOffer {
		if iceRestart {
			s.pendingRestart = true
		}
		return
	}
	if !force && s.sentOffer {
		return
	}
	if !s.canOffer() {
		return
	}
	if state, ok := s.engine.SignalingState(); ok && state != negotiation.SignalingStable {
		if iceRestart {
			s.pendingRestart = true
		}
		return
	}

	engine := s.engine
	s.isMakingOffer = true
	started := engine.CreateOffer(iceRestart, func(sdp string) {
		s.sendMessage(protocol.TypeOffer, protocol.SDPPayload(sdp))
		s.scheduleOfferTimeout()
	}, func(ok bool) {
		if engine != s.engine {
			return
		}
		s.isMakingOffer = false
		if ok {
			if iceRestart {
				s.restartFailures = 0
			}
			return
		}
		if iceRestart || s.pendingRestart {
			// A restart that produced no offer was never executed, so it
			// does not hold the cooldown.
			s.pendingRestart = false
			s.lastRestartAt = time.Time{}
			s.restartFailures++
			s.scheduleICERestart("offer-failed", s.retryDelay())
		}
	})
	if !started {
		s.isMakingOffer = false
		if iceRestart {
			s.pendingRestart = true
		}
		return
	}
	if !force {
		s.sentOffer = true
	}
}

// canOffer reports whether this side is the host of a populated room with a
// peer connection and a live signaling channel.
func (s *Session) canOffer() bool {
	if !s.ui.IsHost || s.ui.Participants <= 1 {
		return false
	}
	if s.engine == nil || !s.engine.IsReady() {
		return false
	}
	return s.sig.IsConnected()
}

func (s *Session) scheduleOfferTimeout() {
	s.clearOfferTimer()
	s.offerTimer = s.loop.AfterFunc(s.cfg.Timing.OfferTimeout, func() {
		s.offerTimer = nil
		engine := s.engine
		if engine == nil {
			return
		}
		if state, ok := engine.SignalingState(); !ok || state != negotiation.SignalingHaveLocalOffer {
			return
		}
		util.LogWarning("offer unanswered after %v; rolling back", s.cfg.Timing.OfferTimeout)
		s.pendingRestart = true
		engine.RollbackLocalDescription(func(bool) {
			if engine == s.engine {
				s.scheduleICERestart("offer-timeout", 0)
			}
		})
	})
}

func (s *Session) clearOfferTimer() {
	if s.offerTimer != nil {
		s.offerTimer.Stop()
		s.offerTimer = nil
	}
}

// scheduleICERestart arms the single restart timer. Requests are coalesced
// while a timer is armed and ignored within the cooldown after an executed
// restart. If offering is impossible right now the request is kept pending.
func (s *Session) scheduleICERestart(reason string, delay time.Duration) {
	if !s.canOffer() {
		s.pendingRestart = true
		return
	}
	if s.restartTimer != nil {
		return
	}
	if !s.lastRestartAt.IsZero() && s.loop.Now().Sub(s.lastRestartAt) < s.cfg.Timing.RestartCooldown {
		util.LogDebug("ICE restart (%s) suppressed by cooldown", reason)
		return
	}
	s.restartTimer = s.loop.AfterFunc(delay, func() {
		s.restartTimer = nil
		s.triggerICERestart(reason)
	})
}

// retryDelay doubles the offer retry delay per consecutive failure, up to
// 16 times the base.
func (s *Session) retryDelay() time.Duration {
	return s.cfg.Timing.OfferRetry << min(max(s.restartFailures-1, 0), 4)
}

func (s *Session) clearRestartTimer() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

func (s *Session) triggerICERestart(reason string) {
	if !s.canOffer() || s.isMakingOffer {
		s.pendingRestart = true
		return
	}
	util.LogWarning("ICE restart (%s)", reason)
	util.Stats.AddICERestart()
	s.lastRestartAt = s.loop.Now()
	s.pendingRestart = false
	s.maybeSendOffer(true, true)
}
