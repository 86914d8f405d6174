// Package app wires the call session to the signaling client, the pion media
// backend, the REST API and the settings store.
package app

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/1ureka/roomcall/internal/api"
	"github.com/1ureka/roomcall/internal/call"
	"github.com/1ureka/roomcall/internal/config"
	"github.com/1ureka/roomcall/internal/eventloop"
	"github.com/1ureka/roomcall/internal/negotiation"
	"github.com/1ureka/roomcall/internal/signaling"
	"github.com/1ureka/roomcall/internal/util"
	"github.com/1ureka/roomcall/internal/webrtc"
)

// App is one running client.
type App struct {
	cfg   config.Config
	store *config.Store

	loop  *eventloop.Loop // control thread
	media *eventloop.Loop // serial worker for blocking pion calls

	session *call.Session
	render  *renderer
	life    *lifecycle

	watched []string
}

// New builds the client. Nothing runs until Run.
func New(cfg config.Config) (*App, error) {
	if cfg.Debug {
		util.EnableDebug()
	}

	store, err := config.OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if cfg.Host != "" {
		store.SetHost(cfg.Host)
	}

	a := &App{
		cfg:     cfg,
		store:   store,
		loop:    eventloop.New(),
		media:   eventloop.New(),
		render:  newRenderer(),
		life:    &lifecycle{},
		watched: store.WatchedRooms(),
	}
	if len(cfg.Watch) > 0 {
		a.watched = cfg.Watch
		store.SetWatchedRooms(cfg.Watch)
	}

	backend := webrtc.NewBackend(webrtc.Options{Audio: true, Video: true})
	sigOpts := signaling.Options{
		ConnectTimeout:   cfg.ConnectTimeout,
		PingInterval:     cfg.PingInterval,
		ReconnectBase:    cfg.ReconnectBase,
		ReconnectMax:     cfg.ReconnectMax,
		ForceEventStream: cfg.ForceSSE,
	}

	a.session = call.New(call.Config{
		Loop: a.loop,
		NewSignaling: func(l signaling.Listener) call.Signaling {
			return signaling.NewClient(a.loop, l, sigOpts)
		},
		NewEngine: func(events negotiation.Events) call.MediaEngine {
			return negotiation.NewEngine(a.loop, backend, a.media.Post, events)
		},
		API:               api.New(nil),
		Settings:          store,
		Lifecycle:         a.life,
		OnState:           a.render.render,
		Device:            runtime.GOOS,
		DefaultICEServers: webrtc.DefaultICEServers(),
		Timing: call.Timing{
			OfferTimeout:       cfg.OfferTimeout,
			RestartCooldown:    cfg.RestartCooldown,
			DisconnectDebounce: cfg.DisconnectDebounce,
			OfferRetry:         call.DefaultTiming().OfferRetry,
		},
	})
	a.render.prev = a.session.State()
	return a, nil
}

// Session exposes the call operations to the command line.
func (a *App) Session() *call.Session { return a.session }

// Store exposes the settings store.
func (a *App) Store() *config.Store { return a.store }

// Run starts the control loop and the media worker and blocks until ctx is
// cancelled. The session is torn down before Run returns.
func (a *App) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, l := range []*eventloop.Loop{a.loop, a.media} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(loopCtx)
		}()
	}

	util.StartStatsReporter(ctx)

	if len(a.watched) > 0 {
		a.session.WatchRooms(a.watched)
	}
	switch {
	case a.cfg.NewCall:
		a.session.StartNewCall()
	case a.cfg.Room != "":
		a.session.Join(a.cfg.Room)
	}

	<-ctx.Done()

	if a.InCall() {
		a.session.Leave()
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCancel()
	err := a.session.Close(closeCtx)

	// Let the media worker finish closing peer connections.
	if callErr := a.media.Call(closeCtx, func() {}); err == nil {
		err = callErr
	}

	cancel()
	wg.Wait()
	if errors.Is(err, context.DeadlineExceeded) {
		util.LogWarning("shutdown timed out")
		return nil
	}
	return err
}

// InCall reports whether a call is active.
func (a *App) InCall() bool { return a.life.active() }
