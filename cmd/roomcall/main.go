// Roomcall CLI entry point.
//
// This tool joins one-to-one audio/video rooms on a signaling server and
// negotiates a direct WebRTC connection with the other participant.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (--room, --new, --watch).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/roomcall/internal/app"
	"github.com/1ureka/roomcall/internal/call"
	"github.com/1ureka/roomcall/internal/config"
	"github.com/1ureka/roomcall/internal/util"
)

var version = "dev"

const (
	optionNewCall = "New call: Create a room and share its link"
	optionJoin    = "Join: Enter a room id or link"
	optionWatch   = "Watch: Follow participant counts of rooms"
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	pterm.Info.Println(fmt.Sprintf("Roomcall v%s", version))
	pterm.Println()

	if cfg.Interactive() {
		askStartAction(&cfg)
	}

	a, err := app.New(cfg)
	if err != nil {
		util.LogError("failed to start: %v", err)
		os.Exit(1)
	}

	pterm.Info.Println("commands: m = mute, v = camera, r = network changed, l = leave, q = quit")
	go readCommands(ctx, stop, a)

	if err := a.Run(ctx); err != nil {
		util.LogError("shutdown: %v", err)
		os.Exit(1)
	}
	util.LogInfo("bye")
}

// ---------------------------------------------------------------------------
// Interactive prompts
// ---------------------------------------------------------------------------

// askStartAction fills the start action when no flag selected one.
func askStartAction(cfg *config.Config) {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{optionNewCall, optionJoin, optionWatch}).
		WithDefaultText("What do you want to do").
		Show()

	pterm.Println()

	switch choice {
	case optionNewCall:
		cfg.NewCall = true
	case optionJoin:
		cfg.Room = askRoom()
	case optionWatch:
		cfg.Watch = askRooms()
	}
}

// askRoom prompts until a usable room id or link is entered.
func askRoom() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room id or link (e.g. https://serenada.app/call/...)").
			Show()

		pterm.Println()
		if _, _, ok := call.ParseJoinInput(raw); ok {
			return strings.TrimSpace(raw)
		}
		util.LogWarning("invalid input: please enter a room id or call link")
	}
}

// askRooms prompts for a comma separated list of room ids.
func askRooms() []string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room ids, comma separated").
			Show()

		pterm.Println()
		var rids []string
		for _, part := range strings.Split(raw, ",") {
			if rid, _, ok := call.ParseJoinInput(part); ok {
				rids = append(rids, rid)
			}
		}
		if len(rids) > 0 {
			return rids
		}
		util.LogWarning("invalid input: please enter at least one room id")
	}
}

// ---------------------------------------------------------------------------
// In-call commands
// ---------------------------------------------------------------------------

// readCommands maps single-letter stdin commands onto session operations.
func readCommands(ctx context.Context, quit context.CancelFunc, a *app.App) {
	s := a.Session()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "m":
			s.ToggleAudio()
		case "v":
			s.ToggleVideo()
		case "r":
			s.NetworkChanged()
		case "l":
			s.Leave()
		case "d":
			s.DismissError()
		case "q":
			quit()
			return
		case "":
		default:
			util.LogWarning("unknown command")
		}
	}
}
