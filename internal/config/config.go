// Package config loads runtime settings and persists user preferences.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// ErrNoHome is returned when no data directory was given and the user config
// directory cannot be determined.
var ErrNoHome = errors.New("cannot determine a data directory")

// Environment variables read by Load.
const (
	EnvHost     = "ROOMCALL_HOST"
	EnvForceSSE = "ROOMCALL_FORCE_SSE"
	EnvDataDir  = "ROOMCALL_DATA_DIR"
	EnvDebug    = "ROOMCALL_DEBUG"
)

// Config stores every runtime parameter. Zero values mean "not set" only for
// Host, Room and DataDir.
type Config struct {
	Host     string // signaling server; empty keeps the stored one
	ForceSSE bool   // skip the WebSocket transport
	Debug    bool
	DataDir  string

	Room    string   // join this room or link on start
	NewCall bool     // create a new room on start
	Watch   []string // room ids to watch while idle

	ConnectTimeout     time.Duration
	PingInterval       time.Duration
	ReconnectBase      time.Duration
	ReconnectMax       time.Duration
	OfferTimeout       time.Duration
	RestartCooldown    time.Duration
	DisconnectDebounce time.Duration
}

// Default returns the production tuning values.
func Default() Config {
	return Config{
		ConnectTimeout:     2 * time.Second,
		PingInterval:       12 * time.Second,
		ReconnectBase:      500 * time.Millisecond,
		ReconnectMax:       5 * time.Second,
		OfferTimeout:       8 * time.Second,
		RestartCooldown:    10 * time.Second,
		DisconnectDebounce: 2 * time.Second,
	}
}

// Interactive reports whether no start action was given on the command line.
func (c Config) Interactive() bool {
	return c.Room == "" && !c.NewCall && len(c.Watch) == 0
}

// Load builds a Config from defaults, an optional .env file in the working
// directory, the environment and finally args. pflag.ErrHelp is returned
// unchanged when -h was given.
func Load(args []string) (Config, error) {
	return load(args, ".env", os.LookupEnv)
}

func load(args []string, envFile string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if v, ok := env(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := env(EnvDataDir); ok {
		cfg.DataDir = v
	}
	if cfg.ForceSSE, err = envBool(env, EnvForceSSE); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = envBool(env, EnvDebug); err != nil {
		return Config{}, err
	}

	fs := pflag.NewFlagSet("roomcall", pflag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "signaling server host (e.g. serenada.app or http://localhost:8080)")
	fs.BoolVar(&cfg.ForceSSE, "force-sse", cfg.ForceSSE, "use the event-stream transport only")
	fs.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "enable debug logging")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the settings file")
	fs.StringVarP(&cfg.Room, "room", "r", "", "room id or share link to join")
	fs.BoolVarP(&cfg.NewCall, "new", "n", false, "create a new room and join it")
	fs.StringSliceVarP(&cfg.Watch, "watch", "w", nil, "room ids to watch while idle")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "per-transport connect timeout")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "signaling keepalive interval")
	fs.DurationVar(&cfg.ReconnectBase, "reconnect-base", cfg.ReconnectBase, "first signaling reconnect delay")
	fs.DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "signaling reconnect delay cap")
	fs.DurationVar(&cfg.OfferTimeout, "offer-timeout", cfg.OfferTimeout, "unanswered offer timeout")
	fs.DurationVar(&cfg.RestartCooldown, "restart-cooldown", cfg.RestartCooldown, "minimum time between ICE restarts")
	fs.DurationVar(&cfg.DisconnectDebounce, "disconnect-debounce", cfg.DisconnectDebounce, "delay before a disconnected peer triggers an ICE restart")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if cfg.Room != "" && cfg.NewCall {
		return Config{}, errors.New("--room and --new are mutually exclusive")
	}

	if cfg.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrNoHome, err)
		}
		cfg.DataDir = filepath.Join(dir, "roomcall")
	}
	return cfg, nil
}

func envBool(env func(string) (string, bool), key string) (bool, error) {
	v, ok := env(key)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
