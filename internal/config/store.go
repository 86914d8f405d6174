package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/1ureka/roomcall/internal/util"
)

const settingsFile = "settings.yaml"

type settings struct {
	Host         string   `yaml:"host,omitempty"`
	ReconnectCID string   `yaml:"reconnectCid,omitempty"`
	DefaultAudio *bool    `yaml:"defaultAudio,omitempty"`
	DefaultVideo *bool    `yaml:"defaultVideo,omitempty"`
	LastRoomID   string   `yaml:"lastRoomId,omitempty"`
	WatchedRooms []string `yaml:"watchedRooms,omitempty"`
}

// Store persists user preferences as YAML. Setters write through; a failed
// write is logged and the in-memory value is kept.
type Store struct {
	mu   sync.Mutex
	path string
	data settings
}

// OpenStore loads dir/settings.yaml, creating dir if needed. A missing file
// yields an empty store.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{path: filepath.Join(dir, settingsFile)}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Host
}

func (s *Store) SetHost(host string) {
	s.update(func(d *settings) { d.Host = host })
}

func (s *Store) ReconnectCID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ReconnectCID
}

func (s *Store) SetReconnectCID(cid string) {
	s.update(func(d *settings) { d.ReconnectCID = cid })
}

// DefaultAudio defaults to true when never set.
func (s *Store) DefaultAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DefaultAudio == nil || *s.data.DefaultAudio
}

func (s *Store) SetDefaultAudio(enabled bool) {
	s.update(func(d *settings) { d.DefaultAudio = &enabled })
}

// DefaultVideo defaults to true when never set.
func (s *Store) DefaultVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DefaultVideo == nil || *s.data.DefaultVideo
}

func (s *Store) SetDefaultVideo(enabled bool) {
	s.update(func(d *settings) { d.DefaultVideo = &enabled })
}

func (s *Store) LastRoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastRoomID
}

func (s *Store) SetLastRoomID(rid string) {
	s.update(func(d *settings) { d.LastRoomID = rid })
}

func (s *Store) WatchedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.WatchedRooms)
}

func (s *Store) SetWatchedRooms(rids []string) {
	rids = slices.Clone(rids)
	s.update(func(d *settings) { d.WatchedRooms = rids })
}

func (s *Store) update(fn func(*settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
	if err := s.save(); err != nil {
		util.LogWarning("failed to save settings: %v", err)
	}
}

// save writes the file atomically. Callers hold mu.
func (s *Store) save() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
