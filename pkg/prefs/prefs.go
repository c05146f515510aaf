// Package prefs persists the user's feature-mode selection between runs,
// the terminal stand-in for the web client's localStorage flags.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Mode is the active auxiliary feature for prompt submissions. The modes
// are mutually exclusive: activating one deactivates the others.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeRAG     Mode = "rag"
	ModeDiagram Mode = "diagram"
	ModeYoutube Mode = "youtube"
)

// Persisted keys, kept identical to the web client's localStorage keys so
// the two surfaces document the same contract.
const (
	keyRAG     = "ragModeActive"
	keyDiagram = "diagramModeActive"
	keyYoutube = "youtubeModeActive"
)

// Store reads and writes the mode flags file.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewStore creates a store backed by the JSON file at path. The file is
// created lazily on the first save.
func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault(keyRAG, false)
	v.SetDefault(keyDiagram, false)
	v.SetDefault(keyYoutube, false)

	return &Store{v: v, path: path}
}

// Load reads the flags file. A missing file is not an error; defaults
// apply.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading mode preferences: %w", err)
	}
	return nil
}

// Active returns the currently active mode. If the stored flags disagree
// with mutual exclusivity (hand-edited file), the first set flag wins in
// RAG, diagram, youtube order.
func (s *Store) Active() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() Mode {
	switch {
	case s.v.GetBool(keyRAG):
		return ModeRAG
	case s.v.GetBool(keyDiagram):
		return ModeDiagram
	case s.v.GetBool(keyYoutube):
		return ModeYoutube
	default:
		return ModeNone
	}
}

// SetActive activates the given mode, deactivating the others, and
// persists the result.
func (s *Store) SetActive(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setActiveLocked(mode)
}

func (s *Store) setActiveLocked(mode Mode) error {
	s.v.Set(keyRAG, mode == ModeRAG)
	s.v.Set(keyDiagram, mode == ModeDiagram)
	s.v.Set(keyYoutube, mode == ModeYoutube)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("saving mode preferences: %w", err)
	}
	return nil
}

// Toggle flips the given mode: activates it if inactive, clears it if it
// was already the active one. Returns the resulting active mode. The
// read-modify-write happens under one lock so concurrent toggles can
// never leave two flags set.
func (s *Store) Toggle(mode Mode) (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := mode
	if s.activeLocked() == mode {
		next = ModeNone
	}
	if err := s.setActiveLocked(next); err != nil {
		return s.activeLocked(), err
	}
	return next, nil
}

// Flags expands a mode into the per-mode booleans submitted with each
// prompt.
func (m Mode) Flags() (rag, diagram, youtube bool) {
	return m == ModeRAG, m == ModeDiagram, m == ModeYoutube
}
