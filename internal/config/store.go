package config

import (
	"errors"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

var log = logging.L("config")

// Store is the live configuration of a running agent. It is safe for
// concurrent use and implements the queue's selector source.
type Store struct {
	mu       sync.RWMutex
	cfg      *Config
	v        *viper.Viper
	path     string
	watchers []func(Config)
}

// Open loads cfgFile (or the default search path) into a Store.
func Open(cfgFile string) (*Store, error) {
	cfg, v, err := load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Validate()
	return &Store{cfg: cfg, v: v, path: path(v, cfgFile)}, nil
}

// NewStore wraps an already loaded config persisted at path.
func NewStore(cfg *Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

// Path is the file the store persists to.
func (s *Store) Path() string { return s.path }

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// SelectedMonitor is read once per capture request.
func (s *Store) SelectedMonitor() desktop.Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Selector()
}

// SetSelectedMonitor updates and persists the selector.
func (s *Store) SetSelectedMonitor(sel desktop.Selector) error {
	s.mu.Lock()
	next := *s.cfg
	next.SetSelector(sel)
	if err := SaveTo(&next, s.path); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg = &next
	watchers := append([]func(Config){}, s.watchers...)
	s.mu.Unlock()

	log.Info("selected monitor updated", logging.KeySelector, sel.String())
	for _, fn := range watchers {
		fn(next)
	}
	return nil
}

// OnChange registers fn to run after every reload or update.
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Watch reloads the configuration whenever its file changes. A store
// without a file on disk is not watched.
func (s *Store) Watch() {
	if s.v == nil {
		return
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		log.Debug("config file absent, not watching", logging.KeyPath, s.path)
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(s.v)
		if err != nil {
			log.Warn("config reload failed", logging.KeyPath, e.Name, logging.Err(err))
			return
		}
		cfg.Validate()

		s.mu.Lock()
		s.cfg = cfg
		watchers := append([]func(Config){}, s.watchers...)
		s.mu.Unlock()

		log.Info("config reloaded", logging.KeyPath, e.Name, "op", e.Op.String())
		for _, fn := range watchers {
			fn(*cfg)
		}
	})
	s.v.WatchConfig()
}
