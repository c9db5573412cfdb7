package config

import (
	"fmt"
	"sync"
)

// Manager holds the active configuration behind a read-write mutex. Readers
// get an immutable copy; Replace validates before swapping, so a bad reload
// never reaches running components.
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager seeds the manager with a finalized configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Current returns a copy of the active configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Replace validates the candidate and makes it the active configuration.
// On error the previous configuration stays in effect.
func (m *Manager) Replace(cfg Config) error {
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("reject config: %w", err)
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Reload loads the file at path and replaces the active configuration.
func (m *Manager) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = *cfg
	m.mu.Unlock()
	return nil
}
