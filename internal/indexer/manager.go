// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BackendConfig describes one configured backend.
type BackendConfig struct {
	Name                string
	Kind                string
	BaseURL             string
	RequiresAuth        bool
	HealthCheckInterval time.Duration
	Timeout             time.Duration
	Retries             uint
}

// Factory constructs a backend. Constructors probe connectivity and return a
// ConnectivityError instead of a half-initialized backend.
type Factory func(ctx context.Context, cfg BackendConfig) (Backend, error)

// Manager owns the instrumented indexers of the process and keeps their
// health jobs registered with the supervisor.
type Manager struct {
	supervisor *Supervisor
	metrics    *Metrics

	mu        sync.RWMutex
	factories map[string]Factory
	indexers  map[string]*Indexer
	configs   map[string]BackendConfig
}

func NewManager(supervisor *Supervisor, metrics *Metrics) *Manager {
	return &Manager{
		supervisor: supervisor,
		metrics:    metrics,
		factories:  make(map[string]Factory),
		indexers:   make(map[string]*Indexer),
		configs:    make(map[string]BackendConfig),
	}
}

// RegisterKind makes a backend kind available to Add.
func (m *Manager) RegisterKind(kind string, f Factory) {
	m.mu.Lock()
	m.factories[strings.ToLower(kind)] = f
	m.mu.Unlock()
}

// Add constructs the backend described by cfg and starts supervising it. An
// existing indexer with the same name is replaced.
func (m *Manager) Add(ctx context.Context, cfg BackendConfig) (*Indexer, error) {
	m.mu.RLock()
	factory, ok := m.factories[strings.ToLower(cfg.Kind)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown indexer kind %q", cfg.Kind)
	}

	backend, err := factory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return m.addBackend(backend, cfg.HealthCheckInterval, &cfg), nil
}

// AddBackend instruments an already constructed backend and starts
// supervising it.
func (m *Manager) AddBackend(b Backend, interval time.Duration) *Indexer {
	return m.addBackend(b, interval, nil)
}

func (m *Manager) addBackend(b Backend, interval time.Duration, cfg *BackendConfig) *Indexer {
	ix := Wrap(b, m.metrics)
	key := strings.ToLower(ix.Name())

	m.mu.Lock()
	prev := m.indexers[key]
	m.indexers[key] = ix
	if cfg != nil {
		m.configs[key] = *cfg
	} else {
		delete(m.configs, key)
	}
	m.mu.Unlock()

	// Register replaces the previous job before the old backend is closed
	m.supervisor.Register(ix, interval)
	if prev != nil && prev != ix {
		if prev.Name() != ix.Name() {
			m.metrics.forget(prev.Name())
		}
		if err := prev.Close(); err != nil {
			log.Warn().Err(err).Str("indexer", prev.Name()).Msg("Failed to close replaced indexer")
		}
	}

	return ix
}

// Get looks up an indexer by name, case-insensitively.
func (m *Manager) Get(name string) (*Indexer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.indexers[strings.ToLower(name)]
	return ix, ok
}

// Config returns the configuration the named indexer was built from. Indexers
// added with AddBackend have none.
func (m *Manager) Config(name string) (BackendConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[strings.ToLower(name)]
	return cfg, ok
}

// List returns all indexers ordered by name.
func (m *Manager) List() []*Indexer {
	m.mu.RLock()
	out := make([]*Indexer, 0, len(m.indexers))
	for _, ix := range m.indexers {
		out = append(out, ix)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Remove stops supervising the named indexer and releases it.
func (m *Manager) Remove(name string) bool {
	key := strings.ToLower(name)

	m.mu.Lock()
	ix, ok := m.indexers[key]
	delete(m.indexers, key)
	delete(m.configs, key)
	m.mu.Unlock()

	if !ok {
		return false
	}

	m.supervisor.Deregister(ix.Name())
	m.metrics.forget(ix.Name())
	if err := ix.Close(); err != nil {
		log.Warn().Err(err).Str("indexer", ix.Name()).Msg("Failed to close indexer")
	}
	return true
}

// Close removes every indexer.
func (m *Manager) Close() {
	for _, ix := range m.List() {
		m.Remove(ix.Name())
	}
}
