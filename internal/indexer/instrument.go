// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/torrentcompanion/companion/internal/models"
)

// Operation names used for latency metrics.
const (
	OpSearch   = "search"
	OpDetail   = "detail"
	OpUploader = "uploader"
)

// latencyTracker keeps a running mean in constant memory.
type latencyTracker struct {
	mu    sync.Mutex
	count uint64
	avg   float64
}

func (l *latencyTracker) record(d time.Duration) {
	l.mu.Lock()
	l.count++
	l.avg += (d.Seconds() - l.avg) / float64(l.count)
	l.mu.Unlock()
}

func (l *latencyTracker) snapshot() models.LatencyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.LatencyStats{Count: l.count, AverageSeconds: l.avg}
}

// Indexer decorates a Backend with latency instrumentation and owns its
// health state. Search, GetTorrentDetail and GetUploaderProfile are timed;
// TestConnection, Authenticate and BuildURL pass straight through.
//
// Health is written only by the Supervisor.
type Indexer struct {
	backend Backend
	desc    models.BackendDescriptor
	metrics *Metrics

	latency latencyTracker

	healthMu sync.RWMutex
	health   models.HealthStatus
}

var _ Backend = (*Indexer)(nil)

// Wrap instruments b. metrics may be nil.
func Wrap(b Backend, metrics *Metrics) *Indexer {
	desc := b.Descriptor()
	metrics.setHealth(desc.Name, models.HealthUnknown)
	return &Indexer{
		backend: b,
		desc:    desc,
		metrics: metrics,
		health:  models.HealthStatus{State: models.HealthUnknown},
	}
}

func (ix *Indexer) Name() string {
	return ix.desc.Name
}

func (ix *Indexer) Descriptor() models.BackendDescriptor {
	return ix.desc
}

// Unwrap returns the decorated backend.
func (ix *Indexer) Unwrap() Backend {
	return ix.backend
}

func (ix *Indexer) TestConnection(ctx context.Context) bool {
	return ix.backend.TestConnection(ctx)
}

func (ix *Indexer) Authenticate(ctx context.Context) error {
	return ix.backend.Authenticate(ctx)
}

func (ix *Indexer) BuildURL(tpl string, params map[string]string) (string, error) {
	return ix.backend.BuildURL(tpl, params)
}

func (ix *Indexer) Search(ctx context.Context, query, category string) (resp *models.SearchResponse, err error) {
	defer ix.observe(OpSearch, time.Now(), &err)
	resp, err = ix.backend.Search(ctx, query, category)
	if resp != nil {
		ix.metrics.skipped(ix.desc.Name, resp.Skipped())
	}
	return resp, err
}

func (ix *Indexer) GetTorrentDetail(ctx context.Context, id string) (rec *models.TorrentRecord, err error) {
	defer ix.observe(OpDetail, time.Now(), &err)
	return ix.backend.GetTorrentDetail(ctx, id)
}

func (ix *Indexer) GetUploaderProfile(ctx context.Context, username string, pageLimit int) (p *models.UploaderProfile, err error) {
	defer ix.observe(OpUploader, time.Now(), &err)
	return ix.backend.GetUploaderProfile(ctx, username, pageLimit)
}

func (ix *Indexer) observe(op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	ix.latency.record(elapsed)
	ix.metrics.observeOperation(ix.desc.Name, op, elapsed.Seconds(), *errp)
}

// Latency returns a snapshot of the running latency average.
func (ix *Indexer) Latency() models.LatencyStats {
	return ix.latency.snapshot()
}

// Health returns a snapshot of the current health state.
func (ix *Indexer) Health() models.HealthStatus {
	ix.healthMu.RLock()
	defer ix.healthMu.RUnlock()
	return ix.health
}

// setHealth records a probe result and returns the previous state.
// HealthUnknown is never written back once a probe has completed.
func (ix *Indexer) setHealth(state models.HealthState, at time.Time) models.HealthState {
	if state == models.HealthUnknown {
		return ix.Health().State
	}

	ix.healthMu.Lock()
	prev := ix.health.State
	ix.health = models.HealthStatus{State: state, LastUpdated: at}
	ix.healthMu.Unlock()

	ix.metrics.setHealth(ix.desc.Name, state)
	return prev
}

// Close releases the backend's resources if it holds any. The health series
// is left to the owner, since a replacement may share the label.
func (ix *Indexer) Close() error {
	if c, ok := ix.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
