// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/models"
)

const (
	DefaultHealthCheckInterval = 10 * time.Minute
	DefaultProbeTimeout        = 30 * time.Second
)

// JobID returns the supervisor job identifier for an indexer name.
func JobID(name string) string {
	return "indexer-health-" + strings.ToLower(strings.TrimSpace(name))
}

// SupervisorConfig controls probe execution.
type SupervisorConfig struct {
	ProbeTimeout time.Duration
}

// DefaultSupervisorConfig returns the default supervisor configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{ProbeTimeout: DefaultProbeTimeout}
}

// JobStatus is a snapshot of one registered health job.
type JobStatus struct {
	ID       string        `json:"id"`
	Indexer  string        `json:"indexer"`
	Interval time.Duration `json:"interval"`
	Running  bool          `json:"running"`
	LastRun  time.Time     `json:"lastRun"`
	NextRun  time.Time     `json:"nextRun"`
}

type healthJob struct {
	id       string
	ix       *Indexer
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	running bool
	lastRun time.Time
	nextRun time.Time
	probes  sync.WaitGroup
}

// Supervisor runs one recurring connectivity probe per registered indexer.
// At most one probe per indexer is in flight; overlapping triggers are
// dropped rather than queued.
type Supervisor struct {
	cfg     SupervisorConfig
	metrics *Metrics
	now     func() time.Time

	// regMu serializes Register and Deregister
	regMu  sync.Mutex
	mu     sync.Mutex
	jobs   map[string]*healthJob
	closed bool
}

// NewSupervisor creates a supervisor. metrics may be nil.
func NewSupervisor(cfg SupervisorConfig, metrics *Metrics) *Supervisor {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Supervisor{
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		jobs:    make(map[string]*healthJob),
	}
}

// Register schedules health probes for ix every interval, starting
// immediately. Registering an indexer whose job already exists replaces the
// previous job; the new job is published only after the previous job's
// probes have drained.
func (s *Supervisor) Register(ix *Indexer, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &healthJob{
		id:       JobID(ix.Name()),
		ix:       ix,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		log.Warn().Str("indexer", ix.Name()).Msg("Health supervisor stopped, ignoring registration")
		return
	}
	prev := s.jobs[job.id]
	delete(s.jobs, job.id)
	s.mu.Unlock()

	if prev != nil {
		prev.stop()
		log.Debug().Str("job", job.id).Msg("Replaced existing health job")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.jobs[job.id] = job
	s.mu.Unlock()

	go s.run(job)

	log.Info().
		Str("indexer", ix.Name()).
		Str("job", job.id).
		Dur("interval", interval).
		Msg("Registered indexer health job")
}

// Deregister stops the health job of the named indexer and waits for any
// in-flight probe to finish. It reports whether a job was registered.
func (s *Supervisor) Deregister(name string) bool {
	id := JobID(name)

	s.regMu.Lock()
	defer s.regMu.Unlock()

	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	job.stop()
	log.Info().Str("indexer", name).Str("job", id).Msg("Deregistered indexer health job")
	return true
}

// Trigger requests an immediate probe of the named indexer. It returns false
// when the indexer is unknown or a probe is already running.
func (s *Supervisor) Trigger(name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[JobID(name)]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.fire(job)
}

// Registered reports whether the named indexer has a health job.
func (s *Supervisor) Registered(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[JobID(name)]
	return ok
}

// Jobs returns a snapshot of all registered jobs ordered by id.
func (s *Supervisor) Jobs() []JobStatus {
	s.mu.Lock()
	jobs := make([]*healthJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		job.mu.Lock()
		out = append(out, JobStatus{
			ID:       job.id,
			Indexer:  job.ix.Name(),
			Interval: job.interval,
			Running:  job.running,
			LastRun:  job.lastRun,
			NextRun:  job.nextRun,
		})
		job.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop deregisters every job. Later registrations are ignored.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	jobs := s.jobs
	s.jobs = make(map[string]*healthJob)
	s.mu.Unlock()

	for _, job := range jobs {
		job.stop()
	}
	log.Debug().Int("jobs", len(jobs)).Msg("Health supervisor stopped")
}

func (s *Supervisor) run(job *healthJob) {
	defer close(job.done)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	s.fire(job)

	for {
		select {
		case <-job.stopCh:
			return
		case <-ticker.C:
			s.fire(job)
		}
	}
}

// fire starts a probe unless one is already running or the job is stopped.
func (s *Supervisor) fire(job *healthJob) bool {
	job.mu.Lock()
	if job.stopped {
		job.mu.Unlock()
		return false
	}
	if job.running {
		job.mu.Unlock()
		s.metrics.coalesced(job.ix.Name())
		log.Debug().Str("job", job.id).Msg("Health probe already running, skipping trigger")
		return false
	}
	job.running = true
	job.lastRun = s.now()
	job.nextRun = job.lastRun.Add(job.interval)
	job.probes.Add(1)
	job.mu.Unlock()

	go func() {
		defer job.probes.Done()
		defer func() {
			job.mu.Lock()
			job.running = false
			job.mu.Unlock()
		}()
		s.probe(job)
	}()

	return true
}

func (s *Supervisor) probe(job *healthJob) {
	ctx, cancel := context.WithTimeout(job.ctx, s.cfg.ProbeTimeout)
	defer cancel()

	name := job.ix.Name()
	ok := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("indexer", name).Interface("panic", r).Msg("Health probe panicked")
				ok = false
			}
		}()
		ok = job.ix.TestConnection(ctx)
	}()

	// a stopped job must not write health after teardown
	if job.ctx.Err() != nil {
		return
	}

	state := models.HealthUnhealthy
	if ok {
		state = models.HealthHealthy
	}

	prev := job.ix.setHealth(state, s.now())
	s.metrics.probe(name, ok)

	switch {
	case prev == state:
		log.Trace().Str("indexer", name).Str("state", string(state)).Msg("Health probe completed")
	case ok:
		log.Info().Str("indexer", name).Str("from", string(prev)).Msg("Indexer is healthy")
	default:
		log.Warn().Str("indexer", name).Str("from", string(prev)).Msg("Indexer is unhealthy")
	}
}

func (j *healthJob) stop() {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		<-j.done
		j.probes.Wait()
		return
	}
	j.stopped = true
	close(j.stopCh)
	j.cancel()
	j.mu.Unlock()

	<-j.done
	j.probes.Wait()
}
