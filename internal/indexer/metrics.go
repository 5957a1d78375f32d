// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/torrentcompanion/companion/internal/models"
)

// Metrics contains Prometheus metrics for indexer operations and health probes
type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	Health            *prometheus.GaugeVec
	ProbesTotal       *prometheus.CounterVec
	ProbesCoalesced   *prometheus.CounterVec
	SkippedEntries    *prometheus.CounterVec
}

// NewMetrics creates the indexer metrics and registers them with reg.
// A nil registerer creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "companion_indexer_operation_duration_seconds",
			Help:    "Time spent in indexer operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"indexer", "operation"}),
		OperationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_indexer_operations_total",
			Help: "Total number of indexer operations by outcome",
		}, []string{"indexer", "operation", "outcome"}),
		Health: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "companion_indexer_health",
			Help: "Indexer health state (-1 unknown, 0 unhealthy, 1 healthy)",
		}, []string{"indexer"}),
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_indexer_probes_total",
			Help: "Total number of health probes by result",
		}, []string{"indexer", "result"}),
		ProbesCoalesced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_indexer_probes_coalesced_total",
			Help: "Probe triggers dropped because a probe was already running",
		}, []string{"indexer"}),
		SkippedEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_indexer_skipped_entries_total",
			Help: "Remote entries dropped during normalization",
		}, []string{"indexer"}),
	}
}

func (m *Metrics) observeOperation(indexer, op string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.OperationDuration.WithLabelValues(indexer, op).Observe(seconds)
	m.OperationTotal.WithLabelValues(indexer, op, outcome).Inc()
}

func (m *Metrics) setHealth(indexer string, state models.HealthState) {
	if m == nil {
		return
	}
	value := -1.0
	switch state {
	case models.HealthHealthy:
		value = 1
	case models.HealthUnhealthy:
		value = 0
	}
	m.Health.WithLabelValues(indexer).Set(value)
}

func (m *Metrics) probe(indexer string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ProbesTotal.WithLabelValues(indexer, result).Inc()
}

func (m *Metrics) coalesced(indexer string) {
	if m == nil {
		return
	}
	m.ProbesCoalesced.WithLabelValues(indexer).Inc()
}

func (m *Metrics) skipped(indexer string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedEntries.WithLabelValues(indexer).Add(float64(n))
}

func (m *Metrics) forget(indexer string) {
	if m == nil {
		return
	}
	m.Health.DeleteLabelValues(indexer)
}
