// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentcompanion/companion/internal/models"
)

func TestLatencyTrackerRunningMean(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
	}{
		{name: "single", durations: []time.Duration{1500 * time.Millisecond}},
		{name: "two", durations: []time.Duration{time.Second, 3 * time.Second}},
		{name: "uneven", durations: []time.Duration{10 * time.Millisecond, 2 * time.Second, 333 * time.Millisecond, 0, 7 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l latencyTracker
			var sum float64
			for _, d := range tt.durations {
				l.record(d)
				sum += d.Seconds()
			}

			stats := l.snapshot()
			assert.Equal(t, uint64(len(tt.durations)), stats.Count)
			assert.InDelta(t, sum/float64(len(tt.durations)), stats.AverageSeconds, 1e-9)
		})
	}
}

func TestLatencyTrackerConcurrent(t *testing.T) {
	var l latencyTracker
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.record(2 * time.Second)
			}
		}()
	}
	wg.Wait()

	stats := l.snapshot()
	assert.Equal(t, uint64(1000), stats.Count)
	assert.InDelta(t, 2.0, stats.AverageSeconds, 1e-9)
}

func TestIndexerTimesOperationsIncludingFailures(t *testing.T) {
	fake := newFakeBackend("fake", true)
	fake.delay = 5 * time.Millisecond
	calls := 0
	fake.searchFn = func(query string) (*models.SearchResponse, error) {
		calls++
		if calls == 2 {
			return nil, &ConnectivityError{Indexer: "fake", URL: "x", Err: errors.New("boom")}
		}
		return models.NewSearchResponse(query, "0", nil, 0), nil
	}

	reg := prometheus.NewRegistry()
	ix := Wrap(fake, NewMetrics(reg))
	ctx := context.Background()

	_, err := ix.Search(ctx, "a", "")
	require.NoError(t, err)
	_, err = ix.Search(ctx, "b", "")
	require.Error(t, err)
	_, err = ix.GetTorrentDetail(ctx, "1")
	require.ErrorIs(t, err, ErrNotFound)

	stats := ix.Latency()
	assert.Equal(t, uint64(3), stats.Count)
	assert.Greater(t, stats.AverageSeconds, 0.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(ix.metrics.OperationTotal.WithLabelValues("fake", OpSearch, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ix.metrics.OperationTotal.WithLabelValues("fake", OpSearch, "success")))
}

func TestIndexerDoesNotTimeProbesOrURLBuilding(t *testing.T) {
	ix := Wrap(newFakeBackend("fake", true), nil)
	ctx := context.Background()

	assert.True(t, ix.TestConnection(ctx))
	require.NoError(t, ix.Authenticate(ctx))
	_, err := ix.BuildURL("{a}", map[string]string{"a": "b"})
	require.NoError(t, err)

	assert.Zero(t, ix.Latency().Count)
}

func TestIndexerHealthNeverReturnsToUnknown(t *testing.T) {
	ix := Wrap(newFakeBackend("fake", true), nil)
	assert.Equal(t, models.HealthUnknown, ix.Health().State)
	assert.True(t, ix.Health().LastUpdated.IsZero())

	now := time.Now()
	prev := ix.setHealth(models.HealthHealthy, now)
	assert.Equal(t, models.HealthUnknown, prev)

	prev = ix.setHealth(models.HealthUnknown, now.Add(time.Second))
	assert.Equal(t, models.HealthHealthy, prev)
	assert.Equal(t, models.HealthHealthy, ix.Health().State)
	assert.True(t, now.Equal(ix.Health().LastUpdated))
}

func TestIndexerCloseClosesBackend(t *testing.T) {
	fake := newFakeBackend("fake", true)
	ix := Wrap(fake, nil)
	require.NoError(t, ix.Close())
	assert.True(t, fake.closed.Load())
}
