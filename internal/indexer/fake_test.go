// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torrentcompanion/companion/internal/models"
)

// fakeBackend is a scriptable Backend used across the package tests.
type fakeBackend struct {
	name string

	healthy  atomic.Bool
	delay    time.Duration
	searchFn func(query string) (*models.SearchResponse, error)
	panicky  atomic.Bool

	// block, when set, holds TestConnection until it is closed or the
	// probe context ends.
	block chan struct{}
	// ignoreCtx makes a blocked TestConnection wait for block only.
	ignoreCtx bool

	probes   atomic.Int32
	inFlight atomic.Int32
	maxConc  atomic.Int32

	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeBackend(name string, healthy bool) *fakeBackend {
	f := &fakeBackend{name: name}
	f.healthy.Store(healthy)
	return f
}

func (f *fakeBackend) Descriptor() models.BackendDescriptor {
	return models.BackendDescriptor{
		Name:         f.name,
		BaseURL:      "http://" + f.name + ".invalid",
		MediaSupport: []models.MediaKind{models.MediaMovie, models.MediaTVShow},
		Kind:         models.ScrapperAPI,
	}
}

func (f *fakeBackend) TestConnection(ctx context.Context) bool {
	f.probes.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxConc.Load()
		if n <= cur || f.maxConc.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.panicky.Load() {
		panic("probe exploded")
	}

	if f.block != nil && f.ignoreCtx {
		<-f.block
		return f.healthy.Load()
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return false
		}
	}
	return f.healthy.Load()
}

func (f *fakeBackend) Authenticate(context.Context) error { return nil }

func (f *fakeBackend) BuildURL(tpl string, params map[string]string) (string, error) {
	return BuildURL(tpl, params)
}

func (f *fakeBackend) Search(ctx context.Context, query, category string) (*models.SearchResponse, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.searchFn != nil {
		return f.searchFn(query)
	}
	return models.NewSearchResponse(query, category, nil, 0), nil
}

func (f *fakeBackend) GetTorrentDetail(ctx context.Context, id string) (*models.TorrentRecord, error) {
	return nil, ErrNotFound
}

func (f *fakeBackend) GetUploaderProfile(ctx context.Context, username string, pageLimit int) (*models.UploaderProfile, error) {
	return nil, ErrNotFound
}

func (f *fakeBackend) Close() error {
	f.closeOnce.Do(func() { f.closed.Store(true) })
	return nil
}
