// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentcompanion/companion/internal/models"
)

type fakePages struct {
	count    int
	countErr error
	pages    map[int][]models.TorrentRecord
	fail     map[int]error
	requests []int
}

func (f *fakePages) PageCount(ctx context.Context, username string) (int, error) {
	return f.count, f.countErr
}

func (f *fakePages) Page(ctx context.Context, username string, page int) ([]models.TorrentRecord, error) {
	f.requests = append(f.requests, page)
	if err, ok := f.fail[page]; ok {
		return nil, err
	}
	return f.pages[page], nil
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(seeders, leechers, dayOffset int) models.TorrentRecord {
	return models.TorrentRecord{
		Seeders:  seeders,
		Leechers: leechers,
		AddedAt:  epoch.AddDate(0, 0, dayOffset),
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func serverError(page int) error {
	return &RemoteError{Indexer: "fake", URL: "page", StatusCode: 500}
}

func TestAggregateUploaderSkipsFailedPage(t *testing.T) {
	src := &fakePages{
		count: 3,
		pages: map[int][]models.TorrentRecord{
			0: {rec(10, 1, 30), rec(20, 2, 29)},
			2: {rec(30, 3, 1)},
		},
		fail: map[int]error{1: serverError(1)},
	}

	p, err := AggregateUploader(context.Background(), src, "YIFY", AggregateOptions{Platform: "PirateBay", PageLimit: 5, Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, "YIFY", p.Name)
	assert.Equal(t, "PirateBay", p.Platform)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 3, p.TotalUploads)
	assert.Equal(t, int64(60), p.TotalSeeders)
	assert.Equal(t, int64(6), p.TotalLeechers)
	assert.InDelta(t, 1.5, p.AvgUploadsPerMonth, 1e-9)
	assert.InDelta(t, 20.0, p.AvgSeedersPerUpload, 1e-9)
	assert.InDelta(t, 2.0, p.AvgLeechersPerUpload, 1e-9)
	assert.Equal(t, epoch.AddDate(0, 0, 30), p.RecentActivity)
	assert.Equal(t, epoch.AddDate(0, 0, 1), p.OldestActivity)
	assert.Equal(t, fixedNow(), p.FetchedAt)

	// the last page was already read, no extra probe
	assert.Equal(t, []int{0, 1, 2}, src.requests)
}

func TestAggregateUploaderAllPagesFail(t *testing.T) {
	src := &fakePages{
		count: 3,
		fail: map[int]error{
			0: serverError(0),
			1: &ConnectivityError{Indexer: "fake", URL: "page", Err: errors.New("reset")},
			2: serverError(2),
		},
	}

	p, err := AggregateUploader(context.Background(), src, "ghost", AggregateOptions{PageLimit: 5})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAggregateUploaderEmptyPages(t *testing.T) {
	src := &fakePages{count: 2, pages: map[int][]models.TorrentRecord{}}

	_, err := AggregateUploader(context.Background(), src, "ghost", AggregateOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAggregateUploaderPageCountFailure(t *testing.T) {
	tests := []struct {
		name  string
		count int
		err   error
	}{
		{name: "remote error", err: serverError(0)},
		{name: "zero pages", count: 0},
		{name: "negative pages", count: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakePages{count: tt.count, countErr: tt.err}
			_, err := AggregateUploader(context.Background(), src, "x", AggregateOptions{})
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Empty(t, src.requests)
		})
	}
}

func TestAggregateUploaderProbesOldestPageBeyondLimit(t *testing.T) {
	src := &fakePages{
		count: 10,
		pages: map[int][]models.TorrentRecord{
			0: {rec(5, 0, 100)},
			1: {rec(5, 0, 90)},
			9: {rec(1, 0, 2), rec(1, 0, -400)},
		},
	}

	p, err := AggregateUploader(context.Background(), src, "YIFY", AggregateOptions{PageLimit: 2, Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 9}, src.requests)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 2, p.TotalUploads)
	// oldest-page records feed OldestActivity only
	assert.Equal(t, int64(10), p.TotalSeeders)
	assert.Equal(t, epoch.AddDate(0, 0, -400), p.OldestActivity)
	assert.Equal(t, epoch.AddDate(0, 0, 100), p.RecentActivity)
}

func TestAggregateUploaderOldestProbeFailureFallsBack(t *testing.T) {
	src := &fakePages{
		count: 4,
		pages: map[int][]models.TorrentRecord{0: {rec(1, 1, 10), rec(1, 1, 5)}},
		fail:  map[int]error{3: serverError(3)},
	}

	p, err := AggregateUploader(context.Background(), src, "YIFY", AggregateOptions{PageLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, epoch.AddDate(0, 0, 5), p.OldestActivity)
}

func TestAggregateUploaderAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakePages{
		count: 3,
		pages: map[int][]models.TorrentRecord{0: {rec(1, 1, 1)}},
		fail:  map[int]error{1: context.Canceled},
	}
	cancel()

	_, err := AggregateUploader(ctx, src, "YIFY", AggregateOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
