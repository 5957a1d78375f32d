// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/models"
)

const DefaultUploaderPageLimit = 5

// PageSource exposes a paginated per-uploader listing. Pages are zero-based.
type PageSource interface {
	PageCount(ctx context.Context, username string) (int, error)
	Page(ctx context.Context, username string, page int) ([]models.TorrentRecord, error)
}

// AggregateOptions parameterizes AggregateUploader.
type AggregateOptions struct {
	Platform  string
	PageLimit int
	Now       func() time.Time
}

// AggregateUploader builds an UploaderProfile by reading up to PageLimit
// pages of the uploader's listing in order.
//
// Failed pages are logged and skipped. If no records are collected the
// result is ErrNotFound. OldestActivity also considers the last available
// page, which is fetched separately when it lies beyond the pages read.
func AggregateUploader(ctx context.Context, src PageSource, username string, opts AggregateOptions) (*models.UploaderProfile, error) {
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultUploaderPageLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := log.With().Str("platform", opts.Platform).Str("uploader", username).Logger()

	available, err := src.PageCount(ctx, username)
	if err != nil {
		if isAbort(ctx, err) {
			return nil, err
		}
		l.Debug().Err(err).Msg("Failed to read uploader page count")
		return nil, ErrNotFound
	}
	if available <= 0 {
		return nil, ErrNotFound
	}

	toRead := min(opts.PageLimit, available)

	var (
		collected []models.TorrentRecord
		pagesRead int
	)
	for page := 0; page < toRead; page++ {
		records, err := src.Page(ctx, username, page)
		if err != nil {
			if isAbort(ctx, err) {
				return nil, err
			}
			l.Warn().Err(err).Int("page", page).Msg("Skipping uploader page")
			continue
		}
		pagesRead++
		collected = append(collected, records...)
	}

	if len(collected) == 0 {
		return nil, ErrNotFound
	}

	profile := &models.UploaderProfile{
		Name:         username,
		Platform:     opts.Platform,
		TotalPages:   pagesRead,
		TotalUploads: len(collected),
	}

	for _, rec := range collected {
		profile.TotalSeeders += int64(rec.Seeders)
		profile.TotalLeechers += int64(rec.Leechers)
		if rec.AddedAt.After(profile.RecentActivity) {
			profile.RecentActivity = rec.AddedAt
		}
	}

	n := float64(len(collected))
	profile.AvgUploadsPerMonth = n / float64(max(pagesRead, 1))
	profile.AvgSeedersPerUpload = float64(profile.TotalSeeders) / n
	profile.AvgLeechersPerUpload = float64(profile.TotalLeechers) / n

	profile.OldestActivity = oldestOf(collected)

	if last := available - 1; last >= toRead {
		records, err := src.Page(ctx, username, last)
		switch {
		case err == nil:
			if oldest := oldestOf(records); !oldest.IsZero() && oldest.Before(profile.OldestActivity) {
				profile.OldestActivity = oldest
			}
		case isAbort(ctx, err):
			return nil, err
		default:
			l.Debug().Err(err).Int("page", last).Msg("Oldest page probe failed, using collected pages")
		}
	}

	profile.FetchedAt = opts.Now().UTC()

	return profile, nil
}

func oldestOf(records []models.TorrentRecord) time.Time {
	var oldest time.Time
	for _, rec := range records {
		if rec.AddedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || rec.AddedAt.Before(oldest) {
			oldest = rec.AddedAt
		}
	}
	return oldest
}

// isAbort reports whether err ends an aggregation run instead of skipping
// the page. A cancelled or expired caller context aborts, as does an
// unsupported operation.
func isAbort(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var unsupported *UnsupportedOperationError
	return errors.As(err, &unsupported)
}
