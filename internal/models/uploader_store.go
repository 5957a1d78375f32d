// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/torrentcompanion/companion/internal/dbinterface"
)

var ErrUploaderNotFound = errors.New("uploader not found")

// UploaderStore keeps the latest profile per (name, platform).
type UploaderStore struct {
	db dbinterface.Querier
}

func NewUploaderStore(db dbinterface.Querier) *UploaderStore {
	return &UploaderStore{db: db}
}

const selectUploaderColumns = `
	SELECT sn.value, sp.value, u.total_pages, u.total_uploads, u.total_seeders, u.total_leechers,
	       u.avg_uploads_per_month, u.avg_seeders_per_upload, u.avg_leechers_per_upload,
	       u.recent_activity, u.oldest_activity, u.fetched_at
	FROM uploaders u
	JOIN string_pool sn ON sn.id = u.name_id
	JOIN string_pool sp ON sp.id = u.platform_id
`

// Upsert replaces the stored profile for the uploader.
func (s *UploaderStore) Upsert(ctx context.Context, p *UploaderProfile) error {
	if p == nil || p.Name == "" || p.Platform == "" {
		return fmt.Errorf("uploader profile requires name and platform")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids, err := dbinterface.InternStrings(ctx, tx, p.Name, p.Platform)
	if err != nil {
		return fmt.Errorf("failed to intern uploader labels: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO uploaders (
			name_id, platform_id, total_pages, total_uploads, total_seeders, total_leechers,
			avg_uploads_per_month, avg_seeders_per_upload, avg_leechers_per_upload,
			recent_activity, oldest_activity, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_id, platform_id) DO UPDATE SET
			total_pages = excluded.total_pages,
			total_uploads = excluded.total_uploads,
			total_seeders = excluded.total_seeders,
			total_leechers = excluded.total_leechers,
			avg_uploads_per_month = excluded.avg_uploads_per_month,
			avg_seeders_per_upload = excluded.avg_seeders_per_upload,
			avg_leechers_per_upload = excluded.avg_leechers_per_upload,
			recent_activity = excluded.recent_activity,
			oldest_activity = excluded.oldest_activity,
			fetched_at = excluded.fetched_at
	`,
		ids[0],
		ids[1],
		p.TotalPages,
		p.TotalUploads,
		p.TotalSeeders,
		p.TotalLeechers,
		p.AvgUploadsPerMonth,
		p.AvgSeedersPerUpload,
		p.AvgLeechersPerUpload,
		nullableTime(p.RecentActivity),
		nullableTime(p.OldestActivity),
		p.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert uploader %s: %w", p.Name, err)
	}

	return tx.Commit()
}

func (s *UploaderStore) Get(ctx context.Context, name, platform string) (*UploaderProfile, error) {
	row := s.db.QueryRowContext(ctx, selectUploaderColumns+" WHERE sn.value = ? AND sp.value = ?", name, platform)

	p, err := scanUploader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUploaderNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns all stored profiles, most recently fetched first.
func (s *UploaderStore) List(ctx context.Context) ([]UploaderProfile, error) {
	rows, err := s.db.QueryContext(ctx, selectUploaderColumns+" ORDER BY u.fetched_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query uploaders: %w", err)
	}
	defer rows.Close()

	var out []UploaderProfile
	for rows.Next() {
		p, err := scanUploader(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanUploader(row rowScanner) (*UploaderProfile, error) {
	var (
		p      UploaderProfile
		recent sql.NullTime
		oldest sql.NullTime
	)

	err := row.Scan(
		&p.Name,
		&p.Platform,
		&p.TotalPages,
		&p.TotalUploads,
		&p.TotalSeeders,
		&p.TotalLeechers,
		&p.AvgUploadsPerMonth,
		&p.AvgSeedersPerUpload,
		&p.AvgLeechersPerUpload,
		&recent,
		&oldest,
		&p.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	if recent.Valid {
		p.RecentActivity = recent.Time.UTC()
	}
	if oldest.Valid {
		p.OldestActivity = oldest.Time.UTC()
	}
	p.FetchedAt = p.FetchedAt.UTC()

	return &p, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
