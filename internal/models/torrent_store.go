// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/torrentcompanion/companion/internal/dbinterface"
)

var ErrTorrentNotFound = errors.New("torrent not found")

// TorrentStore persists canonical torrent records keyed by info hash.
type TorrentStore struct {
	db  dbinterface.Querier
	now func() time.Time
}

func NewTorrentStore(db dbinterface.Querier) *TorrentStore {
	return &TorrentStore{db: db, now: time.Now}
}

const selectTorrentColumns = `
	SELECT t.source_id, t.name, COALESCE(su.value, ''), t.size, t.seeders, t.leechers,
	       t.info_hash, t.magnet, t.added_at, t.status, t.category, t.imdb, t.media_kind,
	       COALESCE(sq.value, ''), COALESCE(sl.value, ''), t.season, t.episode, ss.value
	FROM torrents t
	JOIN string_pool ss ON ss.id = t.source_name_id
	LEFT JOIN string_pool su ON su.id = t.uploader_id
	LEFT JOIN string_pool sq ON sq.id = t.quality_id
	LEFT JOIN string_pool sl ON sl.id = t.language_id
`

// UpsertMany inserts records or refreshes the swarm counters of existing ones.
// Hashes are keyed upper-case and the stored magnet is derived from that key.
// It returns the number of records written.
func (s *TorrentStore) UpsertMany(ctx context.Context, records []TorrentRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scrapedAt := s.now().UTC()
	written := 0

	for _, rec := range records {
		if strings.TrimSpace(rec.InfoHash) == "" || rec.Source == "" {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(rec.InfoHash))

		ids, err := dbinterface.InternStringNullable(ctx, tx, &rec.Source, &rec.Uploader, &rec.Quality, &rec.Language)
		if err != nil {
			return written, fmt.Errorf("failed to intern labels: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO torrents (
				info_hash, source_id, source_name_id, uploader_id, name, size, seeders, leechers,
				status, category, imdb, media_kind, quality_id, language_id, season, episode,
				magnet, added_at, scraped_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(info_hash) DO UPDATE SET
				name = excluded.name,
				seeders = excluded.seeders,
				leechers = excluded.leechers,
				status = excluded.status,
				quality_id = excluded.quality_id,
				language_id = excluded.language_id,
				scraped_at = excluded.scraped_at
		`,
			key,
			rec.SourceID,
			ids[0],
			ids[1],
			rec.Name,
			rec.Size,
			rec.Seeders,
			rec.Leechers,
			rec.Status,
			rec.Category,
			rec.IMDb,
			string(rec.MediaKind),
			ids[2],
			ids[3],
			nullableInt(rec.Season),
			nullableInt(rec.Episode),
			MagnetLink(key),
			rec.AddedAt.UTC(),
			scrapedAt,
		)
		if err != nil {
			return written, fmt.Errorf("failed to upsert torrent %s: %w", rec.InfoHash, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit torrents: %w", err)
	}

	return written, nil
}

func (s *TorrentStore) GetByInfoHash(ctx context.Context, infoHash string) (*TorrentRecord, error) {
	row := s.db.QueryRowContext(ctx, selectTorrentColumns+" WHERE t.info_hash = ?", strings.ToUpper(infoHash))

	rec, err := scanTorrent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTorrentNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByUploader returns the most recently added records of an uploader.
func (s *TorrentStore) ListByUploader(ctx context.Context, uploader string, limit int) ([]TorrentRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, selectTorrentColumns+`
		WHERE su.value = ?
		ORDER BY t.added_at DESC
		LIMIT ?
	`, uploader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query torrents: %w", err)
	}
	defer rows.Close()

	var out []TorrentRecord
	for rows.Next() {
		rec, err := scanTorrent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTorrent(row rowScanner) (*TorrentRecord, error) {
	var (
		rec       TorrentRecord
		mediaKind string
		season    sql.NullInt64
		episode   sql.NullInt64
	)

	err := row.Scan(
		&rec.SourceID,
		&rec.Name,
		&rec.Uploader,
		&rec.Size,
		&rec.Seeders,
		&rec.Leechers,
		&rec.InfoHash,
		&rec.Magnet,
		&rec.AddedAt,
		&rec.Status,
		&rec.Category,
		&rec.IMDb,
		&mediaKind,
		&rec.Quality,
		&rec.Language,
		&season,
		&episode,
		&rec.Source,
	)
	if err != nil {
		return nil, err
	}

	rec.MediaKind = MediaKind(mediaKind)
	rec.AddedAt = rec.AddedAt.UTC()
	if season.Valid {
		v := int(season.Int64)
		rec.Season = &v
	}
	if episode.Valid {
		v := int(episode.Int64)
		rec.Episode = &v
	}

	return &rec, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
