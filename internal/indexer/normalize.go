// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"fmt"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/moistari/rls"

	"github.com/torrentcompanion/companion/internal/models"
)

// Unknown is the default for quality, language and uploader labels that a
// backend does not provide.
const Unknown = "Unknown"

// NormalizeInfoHash validates a 40 character hex info hash and returns it
// trimmed, case preserved. The all-zero hash is rejected.
func NormalizeInfoHash(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var h metainfo.Hash
	if err := h.FromHexString(raw); err != nil {
		return "", fmt.Errorf("invalid info hash: %w", err)
	}
	if h == (metainfo.Hash{}) {
		return "", fmt.Errorf("invalid info hash: all zeros")
	}
	return raw, nil
}

// EpochToTime converts unix seconds to a UTC time. Negative values are
// rejected.
func EpochToTime(epoch int64) (time.Time, error) {
	if epoch < 0 {
		return time.Time{}, fmt.Errorf("negative epoch %d", epoch)
	}
	return time.Unix(epoch, 0).UTC(), nil
}

// ReleaseInfo is the metadata derived from a release name.
type ReleaseInfo struct {
	Quality   string
	Language  string
	Season    *int
	Episode   *int
	MediaKind models.MediaKind
}

// ParseRelease extracts resolution, language and episode numbering from a
// release name. Missing labels default to Unknown.
func ParseRelease(name string) ReleaseInfo {
	r := rls.ParseString(name)

	info := ReleaseInfo{
		Quality:   Unknown,
		Language:  Unknown,
		MediaKind: models.MediaUnknown,
	}

	if r.Resolution != "" {
		info.Quality = r.Resolution
	}
	if len(r.Language) > 0 {
		info.Language = strings.Join(r.Language, ", ")
	}

	switch {
	case r.Series > 0 || r.Episode > 0 || r.Type == rls.Series || r.Type == rls.Episode:
		info.MediaKind = models.MediaTVShow
		if r.Series > 0 {
			season := r.Series
			info.Season = &season
		}
		if r.Episode > 0 {
			episode := r.Episode
			info.Episode = &episode
		}
	case r.Type == rls.Movie:
		info.MediaKind = models.MediaMovie
	}

	return info
}

// RawEntry holds the backend-agnostic fields a backend extracted from one
// remote entry before validation.
type RawEntry struct {
	ID       string
	Name     string
	InfoHash string
	Uploader string
	Status   string
	Category string
	IMDb     string
	Size     int64
	Seeders  int
	Leechers int
	Added    int64

	// HasAdded is false when the remote entry carried no usable timestamp.
	HasAdded bool
	// MediaKind, when set, overrides the kind derived from the release name.
	MediaKind models.MediaKind
}

// NormalizeEntry validates e and maps it to a canonical record. Missing
// required fields (id, name, info hash, added) yield a MalformedEntryError.
func NormalizeEntry(source string, e RawEntry) (models.TorrentRecord, error) {
	malformed := func(field, reason string) error {
		return &MalformedEntryError{Indexer: source, EntryID: e.ID, Field: field, Reason: reason}
	}

	if strings.TrimSpace(e.ID) == "" {
		return models.TorrentRecord{}, malformed("id", "is missing")
	}
	if strings.TrimSpace(e.Name) == "" {
		return models.TorrentRecord{}, malformed("name", "is missing")
	}
	hash, err := NormalizeInfoHash(e.InfoHash)
	if err != nil {
		return models.TorrentRecord{}, malformed("info_hash", err.Error())
	}
	if !e.HasAdded {
		return models.TorrentRecord{}, malformed("added", "is missing or not numeric")
	}
	addedAt, err := EpochToTime(e.Added)
	if err != nil {
		return models.TorrentRecord{}, malformed("added", err.Error())
	}

	info := ParseRelease(e.Name)
	if e.MediaKind != "" && e.MediaKind != models.MediaUnknown {
		info.MediaKind = e.MediaKind
	}

	rec := models.TorrentRecord{
		SourceID:  e.ID,
		Name:      e.Name,
		Uploader:  defaultString(e.Uploader, Unknown),
		Size:      max(e.Size, 0),
		Seeders:   max(e.Seeders, 0),
		Leechers:  max(e.Leechers, 0),
		InfoHash:  hash,
		Magnet:    models.MagnetLink(hash),
		AddedAt:   addedAt,
		Status:    defaultString(e.Status, "unknown"),
		Category:  e.Category,
		IMDb:      e.IMDb,
		MediaKind: info.MediaKind,
		Quality:   info.Quality,
		Language:  info.Language,
		Season:    info.Season,
		Episode:   info.Episode,
		Source:    source,
	}

	return rec, nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
