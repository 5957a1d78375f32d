// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"time"
)

const magnetPrefix = "magnet:?xt=urn:btih:"

// MagnetLink builds the magnet URI for an info hash.
func MagnetLink(infoHash string) string {
	return magnetPrefix + infoHash
}

// TorrentRecord is the backend-agnostic representation of a torrent entry.
// Magnet and AddedAt are derived during normalization and never taken from
// the remote payload.
type TorrentRecord struct {
	SourceID string    `json:"sourceId"`
	Name     string    `json:"name"`
	Uploader string    `json:"uploader"`
	Size     int64     `json:"size"`
	Seeders  int       `json:"seeders"`
	Leechers int       `json:"leechers"`
	InfoHash string    `json:"infoHash"`
	Magnet   string    `json:"magnet"`
	AddedAt  time.Time `json:"addedAt"`
	Status   string    `json:"status"`
	Category string    `json:"category,omitempty"`
	IMDb     string    `json:"imdb,omitempty"`

	MediaKind MediaKind `json:"mediaKind"`
	Quality   string    `json:"quality"`
	Language  string    `json:"language"`
	Season    *int      `json:"season,omitempty"`
	Episode   *int      `json:"episode,omitempty"`
	Source    string    `json:"source"`

	// Populated by detail lookups only.
	Description string `json:"description,omitempty"`
	NumFiles    int    `json:"numFiles,omitempty"`
}
