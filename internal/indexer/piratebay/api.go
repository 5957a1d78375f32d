// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package piratebay

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/models"
)

// apibay answers an empty search with a single placeholder entry
const noResultsName = "No results returned"

// number decodes apibay numeric fields, which arrive either as JSON numbers
// or as numeric strings. Values that are neither leave Valid false.
type number struct {
	Value int64
	Valid bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		n.Value, n.Valid = v, true
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n.Value, n.Valid = int64(f), true
	}
	return nil
}

// text decodes fields that may be sent as strings or numbers.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(b)
	return nil
}

type apiEntry struct {
	ID          text   `json:"id"`
	Name        text   `json:"name"`
	InfoHash    text   `json:"info_hash"`
	Leechers    number `json:"leechers"`
	Seeders     number `json:"seeders"`
	NumFiles    number `json:"num_files"`
	Size        number `json:"size"`
	Username    text   `json:"username"`
	Added       number `json:"added"`
	Status      text   `json:"status"`
	Category    number `json:"category"`
	IMDb        text   `json:"imdb"`
	Description text   `json:"descr"`
	AltDescr    text   `json:"description"`
}

func (e apiEntry) isPlaceholder() bool {
	return string(e.ID) == "0" || string(e.Name) == noResultsName
}

func (e apiEntry) raw() indexer.RawEntry {
	cat := CategoryAll
	if e.Category.Valid {
		cat = Category(e.Category.Value)
	}

	return indexer.RawEntry{
		ID:        string(e.ID),
		Name:      string(e.Name),
		InfoHash:  string(e.InfoHash),
		Uploader:  string(e.Username),
		Status:    string(e.Status),
		Category:  cat.Code(),
		IMDb:      string(e.IMDb),
		Size:      e.Size.Value,
		Seeders:   int(e.Seeders.Value),
		Leechers:  int(e.Leechers.Value),
		Added:     e.Added.Value,
		HasAdded:  e.Added.Valid,
		MediaKind: cat.MediaKind(),
	}
}

func (e apiEntry) description() string {
	if e.Description != "" {
		return string(e.Description)
	}
	return string(e.AltDescr)
}

// decodeEntries parses a listing response. The no-results placeholder yields
// an empty slice.
func decodeEntries(body []byte) ([]apiEntry, error) {
	var entries []apiEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 1 && entries[0].isPlaceholder() {
		return []apiEntry{}, nil
	}
	return entries, nil
}

// normalizeEntries maps entries to records, dropping malformed ones.
func normalizeEntries(source string, entries []apiEntry, onSkip func(error)) []models.TorrentRecord {
	out := make([]models.TorrentRecord, 0, len(entries))
	for _, e := range entries {
		if e.isPlaceholder() {
			onSkip(&indexer.MalformedEntryError{Indexer: source, EntryID: string(e.ID), Field: "id", Reason: "is a placeholder"})
			continue
		}
		rec, err := indexer.NormalizeEntry(source, e.raw())
		if err != nil {
			onSkip(err)
			continue
		}
		out = append(out, rec)
	}
	return out
}
