// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// SearchResponse is the result envelope of a single backend search.
//
// A failed response always carries an empty result set and a non-empty Error;
// use NewSearchResponse and NewFailedSearchResponse to build one.
type SearchResponse struct {
	Success      bool            `json:"success"`
	Query        string          `json:"query"`
	Category     string          `json:"category"`
	Results      []TorrentRecord `json:"results"`
	TotalResults int             `json:"totalResults"`
	Error        string          `json:"error,omitempty"`

	// RawCount is the number of entries received before normalization.
	// RawCount - TotalResults entries were skipped as malformed.
	RawCount int `json:"rawCount"`
}

// NewSearchResponse builds a successful response.
func NewSearchResponse(query, category string, results []TorrentRecord, rawCount int) *SearchResponse {
	if results == nil {
		results = []TorrentRecord{}
	}
	return &SearchResponse{
		Success:      true,
		Query:        query,
		Category:     category,
		Results:      results,
		TotalResults: len(results),
		RawCount:     rawCount,
	}
}

// NewFailedSearchResponse builds an unsuccessful response with no results.
func NewFailedSearchResponse(query, category, detail string) *SearchResponse {
	if detail == "" {
		detail = "search failed"
	}
	return &SearchResponse{
		Success:  false,
		Query:    query,
		Category: category,
		Results:  []TorrentRecord{},
		Error:    detail,
	}
}

// Skipped returns the number of raw entries dropped during normalization.
func (r *SearchResponse) Skipped() int {
	if r.RawCount < r.TotalResults {
		return 0
	}
	return r.RawCount - r.TotalResults
}
