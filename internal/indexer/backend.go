// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer defines the contract for remote torrent index backends and
// the infrastructure around them: latency instrumentation, health supervision
// and record normalization.
package indexer

import (
	"context"

	"github.com/torrentcompanion/companion/internal/models"
)

// Backend is implemented by every remote indexer integration.
type Backend interface {
	Descriptor() models.BackendDescriptor

	// TestConnection issues one lightweight request against the base URL and
	// reports whether it returned a 2xx status. It never returns an error.
	TestConnection(ctx context.Context) bool

	// Authenticate logs in to backends that require credentials. It is a
	// no-op for public backends.
	Authenticate(ctx context.Context) error

	BuildURL(tpl string, params map[string]string) (string, error)

	// Search returns a failed SearchResponse, not an error, when the backend
	// answers with a non-2xx status. Transport failures return a
	// ConnectivityError, deadlines a TimeoutError.
	Search(ctx context.Context, query, category string) (*models.SearchResponse, error)

	// GetTorrentDetail returns ErrNotFound when the id is unknown.
	GetTorrentDetail(ctx context.Context, id string) (*models.TorrentRecord, error)

	// GetUploaderProfile returns ErrNotFound when no uploads were collected.
	GetUploaderProfile(ctx context.Context, username string, pageLimit int) (*models.UploaderProfile, error)
}

// Prober is the part of Backend the health supervisor depends on.
type Prober interface {
	TestConnection(ctx context.Context) bool
}

// TestConnectionAsync runs TestConnection in the background. The channel
// receives exactly one value and is then closed.
func TestConnectionAsync(ctx context.Context, p Prober) <-chan bool {
	ch := make(chan bool, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- false
			}
		}()
		ch <- p.TestConnection(ctx)
	}()
	return ch
}
