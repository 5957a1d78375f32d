// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package piratebay implements an indexer backend for the apibay JSON API.
package piratebay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/models"
)

const (
	Kind           = "piratebay"
	DefaultName    = "PirateBay"
	DefaultBaseURL = "https://apibay.org"

	searchTemplate    = "{base}/q.php?q={query}&cat={category}"
	detailTemplate    = "{base}/t.php?id={id}"
	pageCountTemplate = "{base}/q.php?q=pcnt:{username}"
	userPageTemplate  = "{base}/q.php?q=user:{username}:{page}"
)

// Config configures a PirateBay backend.
type Config struct {
	Name              string
	BaseURL           string
	RequiresAuth      bool
	Timeout           time.Duration
	Retries           uint
	UploaderPageLimit int
	HTTPClient        *http.Client
}

// Backend talks to an apibay compatible API.
type Backend struct {
	*indexer.Scrapper

	pageLimit int
	now       func() time.Time
}

var (
	_ indexer.Backend    = (*Backend)(nil)
	_ indexer.PageSource = (*Backend)(nil)
)

// New creates a backend and probes its base URL. It fails with a
// ConnectivityError when the probe does not succeed.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UploaderPageLimit <= 0 {
		cfg.UploaderPageLimit = indexer.DefaultUploaderPageLimit
	}

	b := &Backend{
		Scrapper: indexer.NewScrapper(indexer.ScrapperConfig{
			Descriptor: models.BackendDescriptor{
				Name:         cfg.Name,
				BaseURL:      cfg.BaseURL,
				MediaSupport: []models.MediaKind{models.MediaMovie, models.MediaTVShow},
				RequiresAuth: cfg.RequiresAuth,
				Kind:         models.ScrapperAPI,
			},
			Timeout:    cfg.Timeout,
			Retries:    cfg.Retries,
			HTTPClient: cfg.HTTPClient,
		}),
		pageLimit: cfg.UploaderPageLimit,
		now:       time.Now,
	}

	if !b.TestConnection(ctx) {
		return nil, &indexer.ConnectivityError{
			Indexer: cfg.Name,
			URL:     b.BaseURL(),
			Err:     errors.New("initial connectivity probe failed"),
		}
	}

	if cfg.RequiresAuth {
		if err := b.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("indexer", cfg.Name).Str("baseUrl", b.BaseURL()).Msg("PirateBay backend ready")

	return b, nil
}

// Factory adapts New to indexer.Factory. pageLimit applies to every backend
// the factory builds.
func Factory(pageLimit int) indexer.Factory {
	return func(ctx context.Context, cfg indexer.BackendConfig) (indexer.Backend, error) {
		b, err := New(ctx, Config{
			Name:              cfg.Name,
			BaseURL:           cfg.BaseURL,
			RequiresAuth:      cfg.RequiresAuth,
			Timeout:           cfg.Timeout,
			Retries:           cfg.Retries,
			UploaderPageLimit: pageLimit,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (b *Backend) url(tpl string, params map[string]string) (string, error) {
	params["base"] = b.BaseURL()
	return b.BuildURL(tpl, params)
}

// Search queries q.php. An empty category searches all categories.
func (b *Backend) Search(ctx context.Context, query, category string) (*models.SearchResponse, error) {
	cat, err := ParseCategory(strings.TrimSpace(category))
	if err != nil {
		return models.NewFailedSearchResponse(query, category, err.Error()), nil
	}
	category = cat.Code()

	endpoint, err := b.url(searchTemplate, map[string]string{
		"query":    url.QueryEscape(query),
		"category": category,
	})
	if err != nil {
		return nil, err
	}

	body, err := b.Get(ctx, endpoint)
	if err != nil {
		var remote *indexer.RemoteError
		if errors.As(err, &remote) {
			log.Warn().Str("indexer", b.Name()).Str("query", query).Int("status", remote.StatusCode).Msg("Search request failed")
			return models.NewFailedSearchResponse(query, category, remote.Detail()), nil
		}
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		log.Warn().Err(err).Str("indexer", b.Name()).Str("query", query).Msg("Failed to decode search response")
		return models.NewFailedSearchResponse(query, category, "invalid response: "+err.Error()), nil
	}

	results := normalizeEntries(b.Name(), entries, b.logSkip)

	return models.NewSearchResponse(query, category, results, len(entries)), nil
}

// GetTorrentDetail looks up a single torrent on t.php.
func (b *Backend) GetTorrentDetail(ctx context.Context, id string) (*models.TorrentRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, indexer.ErrNotFound
	}

	endpoint, err := b.url(detailTemplate, map[string]string{"id": url.QueryEscape(id)})
	if err != nil {
		return nil, err
	}

	body, err := b.Get(ctx, endpoint)
	if err != nil {
		var remote *indexer.RemoteError
		if errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound {
			return nil, indexer.ErrNotFound
		}
		return nil, err
	}

	var entry apiEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, &indexer.MalformedEntryError{Indexer: b.Name(), EntryID: id, Field: "body", Reason: err.Error()}
	}
	if entry.isPlaceholder() || entry.ID == "" {
		return nil, indexer.ErrNotFound
	}

	rec, err := indexer.NormalizeEntry(b.Name(), entry.raw())
	if err != nil {
		return nil, err
	}
	rec.Description = entry.description()
	rec.NumFiles = int(entry.NumFiles.Value)

	return &rec, nil
}

// GetUploaderProfile aggregates up to pageLimit pages of the uploader's
// listing. A non-positive pageLimit uses the configured default.
func (b *Backend) GetUploaderProfile(ctx context.Context, username string, pageLimit int) (*models.UploaderProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, indexer.ErrNotFound
	}
	if pageLimit <= 0 {
		pageLimit = b.pageLimit
	}

	return indexer.AggregateUploader(ctx, b, username, indexer.AggregateOptions{
		Platform:  b.Name(),
		PageLimit: pageLimit,
		Now:       b.now,
	})
}

// PageCount returns the number of listing pages apibay reports for username.
func (b *Backend) PageCount(ctx context.Context, username string) (int, error) {
	endpoint, err := b.url(pageCountTemplate, map[string]string{"username": url.QueryEscape(username)})
	if err != nil {
		return 0, err
	}

	body, err := b.Get(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	raw := strings.Trim(strings.TrimSpace(string(body)), `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &indexer.MalformedEntryError{Indexer: b.Name(), EntryID: username, Field: "pcnt", Reason: "is not a number"}
	}
	return max(n, 0), nil
}

// Page returns the normalized records of one zero-based listing page.
func (b *Backend) Page(ctx context.Context, username string, page int) ([]models.TorrentRecord, error) {
	endpoint, err := b.url(userPageTemplate, map[string]string{
		"username": url.QueryEscape(username),
		"page":     strconv.Itoa(page),
	})
	if err != nil {
		return nil, err
	}

	body, err := b.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, &indexer.MalformedEntryError{Indexer: b.Name(), EntryID: username, Field: "page " + strconv.Itoa(page), Reason: err.Error()}
	}

	return normalizeEntries(b.Name(), entries, b.logSkip), nil
}

func (b *Backend) logSkip(err error) {
	log.Debug().Err(err).Str("indexer", b.Name()).Msg("Skipping malformed entry")
}
