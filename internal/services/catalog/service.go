// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package catalog fans searches out across registered indexers, caches the
// responses and records what it sees in the local database.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/models"
)

const (
	DefaultCacheTTL       = 15 * time.Minute
	DefaultMaxConcurrency = 4
)

// ErrUnknownIndexer is returned for names the registry does not know.
var ErrUnknownIndexer = errors.New("unknown indexer")

// Registry is the subset of indexer.Manager the service needs.
type Registry interface {
	Get(name string) (*indexer.Indexer, bool)
	List() []*indexer.Indexer
}

type TorrentRecorder interface {
	UpsertMany(ctx context.Context, records []models.TorrentRecord) (int, error)
}

type ProfileRecorder interface {
	Upsert(ctx context.Context, p *models.UploaderProfile) error
}

type Config struct {
	CacheTTL          time.Duration
	MaxConcurrency    int
	UploaderPageLimit int
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:          DefaultCacheTTL,
		MaxConcurrency:    DefaultMaxConcurrency,
		UploaderPageLimit: indexer.DefaultUploaderPageLimit,
	}
}

// IndexerResult is one indexer's share of a fan-out search.
type IndexerResult struct {
	Indexer  string                 `json:"indexer"`
	Response *models.SearchResponse `json:"response,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Cached   bool                   `json:"cached"`
}

// AggregateResponse merges the responses of every searched indexer.
type AggregateResponse struct {
	Query        string          `json:"query"`
	Category     string          `json:"category"`
	Indexers     []IndexerResult `json:"indexers"`
	Skipped      []string        `json:"skipped"`
	TotalResults int             `json:"totalResults"`
}

type Service struct {
	cfg      Config
	registry Registry
	torrents TorrentRecorder
	profiles ProfileRecorder
	cache    *ttlcache.Cache[string, *models.SearchResponse]
}

// NewService builds a catalog. torrents and profiles may be nil, in which
// case nothing is persisted.
func NewService(cfg Config, registry Registry, torrents TorrentRecorder, profiles ProfileRecorder) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.UploaderPageLimit <= 0 {
		cfg.UploaderPageLimit = indexer.DefaultUploaderPageLimit
	}

	return &Service{
		cfg:      cfg,
		registry: registry,
		torrents: torrents,
		profiles: profiles,
		cache: ttlcache.New(ttlcache.Options[string, *models.SearchResponse]{}.
			SetDefaultTTL(cfg.CacheTTL)),
	}
}

func (s *Service) Close() {
	s.cache.Close()
}

func cacheKey(name, query, category string) string {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToLower(name))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.TrimSpace(query))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.TrimSpace(category))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (s *Service) lookup(name string) (*indexer.Indexer, error) {
	ix, ok := s.registry.Get(name)
	if !ok {
		return nil, ErrUnknownIndexer
	}
	return ix, nil
}

// Search runs query on a single indexer. The second return value reports a
// cache hit.
func (s *Service) Search(ctx context.Context, name, query, category string) (*models.SearchResponse, bool, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, false, err
	}
	return s.search(ctx, ix, query, category)
}

func (s *Service) search(ctx context.Context, ix *indexer.Indexer, query, category string) (*models.SearchResponse, bool, error) {
	key := cacheKey(ix.Name(), query, category)
	if cached, found := s.cache.Get(key); found {
		return cached, true, nil
	}

	resp, err := ix.Search(ctx, query, category)
	if err != nil {
		return nil, false, err
	}

	// failed responses are retried on the next request
	if resp.Success {
		s.cache.Set(key, resp, ttlcache.DefaultTTL)
		s.recordTorrents(ctx, ix.Name(), resp.Results)
	}

	return resp, false, nil
}

// SearchAll searches every indexer that is not currently unhealthy.
// Per-indexer failures are reported in the result and never fail the call.
func (s *Service) SearchAll(ctx context.Context, query, category string) (*AggregateResponse, error) {
	out := &AggregateResponse{
		Query:    query,
		Category: category,
		Indexers: []IndexerResult{},
		Skipped:  []string{},
	}

	var targets []*indexer.Indexer
	for _, ix := range s.registry.List() {
		if ix.Health().State == models.HealthUnhealthy {
			out.Skipped = append(out.Skipped, ix.Name())
			continue
		}
		targets = append(targets, ix)
	}

	results := make([]IndexerResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i, ix := range targets {
		g.Go(func() error {
			res := IndexerResult{Indexer: ix.Name()}
			resp, cached, err := s.search(gctx, ix, query, category)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn().Err(err).Str("indexer", ix.Name()).Str("query", query).Msg("Indexer search failed")
				res.Error = err.Error()
			}
			res.Response = resp
			res.Cached = cached
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Response != nil {
			out.TotalResults += res.Response.TotalResults
		}
		out.Indexers = append(out.Indexers, res)
	}

	return out, nil
}

// Detail looks up a single torrent on the named indexer.
func (s *Service) Detail(ctx context.Context, name, id string) (*models.TorrentRecord, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	rec, err := ix.GetTorrentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTorrents(ctx, ix.Name(), []models.TorrentRecord{*rec})
	return rec, nil
}

// UploaderProfile aggregates an uploader's listing on the named indexer.
// pages <= 0 uses the configured limit.
func (s *Service) UploaderProfile(ctx context.Context, name, username string, pages int) (*models.UploaderProfile, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if pages <= 0 {
		pages = s.cfg.UploaderPageLimit
	}

	profile, err := ix.GetUploaderProfile(ctx, username, pages)
	if err != nil {
		return nil, err
	}

	if s.profiles != nil {
		if err := s.profiles.Upsert(ctx, profile); err != nil {
			log.Warn().Err(err).Str("indexer", ix.Name()).Str("uploader", username).Msg("Failed to store uploader profile")
		}
	}
	return profile, nil
}

func (s *Service) recordTorrents(ctx context.Context, source string, records []models.TorrentRecord) {
	if s.torrents == nil || len(records) == 0 {
		return
	}
	n, err := s.torrents.UpsertMany(ctx, records)
	if err != nil {
		log.Warn().Err(err).Str("indexer", source).Int("records", len(records)).Msg("Failed to store torrents")
		return
	}
	log.Trace().Str("indexer", source).Int("stored", n).Msg("Stored torrents")
}
