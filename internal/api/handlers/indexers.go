// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/models"
	"github.com/torrentcompanion/companion/internal/services/catalog"
)

const (
	maxUploaderPages = 50
	cacheHeader      = "X-Companion-Cache"
)

type IndexerRegistry interface {
	Get(name string) (*indexer.Indexer, bool)
	List() []*indexer.Indexer
}

type HealthProber interface {
	Trigger(name string) bool
	Jobs() []indexer.JobStatus
}

type Catalog interface {
	Search(ctx context.Context, name, query, category string) (*models.SearchResponse, bool, error)
	SearchAll(ctx context.Context, query, category string) (*catalog.AggregateResponse, error)
	Detail(ctx context.Context, name, id string) (*models.TorrentRecord, error)
	UploaderProfile(ctx context.Context, name, username string, pages int) (*models.UploaderProfile, error)
}

// IndexerStatus is the listing entry for one indexer.
type IndexerStatus struct {
	models.BackendDescriptor
	Health  models.HealthStatus `json:"health"`
	Latency models.LatencyStats `json:"latency"`
	LastRun *time.Time          `json:"lastProbe,omitempty"`
	NextRun *time.Time          `json:"nextProbe,omitempty"`
	Probing bool                `json:"probing"`
}

type IndexersHandler struct {
	registry IndexerRegistry
	prober   HealthProber
	catalog  Catalog
}

func NewIndexersHandler(registry IndexerRegistry, prober HealthProber, catalog Catalog) *IndexersHandler {
	return &IndexersHandler{
		registry: registry,
		prober:   prober,
		catalog:  catalog,
	}
}

func (h *IndexersHandler) Routes(r chi.Router) {
	r.Get("/search", h.SearchAll)

	r.Route("/indexers", func(r chi.Router) {
		r.Get("/", h.ListIndexers)

		r.Route("/{name}", func(r chi.Router) {
			r.Post("/probe", h.Probe)
			r.Get("/search", h.Search)
			r.Get("/torrents/{id}", h.GetTorrent)
			r.Get("/uploaders/{username}", h.GetUploader)
		})
	})
}

func (h *IndexersHandler) ListIndexers(w http.ResponseWriter, _ *http.Request) {
	jobs := make(map[string]indexer.JobStatus)
	for _, job := range h.prober.Jobs() {
		jobs[job.ID] = job
	}

	out := make([]IndexerStatus, 0)
	for _, ix := range h.registry.List() {
		status := IndexerStatus{
			BackendDescriptor: ix.Descriptor(),
			Health:            ix.Health(),
			Latency:           ix.Latency(),
		}
		if job, ok := jobs[indexer.JobID(ix.Name())]; ok {
			status.Probing = job.Running
			if !job.LastRun.IsZero() {
				status.LastRun = &job.LastRun
				status.NextRun = &job.NextRun
			}
		}
		out = append(out, status)
	}

	RespondJSON(w, http.StatusOK, out)
}

// Probe requests an immediate health check. A probe that is already in
// flight answers 409.
func (h *IndexersHandler) Probe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.registry.Get(name); !ok {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}

	if !h.prober.Trigger(name) {
		RespondError(w, http.StatusConflict, "Health probe already running")
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "probing"})
}

func searchParams(r *http.Request) (string, string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	return q, strings.TrimSpace(r.URL.Query().Get("category")), q != ""
}

func (h *IndexersHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, category, ok := searchParams(r)
	if !ok {
		RespondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	name := chi.URLParam(r, "name")
	resp, cached, err := h.catalog.Search(r.Context(), name, query, category)
	if err != nil {
		log.Debug().Err(err).Str("indexer", name).Str("query", query).Msg("Search failed")
		respondIndexerError(w, err)
		return
	}

	if cached {
		w.Header().Set(cacheHeader, "hit")
	} else {
		w.Header().Set(cacheHeader, "miss")
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (h *IndexersHandler) SearchAll(w http.ResponseWriter, r *http.Request) {
	query, category, ok := searchParams(r)
	if !ok {
		RespondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	resp, err := h.catalog.SearchAll(r.Context(), query, category)
	if err != nil {
		respondIndexerError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}

func (h *IndexersHandler) GetTorrent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.catalog.Detail(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		respondIndexerError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, rec)
}

func (h *IndexersHandler) GetUploader(w http.ResponseWriter, r *http.Request) {
	pages := 0
	if raw := r.URL.Query().Get("pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxUploaderPages {
			RespondError(w, http.StatusBadRequest, "pages must be between 1 and "+strconv.Itoa(maxUploaderPages))
			return
		}
		pages = n
	}

	profile, err := h.catalog.UploaderProfile(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "username"), pages)
	if err != nil {
		respondIndexerError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, profile)
}
