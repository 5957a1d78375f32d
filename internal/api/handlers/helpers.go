// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/services/catalog"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// statusForError maps indexer errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownIndexer), errors.Is(err, indexer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, &indexer.TimeoutError{}):
		return http.StatusGatewayTimeout
	case errors.Is(err, &indexer.UnsupportedOperationError{}):
		return http.StatusNotImplemented
	case errors.Is(err, &indexer.ConnectivityError{}),
		errors.Is(err, &indexer.RemoteError{}),
		errors.Is(err, &indexer.MalformedEntryError{}):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondIndexerError(w http.ResponseWriter, err error) {
	RespondError(w, statusForError(err), err.Error())
}
