// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"slices"
	"time"
)

// ScrapperKind describes how a backend obtains its data.
type ScrapperKind string

const (
	ScrapperStatic  ScrapperKind = "static"
	ScrapperBrowser ScrapperKind = "browser"
	ScrapperAPI     ScrapperKind = "api"
)

// MediaKind tags the content a backend serves or a record describes.
type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaTVShow  MediaKind = "tv_show"
	MediaUnknown MediaKind = "unknown"
)

// BackendDescriptor identifies a backend. It is immutable after construction.
type BackendDescriptor struct {
	Name         string       `json:"name"`
	BaseURL      string       `json:"baseUrl"`
	MediaSupport []MediaKind  `json:"mediaSupport"`
	RequiresAuth bool         `json:"requiresAuth"`
	Kind         ScrapperKind `json:"kind"`
}

// Supports reports whether the backend declares the given media kind.
func (d BackendDescriptor) Supports(kind MediaKind) bool {
	return slices.Contains(d.MediaSupport, kind)
}

// HealthState is the tri-state liveness of a backend.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthStatus is a snapshot of a backend's health.
// LastUpdated is zero while the state is still HealthUnknown.
type HealthStatus struct {
	State       HealthState `json:"state"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// LatencyStats is a snapshot of the running latency average of a backend.
type LatencyStats struct {
	Count          uint64  `json:"count"`
	AverageSeconds float64 `json:"averageSeconds"`
}
