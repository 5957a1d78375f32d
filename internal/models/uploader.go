// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// UploaderProfile summarizes the listing of one uploader on one platform.
// A profile is built once per aggregation run and not mutated afterwards.
type UploaderProfile struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`

	TotalPages    int   `json:"totalPages"`
	TotalUploads  int   `json:"totalUploads"`
	TotalSeeders  int64 `json:"totalSeeders"`
	TotalLeechers int64 `json:"totalLeechers"`

	AvgUploadsPerMonth   float64 `json:"avgUploadsPerMonth"`
	AvgSeedersPerUpload  float64 `json:"avgSeedersPerUpload"`
	AvgLeechersPerUpload float64 `json:"avgLeechersPerUpload"`

	RecentActivity time.Time `json:"recentActivity"`
	OldestActivity time.Time `json:"oldestActivity"`
	FetchedAt      time.Time `json:"fetchedAt"`
}
