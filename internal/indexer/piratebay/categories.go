// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package piratebay

import (
	"strconv"

	"github.com/torrentcompanion/companion/internal/models"
)

// Category is a PirateBay category code.
type Category int

const (
	CategoryAll       Category = 0
	CategoryVideo     Category = 200
	CategoryMovies    Category = 201
	CategoryMoviesDVD Category = 202
	CategoryMusicVid  Category = 203
	CategoryClips     Category = 204
	CategoryTV        Category = 205
	CategoryHandheld  Category = 206
	CategoryHDMovies  Category = 207
	CategoryHDTV      Category = 208
	Category3D        Category = 209
	CategoryCAM       Category = 210
	CategoryUHDMovies Category = 211
	CategoryUHDTV     Category = 212
	CategoryOther     Category = 299
)

var categoryNames = map[Category]string{
	CategoryAll:       "All",
	CategoryVideo:     "Video",
	CategoryMovies:    "Movies",
	CategoryMoviesDVD: "Movies DVDR",
	CategoryMusicVid:  "Music videos",
	CategoryClips:     "Movie clips",
	CategoryTV:        "TV shows",
	CategoryHandheld:  "Handheld",
	CategoryHDMovies:  "HD - Movies",
	CategoryHDTV:      "HD - TV shows",
	Category3D:        "3D",
	CategoryCAM:       "CAM/TS",
	CategoryUHDMovies: "UHD/4k - Movies",
	CategoryUHDTV:     "UHD/4k - TV shows",
	CategoryOther:     "Other",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// Code is the value sent in the cat query parameter.
func (c Category) Code() string {
	return strconv.Itoa(int(c))
}

// MediaKind maps a category to the content it holds.
func (c Category) MediaKind() models.MediaKind {
	switch c {
	case CategoryMovies, CategoryMoviesDVD, CategoryHDMovies, CategoryUHDMovies, Category3D, CategoryCAM:
		return models.MediaMovie
	case CategoryTV, CategoryHDTV, CategoryUHDTV:
		return models.MediaTVShow
	default:
		return models.MediaUnknown
	}
}

// ParseCategory accepts a numeric code. An empty string selects CategoryAll.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryAll, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &InvalidCategoryError{Value: s}
	}
	return Category(n), nil
}

type InvalidCategoryError struct {
	Value string
}

func (e *InvalidCategoryError) Error() string {
	return "invalid piratebay category " + strconv.Quote(e.Value)
}
