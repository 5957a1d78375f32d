// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentcompanion/companion/internal/models"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		tpl     string
		params  map[string]string
		want    string
		missing string
	}{
		{
			name:   "search",
			tpl:    "https://apibay.org/q.php?q={query}&cat={category}",
			params: map[string]string{"query": "matrix", "category": "0"},
			want:   "https://apibay.org/q.php?q=matrix&cat=0",
		},
		{
			name:   "repeated placeholder",
			tpl:    "{a}/{a}",
			params: map[string]string{"a": "x"},
			want:   "x/x",
		},
		{
			name:   "no placeholders",
			tpl:    "https://apibay.org",
			params: nil,
			want:   "https://apibay.org",
		},
		{
			name:   "unused params are ignored",
			tpl:    "t.php?id={id}",
			params: map[string]string{"id": "7", "extra": "y"},
			want:   "t.php?id=7",
		},
		{
			name:   "empty value is bound",
			tpl:    "q={query}",
			params: map[string]string{"query": ""},
			want:   "q=",
		},
		{
			name:    "missing parameter",
			tpl:     "q.php?q=user:{username}:{page}",
			params:  map[string]string{"username": "YIFY"},
			missing: "page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.tpl, tt.params)
			if tt.missing != "" {
				var missing *MissingParameterError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.missing, missing.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURLUnterminated(t *testing.T) {
	_, err := BuildURL("q={query", map[string]string{"query": "x"})
	require.Error(t, err)
}

func TestNormalizeInfoHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "upper", input: "D7A46713EAEE18C746B3254B7D1492A50FD9D6CE", want: "D7A46713EAEE18C746B3254B7D1492A50FD9D6CE"},
		{name: "lower keeps case", input: "d7a46713eaee18c746b3254b7d1492a50fd9d6ce", want: "d7a46713eaee18c746b3254b7d1492a50fd9d6ce"},
		{name: "trimmed", input: " D7A46713EAEE18C746B3254B7D1492A50FD9D6CE ", want: "D7A46713EAEE18C746B3254B7D1492A50FD9D6CE"},
		{name: "zero", input: "0000000000000000000000000000000000000000", wantErr: true},
		{name: "short", input: "ABCDEF", wantErr: true},
		{name: "not hex", input: "ZZA46713EAEE18C746B3254B7D1492A50FD9D6CE", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeInfoHash(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEpochToTime(t *testing.T) {
	got, err := EpochToTime(1230000000)
	require.NoError(t, err)
	assert.Equal(t, "2008-12-23T02:40:00Z", got.Format(time.RFC3339))

	_, err = EpochToTime(-1)
	assert.Error(t, err)
}

func matrixEntry() RawEntry {
	return RawEntry{
		ID:       "7349687",
		Name:     "The Matrix (1999) 1080p BrRip x264 - 1.85GB - YIFY",
		InfoHash: "D7A46713EAEE18C746B3254B7D1492A50FD9D6CE",
		Uploader: "YIFY",
		Status:   "vip",
		Size:     1985000000,
		Seeders:  120,
		Leechers: 3,
		Added:    1230000000,
		HasAdded: true,
	}
}

func TestNormalizeEntryRoundTrip(t *testing.T) {
	raw := matrixEntry()

	rec, err := NormalizeEntry("PirateBay", raw)
	require.NoError(t, err)

	assert.Equal(t, raw.ID, rec.SourceID)
	assert.Equal(t, raw.Name, rec.Name)
	assert.Equal(t, raw.InfoHash, rec.InfoHash)
	assert.Equal(t, raw.Uploader, rec.Uploader)
	assert.Equal(t, raw.Status, rec.Status)
	assert.Equal(t, raw.Size, rec.Size)
	assert.Equal(t, raw.Seeders, rec.Seeders)
	assert.Equal(t, raw.Leechers, rec.Leechers)
	assert.Equal(t, "PirateBay", rec.Source)

	assert.Equal(t, "magnet:?xt=urn:btih:D7A46713EAEE18C746B3254B7D1492A50FD9D6CE", rec.Magnet)
	assert.Equal(t, models.MagnetLink(rec.InfoHash), rec.Magnet)
	assert.Equal(t, raw.Added, rec.AddedAt.Unix())
	assert.Equal(t, time.UTC, rec.AddedAt.Location())
	assert.Equal(t, "1080p", rec.Quality)
}

func TestNormalizeEntryDefaults(t *testing.T) {
	raw := matrixEntry()
	raw.Uploader = ""
	raw.Status = ""
	raw.Name = "some.random.upload"
	raw.Seeders = -4

	rec, err := NormalizeEntry("PirateBay", raw)
	require.NoError(t, err)
	assert.Equal(t, Unknown, rec.Uploader)
	assert.Equal(t, "unknown", rec.Status)
	assert.Equal(t, Unknown, rec.Quality)
	assert.Equal(t, Unknown, rec.Language)
	assert.Zero(t, rec.Seeders)
}

func TestNormalizeEntryMediaKindOverride(t *testing.T) {
	raw := matrixEntry()
	raw.MediaKind = models.MediaTVShow

	rec, err := NormalizeEntry("PirateBay", raw)
	require.NoError(t, err)
	assert.Equal(t, models.MediaTVShow, rec.MediaKind)
}

func TestNormalizeEntryMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *RawEntry)
		field  string
	}{
		{name: "missing id", mutate: func(e *RawEntry) { e.ID = "" }, field: "id"},
		{name: "missing name", mutate: func(e *RawEntry) { e.Name = " " }, field: "name"},
		{name: "missing hash", mutate: func(e *RawEntry) { e.InfoHash = "" }, field: "info_hash"},
		{name: "missing added", mutate: func(e *RawEntry) { e.HasAdded = false }, field: "added"},
		{name: "negative added", mutate: func(e *RawEntry) { e.Added = -10 }, field: "added"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := matrixEntry()
			tt.mutate(&raw)

			_, err := NormalizeEntry("PirateBay", raw)
			var malformed *MalformedEntryError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.field, malformed.Field)
			assert.True(t, errors.Is(err, &MalformedEntryError{}))
		})
	}
}

func TestParseReleaseEpisode(t *testing.T) {
	info := ParseRelease("Some.Show.S02E05.720p.HDTV.x264-GRP")
	assert.Equal(t, models.MediaTVShow, info.MediaKind)
	require.NotNil(t, info.Season)
	require.NotNil(t, info.Episode)
	assert.Equal(t, 2, *info.Season)
	assert.Equal(t, 5, *info.Episode)
	assert.Equal(t, "720p", info.Quality)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	conn := &ConnectivityError{Indexer: "x", URL: "u", Err: errors.New("refused")}
	timeout := &TimeoutError{Indexer: "x", Op: "GET u", Err: errors.New("deadline")}
	remote := &RemoteError{Indexer: "x", URL: "u", StatusCode: 500}

	assert.ErrorIs(t, conn, &ConnectivityError{})
	assert.NotErrorIs(t, conn, &TimeoutError{})
	assert.ErrorIs(t, timeout, &TimeoutError{})
	assert.NotErrorIs(t, timeout, &ConnectivityError{})
	assert.ErrorIs(t, remote, &RemoteError{})
	assert.Equal(t, "HTTP 500", remote.Detail())
	assert.Contains(t, (&UnsupportedOperationError{Indexer: "x", Op: "authenticate"}).Error(), "authenticate")
}
