// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"time"
)

type Config struct {
	Version             string
	Host                string          `toml:"host" mapstructure:"host"`
	Port                int             `toml:"port" mapstructure:"port"`
	BaseURL             string          `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel            string          `toml:"logLevel" mapstructure:"logLevel"`
	LogPath             string          `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize          int             `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups       int             `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir             string          `toml:"dataDir" mapstructure:"dataDir"`
	RequestTimeout      int             `toml:"requestTimeout" mapstructure:"requestTimeout"`
	RequestRetries      int             `toml:"requestRetries" mapstructure:"requestRetries"`
	HealthCheckInterval int             `toml:"healthCheckInterval" mapstructure:"healthCheckInterval"`
	UploaderPageLimit   int             `toml:"uploaderPageLimit" mapstructure:"uploaderPageLimit"`
	SearchCacheTTL      int             `toml:"searchCacheTTL" mapstructure:"searchCacheTTL"`
	MetricsEnabled      bool            `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost         string          `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort         int             `toml:"metricsPort" mapstructure:"metricsPort"`
	Indexers            []IndexerConfig `toml:"indexers" mapstructure:"indexers"`
}

// IndexerConfig is one [[indexers]] table.
type IndexerConfig struct {
	Name         string `toml:"name" mapstructure:"name"`
	Kind         string `toml:"kind" mapstructure:"kind"`
	BaseURL      string `toml:"baseUrl" mapstructure:"baseUrl"`
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	RequiresAuth bool   `toml:"requiresAuth" mapstructure:"requiresAuth"`
	// HealthCheckInterval in minutes, 0 falls back to the global interval
	HealthCheckInterval int `toml:"healthCheckInterval" mapstructure:"healthCheckInterval"`
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	if c.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) HealthCheckDuration() time.Duration {
	if c.HealthCheckInterval <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.HealthCheckInterval) * time.Minute
}

func (c *Config) SearchCacheDuration() time.Duration {
	if c.SearchCacheTTL <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SearchCacheTTL) * time.Minute
}

// EnabledIndexers returns the enabled indexer tables with blank names and
// kinds filled in. Duplicate names keep the last table.
func (c *Config) EnabledIndexers() []IndexerConfig {
	out := make([]IndexerConfig, 0, len(c.Indexers))
	seen := make(map[string]int, len(c.Indexers))
	for _, ix := range c.Indexers {
		if !ix.Enabled {
			continue
		}
		ix.Kind = strings.ToLower(strings.TrimSpace(ix.Kind))
		ix.Name = strings.TrimSpace(ix.Name)
		if ix.Name == "" {
			ix.Name = ix.Kind
		}
		key := strings.ToLower(ix.Name)
		if i, ok := seen[key]; ok {
			out[i] = ix
			continue
		}
		seen[key] = len(out)
		out = append(out, ix)
	}
	return out
}

func (ix IndexerConfig) HealthCheckDuration(fallback time.Duration) time.Duration {
	if ix.HealthCheckInterval <= 0 {
		return fallback
	}
	return time.Duration(ix.HealthCheckInterval) * time.Minute
}
