// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentcompanion/companion/internal/domain"
)

func TestDatabasePathResolution(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, tmpDir string) (configPath string, envDataDir string, expectedDBPath string)
	}{
		{
			name: "default_next_to_config",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				configPath := filepath.Join(tmpDir, "config.toml")
				content := "host = \"localhost\"\nport = 8080\n"
				require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
				return configPath, "", filepath.Join(tmpDir, "companion.db")
			},
		},
		{
			name: "explicit_data_dir_in_config",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				configPath := filepath.Join(tmpDir, "config.toml")
				dataDir := filepath.Join(tmpDir, "data")
				require.NoError(t, os.MkdirAll(dataDir, 0o755))
				content := fmt.Sprintf("host = \"localhost\"\nport = 8080\ndataDir = %q\n", dataDir)
				require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
				return configPath, "", filepath.Join(dataDir, "companion.db")
			},
		},
		{
			name: "env_var_override",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				configPath := filepath.Join(tmpDir, "config.toml")
				configDataDir := filepath.Join(tmpDir, "config-data")
				envDataDir := filepath.Join(tmpDir, "env-data")
				require.NoError(t, os.MkdirAll(configDataDir, 0o755))
				require.NoError(t, os.MkdirAll(envDataDir, 0o755))
				content := fmt.Sprintf("host = \"localhost\"\nport = 8080\ndataDir = %q\n", configDataDir)
				require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
				return configPath, envDataDir, filepath.Join(envDataDir, "companion.db")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath, envValue, expectedDBPath := tt.prepare(t, tmpDir)
			if envValue != "" {
				t.Setenv(envPrefix+"DATA_DIR", envValue)
			}

			cfg, err := New(configPath)
			require.NoError(t, err)

			assert.Equal(t, filepath.Clean(expectedDBPath), filepath.Clean(cfg.GetDatabasePath()))
		})
	}
}

func TestConfigDirResolution(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		setupFile      bool
		fileIsDir      bool
		expectedSuffix string
	}{
		{name: "toml_file_extension", input: "/path/to/custom.toml", expectedSuffix: "custom.toml"},
		{name: "TOML_file_extension_uppercase", input: "/path/to/CONFIG.TOML", expectedSuffix: "CONFIG.TOML"},
		{name: "directory_path", input: "/path/to/config", expectedSuffix: "config.toml"},
		{name: "existing_file_without_toml", input: "/path/to/configfile", setupFile: true, expectedSuffix: "configfile"},
		{name: "existing_directory", input: "/path/to/configdir", setupFile: true, fileIsDir: true, expectedSuffix: "config.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputPath := filepath.Join(tmpDir, filepath.Base(tt.input))

			if tt.setupFile {
				if tt.fileIsDir {
					require.NoError(t, os.MkdirAll(inputPath, 0o755))
				} else {
					require.NoError(t, os.WriteFile(inputPath, []byte("test"), 0o644))
				}
			}

			c := &AppConfig{}
			result := c.resolveConfigPath(inputPath)
			assert.True(t, strings.HasSuffix(result, tt.expectedSuffix),
				"Expected result %s to end with %s", result, tt.expectedSuffix)
		})
	}
}

func TestNewLoadsIndexerSettings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	content := `
requestTimeout = 5
requestRetries = 1
healthCheckInterval = 2
uploaderPageLimit = 3

[[indexers]]
name = "TPB"
kind = "PirateBay"
baseUrl = "https://tpb.example"
enabled = true
healthCheckInterval = 1

[[indexers]]
name = "Disabled"
kind = "piratebay"
enabled = false
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := New(configPath, "1.2.3")
	require.NoError(t, err)

	c := cfg.Config
	assert.Equal(t, "1.2.3", c.Version)
	assert.Equal(t, 5*time.Second, c.RequestTimeoutDuration())
	assert.Equal(t, 1, c.RequestRetries)
	assert.Equal(t, 2*time.Minute, c.HealthCheckDuration())
	assert.Equal(t, 3, c.UploaderPageLimit)
	assert.Equal(t, 15*time.Minute, c.SearchCacheDuration())

	enabled := c.EnabledIndexers()
	require.Len(t, enabled, 1)
	assert.Equal(t, "TPB", enabled[0].Name)
	assert.Equal(t, "piratebay", enabled[0].Kind)
	assert.Equal(t, "https://tpb.example", enabled[0].BaseURL)
	assert.Equal(t, time.Minute, enabled[0].HealthCheckDuration(c.HealthCheckDuration()))
}

func TestNewDefaultsToPirateBay(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("port = 9999\n"), 0o644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Config.Port)
	assert.Equal(t, 30*time.Second, cfg.Config.RequestTimeoutDuration())
	assert.Equal(t, 10*time.Minute, cfg.Config.HealthCheckDuration())

	enabled := cfg.Config.EnabledIndexers()
	require.Len(t, enabled, 1)
	assert.Equal(t, "piratebay", enabled[0].Kind)
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("port = 8080\nlogLevel = \"INFO\"\n"), 0o644))

	t.Setenv(envPrefix+"PORT", "7000")
	t.Setenv(envPrefix+"LOG_LEVEL", "DEBUG")
	t.Setenv(envPrefix+"UPLOADER_PAGE_LIMIT", "9")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Config.Port)
	assert.Equal(t, "DEBUG", cfg.Config.LogLevel)
	assert.Equal(t, 9, cfg.Config.UploaderPageLimit)
}

func TestNewCreatesMissingConfig(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "fresh")

	cfg, err := New(configDir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(configDir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configDir, "companion.db"), cfg.GetDatabasePath())
	assert.Len(t, cfg.Config.EnabledIndexers(), 1)
}

func TestWriteDefaultConfigKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 1\n"), 0o644))

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "port = 1\n", string(data))
}

func TestWriteDefaultConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[[indexers]]")
	assert.Contains(t, string(data), `kind = "piratebay"`)
	assert.NotContains(t, string(data), "{{")
}

func TestReloadListenerReceivesCopy(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("port = 8080\n"), 0o644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	var got int
	cfg.RegisterReloadListener(func(c *domain.Config) {
		got = c.Port
		c.Port = 1
	})
	cfg.notifyListeners()

	assert.Equal(t, 8080, got)
	assert.Equal(t, 8080, cfg.Config.Port)
}
