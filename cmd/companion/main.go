// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/torrentcompanion/companion/internal/api"
	"github.com/torrentcompanion/companion/internal/buildinfo"
	"github.com/torrentcompanion/companion/internal/config"
	"github.com/torrentcompanion/companion/internal/database"
	"github.com/torrentcompanion/companion/internal/domain"
	"github.com/torrentcompanion/companion/internal/indexer"
	"github.com/torrentcompanion/companion/internal/indexer/piratebay"
	"github.com/torrentcompanion/companion/internal/metrics"
	"github.com/torrentcompanion/companion/internal/models"
	"github.com/torrentcompanion/companion/internal/services/catalog"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "companion",
		Short: "Torrent indexer aggregator",
		Long: `companion - searches torrent indexers through one API, keeps track of
their health and builds uploader profiles from their listings.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/companion/ or %APPDATA%\\companion\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the database (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of companion",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/companion/config.toml
- Windows: %APPDATA%\companion\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := resolveConfigFile(configDir)

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func resolveConfigFile(configDir string) string {
	switch {
	case configDir == "":
		return filepath.Join(config.GetDefaultConfigDir(), "config.toml")
	case strings.HasSuffix(strings.ToLower(configDir), ".toml"):
		return configDir
	}
	if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
		return configDir
	}
	return filepath.Join(configDir, "config.toml")
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(configDir, dataDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

// backendConfigs turns the enabled [[indexers]] tables into backend configs.
func backendConfigs(conf *domain.Config) []indexer.BackendConfig {
	interval := conf.HealthCheckDuration()
	retries := uint(max(conf.RequestRetries, 0))

	enabled := conf.EnabledIndexers()
	out := make([]indexer.BackendConfig, 0, len(enabled))
	for _, ix := range enabled {
		out = append(out, indexer.BackendConfig{
			Name:                ix.Name,
			Kind:                ix.Kind,
			BaseURL:             ix.BaseURL,
			RequiresAuth:        ix.RequiresAuth,
			HealthCheckInterval: ix.HealthCheckDuration(interval),
			Timeout:             conf.RequestTimeoutDuration(),
			Retries:             retries,
		})
	}
	return out
}

// syncIndexers adds configured indexers that are missing, rebuilds the ones
// whose settings changed and removes the ones no longer configured.
// Construction failures are logged and leave the running indexer in place.
func syncIndexers(ctx context.Context, manager *indexer.Manager, configs []indexer.BackendConfig) {
	wanted := make(map[string]struct{}, len(configs))
	for _, bc := range configs {
		wanted[strings.ToLower(bc.Name)] = struct{}{}
	}

	for _, ix := range manager.List() {
		if _, ok := wanted[strings.ToLower(ix.Name())]; !ok {
			manager.Remove(ix.Name())
			log.Info().Str("indexer", ix.Name()).Msg("Indexer removed")
		}
	}

	for _, bc := range configs {
		_, exists := manager.Get(bc.Name)
		if current, ok := manager.Config(bc.Name); exists && ok && current == bc {
			continue
		}
		if _, err := manager.Add(ctx, bc); err != nil {
			log.Error().Err(err).Str("indexer", bc.Name).Str("kind", bc.Kind).Msg("Failed to initialize indexer")
			continue
		}
		msg := "Indexer registered"
		if exists {
			msg = "Indexer reconfigured"
		}
		log.Info().Str("indexer", bc.Name).Str("kind", bc.Kind).Str("baseUrl", bc.BaseURL).Msg(msg)
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	if app.dataDir != "" {
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting companion")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	torrentStore := models.NewTorrentStore(db)
	uploaderStore := models.NewUploaderStore(db)

	registry := metrics.NewRegistry()
	indexerMetrics := indexer.NewMetrics(registry)

	supervisor := indexer.NewSupervisor(indexer.DefaultSupervisorConfig(), indexerMetrics)
	defer supervisor.Stop()

	manager := indexer.NewManager(supervisor, indexerMetrics)
	defer manager.Close()
	manager.RegisterKind(piratebay.Kind, piratebay.Factory(cfg.Config.UploaderPageLimit))

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*cfg.Config.RequestTimeoutDuration())
	syncIndexers(startupCtx, manager, backendConfigs(cfg.Config))
	cancelStartup()

	cfg.RegisterReloadListener(func(conf *domain.Config) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*conf.RequestTimeoutDuration())
		defer cancel()
		syncIndexers(ctx, manager, backendConfigs(conf))
	})

	catalogService := catalog.NewService(catalog.Config{
		CacheTTL:          cfg.Config.SearchCacheDuration(),
		UploaderPageLimit: cfg.Config.UploaderPageLimit,
	}, manager, torrentStore, uploaderStore)
	defer catalogService.Close()

	httpServer := api.NewServer(&api.Dependencies{
		Config:   cfg,
		Version:  buildinfo.Version,
		Registry: manager,
		Prober:   supervisor,
		Catalog:  catalogService,
		Gatherer: registry,
	})

	errorChannel := make(chan error, 2)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	var metricsServer *metrics.Server
	if cfg.Config.MetricsEnabled {
		metricsServer = metrics.NewMetricsServer(registry, cfg.Config.MetricsHost, cfg.Config.MetricsPort)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errorChannel <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("got error during metrics server shutdown")
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
	}

	log.Info().Msg("Server stopped")
}
