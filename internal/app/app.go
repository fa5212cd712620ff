package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"video-parser/internal/config"
	"video-parser/internal/credential"
	"video-parser/internal/monitor"
	"video-parser/internal/platform"
	"video-parser/internal/registry"
	"video-parser/internal/sign"
	"video-parser/internal/storage"
	"video-parser/pkg/models"
)

// App holds the wired components shared by the server, CLI and TUI
type App struct {
	Config      *models.Config
	ConfigFile  string
	Logger      zerolog.Logger
	Storage     *storage.SQLite
	Credentials models.CredentialProvider
	Signer      models.Signer
	Monitor     *monitor.Monitor
	Registry    *registry.Registry
}

// New loads configuration from configPath, applies overrides and builds the
// application
func New(configPath string, overrides ...func(cfg *models.Config)) (*App, error) {
	manager := config.NewManager()
	cfg, err := manager.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a, err := Build(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.ConfigFile = manager.ConfigFile()
	return a, nil
}

// Build wires the components for cfg
func Build(cfg *models.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Monitor: monitor.NewMonitor(),
	}
	a.Monitor.SetLogger(logger.With().Str("component", "monitor").Logger())

	initial := cfg.Platforms.Douyin.Cookie
	if initial != "" {
		if normalized, err := credential.Normalize(initial); err == nil {
			initial = normalized
		}
	}

	if cfg.Database.Enabled {
		store, err := storage.NewSQLite(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("error initializing storage: %w", err)
		}
		a.Storage = store

		persistent, err := credential.NewPersistent(store, models.SourceDouyin, initial,
			logger.With().Str("component", "credential").Logger())
		if err != nil {
			store.Close()
			return nil, err
		}
		a.Credentials = persistent
	} else {
		a.Credentials = credential.NewProvider(initial)
	}

	a.Signer = sign.Load(cfg.Signer.ScriptPath, cfg.Signer.Function,
		logger.With().Str("component", "signer").Logger())

	registryLogger := logger.With().Str("component", "registry").Logger()
	a.Registry = registry.NewRegistry(&registryLogger)
	if err := a.Registry.RegisterDefaultPlatforms(cfg, platform.Options{
		Credentials: a.Credentials,
		Signer:      a.Signer,
		Observer:    a.Monitor,
	}); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// SignerReady reports whether the signed API can be used
func (a *App) SignerReady() bool {
	_, disabled := a.Signer.(sign.Disabled)
	return !disabled
}

// Close releases parsers and storage
func (a *App) Close() error {
	var errs []error
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close())
	}
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	return errors.Join(errs...)
}
