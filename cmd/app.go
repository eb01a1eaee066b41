package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/coordinator"
	"github.com/ursnani/Voice-Cloning/internal/voice"
	"github.com/ursnani/Voice-Cloning/internal/voice/provider"
	"github.com/ursnani/Voice-Cloning/internal/voice/store"
)

// env is everything a command needs, built from config, flags and environment
type env struct {
	cfg       *voice.ConfigFile
	workDir   string
	samples   store.Store
	providers *provider.Registry
	coord     *coordinator.Coordinator
	creds     map[string]voice.Credential
}

// loadConfig returns nil when no config file exists
func loadConfig(c *cli.Command) (*voice.ConfigFile, error) {
	loader := voice.NewConfigLoader()

	if path := c.String("config"); path != "" {
		cfg, err := loader.LoadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return cfg, nil
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := loader.LoadConfig(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, c *cli.Command, cfg *voice.ConfigFile) (store.Store, error) {
	storage := cfg.EffectiveStorage()
	if dir := c.String("samples-dir"); dir != "" {
		storage.Backend = "file"
		storage.Dir = dir
	}

	st, err := store.New(ctx, storage, store.WithMinDuration(cfg.EffectiveMinSample()))
	if err != nil {
		return nil, fmt.Errorf("failed to open sample storage: %w", err)
	}
	log.Debug().Str("backend", storage.Backend).Str("dir", storage.Dir).Msg("Sample storage ready")
	return st, nil
}

// Close releases provider connections
func (e *env) Close() {
	if err := e.providers.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close providers")
	}
}

func newEnv(ctx context.Context, c *cli.Command) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	for _, problem := range cfg.Validate() {
		log.Warn().Str("problem", problem).Msg("Config problem")
	}

	samples, err := openStore(ctx, c, cfg)
	if err != nil {
		return nil, err
	}

	workDir, _ := os.Getwd()
	providers := provider.FromConfig(ctx, cfg)
	coordCfg := coordinator.ConfigFrom(cfg)

	return &env{
		cfg:       cfg,
		workDir:   workDir,
		samples:   samples,
		providers: providers,
		coord:     coordinator.New(samples, providers, coordCfg),
		creds:     coordCfg.Credentials,
	}, nil
}
