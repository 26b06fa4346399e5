package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/cache"
	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/predictor"
	"github.com/paintlab/paintopt/internal/projectconfig"
	"github.com/paintlab/paintopt/internal/service"
)

const configFileHint = projectconfig.FileName

// apiKeyEnv overrides predictor.api_key so keys can stay out of the
// config file.
const apiKeyEnv = "PAINTOPT_PREDICTOR_API_KEY"

// loadProjectConfig loads and validates the project configuration found
// from the --dir flag, or the working directory.
func loadProjectConfig(cmd *cobra.Command) (*projectconfig.ProjectConfig, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := projectconfig.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", projectconfig.FileName, err)
	}
	if cfg.Path != "" {
		slog.Debug("loaded project config", "path", cfg.Path)
	}
	return cfg, nil
}

// newPredictor builds the configured predictor, wrapped in the prediction
// cache when it is enabled.
func newPredictor(cfg *projectconfig.ProjectConfig, logger *slog.Logger) predictor.Predictor {
	var p predictor.Predictor
	switch cfg.Predictor.Kind {
	case projectconfig.PredictorHTTP:
		apiKey := cfg.Predictor.APIKey
		if env := os.Getenv(apiKeyEnv); env != "" {
			apiKey = env
		}
		opts := []predictor.HTTPOption{
			predictor.WithModelID(cfg.Predictor.ModelID),
			predictor.WithTimeout(cfg.Predictor.TimeoutDuration()),
		}
		if apiKey != "" {
			opts = append(opts, predictor.WithAPIKey(apiKey))
		}
		if cfg.Predictor.RateLimit > 0 {
			opts = append(opts, predictor.WithRateLimit(cfg.Predictor.RateLimit))
		}
		p = predictor.NewHTTPPredictor(cfg.Predictor.Endpoint, opts...)
	default:
		coeffs := cfg.Predictor.Coefficients
		if len(coeffs) == 0 {
			coeffs = predictor.DefaultLinearModels()
		}
		p = predictor.NewLinearPredictor(coeffs)
	}

	if cfg.CacheEnabled() {
		logger.Debug("prediction cache enabled", "dir", cfg.Cache.Dir)
		p = predictor.NewCachingPredictor(p, cache.New(cfg.Cache.Dir), cfg.Predictor.ModelID, logger)
	}
	return p
}

// loadCatalog reads the configured catalogue. Relative paths are resolved
// against the directory holding the config file.
func loadCatalog(cfg *projectconfig.ProjectConfig) (*catalog.Catalog, error) {
	path := cfg.Catalog.Path
	if path == "" {
		return catalog.Default(), nil
	}
	if !filepath.IsAbs(path) && cfg.Path != "" {
		path = filepath.Join(filepath.Dir(cfg.Path), path)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalogue: %w", err)
	}
	return cat, nil
}

// newBackend assembles everything the commands need from the project config.
func newBackend(cfg *projectconfig.ProjectConfig, logger *slog.Logger) (service.Backend, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return service.Backend{}, err
	}
	return service.Backend{
		Predictor: newPredictor(cfg, logger),
		Catalog:   cat,
		Validator: chemistry.NewValidator(cfg.Chemistry),
		Optimizer: cfg.Optimizer,
		Logger:    logger,
	}, nil
}
