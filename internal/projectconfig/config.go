// Package projectconfig provides the ProjectConfig struct and loader for
// .paintopt.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/predictor"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".paintopt.yaml"

// Default values for project configuration. These are the single source of
// truth; New() references them and no other code should duplicate them.
const (
	DefaultPredictorKind    = PredictorLinear
	DefaultPredictorTimeout = 30
	DefaultModelID          = "paint-properties"

	DefaultCacheDir = ".paintopt-cache"

	DefaultServerPort = 3000
)

// Predictor kinds.
const (
	PredictorLinear = "linear"
	PredictorHTTP   = "http"
)

// maxWalkUp bounds how many parent directories Load searches.
const maxWalkUp = 10

// PredictorConfig selects and configures the property predictor.
type PredictorConfig struct {
	Kind     string `yaml:"kind,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	ModelID  string `yaml:"model_id,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// Timeout is in seconds.
	Timeout int `yaml:"timeout,omitempty"`
	// RateLimit is the maximum requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	// Coefficients replace the built-in linear models when kind is linear.
	Coefficients map[string]predictor.Linear `yaml:"coefficients,omitempty"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (p PredictorConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// CatalogConfig points at the material catalogue.
type CatalogConfig struct {
	// Path is a CSV or YAML file; empty uses the built-in catalogue.
	Path string `yaml:"path,omitempty"`
}

// CacheConfig holds prediction cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .paintopt.yaml.
type ProjectConfig struct {
	Optimizer optimizer.Config `yaml:"optimizer,omitempty"`
	Chemistry chemistry.Limits `yaml:"chemistry,omitempty"`
	Predictor PredictorConfig  `yaml:"predictor,omitempty"`
	Catalog   CatalogConfig    `yaml:"catalog,omitempty"`
	Cache     CacheConfig      `yaml:"cache,omitempty"`
	Server    ServerConfig     `yaml:"server,omitempty"`

	// Path is the file the values were read from, empty for defaults.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Optimizer: optimizer.DefaultConfig(),
		Chemistry: chemistry.DefaultLimits(),
		Predictor: PredictorConfig{
			Kind:    DefaultPredictorKind,
			ModelID: DefaultModelID,
			Timeout: DefaultPredictorTimeout,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
	}
}

// CacheEnabled reports whether the prediction cache is on.
func (c *ProjectConfig) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

// Validate checks values that cannot be fixed by falling back to defaults.
func (c *ProjectConfig) Validate() error {
	var errs []error
	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Predictor.Kind {
	case PredictorLinear:
	case PredictorHTTP:
		if c.Predictor.Endpoint == "" {
			errs = append(errs, errors.New("predictor.endpoint is required when predictor.kind is http"))
		}
	default:
		errs = append(errs, fmt.Errorf("predictor.kind must be %s or %s, got %q", PredictorLinear, PredictorHTTP, c.Predictor.Kind))
	}
	if c.Predictor.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("predictor.rate_limit must not be negative"))
	}
	if c.Chemistry.PHMin > c.Chemistry.PHMax {
		errs = append(errs, fmt.Errorf("chemistry.ph_min %g is above ph_max %g", c.Chemistry.PHMin, c.Chemistry.PHMax))
	}
	return errors.Join(errs...)
}

// Load finds .paintopt.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	return cfg, nil
}

// findConfigFile walks up from dir looking for .paintopt.yaml.
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors instead of silently swallowing them.
func findConfigFile(dir string) (string, []byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < maxWalkUp; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	mergeOptimizer(&dst.Optimizer, src.Optimizer)

	// Chemistry: file maps are merged key by key over the built-in tables.
	chem := src.Chemistry.WithDefaults()
	if src.Chemistry.PHMin == 0 {
		chem.PHMin = dst.Chemistry.PHMin
	}
	if src.Chemistry.PHMax == 0 {
		chem.PHMax = dst.Chemistry.PHMax
	}
	if src.Chemistry.MassTolerance == 0 {
		chem.MassTolerance = dst.Chemistry.MassTolerance
	}
	if src.Chemistry.DefaultInteractionRadius == 0 {
		chem.DefaultInteractionRadius = dst.Chemistry.DefaultInteractionRadius
	}
	dst.Chemistry = chem

	// Predictor
	if src.Predictor.Kind != "" {
		dst.Predictor.Kind = src.Predictor.Kind
	}
	if src.Predictor.Endpoint != "" {
		dst.Predictor.Endpoint = src.Predictor.Endpoint
	}
	if src.Predictor.ModelID != "" {
		dst.Predictor.ModelID = src.Predictor.ModelID
	}
	if src.Predictor.APIKey != "" {
		dst.Predictor.APIKey = src.Predictor.APIKey
	}
	if src.Predictor.Timeout != 0 {
		dst.Predictor.Timeout = src.Predictor.Timeout
	}
	if src.Predictor.RateLimit != 0 {
		dst.Predictor.RateLimit = src.Predictor.RateLimit
	}
	if len(src.Predictor.Coefficients) > 0 {
		dst.Predictor.Coefficients = src.Predictor.Coefficients
	}

	// Catalog
	if src.Catalog.Path != "" {
		dst.Catalog.Path = src.Catalog.Path
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
}

func mergeOptimizer(dst *optimizer.Config, src optimizer.Config) {
	if src.PopulationSize != 0 {
		dst.PopulationSize = src.PopulationSize
	}
	if src.Generations != 0 {
		dst.Generations = src.Generations
	}
	if src.EliteSize != 0 {
		dst.EliteSize = src.EliteSize
	}
	if src.TournamentSize != 0 {
		dst.TournamentSize = src.TournamentSize
	}
	if src.MutationRate != 0 {
		dst.MutationRate = src.MutationRate
	}
	if src.StructuralMutationRate != 0 {
		dst.StructuralMutationRate = src.StructuralMutationRate
	}
	if src.MinComponents != 0 {
		dst.MinComponents = src.MinComponents
	}
	if src.MaxComponents != 0 {
		dst.MaxComponents = src.MaxComponents
	}
	if src.TopK != 0 {
		dst.TopK = src.TopK
	}
	if src.Workers != 0 {
		dst.Workers = src.Workers
	}
	if src.Seed != 0 {
		dst.Seed = src.Seed
	}
}

func boolPtr(b bool) *bool {
	return &b
}
