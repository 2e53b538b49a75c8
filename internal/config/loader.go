package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/session"
)

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:           ":8080",
			GRPCAddr:           ":9090",
			ShutdownTimeoutSec: 10,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "data/holywater.db",
		},
		Simulation: SimulationConfig{
			HistoryLimit:      session.DefaultHistoryLimit,
			StepDelayMS:       100,
			Skew:              enchant.DefaultSkew,
			MaxEstimateTrials: 10000,
			MaxSessions:       10000,
		},
		Logging: logger.DefaultConfig(),
	}
}

// Load applies defaults <- YAML file <- environment, then validates.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads overrides from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadCatalog reads an option table from YAML. An empty path yields the built-in table.
func LoadCatalog(path string) (*enchant.Catalog, error) {
	if path == "" {
		return enchant.DefaultCatalog(), nil
	}
	var file CatalogFile
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	templates := make([]enchant.OptionTemplate, 0, len(file.Options))
	for _, o := range file.Options {
		templates = append(templates, enchant.OptionTemplate{
			Name:        o.Name,
			Kind:        enchant.Kind(o.Kind),
			Min:         o.Range[0],
			Max:         o.Range[1],
			Unit:        o.Unit,
			Tier:        enchant.Tier(o.Tier),
			Probability: o.Probability,
		})
	}
	return enchant.NewCatalog(templates)
}

// readYAML decodes path over cfg. Missing files leave cfg untouched.
func readYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
