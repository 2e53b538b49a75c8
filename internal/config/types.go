// types.go
package config

import "github.com/xtding233/holywater-sim/internal/logger"

// Config is the service configuration; YAML first, then environment overrides.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Simulation SimulationConfig `yaml:"simulation"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Logging    logger.Config    `yaml:"logging"`
}

type ServerConfig struct {
	HTTPAddr           string `yaml:"http_addr" env:"HOLYWATER_HTTP_ADDR"`
	GRPCAddr           string `yaml:"grpc_addr" env:"HOLYWATER_GRPC_ADDR"` // empty disables gRPC
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" env:"HOLYWATER_SHUTDOWN_TIMEOUT_SEC"`

	// AllowedOrigins for the auto-search WebSocket. Empty means same-origin only; "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins" env:"HOLYWATER_ALLOWED_ORIGINS" envSeparator:","`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"HOLYWATER_STORE_DRIVER"` // "sqlite" | "memory"
	Path   string `yaml:"path" env:"HOLYWATER_STORE_PATH"`
}

type SimulationConfig struct {
	HistoryLimit      int     `yaml:"history_limit" env:"HOLYWATER_HISTORY_LIMIT"`
	StepDelayMS       int     `yaml:"step_delay_ms" env:"HOLYWATER_STEP_DELAY_MS"` // pause before a manual draw lands
	Skew              float64 `yaml:"skew" env:"HOLYWATER_SKEW"`
	Seed              uint64  `yaml:"seed" env:"HOLYWATER_SEED"` // 0 means crypto randomness
	MaxEstimateTrials int     `yaml:"max_estimate_trials" env:"HOLYWATER_MAX_ESTIMATE_TRIALS"`

	// MaxSessions caps live sessions; 0 means unlimited.
	MaxSessions int `yaml:"max_sessions" env:"HOLYWATER_MAX_SESSIONS"`
}

type CatalogConfig struct {
	Path string `yaml:"path" env:"HOLYWATER_CATALOG_PATH"` // empty uses the built-in table

	// ReloadIntervalSec > 0 polls Path and applies changes to new sessions.
	ReloadIntervalSec int `yaml:"reload_interval_sec" env:"HOLYWATER_CATALOG_RELOAD_SEC"`
}

// CatalogFile mirrors the YAML option table schema.
type CatalogFile struct {
	Version string       `yaml:"version"`
	Options []OptionSpec `yaml:"options"`
	Notes   string       `yaml:"notes,omitempty"`
}

type OptionSpec struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"` // "stat" | "set"
	Range       [2]int  `yaml:"range"`
	Unit        string  `yaml:"unit"`
	Tier        string  `yaml:"tier"`
	Probability float64 `yaml:"probability"`
}
