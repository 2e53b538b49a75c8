package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks semantic constraints of a Config.
func Validate(cfg Config) error {
	var errs []string

	if cfg.Server.HTTPAddr == "" {
		errs = append(errs, "server.http_addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec < 0 {
		errs = append(errs, "server.shutdown_timeout_sec must be >= 0")
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			errs = append(errs, "store.path is required for driver=sqlite")
		}
	case "memory":
	default:
		errs = append(errs, "store.driver must be one of: sqlite, memory")
	}

	sim := cfg.Simulation
	if sim.HistoryLimit <= 0 {
		errs = append(errs, "simulation.history_limit must be >= 1")
	}
	if sim.StepDelayMS < 0 {
		errs = append(errs, "simulation.step_delay_ms must be >= 0")
	}
	if !(sim.Skew > 0) || math.IsInf(sim.Skew, 0) {
		errs = append(errs, "simulation.skew must be a positive number")
	}
	if sim.MaxEstimateTrials <= 0 {
		errs = append(errs, "simulation.max_estimate_trials must be >= 1")
	}
	if sim.MaxSessions < 0 {
		errs = append(errs, "simulation.max_sessions must be >= 0")
	}

	if cfg.Catalog.ReloadIntervalSec < 0 {
		errs = append(errs, "catalog.reload_interval_sec must be >= 0")
	}

	switch cfg.Logging.ConsoleFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "logging.console_format must be one of: text, json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
