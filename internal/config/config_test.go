package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtding233/holywater-sim/internal/enchant"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.Server.HTTPAddr != def.Server.HTTPAddr || cfg.Simulation.HistoryLimit != 100 || cfg.Simulation.StepDelayMS != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Simulation.Skew != enchant.DefaultSkew {
		t.Fatalf("skew=%v", cfg.Simulation.Skew)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "holywater.yaml", `
server:
  http_addr: ":9000"
store:
  driver: memory
simulation:
  history_limit: 20
  seed: 42
logging:
  level: DEBUG
`)
	t.Setenv("HOLYWATER_HISTORY_LIMIT", "30")
	t.Setenv("LOG_CONSOLE_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("http_addr=%q", cfg.Server.HTTPAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver=%q", cfg.Store.Driver)
	}
	if cfg.Simulation.HistoryLimit != 30 {
		t.Errorf("env should override yaml; history_limit=%d", cfg.Simulation.HistoryLimit)
	}
	if cfg.Simulation.Seed != 42 {
		t.Errorf("seed=%d", cfg.Simulation.Seed)
	}
	if cfg.Simulation.StepDelayMS != 100 {
		t.Errorf("untouched keys keep defaults; step_delay_ms=%d", cfg.Simulation.StepDelayMS)
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.ConsoleFormat != "json" || !cfg.Logging.ConsoleEnabled {
		t.Errorf("logging=%+v", cfg.Logging)
	}
}

func TestLoadEnvParseError(t *testing.T) {
	t.Setenv("HOLYWATER_HISTORY_LIMIT", "lots")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidateAggregates(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	cfg.Simulation.HistoryLimit = 0
	cfg.Simulation.Skew = -1
	cfg.Catalog.ReloadIntervalSec = -5
	cfg.Simulation.MaxSessions = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"store.driver", "simulation.history_limit", "simulation.skew", "catalog.reload_interval_sec", "simulation.max_sessions"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil || cat.Len() != enchant.DefaultCatalog().Len() {
		t.Fatalf("empty path should give built-in table: %v", err)
	}

	path := writeFile(t, "catalog.yaml", `
version: "1"
options:
  - name: 크리티컬
    kind: stat
    range: [4, 5]
    unit: "% 증가"
    tier: rare
    probability: 0.2
  - name: 생명력
    kind: stat
    range: [1, 100]
    unit: 증가
    tier: common
    probability: 0.8
`)
	cat, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if cat.Len() != 2 || cat.Template(0).Max != 5 || cat.Template(0).Unit != "% 증가" {
		t.Fatalf("unexpected catalog %+v", cat.Templates())
	}

	bad := writeFile(t, "bad.yaml", `
options:
  - name: x
    kind: stat
    range: [5, 1]
    unit: 증가
    tier: common
    probability: 0.5
`)
	if _, err := LoadCatalog(bad); !errors.Is(err, enchant.ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}
