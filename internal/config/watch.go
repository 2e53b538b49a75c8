package config

import (
	"context"
	"os"
	"time"

	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
)

// CatalogWatcher polls a catalog file's modification time and hands every
// valid new version to onReload. Invalid versions are logged and skipped.
type CatalogWatcher struct {
	path     string
	interval time.Duration
	onReload func(*enchant.Catalog)

	seen      bool
	lastMTime time.Time
}

func NewCatalogWatcher(path string, interval time.Duration, onReload func(*enchant.Catalog)) *CatalogWatcher {
	return &CatalogWatcher{path: path, interval: interval, onReload: onReload}
}

// Load reads the catalog at path and records its mtime as the baseline for
// later polls, so a change landing before Run starts is still picked up.
// An empty path yields the built-in table.
func (w *CatalogWatcher) Load() (*enchant.Catalog, error) {
	fi, statErr := os.Stat(w.path)
	cat, err := LoadCatalog(w.path)
	if err != nil {
		return nil, err
	}
	if statErr == nil {
		w.seen = true
		w.lastMTime = fi.ModTime()
	}
	return cat, nil
}

// Run polls until ctx is done. Without a prior Load the first poll only
// records the current mtime.
func (w *CatalogWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.poll()
	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-ctx.Done():
			return
		}
	}
}

// poll reports whether a new catalog was applied.
func (w *CatalogWatcher) poll() bool {
	fi, err := os.Stat(w.path)
	if err != nil {
		// missing for now; keep serving the current table
		logger.Debug("Catalog file not readable", "path", w.path, "error", err)
		return false
	}
	mt := fi.ModTime()
	if !w.seen {
		w.seen = true
		w.lastMTime = mt
		return false
	}
	if !mt.After(w.lastMTime) {
		return false
	}
	w.lastMTime = mt

	cat, err := LoadCatalog(w.path)
	if err != nil {
		logger.Warning("Catalog reload rejected", "path", w.path, "error", err)
		return false
	}
	logger.Info("Catalog reloaded", "path", w.path, "options", cat.Len())
	if w.onReload != nil {
		w.onReload(cat)
	}
	return true
}
