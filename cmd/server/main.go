package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xtding233/holywater-sim/internal/config"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/httpapi"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/registry"
	"github.com/xtding233/holywater-sim/internal/rpc"
	"github.com/xtding233/holywater-sim/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath)
	stop()
	if err != nil {
		config.Exitf("holywater: %v", err)
	}
}

// run serves until ctx is done.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logCloser := logger.Initialize(cfg.Logging)
	defer logCloser.Close()

	kv, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	var reg *registry.Registry
	interval := time.Duration(cfg.Catalog.ReloadIntervalSec) * time.Second
	watcher := config.NewCatalogWatcher(cfg.Catalog.Path, interval, func(c *enchant.Catalog) {
		reg.SetCatalog(c)
	})
	cat, err := watcher.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("Catalog loaded", "options", cat.Len(), "total_weight", cat.TotalWeight())

	reg = registry.New(cat, kv, registry.Settings{
		HistoryLimit: cfg.Simulation.HistoryLimit,
		StepDelay:    time.Duration(cfg.Simulation.StepDelayMS) * time.Millisecond,
		Skew:         cfg.Simulation.Skew,
		MaxSessions:  cfg.Simulation.MaxSessions,
		NewRNG:       rngFactory(cfg.Simulation.Seed),
	})

	if cfg.Catalog.Path != "" && interval > 0 {
		go watcher.Run(ctx)
	}

	if err := serve(ctx, cfg, reg); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// serve runs HTTP and gRPC until ctx is done or one of them fails.
func serve(ctx context.Context, cfg config.Config, reg *registry.Registry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grace := time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second

	var grpcServer *rpc.Server
	if cfg.Server.GRPCAddr != "" {
		var err error
		grpcServer, err = rpc.NewServer(cfg.Server.GRPCAddr, rpc.NewService(reg))
		if err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: httpapi.New(ctx, reg, httpapi.Options{
			MaxEstimateTrials: cfg.Simulation.MaxEstimateTrials,
			AllowedOrigins:    cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	if grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := grpcServer.Serve(ctx, grace); err != nil {
				errc <- err
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down", "grace", grace)
	// stop auto-searches first so streaming calls can finish
	reg.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), grace)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warning("HTTP shutdown incomplete", "error", err)
	}
	wg.Wait()

	close(errc)
	return <-errc
}

func openStore(cfg config.StoreConfig) (store.KV, error) {
	if cfg.Driver == "memory" {
		return store.NewMemory(), nil
	}
	db, err := store.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("Store opened", "driver", cfg.Driver, "path", cfg.Path)
	return db, nil
}

// rngFactory gives each session its own source. With a non-zero seed, sessions
// get consecutive seeds starting at seed.
func rngFactory(seed uint64) func() enchant.RandomSource {
	if seed == 0 {
		return nil
	}
	var mu sync.Mutex
	next := seed
	return func() enchant.RandomSource {
		mu.Lock()
		defer mu.Unlock()
		src := enchant.NewSeededRNG(next)
		next++
		return src
	}
}
