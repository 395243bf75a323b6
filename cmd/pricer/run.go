package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nexusx/pricer/internal/auction"
	"github.com/nexusx/pricer/internal/config"
	"github.com/nexusx/pricer/internal/demand"
	"github.com/nexusx/pricer/internal/history"
	"github.com/nexusx/pricer/internal/infrastructure/db"
	httpapi "github.com/nexusx/pricer/internal/interfaces/http"
	"github.com/nexusx/pricer/internal/metrics"
	"github.com/nexusx/pricer/internal/stream"
	"github.com/nexusx/pricer/internal/updater"
)

const shutdownGrace = 15 * time.Second

func loadConfig(configPath, phase string) (config.Config, error) {
	// The phase flag wins over the environment; config.Load reads the
	// preset from PRICING_PHASE.
	if phase != "" {
		os.Setenv("PRICING_PHASE", phase)
	}
	return config.Load(configPath)
}

func runWorker(configPath, phase string, once bool) error {
	cfg, err := loadConfig(configPath, phase)
	if err != nil {
		return fmt.Errorf("configuration rejected: %w", err)
	}
	log.Info().Str("phase", cfg.Phase).Str("version", version).Msg("Pricer starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := db.NewManager(cfg.DB)
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	defer manager.Close()

	bus, err := stream.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("tick broker unavailable: %w", err)
	}
	defer bus.Close()

	histClient := redisv8.NewClient(&redisv8.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	histStore := history.NewStore(histClient)
	defer histStore.Close()

	reg := metrics.NewRegistry()
	tracker := demand.NewTracker(demand.Config{WindowLen: cfg.DemandWindow()})
	engine := auction.NewEngine(cfg.Engine, nil)

	upd := updater.New(updater.Config{
		UpdateInterval:           cfg.UpdateInterval(),
		DemandWindow:             cfg.DemandWindow(),
		MaxConcurrentFetch:       cfg.Worker.MaxConcurrentFetch,
		MaxConsecutiveDBFailures: cfg.Worker.MaxConsecutiveDBFailures,
	}, engine, tracker, manager.Repos(), bus, histStore, reg, nil)

	if once {
		return upd.RunCycle(ctx)
	}

	server := httpapi.NewServer(httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		SimulateRPS:  10,
	}, engine, tracker, upd, bus, reg, manager)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return upd.Run(gctx) })
	g.Go(func() error { return server.Start() })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info().Msg("Pricer stopped")
	return nil
}

// runSimulate prices a hypothetical listing across the demand range and
// prints one line per step. No store access, engine only.
func runSimulate(configPath, phase string, floor float64, competitors int, qualityScore float64) error {
	cfg, err := loadConfig(configPath, phase)
	if err != nil {
		return fmt.Errorf("configuration rejected: %w", err)
	}
	engine := auction.NewEngine(cfg.Engine, nil)

	fmt.Printf("phase=%s floor=%.6f competitors=%d quality=%.0f\n\n", cfg.Phase, floor, competitors, qualityScore)
	fmt.Printf("%8s %12s %8s %8s %8s %8s\n", "demand", "price", "dem.x", "scar.x", "qual.x", "comb.x")
	for score := 0.0; score <= 100; score += 10 {
		price, m := engine.SimulatePrice(floor, score, competitors, qualityScore)
		fmt.Printf("%8.0f %12.6f %8.4f %8.4f %8.4f %8.4f\n",
			score, price, m.Demand, m.Scarcity, m.Quality, m.Combined)
	}
	return nil
}
