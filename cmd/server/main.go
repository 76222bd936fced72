// Package main is the entry point for the Shorlab order-finding and
// factorization service. It wires the classical control plane (config,
// logging, run persistence, retention jobs) around the quantum-circuit
// engine (operator synthesis, circuit assembly, the exact simulator, phase
// decoding) and exposes the whole loop over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shorlab/shorlab/internal/config"
	"github.com/shorlab/shorlab/internal/database"
	"github.com/shorlab/shorlab/internal/modules/circuit"
	"github.com/shorlab/shorlab/internal/modules/cleanup"
	"github.com/shorlab/shorlab/internal/modules/factor"
	"github.com/shorlab/shorlab/internal/modules/operator"
	"github.com/shorlab/shorlab/internal/modules/runs"
	"github.com/shorlab/shorlab/internal/modules/sampler"
	"github.com/shorlab/shorlab/internal/scheduler"
	"github.com/shorlab/shorlab/internal/server"
	"github.com/shorlab/shorlab/pkg/logger"
)

// main orchestrates the startup sequence:
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize structured logging
//  3. Open and migrate the runs database
//  4. Build the engine: assembler, simulator, factorization service
//  5. Start the retention scheduler
//  6. Start the HTTP server and wait for a shutdown signal
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Shorlab")

	runsDB, err := database.New(database.Config{
		Path: cfg.RunsDBPath(),
		Name: "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer runsDB.Close()

	runsRepo := runs.NewRepository(runsDB, log)
	if err := runsRepo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate runs database")
	}

	asm := circuit.NewAssembler(operator.StrategyAuto)
	sim := sampler.NewSimulator(sampler.SimulatorConfig{
		Seed:      cfg.Engine.Seed,
		MaxQubits: cfg.Engine.MaxQubits,
		Workers:   cfg.Engine.Workers,
	}, log)
	factorSvc := factor.NewService(asm, sim, log)

	sched := scheduler.New(log)
	retention := cleanup.NewRetentionJob(runsRepo, runsDB, cfg.RunRetention, log)
	if err := sched.AddJob("0 0 3 * * *", retention); err != nil {
		log.Fatal().Err(err).Msg("Failed to register retention job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:           log,
		Cfg:           cfg,
		RunsDB:        runsDB,
		RunsRepo:      runsRepo,
		FactorService: factorSvc,
		Assembler:     asm,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shorlab stopped")
}
