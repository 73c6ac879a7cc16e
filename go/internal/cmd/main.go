package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quickdrawgg/duels/go/internal/duel/gateway"
	"github.com/quickdrawgg/duels/go/internal/duel/orchestrator"
	"github.com/quickdrawgg/duels/go/internal/room"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if getEnv("LOG_LEVEL", "") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Info().
		Str("port", cfg.Port).
		Int64("countdown_ms", cfg.Game.CountdownMs).
		Int64("draw_delay_min_ms", cfg.Game.DrawDelayMinMs).
		Int64("draw_delay_max_ms", cfg.Game.DrawDelayMaxMs).
		Msg("starting duels server")

	clock := clockwork.NewRealClock()
	registry := room.NewRegistry(clock)

	gatewayService := gateway.NewService(gateway.DefaultConnectionConfig(), registry)
	orch := orchestrator.NewOrchestrator(registry, gatewayService.Broadcaster(), clock, cfg.Game.Orchestrator())
	gatewayService.AttachGame(orch)

	server := setupServer(cfg.Port, gatewayService)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the broadcast queue and the room TTL sweeper
	go gatewayService.Start(ctx)
	go orch.Run(ctx)

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancel service context to stop the gateway and sweeper
	cancel()

	log.Info().Msg("duels server shutdown complete")
}
