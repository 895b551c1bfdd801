// Package main is the entry point for the game session server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/config"
	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/game/nim"
	"github.com/Halfgear/CS4530-final-project/internal/pkg/db"
	"github.com/Halfgear/CS4530-final-project/internal/repository"
	"github.com/Halfgear/CS4530-final-project/internal/service"
	"github.com/Halfgear/CS4530-final-project/internal/session"
	"github.com/Halfgear/CS4530-final-project/internal/ws"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// History persistence is optional: the engine runs fully in memory and
	// the database only records finished games and display names.
	var (
		historyService  *service.HistoryService
		identityService *service.IdentityService
	)
	if cfg.History.Enabled {
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := runMigrations(ctx, dbPool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		historyRepo := repository.NewHistoryRepository(dbPool.Pool)
		playerRepo := repository.NewPlayerRepository(dbPool.Pool)

		historyService = service.NewHistoryService(historyRepo, cfg.History.QueueSize)
		historyService.Start()
		defer historyService.Close()

		identityService = service.NewIdentityService(playerRepo)
	} else {
		log.Info().Msg("History persistence disabled, running in-memory only")
		identityService = service.NewIdentityService(nil)
	}

	// Register game types
	gameRegistry := game.NewRegistry()

	nimGame := nim.New(&nim.Config{
		InitialObjects: cfg.Games.Nim.InitialObjects,
		MaxTake:        cfg.Games.Nim.MaxTake,
	})
	if err := gameRegistry.Register(nimGame); err != nil {
		log.Fatal().Err(err).Msg("Failed to register nim game")
	}

	log.Info().
		Int("game_count", gameRegistry.Count()).
		Strs("games", gameRegistry.Keys()).
		Msg("Game types registered")

	// Assemble the engine
	roomRegistry := session.NewRegistry(gameRegistry, &session.Config{
		WaitingTimeout: cfg.Rooms.WaitingTimeout,
		RetainFinished: cfg.Rooms.RetainFinished,
		ReapInterval:   cfg.Rooms.ReapInterval,
		LockTimeout:    cfg.Rooms.LockTimeout,
	})

	hub := ws.NewHub(identityService)

	var recorder session.Recorder
	if historyService != nil {
		recorder = historyService
	}
	engine := session.NewEngine(roomRegistry, gameRegistry, hub, recorder)
	engine.Start(ctx)

	// Serve websockets
	wsServer := ws.NewServer(engine, hub, identityService, cfg.Server.AllowedOrigins)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: wsServer.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	cancel()
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create games table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			game_type VARCHAR(50) NOT NULL,
			players TEXT[] NOT NULL,
			winners TEXT[] NOT NULL DEFAULT '{}',
			move_count INT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at DESC);
		CREATE INDEX IF NOT EXISTS idx_games_players ON games USING GIN(players);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: games table created")

	// Migration 2: Create players table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			player_id TEXT PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: players table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
