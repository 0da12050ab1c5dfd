package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justinabrahms/deskchess/internal/chess"
	"github.com/justinabrahms/deskchess/internal/computer"
	"github.com/justinabrahms/deskchess/internal/config"
	"github.com/justinabrahms/deskchess/internal/snapshot"
	"github.com/justinabrahms/deskchess/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line flags
	var showHelp bool
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	// Setup logging
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Development.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.Development.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if cfg.Development.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot store")
	}

	engine := chess.NewEngine(
		chess.WithPolicy(computer.NewRandomPolicy()),
		chess.WithTimeControl(chess.TimeControl{Initial: cfg.Game.InitialSeconds}),
		chess.WithSettings(chess.Settings{
			VsComputer: cfg.Computer.Enabled,
			Difficulty: computer.ClampDifficulty(cfg.Computer.Difficulty),
			Sound:      cfg.Sound.Enabled,
		}),
	)
	if cfg.Development.Debug {
		log.Debug().Msg("Initial board\n" + chess.Draw(engine.Board()))
	}

	hub := web.NewHub()
	go hub.Run(ctx)

	service := web.NewService(engine, store, hub, cfg)
	service.Start()
	go service.RunClock(ctx)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      service.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	service.Close()
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close snapshot store")
		}
	}

	log.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (snapshot.Store, error) {
	if cfg.Storage.RedisURL != "" {
		store, err := snapshot.DialRedis(ctx, cfg.Storage.RedisURL, cfg.Storage.RedisKey)
		if err != nil {
			return nil, err
		}
		log.Info().Str("key", cfg.Storage.RedisKey).Msg("Saving games to redis")
		return store, nil
	}

	log.Info().Str("path", cfg.Storage.Path).Msg("Saving games to file")
	return snapshot.NewFileStore(cfg.Storage.Path), nil
}

func showHelpMessage() {
	fmt.Println(`deskchess

DESCRIPTION:
    Two-player chess on one machine, optionally against a computer
    opponent playing Black. Serves a JSON command API and a websocket
    that pushes board state, clock ticks and sound cues to renderers.

USAGE:
    deskchess [OPTIONS]

OPTIONS:
    -h, --help    Show this help message

CONFIGURATION:
    Read from config.yaml in the current directory or ./config.
    Every key can be overridden with DESKCHESS_<SECTION>_<KEY>.

    Example config.yaml:
        server:
          host: localhost
          port: 8080
        game:
          initial_seconds: 600
          computer_delay: 500ms
        computer:
          enabled: true
          difficulty: 1
        sound:
          enabled: true
        storage:
          path: deskchess-save.car     # used when redis_url is empty
          redis_url: ""                # e.g. redis://localhost:6379/0
          redis_key: deskchess:snapshot
        development:
          debug: false
          log_level: info

API ENDPOINTS:
    GET  /api/health                  - Service health check
    GET  /api/game                    - Full game state
    GET  /api/game/select?square=e2   - Legal destinations for a piece
    POST /api/game/new                - Start a new game
    POST /api/game/moves              - Move {"from":"e2","to":"e4"}
    POST /api/game/undo               - Take back the last move
    POST /api/game/save               - Save the game
    POST /api/game/load               - Load the saved game
    POST /api/settings/computer       - {"enabled":true}, starts a new game
    POST /api/settings/difficulty     - {"level":1..3}
    POST /api/settings/sound          - {"enabled":false}
    GET  /ws                          - state, clock, sound and forfeit updates

EXAMPLES:
    deskchess
    DESKCHESS_SERVER_PORT=9000 deskchess

    curl -X POST http://localhost:8080/api/game/moves \
      -H "Content-Type: application/json" \
      -d '{"from":"e2","to":"e4"}'`)
}
