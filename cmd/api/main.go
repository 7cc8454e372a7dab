package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/config"
	"github.com/shinyyama/lynxx-backend/internal/db"
	"github.com/shinyyama/lynxx-backend/internal/logging"
	appmw "github.com/shinyyama/lynxx-backend/internal/middleware"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/server"
	"github.com/shinyyama/lynxx-backend/internal/storage"
)

// set with -ldflags "-X main.gitSHA=... -X main.buildTime=..."
var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup(os.Getenv("LOG_LEVEL"), false)
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("auto migrate error")
	}

	authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init firebase auth")
	}

	deps := server.Deps{DB: conn, Auth: authMw, Hub: realtime.NewHub(cfg.RealtimeBuffer)}
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.StorageBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init storage")
		}
		defer gcs.Close()
		deps.Uploader = gcs
	} else {
		log.Warn().Msg("STORAGE_BUCKET not set; image uploads disabled")
	}

	srv := server.New(cfg, deps, gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("git_sha", gitSHA).Msg("starting server")
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
