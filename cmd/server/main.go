package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dialoq/hotline/internal/adapters/http"
	"github.com/dialoq/hotline/internal/app"
	"github.com/dialoq/hotline/internal/config"
	"github.com/dialoq/hotline/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	registry := app.NewRegistry()

	rt := &app.Router{
		Registry:  registry,
		Presence:  app.NewPresence(),
		Calls:     app.NewCallTable(),
		Store:     st,
		Broadcast: app.NewBroadcaster(registry, app.SimplePolicy{}),
		Limiter:   app.NewCallRateLimiter(cfg.CallLimit, cfg.CallInterval),
	}

	r := router.SetupRouter(ctx, cfg, rt, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Hotline server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case "sqlite":
		return store.OpenSQLite(cfg.DBPath)
	default:
		return store.NewMemoryStore(), nil
	}
}
