package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jpcadavid/libreria/internal/auth"
	"github.com/jpcadavid/libreria/internal/cart"
	"github.com/jpcadavid/libreria/internal/catalog"
	"github.com/jpcadavid/libreria/internal/config"
	"github.com/jpcadavid/libreria/internal/content"
	"github.com/jpcadavid/libreria/internal/events"
	"github.com/jpcadavid/libreria/internal/httpapi"
	"github.com/jpcadavid/libreria/internal/ledger"
	"github.com/jpcadavid/libreria/internal/storage"
)

func main() {
	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db", cfg.DBPath).
		Str("rabbit", cfg.RabbitURL).
		Msg("starting libreria")

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()
	must(storage.Migrate(context.Background(), db))

	catalogRepo, err := catalog.NewRepository(db)
	must(err)
	cartRepo := cart.NewRepository(db)
	authRepo := auth.NewRepository(db)
	contentRepo := content.NewRepository(db)

	if cfg.SeedOnStart {
		must(catalogRepo.Seed(context.Background()))
		must(authRepo.EnsureAdmin(context.Background(), "admin", "admin@libreria.local", "admin"))
		log.Info().Msg("seeded catalog and admin account")
	}

	// Rabbit es opcional: sin URL el publicador queda en nil y los eventos
	// se omiten.
	rabbit, err := events.NewRabbit(cfg.RabbitURL, cfg.Exchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbit unavailable, events disabled")
		rabbit = nil
	}
	defer rabbit.Close()

	ledgerSvc := ledger.NewService(
		ledger.NewRepository(db), catalogRepo, rabbit, log.Logger, cfg.LowStockThreshold)

	api := httpapi.NewServer(catalogRepo, cartRepo, ledgerSvc, authRepo, contentRepo, log.Logger)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler()}

	// Señales para apagado limpio
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Msg("HTTP listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("serve")
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
