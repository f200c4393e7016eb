package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tollgate-service/internal/billing"
	"tollgate-service/internal/config"
	"tollgate-service/internal/db"
	"tollgate-service/internal/http"
	"tollgate-service/internal/logger"
	"tollgate-service/internal/repository"
	"tollgate-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	var store service.Store
	if dsn := cfg.Database.DSN(); dsn != "" {
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := db.Migrate(gdb); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		store = repository.NewTollRepository(gdb)
		log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.Name).Msg("using postgres store")
	} else {
		store = billing.NewMemoryStore()
		log.Warn().Msg("no database configured, using in-memory store")
	}

	gate := billing.NewDebounceGate(cfg.Billing.DebounceWindow)
	ledger := billing.NewLedger(store, log)
	tollService := service.NewTollService(store, gate, ledger, log)

	router := http.NewRouter(cfg, log)
	handler := http.NewHandler(tollService, cfg, log)
	handler.Register(router, http.JWTAuth(cfg, log))

	srv := &nethttp.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
