package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "chousei/docs"
	"chousei/internal/config"
	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	api "chousei/internal/http"
	"chousei/internal/metrics"
	"chousei/internal/platform/database"
	"chousei/internal/store"
	"chousei/internal/store/memory"
	"chousei/internal/store/postgres"
	"chousei/internal/worker"
)

// @title           Chousei Poll API
// @version         1.0
// @description     Availability poll engine with live synchronization
// @BasePath        /api/v1
func main() {
	cfg := config.Load()
	metrics.Register()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.DB_DSN != "" {
		var err error
		db, err = database.NewPostgres(context.Background(), cfg.DB_DSN)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer db.Close()

		pgStore, err := postgres.New(context.Background(), db, cfg.DB_DSN, logger)
		if err != nil {
			log.Fatalf("store init error: %v", err)
		}
		defer pgStore.Close()
		st = pgStore
		logger.Info("using postgres store")
	} else {
		st = memory.New()
		logger.Info("using in-memory store")
	}

	pollSvc := poll.NewService(st)
	partSvc := participant.NewService(pollSvc, st)
	chatSvc := chat.NewService(st)

	eventCh := make(chan worker.Event, 100)
	activity := worker.NewActivityWorker(eventCh, logger)

	router := api.NewRouter(pollSvc, partSvc, chatSvc, st, eventCh, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go activity.Run(ctx)

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	logger.Info("server stopped")
}
